package core

import (
	"context"
	"errors"
	"sync"
)

// fakeStore is an in-memory ImportStore for executor tests.
type fakeStore struct {
	mu sync.Mutex

	codes       map[Dictionary][]string
	entities    map[string]EntityRecord
	entityFiles []int64
	folders     map[int64]bool
	incFiles    map[int64]bool

	affiliations []AffiliationRecord
	incidents    []IncidentRecord
	ensured      []string
	upserts      int
	runs         []ImportRun

	codesErr    error
	ensureErr   error
	insertErr   error
	recordErr   error
	existsCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		codes: map[Dictionary][]string{
			DictEntityTypes:   {"organization", "exchange", "individual"},
			DictFlags:         {"sanctioned", "risky"},
			DictAddressRoles:  {"deposit", "master"},
			DictIncidentTypes: {"scam", "theft"},
			DictNetworks:      {"EVM", "BTC", "TRX"},
			DictCategories:    {"defi", "cefi_exchange"},
		},
		entities:    map[string]EntityRecord{"acme": {UID: "acme", Name: "Acme", TypeCode: "exchange"}},
		entityFiles: []int64{1, 2},
		folders:     map[int64]bool{1: true},
		incFiles:    map[int64]bool{1: true},
	}
}

func (s *fakeStore) Codes(_ context.Context, dict Dictionary) ([]string, error) {
	if s.codesErr != nil {
		return nil, s.codesErr
	}
	return s.codes[dict], nil
}

func (s *fakeStore) EntityUIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uids := make([]string, 0, len(s.entities))
	for uid := range s.entities {
		uids = append(uids, uid)
	}
	return uids, nil
}

func (s *fakeStore) EntityFileIDs(context.Context) ([]int64, error) {
	return s.entityFiles, nil
}

func (s *fakeStore) UpsertEntity(_ context.Context, rec EntityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.entities[rec.UID] = rec
	s.upserts++
	return nil
}

func (s *fakeStore) EnsureEntity(_ context.Context, uid, name, typeCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensureErr != nil {
		return s.ensureErr
	}
	s.ensured = append(s.ensured, uid)
	if _, ok := s.entities[uid]; !ok {
		s.entities[uid] = EntityRecord{UID: uid, Name: name, TypeCode: typeCode}
	}
	return nil
}

func (s *fakeStore) InsertAffiliation(_ context.Context, rec AffiliationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.affiliations = append(s.affiliations, rec)
	return nil
}

func (s *fakeStore) InsertIncident(_ context.Context, rec IncidentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.incidents = append(s.incidents, rec)
	return nil
}

func (s *fakeStore) ContainerExists(_ context.Context, kind RecordKind, id int64) (bool, error) {
	s.existsCalls++
	switch kind {
	case KindAffiliations:
		return s.folders[id], nil
	case KindIncidents:
		return s.incFiles[id], nil
	case KindEntities:
		for _, f := range s.entityFiles {
			if f == id {
				return true, nil
			}
		}
		return false, nil
	}
	return false, errors.New("unexpected kind")
}

func (s *fakeStore) RecordRun(_ context.Context, run ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.runs = append(s.runs, run)
	return nil
}

// writes reports how many records the store accepted.
func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts + len(s.ensured) + len(s.affiliations) + len(s.incidents)
}

// fakeReader serves Export tests.
type fakeReader struct {
	entities     []EntityRecord
	affiliations []AffiliationRecord
	incidents    []IncidentRecord
	lastID       int64
}

func (r *fakeReader) ListEntities(_ context.Context, fileID int64) ([]EntityRecord, error) {
	r.lastID = fileID
	return r.entities, nil
}

func (r *fakeReader) ListAffiliations(_ context.Context, folderID int64) ([]AffiliationRecord, error) {
	r.lastID = folderID
	return r.affiliations, nil
}

func (r *fakeReader) ListIncidents(_ context.Context, fileID int64) ([]IncidentRecord, error) {
	r.lastID = fileID
	return r.incidents, nil
}
