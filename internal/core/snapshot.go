package core

import (
	"context"
	"maps"
	"slices"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

type codeSet map[string]struct{}

func newCodeSet(codes []string) codeSet {
	set := make(codeSet, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

func (s codeSet) has(code string) bool {
	_, ok := s[code]
	return ok
}

// Snapshot is the read-only view of every vocabulary and of the known
// entity identifiers, taken once when an import starts. It is never
// refreshed during the call.
type Snapshot struct {
	dicts       map[Dictionary]codeSet
	entityTypes []string
	entities    codeSet
	entityFiles map[int64]struct{}
}

// LoadSnapshot runs one bulk read per vocabulary, concurrently. Entity file
// ids are only loaded for entity imports, where rows may name their file.
func LoadSnapshot(ctx context.Context, src SnapshotSource, kind RecordKind) (*Snapshot, error) {
	g, gctx := errgroup.WithContext(ctx)

	codes := make([][]string, len(Dictionaries))
	for i, dict := range Dictionaries {
		g.Go(func() error {
			c, err := src.Codes(gctx, dict)
			if err != nil {
				return errors.Wrapf(err, "load %s", dict)
			}
			codes[i] = c
			return nil
		})
	}

	var uids []string
	g.Go(func() error {
		u, err := src.EntityUIDs(gctx)
		if err != nil {
			return errors.Wrap(err, "load entity identifiers")
		}
		uids = u
		return nil
	})

	var fileIDs []int64
	if kind == KindEntities {
		g.Go(func() error {
			ids, err := src.EntityFileIDs(gctx)
			if err != nil {
				return errors.Wrap(err, "load entity files")
			}
			fileIDs = ids
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		dicts:       make(map[Dictionary]codeSet, len(Dictionaries)),
		entities:    newCodeSet(uids),
		entityFiles: make(map[int64]struct{}, len(fileIDs)),
	}
	for i, dict := range Dictionaries {
		snap.dicts[dict] = newCodeSet(codes[i])
	}
	snap.entityTypes = slices.Sorted(maps.Keys(snap.dicts[DictEntityTypes]))
	for _, id := range fileIDs {
		snap.entityFiles[id] = struct{}{}
	}
	return snap, nil
}

// Has reports whether code belongs to dict.
func (s *Snapshot) Has(dict Dictionary, code string) bool {
	return s.dicts[dict].has(code)
}

// KnownEntity reports whether uid existed when the snapshot was taken.
func (s *Snapshot) KnownEntity(uid string) bool {
	return s.entities.has(uid)
}

// HasEntityFile reports whether an entity file with id exists.
func (s *Snapshot) HasEntityFile(id int64) bool {
	_, ok := s.entityFiles[id]
	return ok
}

// defaultEntityType picks the type for a placeholder: organization when it
// exists, otherwise the lowest code. ok is false when no types exist.
func (s *Snapshot) defaultEntityType() (string, bool) {
	if s.Has(DictEntityTypes, fallbackEntityType) {
		return fallbackEntityType, true
	}
	if len(s.entityTypes) == 0 {
		return "", false
	}
	return s.entityTypes[0], true
}

// knownSet is the call-scoped set of identifiers that rows may reference:
// the snapshot plus whatever this call has created so far.
type knownSet struct {
	base  *Snapshot
	added codeSet
}

func newKnownSet(base *Snapshot) *knownSet {
	return &knownSet{base: base, added: codeSet{}}
}

func (k *knownSet) has(uid string) bool {
	return k.added.has(uid) || k.base.KnownEntity(uid)
}

func (k *knownSet) add(uid string) {
	k.added[uid] = struct{}{}
}
