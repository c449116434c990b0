package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordKind identifies which sheet layout an import carries.
type RecordKind string

const (
	KindEntities     RecordKind = "entities"
	KindAffiliations RecordKind = "affiliations"
	KindIncidents    RecordKind = "incidents"
)

// ParseKind maps a wire value to a RecordKind.
func ParseKind(s string) (RecordKind, error) {
	switch k := RecordKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindEntities, KindAffiliations, KindIncidents:
		return k, nil
	}
	return "", ErrUnknownKind
}

// Dictionary names one controlled vocabulary.
type Dictionary string

const (
	DictEntityTypes   Dictionary = "entity_types"
	DictFlags         Dictionary = "flags"
	DictAddressRoles  Dictionary = "address_roles"
	DictIncidentTypes Dictionary = "incident_types"
	DictNetworks      Dictionary = "networks"
	DictCategories    Dictionary = "categories"
)

// Dictionaries lists every vocabulary in a stable order.
var Dictionaries = []Dictionary{
	DictEntityTypes, DictFlags, DictAddressRoles, DictIncidentTypes, DictNetworks, DictCategories,
}

// DictionaryEntry is one code of a vocabulary.
type DictionaryEntry struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

// EntityRecord is a normalized entity row. Empty strings are stored as NULL.
type EntityRecord struct {
	UID         string
	Name        string
	TypeCode    string
	ParentUID   string
	Description string
	Country     string
	Comment     string

	// FileID links the entity to an entity file; zero means no link.
	FileID     int64
	Flags      []string
	Categories []string
}

// AffiliationRecord is a normalized affiliation row.
type AffiliationRecord struct {
	ID            int64
	FolderID      int64
	Network       string
	Address       string
	EntityUID     string
	Role          string
	Source        string
	Analyst       string
	Comment       string
	ExtName       string
	ExtCategory   string
	ExtWalletName string
	ExtLabel      string
	IsHidden      bool
	AddedAt       time.Time
}

// IncidentRecord is a normalized incident row.
type IncidentRecord struct {
	ID           int64
	FileID       int64
	Network      string
	Address      string
	EntityUID    string
	IncidentType string
	IncidentDate time.Time
	Source       string
	WalletRole   string
	Analyst      string
	TxHashes     string
	AddedAt      time.Time
}

// Format selects how ImportRequest.Data is decoded.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ImportRequest is one call into the import executor.
type ImportRequest struct {
	Kind   RecordKind
	Data   []byte
	Format Format

	// FileID is the target entity or incident file. It is optional for
	// entities, where a per-row file_id column may override it.
	FileID int64
	// FolderID is the target affiliation folder.
	FolderID int64

	DryRun bool

	// Policies decide what happens to references to unknown entity
	// identifiers. Ignored when DryRun is set.
	Policies map[string]Policy
}

// ContainerID returns the container the request writes into.
func (r ImportRequest) ContainerID() int64 {
	if r.Kind == KindAffiliations {
		return r.FolderID
	}
	return r.FileID
}

func (r ImportRequest) mode() string {
	if r.DryRun {
		return "dry_run"
	}
	return "commit"
}

// ImportRun is the audit record written for every committed import.
type ImportRun struct {
	ID          uuid.UUID
	Kind        RecordKind
	ContainerID int64
	OK          int
	Errors      int
	Skipped     int
	Unknown     int
	// Outcome is "completed", or "cancelled" when the call stopped early
	// with only a prefix of the rows processed.
	Outcome    string
	ClientIP   string
	UserAgent  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// SnapshotSource provides the bulk reads a snapshot is built from.
type SnapshotSource interface {
	Codes(ctx context.Context, dict Dictionary) ([]string, error)
	EntityUIDs(ctx context.Context) ([]string, error)
	EntityFileIDs(ctx context.Context) ([]int64, error)
}

// CommitSink receives the writes of a committing import. Dry runs use a
// sink that discards everything.
type CommitSink interface {
	// UpsertEntity writes the entity keyed by UID together with its file
	// link, flags and categories.
	UpsertEntity(ctx context.Context, rec EntityRecord) error
	// EnsureEntity inserts a minimal entity unless one with uid exists.
	EnsureEntity(ctx context.Context, uid, name, typeCode string) error
	InsertAffiliation(ctx context.Context, rec AffiliationRecord) error
	InsertIncident(ctx context.Context, rec IncidentRecord) error
}

// ImportStore is everything the executor needs from persistence.
type ImportStore interface {
	SnapshotSource
	CommitSink
	ContainerExists(ctx context.Context, kind RecordKind, id int64) (bool, error)
	RecordRun(ctx context.Context, run ImportRun) error
}

// RecordReader serves exports.
type RecordReader interface {
	// ListEntities returns entities linked to fileID, or all entities when fileID is zero.
	ListEntities(ctx context.Context, fileID int64) ([]EntityRecord, error)
	ListAffiliations(ctx context.Context, folderID int64) ([]AffiliationRecord, error)
	ListIncidents(ctx context.Context, fileID int64) ([]IncidentRecord, error)
}

// Store is the full persistence surface used by the binaries.
type Store interface {
	ImportStore
	RecordReader

	ListDictionary(ctx context.Context, dict Dictionary) ([]DictionaryEntry, error)
	SeedDictionaries(ctx context.Context, entries map[Dictionary][]DictionaryEntry) error

	CreateEntityFile(ctx context.Context, name, description string) (int64, error)
	CreateFolder(ctx context.Context, name, network string) (int64, error)
	CreateIncidentFile(ctx context.Context, name, month string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
