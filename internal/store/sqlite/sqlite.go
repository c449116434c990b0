// Package sqlite is the embedded registry store. The CLI and the test
// suites run against it; the server uses it when DATABASE_URL is not a
// PostgreSQL URL.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const timeLayout = time.RFC3339

// Store implements core.Store on a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps an open database. The caller owns migrations.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open opens the database named by url. See DSN for accepted forms.
func Open(ctx context.Context, url string) (*Store, error) {
	dsn := DSN(url)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if strings.Contains(dsn, "mode=memory") {
		// Every connection to a named in-memory database shares it, but the
		// database vanishes with its last connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return New(db), nil
}

// OpenMemory opens a fresh, private in-memory database and migrates it.
func OpenMemory(ctx context.Context) (*Store, error) {
	s, err := Open(ctx, ":memory:")
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// DSN converts a DATABASE_URL into a modernc.org/sqlite data source name.
// ":memory:" and "" give a uniquely named in-memory database; "sqlite://path"
// and bare paths give a file database with foreign keys and WAL enabled.
// "file:" DSNs are passed through.
func DSN(url string) string {
	url = strings.TrimSpace(url)
	if url == "" || url == ":memory:" || url == "sqlite://:memory:" {
		return "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	}
	if strings.HasPrefix(url, "file:") {
		return url
	}
	path := strings.TrimPrefix(strings.TrimPrefix(url, "sqlite://"), "sqlite:")
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Migrate applies pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "migrations")
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return errors.Wrap(err, "create migration provider")
	}
	if _, err := provider.Up(ctx); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// nullable stores an empty string as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid stored timestamp %q", s)
	}
	return t, nil
}
