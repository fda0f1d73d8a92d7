package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// migration upgrades a journal from version-1 to version.
type migration struct {
	version int
	name    string
	apply   func(*sql.Tx) error
}

// migrations must stay ordered and contiguous from 1. The last entry defines
// the version this binary writes.
var migrations = []migration{
	{version: 1, name: "runs, samples, alerts and commands", apply: createJournal},
}

func currentSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// connParams are applied by go-sqlite3 to every connection it opens.
//   - WAL so `scada trace` can read a journal while a run is writing it
//   - synchronous=NORMAL: a crash may lose the last ticks, never corrupt the file
//   - busy_timeout: a reader waits up to 5s for the writer's lock
//   - foreign_keys: rows cannot outlive or precede their run
//   - txlock=immediate: each Report transaction takes the write lock up front
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"1"},
	"_txlock":       {"immediate"},
}

// Store is the SQLite run journal. One Store may be shared by the Journal
// observer and readers; the single pooled connection serializes them.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal at path and upgrades its schema.
// Opening an existing journal leaves recorded runs untouched. A journal
// written by a newer binary is refused rather than misread.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	// The journal has exactly one writer: the Journal observer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path is the file the journal was opened from.
func (s *Store) Path() string {
	return s.path
}

// Close closes the journal. Reports must no longer be observed through it.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate applies every migration above the journal's user_version, each in
// its own transaction together with the version bump.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current := currentSchemaVersion(); version > current {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, current)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("schema v%d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.apply(tx); err != nil {
		return err
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

func createJournal(tx *sql.Tx) error {
	_, err := tx.Exec(schemaSQL)
	return err
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
