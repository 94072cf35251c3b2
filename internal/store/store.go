package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite index of resources and the top-level types they declare.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS resources (
  id              INTEGER PRIMARY KEY,
  kind            TEXT NOT NULL,
  uri             TEXT NOT NULL UNIQUE,
  path            TEXT,
  archive         TEXT,
  entry           TEXT,
  package         TEXT,
  hash            TEXT,
  line_count      INTEGER,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS declared_types (
  id              INTEGER PRIMARY KEY,
  resource_id     INTEGER NOT NULL REFERENCES resources(id),
  outer_name      TEXT NOT NULL,
  simple_name     TEXT NOT NULL,
  kind            TEXT NOT NULL,
  start_line      INTEGER,
  end_line        INTEGER
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

CREATE INDEX IF NOT EXISTS idx_resources_kind ON resources(kind);
CREATE INDEX IF NOT EXISTS idx_resources_archive ON resources(archive);
CREATE INDEX IF NOT EXISTS idx_declared_types_outer ON declared_types(outer_name);
CREATE INDEX IF NOT EXISTS idx_declared_types_resource ON declared_types(resource_id);
`

// DeleteResourceData transactionally removes a resource and its declared
// types. Deletes in reverse-dependency order to respect FK constraints.
func (s *Store) DeleteResourceData(resourceID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteResourceTx(tx, resourceID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteResources removes several resources and their declared types in one
// transaction.
func (s *Store) DeleteResources(resourceIDs []int64) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := placeholderList(len(resourceIDs))
	args := int64sToArgs(resourceIDs)
	for _, q := range []string{
		"DELETE FROM declared_types WHERE resource_id IN (" + placeholders + ")",
		"DELETE FROM resources WHERE id IN (" + placeholders + ")",
	} {
		if _, err := tx.Exec(q, args...); err != nil {
			return fmt.Errorf("delete resources: %w", err)
		}
	}
	return tx.Commit()
}

func deleteResourceTx(tx *sql.Tx, resourceID int64) error {
	for _, q := range []string{
		"DELETE FROM declared_types WHERE resource_id = ?",
		"DELETE FROM resources WHERE id = ?",
	} {
		if _, err := tx.Exec(q, resourceID); err != nil {
			return fmt.Errorf("delete resource data: %w", err)
		}
	}
	return nil
}
