package store

import (
	"database/sql"
	"fmt"
)

// Batch holds one parsed resource and its declared types, built by an
// indexing worker and committed by the single writer.
type Batch struct {
	Resource Resource
	Types    []DeclaredType
}

// CommitBatches writes all batches within a single transaction. A resource
// whose URI already exists is replaced along with its declared types.
// Resource IDs are written back into each batch.
//
// Insert order respects FK dependencies:
//  1. Stale rows for the same URI (declared types, then the resource)
//  2. The resource
//  3. Its declared types, with resource_id rewritten to the new ID
func (s *Store) CommitBatches(batches []*Batch) error {
	if len(batches) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for _, b := range batches {
		var existing int64
		err := tx.QueryRow("SELECT id FROM resources WHERE uri = ?", b.Resource.URI).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return fmt.Errorf("commit batch: lookup %s: %w", b.Resource.URI, err)
		default:
			if err := deleteResourceTx(tx, existing); err != nil {
				return fmt.Errorf("commit batch: %s: %w", b.Resource.URI, err)
			}
		}

		id, err := insertResourceTx(tx, &b.Resource)
		if err != nil {
			return fmt.Errorf("commit batch: resource %s: %w", b.Resource.URI, err)
		}
		b.Resource.ID = id

		for i := range b.Types {
			b.Types[i].ResourceID = id
			typeID, err := insertDeclaredTypeTx(tx, &b.Types[i])
			if err != nil {
				return fmt.Errorf("commit batch: type %q: %w", b.Types[i].OuterName, err)
			}
			b.Types[i].ID = typeID
		}
	}

	return tx.Commit()
}

// --- Transaction-scoped insert helpers ---
// These mirror the Store insert methods but accept *sql.Tx instead of using s.db.

func insertResourceTx(tx *sql.Tx, r *Resource) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO resources (kind, uri, path, archive, entry, package, hash, line_count, last_indexed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Kind, r.URI, r.Path, r.Archive, r.Entry, r.Package, r.Hash, r.LineCount, r.LastIndexed,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertDeclaredTypeTx(tx *sql.Tx, t *DeclaredType) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO declared_types (resource_id, outer_name, simple_name, kind, start_line, end_line)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ResourceID, t.OuterName, t.SimpleName, t.Kind, t.StartLine, t.EndLine,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
