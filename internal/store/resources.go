package store

import (
	"database/sql"
	"errors"
	"fmt"
)

const resourceColumns = "id, kind, uri, path, archive, entry, package, hash, line_count, last_indexed"

// --- Resource operations ---

func (s *Store) InsertResource(r *Resource) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO resources (kind, uri, path, archive, entry, package, hash, line_count, last_indexed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Kind, r.URI, r.Path, r.Archive, r.Entry, r.Package, r.Hash, r.LineCount, r.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert resource: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	return id, nil
}

func scanResource(scanner interface{ Scan(...any) error }, extra ...any) (*Resource, error) {
	r := &Resource{}
	var path, archive, entry, pkg, hash sql.NullString
	dest := []any{&r.ID, &r.Kind, &r.URI, &path, &archive, &entry, &pkg, &hash, &r.LineCount, &r.LastIndexed}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	r.Path = path.String
	r.Archive = archive.String
	r.Entry = entry.String
	r.Package = pkg.String
	r.Hash = hash.String
	return r, nil
}

// ResourceByURI returns the resource with the given URI, or nil if none.
func (s *Store) ResourceByURI(uri string) (*Resource, error) {
	r, err := scanResource(s.db.QueryRow(
		"SELECT "+resourceColumns+" FROM resources WHERE uri = ?", uri,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resource by uri: %w", err)
	}
	return r, nil
}

// ResourceByID returns the resource with the given ID, or nil if none.
func (s *Store) ResourceByID(id int64) (*Resource, error) {
	r, err := scanResource(s.db.QueryRow(
		"SELECT "+resourceColumns+" FROM resources WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resource by id: %w", err)
	}
	return r, nil
}

// ResourcesByKind lists resources of one kind ordered by URI.
func (s *Store) ResourcesByKind(kind ResourceKind) ([]*Resource, error) {
	rows, err := s.db.Query(
		"SELECT "+resourceColumns+" FROM resources WHERE kind = ? ORDER BY uri", kind,
	)
	if err != nil {
		return nil, fmt.Errorf("resources by kind: %w", err)
	}
	defer rows.Close()
	var out []*Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResourcesInArchive lists the library resources read from one archive.
func (s *Store) ResourcesInArchive(archive string) ([]*Resource, error) {
	rows, err := s.db.Query(
		"SELECT "+resourceColumns+" FROM resources WHERE kind = ? AND archive = ? ORDER BY entry",
		KindLibrary, archive,
	)
	if err != nil {
		return nil, fmt.Errorf("resources in archive: %w", err)
	}
	defer rows.Close()
	var out []*Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResourcesDeclaring returns every resource declaring a top-level type with
// the given fully qualified outer name, most relevant first: files before
// library entries, then resources whose declaration spans hintLine, then by
// URI.
func (s *Store) ResourcesDeclaring(outerName string, hintLine int) ([]*Resource, error) {
	rows, err := s.db.Query(
		`SELECT r.id, r.kind, r.uri, r.path, r.archive, r.entry, r.package, r.hash, r.line_count, r.last_indexed,
		        MIN(CASE WHEN t.start_line <= ? AND t.end_line >= ? THEN 0 ELSE 1 END) AS hint_miss
		 FROM declared_types t
		 JOIN resources r ON r.id = t.resource_id
		 WHERE t.outer_name = ?
		 GROUP BY r.id
		 ORDER BY CASE r.kind WHEN 'file' THEN 0 ELSE 1 END, hint_miss, r.uri`,
		hintLine, hintLine, outerName,
	)
	if err != nil {
		return nil, fmt.Errorf("resources declaring %s: %w", outerName, err)
	}
	defer rows.Close()
	var out []*Resource
	for rows.Next() {
		var hintMiss int
		r, err := scanResource(rows, &hintMiss)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Declared type operations ---

func (s *Store) InsertDeclaredType(t *DeclaredType) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO declared_types (resource_id, outer_name, simple_name, kind, start_line, end_line)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ResourceID, t.OuterName, t.SimpleName, t.Kind, t.StartLine, t.EndLine,
	)
	if err != nil {
		return 0, fmt.Errorf("insert declared type: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id
	return id, nil
}

// DeclaredTypes lists the top-level types of a resource in source order.
func (s *Store) DeclaredTypes(resourceID int64) ([]*DeclaredType, error) {
	rows, err := s.db.Query(
		`SELECT id, resource_id, outer_name, simple_name, kind, start_line, end_line
		 FROM declared_types WHERE resource_id = ? ORDER BY start_line, id`, resourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("declared types: %w", err)
	}
	defer rows.Close()
	var out []*DeclaredType
	for rows.Next() {
		t := &DeclaredType{}
		if err := rows.Scan(&t.ID, &t.ResourceID, &t.OuterName, &t.SimpleName, &t.Kind, &t.StartLine, &t.EndLine); err != nil {
			return nil, fmt.Errorf("scan declared type: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Metadata ---

// GetMetadata returns the value stored under key, or "" if unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value.String, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
