package store

import "time"

// ResourceKind distinguishes editable workspace files from read-only
// library archive entries.
type ResourceKind string

const (
	KindFile    ResourceKind = "file"
	KindLibrary ResourceKind = "library"
)

type Resource struct {
	ID          int64
	Kind        ResourceKind
	URI         string
	Path        string // file resources
	Archive     string // library resources
	Entry       string // library resources
	Package     string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

// DeclaredType is a top-level type declared by a resource. Lines are 1-based.
type DeclaredType struct {
	ID         int64
	ResourceID int64
	OuterName  string
	SimpleName string
	Kind       string
	StartLine  int
	EndLine    int
}
