package typeloc

import (
	"errors"

	"github.com/jward/typeloc/internal/binname"
	"github.com/jward/typeloc/internal/structure"
)

var (
	// ErrResourceNotFound is returned when a resource's content cannot be
	// obtained.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrNotFound is returned when no type declaration encloses the offset.
	ErrNotFound = errors.New("no enclosing type")

	ErrOffsetOutOfRange = structure.ErrOffsetOutOfRange
	ErrInconsistentTree = structure.ErrInconsistentTree
	ErrMalformedFqn     = binname.ErrMalformed
)
