// Package binname composes and decomposes compiler binary names such as
// pkg.Outer$Inner$1$2Local.
package binname

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/jward/typeloc/internal/structure"
)

// ErrMalformed is returned by Decode for input outside the binary-name
// grammar.
var ErrMalformed = errors.New("malformed fqn")

// Encode folds a scope stack into a binary name qualified by pkg.
func Encode(frames []structure.Frame, pkg string) string {
	var b strings.Builder
	b.WriteString(pkg)
	for i, f := range frames {
		switch f.Kind {
		case structure.FrameNamed:
			if i > 0 {
				b.WriteByte('$')
			} else if pkg != "" {
				b.WriteByte('.')
			}
			b.WriteString(f.Name)
		case structure.FrameAnonymous:
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(f.Index))
		case structure.FrameLocal:
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(f.Index))
			b.WriteString(f.Name)
		}
	}
	return b.String()
}

// Segment is one $-separated component following the outer name.
type Segment struct {
	Kind  structure.FrameKind
	Index int
	Name  string
}

func (s Segment) String() string {
	switch s.Kind {
	case structure.FrameAnonymous:
		return strconv.Itoa(s.Index)
	case structure.FrameLocal:
		return strconv.Itoa(s.Index) + s.Name
	}
	return s.Name
}

// Name is a decoded binary name. Outer is the top-level type name used as the
// resource search key; Segments disambiguate within the resource.
type Name struct {
	Outer    string
	Segments []Segment
}

func (n Name) String() string {
	var b strings.Builder
	b.WriteString(n.Outer)
	for _, s := range n.Segments {
		b.WriteByte('$')
		b.WriteString(s.String())
	}
	return b.String()
}

// Nested reports whether the name has segments after the outer type.
func (n Name) Nested() bool {
	return len(n.Segments) > 0
}

// Package returns the package part of the outer name.
func (n Name) Package() string {
	if i := strings.LastIndexByte(n.Outer, '.'); i >= 0 {
		return n.Outer[:i]
	}
	return ""
}

// Decode splits fqn on its first '$' into the outer name and the remaining
// segments.
func Decode(fqn string) (Name, error) {
	if fqn == "" {
		return Name{}, fmt.Errorf("%w: empty name", ErrMalformed)
	}

	outer, rest, nested := strings.Cut(fqn, "$")
	for _, part := range strings.Split(outer, ".") {
		if !isIdentifier(part) {
			return Name{}, fmt.Errorf("%w: %q: bad outer name %q", ErrMalformed, fqn, outer)
		}
	}

	n := Name{Outer: outer}
	if !nested {
		return n, nil
	}
	for _, raw := range strings.Split(rest, "$") {
		seg, ok := parseSegment(raw)
		if !ok {
			return Name{}, fmt.Errorf("%w: %q: bad segment %q", ErrMalformed, fqn, raw)
		}
		n.Segments = append(n.Segments, seg)
	}
	return n, nil
}

func parseSegment(raw string) (Segment, bool) {
	digits := 0
	for digits < len(raw) && raw[digits] >= '0' && raw[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		if !isIdentifier(raw) {
			return Segment{}, false
		}
		return Segment{Kind: structure.FrameNamed, Name: raw}, true
	}

	index, err := strconv.Atoi(raw[:digits])
	if err != nil {
		return Segment{}, false
	}
	if digits == len(raw) {
		return Segment{Kind: structure.FrameAnonymous, Index: index}, true
	}
	name := raw[digits:]
	if !isIdentifier(name) {
		return Segment{}, false
	}
	return Segment{Kind: structure.FrameLocal, Index: index, Name: name}, true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
