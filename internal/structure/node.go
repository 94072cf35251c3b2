// Package structure models the declaration tree of one source resource and
// computes the stack of enclosing type scopes at a byte offset, numbering
// anonymous and local types the way the compiler does.
package structure

import "fmt"

// Kind classifies a declaration node supplied by a structure provider.
type Kind uint8

const (
	// KindUnit is the root of a resource's tree (the compilation unit).
	KindUnit Kind = iota
	KindClass
	KindInterface
	KindEnum
	// KindAnonymous is an anonymous class instance creation body.
	KindAnonymous
	// KindLocalClass is a class declared inside a method or lambda body.
	KindLocalClass
	// KindBody is a method, constructor, initializer or lambda body. Bodies
	// never produce a scope frame.
	KindBody
)

var kindNames = [...]string{
	KindUnit:       "unit",
	KindClass:      "class",
	KindInterface:  "interface",
	KindEnum:       "enum",
	KindAnonymous:  "anonymous",
	KindLocalClass: "local-class",
	KindBody:       "body",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsType reports whether nodes of this kind declare a type.
func (k Kind) IsType() bool {
	switch k {
	case KindClass, KindInterface, KindEnum, KindAnonymous, KindLocalClass:
		return true
	}
	return false
}

// Range is a span of byte offsets. Both ends are inclusive: End is the offset
// of the closing delimiter.
type Range struct {
	Start int
	End   int
}

// Contains reports whether offset lies within r, boundaries included.
func (r Range) Contains(offset int) bool {
	return r.Start <= offset && offset <= r.End
}

// Encloses reports whether inner lies entirely within r.
func (r Range) Encloses(inner Range) bool {
	return r.Start <= inner.Start && inner.End <= r.End
}

// Len is the number of bytes covered by r.
func (r Range) Len() int {
	return r.End - r.Start + 1
}

// Node is one declaration in a resource's structure tree. Children are in
// source order.
type Node struct {
	Kind     Kind
	Name     string
	Range    Range
	Children []*Node
}

func (n *Node) String() string {
	if n.Name == "" {
		return fmt.Sprintf("%s[%d:%d]", n.Kind, n.Range.Start, n.Range.End)
	}
	return fmt.Sprintf("%s %s[%d:%d]", n.Kind, n.Name, n.Range.Start, n.Range.End)
}

// FrameKind is the discriminator of a scope frame.
type FrameKind uint8

const (
	FrameNamed FrameKind = iota
	FrameAnonymous
	FrameLocal
)

func (k FrameKind) String() string {
	switch k {
	case FrameNamed:
		return "named"
	case FrameAnonymous:
		return "anonymous"
	case FrameLocal:
		return "local"
	}
	return fmt.Sprintf("frame(%d)", uint8(k))
}

// Frame is one enclosing type scope. Index is the occurrence number among
// anonymous (or local) types of the same enclosing type, starting at 1; it is
// zero for named frames.
type Frame struct {
	Kind  FrameKind
	Name  string
	Index int
}
