package structure

import (
	"errors"
	"fmt"
)

var (
	// ErrOffsetOutOfRange is returned when the query offset lies outside the
	// resource's textual extent.
	ErrOffsetOutOfRange = errors.New("offset out of range")

	// ErrInconsistentTree is returned when the supplied tree violates the
	// provider contract (bad nesting, unordered children, unnamed types).
	ErrInconsistentTree = errors.New("inconsistent structure tree")
)

// counters holds the running occurrence counts for one enclosing type.
type counters struct {
	anonymous int
	local     int
}

// walker is the state of a single descent. Counters are keyed by the
// enclosing type node, so siblings at the top level never share numbering.
type walker struct {
	offset int
	counts map[*Node]*counters
	frames []Frame
}

// ScopesAtOffset returns the enclosing type scopes of offset, outer to
// inner. extent is the length of the resource's text; offsets in
// [0, extent] are valid. An offset that lies in no type declaration yields
// an empty stack and a nil error.
func ScopesAtOffset(root *Node, extent, offset int) ([]Frame, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root", ErrInconsistentTree)
	}
	if offset < 0 || offset > extent {
		return nil, fmt.Errorf("%w: offset %d, extent %d", ErrOffsetOutOfRange, offset, extent)
	}
	if root.Range.Start > root.Range.End+1 {
		return nil, fmt.Errorf("%w: root range %d:%d", ErrInconsistentTree, root.Range.Start, root.Range.End)
	}
	if !root.Range.Contains(offset) {
		return nil, nil
	}

	w := &walker{
		offset: offset,
		counts: make(map[*Node]*counters),
	}
	if root.Kind.IsType() {
		frame, err := w.frame(root, nil, false)
		if err != nil {
			return nil, err
		}
		w.frames = append(w.frames, frame)
	}
	if err := w.descend(root, nil, false); err != nil {
		return nil, err
	}
	return w.frames, nil
}

// descend visits n, whose range contains the offset. owner is the nearest
// enclosing type declaration and inBody reports whether a body lies between
// owner and n.
func (w *walker) descend(n *Node, owner *Node, inBody bool) error {
	childOwner, childInBody := owner, inBody
	switch {
	case n.Kind.IsType():
		childOwner, childInBody = n, false
	case n.Kind == KindBody:
		childInBody = true
	}

	if err := checkChildren(n); err != nil {
		return err
	}

	next := -1
	for i, c := range n.Children {
		if !c.Range.Contains(w.offset) {
			continue
		}
		if next < 0 || c.Range.Len() < n.Children[next].Range.Len() {
			next = i
		}
	}
	if next < 0 {
		return nil
	}

	for _, c := range n.Children[:next] {
		if err := w.count(c, childOwner, childInBody); err != nil {
			return err
		}
	}

	c := n.Children[next]
	if c.Kind.IsType() {
		frame, err := w.frame(c, childOwner, childInBody)
		if err != nil {
			return err
		}
		w.frames = append(w.frames, frame)
	}
	return w.descend(c, childOwner, childInBody)
}

// count advances the counters of owner for every anonymous or local type
// declared in n's subtree without an intervening type declaration.
func (w *walker) count(n *Node, owner *Node, inBody bool) error {
	switch {
	case n.Kind.IsType():
		_, err := w.frame(n, owner, inBody)
		return err
	case n.Kind == KindBody:
		if err := checkChildren(n); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := w.count(c, owner, true); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unexpected %s below the root", ErrInconsistentTree, n)
	}
}

// frame classifies a type node in its context and assigns it the next
// occurrence number of owner.
func (w *walker) frame(n *Node, owner *Node, inBody bool) (Frame, error) {
	kind := classify(n, inBody)
	if kind != FrameAnonymous && n.Name == "" {
		return Frame{}, fmt.Errorf("%w: unnamed %s", ErrInconsistentTree, n)
	}

	c := w.counts[owner]
	if c == nil {
		c = &counters{}
		w.counts[owner] = c
	}

	switch kind {
	case FrameAnonymous:
		c.anonymous++
		return Frame{Kind: kind, Index: c.anonymous}, nil
	case FrameLocal:
		c.local++
		return Frame{Kind: kind, Name: n.Name, Index: c.local}, nil
	default:
		return Frame{Kind: kind, Name: n.Name}, nil
	}
}

// classify maps a type node to its frame kind. A named declaration reached
// through a body is a local type.
func classify(n *Node, inBody bool) FrameKind {
	switch n.Kind {
	case KindAnonymous:
		return FrameAnonymous
	case KindLocalClass:
		return FrameLocal
	}
	if inBody {
		return FrameLocal
	}
	return FrameNamed
}

// checkChildren validates that every child of n nests within n and that
// children are in source order.
func checkChildren(n *Node) error {
	prev := -1
	for _, c := range n.Children {
		if c == nil {
			return fmt.Errorf("%w: nil child of %s", ErrInconsistentTree, n)
		}
		if c.Kind == KindUnit {
			return fmt.Errorf("%w: unit %s nested in %s", ErrInconsistentTree, c, n)
		}
		if c.Range.Start > c.Range.End || !n.Range.Encloses(c.Range) {
			return fmt.Errorf("%w: %s not nested in %s", ErrInconsistentTree, c, n)
		}
		if c.Range.Start < prev {
			return fmt.Errorf("%w: %s out of source order in %s", ErrInconsistentTree, c, n)
		}
		prev = c.Range.Start
	}
	return nil
}
