// Package javasrc parses Java source with tree-sitter into the declaration
// tree consumed by package structure.
package javasrc

import (
	"bytes"
	"context"
	"fmt"

	"fortio.org/safecast"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/typeloc/internal/structure"
)

// TypeDecl is a top-level type declared by a compilation unit. Lines are
// 1-based.
type TypeDecl struct {
	Name      string
	Kind      structure.Kind
	StartLine int
	EndLine   int
}

// Unit is the parsed form of one source file. It holds no reference into the
// tree-sitter tree, which is released before Parse returns.
type Unit struct {
	Package   string
	Root      *structure.Node
	Types     []TypeDecl
	LineCount int
	HasErrors bool
}

// Outer returns the fully qualified outer name of a top-level type.
func (u *Unit) Outer(t TypeDecl) string {
	if u.Package == "" {
		return t.Name
	}
	return u.Package + "." + t.Name
}

// declKinds maps tree-sitter declaration node types to structure kinds.
var declKinds = map[string]structure.Kind{
	"class_declaration":           structure.KindClass,
	"record_declaration":          structure.KindClass,
	"interface_declaration":       structure.KindInterface,
	"annotation_type_declaration": structure.KindInterface,
	"enum_declaration":            structure.KindEnum,
}

// bodyTypes are the tree-sitter node types whose contents execute as code.
var bodyTypes = map[string]bool{
	"method_declaration":              true,
	"constructor_declaration":         true,
	"compact_constructor_declaration": true,
	"static_initializer":              true,
	"lambda_expression":               true,
}

// Parse parses src and builds its declaration tree.
func Parse(ctx context.Context, src []byte) (*Unit, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javaGrammar())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("javasrc: parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	u := &Unit{
		Root: &structure.Node{
			Kind:  structure.KindUnit,
			Range: structure.Range{Start: 0, End: len(src) - 1},
		},
		LineCount: lineCount(src),
		HasErrors: root.HasError(),
	}

	b := &builder{src: src}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "package_declaration" {
			u.Package = packageName(child, src)
			continue
		}
		if err := b.walk(child, u.Root, false); err != nil {
			return nil, err
		}
	}

	for _, decl := range u.Root.Children {
		if !decl.Kind.IsType() || decl.Kind == structure.KindAnonymous {
			continue
		}
		u.Types = append(u.Types, b.topLevel[decl])
	}
	return u, nil
}

type builder struct {
	src      []byte
	topLevel map[*structure.Node]TypeDecl
}

func (b *builder) walk(n *sitter.Node, parent *structure.Node, inBody bool) error {
	typ := n.Type()

	if kind, ok := declKinds[typ]; ok {
		if inBody {
			kind = structure.KindLocalClass
		}
		decl, err := newNode(kind, n)
		if err != nil {
			return err
		}
		if name := n.ChildByFieldName("name"); name != nil {
			decl.Name = name.Content(b.src)
		}
		parent.Children = append(parent.Children, decl)
		if parent.Kind == structure.KindUnit {
			b.recordTopLevel(decl, n)
		}
		return b.walkChildren(n, decl, false)
	}

	switch {
	case typ == "object_creation_expression" || typ == "enum_constant":
		// Arguments are walked before the class body so that anonymous
		// classes in the argument list are numbered first.
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() != "class_body" {
				if err := b.walk(c, parent, inBody); err != nil {
					return err
				}
				continue
			}
			decl, err := newNode(structure.KindAnonymous, c)
			if err != nil {
				return err
			}
			parent.Children = append(parent.Children, decl)
			if err := b.walkChildren(c, decl, false); err != nil {
				return err
			}
		}
		return nil

	case bodyTypes[typ] || (typ == "block" && isInitializer(n)):
		body, err := newNode(structure.KindBody, n)
		if err != nil {
			return err
		}
		parent.Children = append(parent.Children, body)
		return b.walkChildren(n, body, true)
	}

	return b.walkChildren(n, parent, inBody)
}

func (b *builder) walkChildren(n *sitter.Node, parent *structure.Node, inBody bool) error {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if err := b.walk(n.NamedChild(i), parent, inBody); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) recordTopLevel(decl *structure.Node, n *sitter.Node) {
	if b.topLevel == nil {
		b.topLevel = make(map[*structure.Node]TypeDecl)
	}
	start, _ := safecast.Conv[int](n.StartPoint().Row)
	end, _ := safecast.Conv[int](n.EndPoint().Row)
	b.topLevel[decl] = TypeDecl{
		Name:      decl.Name,
		Kind:      decl.Kind,
		StartLine: start + 1,
		EndLine:   end + 1,
	}
}

// isInitializer reports whether a block is an instance initializer, i.e. a
// block placed directly in a class body.
func isInitializer(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "class_body", "enum_body_declarations":
		return true
	}
	return false
}

// newNode creates a structure node spanning n. Tree-sitter end bytes are
// exclusive; structure ranges are inclusive.
func newNode(kind structure.Kind, n *sitter.Node) (*structure.Node, error) {
	start, err := safecast.Conv[int](n.StartByte())
	if err != nil {
		return nil, fmt.Errorf("javasrc: start offset of %s: %w", n.Type(), err)
	}
	end, err := safecast.Conv[int](n.EndByte())
	if err != nil {
		return nil, fmt.Errorf("javasrc: end offset of %s: %w", n.Type(), err)
	}
	return &structure.Node{
		Kind:  kind,
		Range: structure.Range{Start: start, End: max(start, end-1)},
	}, nil
}

func packageName(n *sitter.Node, src []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "scoped_identifier", "identifier":
			return c.Content(src)
		}
	}
	return ""
}

// lineCount counts lines, including a final line without a newline.
func lineCount(src []byte) int {
	n := bytes.Count(src, []byte{'\n'})
	if len(src) > 0 && src[len(src)-1] != '\n' {
		n++
	}
	return n
}
