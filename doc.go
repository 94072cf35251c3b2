// Package typeloc maps Java binary type names to the resources that declare
// them, and resource positions back to binary names. It reproduces the
// compiler's naming of anonymous and local classes (Outer$1,
// Outer$1Local) by walking the declaration structure of a source file in
// source order.
//
// # Lookups
//
// A [Resolver] answers two questions:
//
//   - [Resolver.IdentifyFqnInResource]: which type lexically encloses a byte
//     offset of a resource. [Resolver.IdentifyFqnAtLine] does the same for a
//     1-based line.
//   - [Resolver.FindResourcesByFqn]: which resources declare a binary name.
//     When several resources declare the outer type, each is probed at a hint
//     line and graded [Exact], [Ambiguous] or [Fallback].
//
// The Resolver depends only on a [StructureProvider] and a [ResourceLocator].
//
// # Engine
//
// [Engine] is a ready-made provider and locator. It indexes workspace files
// and source archives into SQLite, recording the top-level types each
// resource declares, and parses resources with tree-sitter on demand:
//
//	e, err := typeloc.New(".typeloc/index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.IndexDirectory(ctx, "path/to/project")
//	err = e.IndexArchive(ctx, "path/to/lib-sources.jar")
//
//	r := e.Resolver()
//	matches, err := r.FindResourcesByFqn(ctx, "org.example.Outer$1Local", 42)
//
// Workspace files are addressed as file:///abs/path and archive entries as
// jdt://contents/<entry>?archive=<archive>. Only files are editable.
//
// # Incremental Indexing
//
// [Engine.IndexFiles] skips files whose content hash is unchanged and parses
// the rest in parallel. Structure is never cached: every lookup re-parses the
// current content.
package typeloc
