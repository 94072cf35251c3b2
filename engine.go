package typeloc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/jward/typeloc/internal/javasrc"
	"github.com/jward/typeloc/internal/logging"
	"github.com/jward/typeloc/internal/store"
	"github.com/jward/typeloc/internal/structure"
)

// ExtractorVersion identifies the declaration extraction rules. Indexes
// built with a different version are reported stale by IndexStale.
const ExtractorVersion = "1"

const (
	metaExtractorVersion = "extractor_version"
	metaGeneration       = "generation"
)

// Engine indexes Java workspaces and source archives into SQLite and serves
// as the StructureProvider and ResourceLocator of a Resolver.
type Engine struct {
	store    *store.Store
	logger   *slog.Logger
	workers  int
	patterns []string
	excludes []glob.Glob
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the Engine's logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkers bounds the number of files parsed concurrently while
// indexing. Values below 1 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithExcludes skips workspace files whose slash-separated path relative to
// the indexed root matches any of the glob patterns (e.g. "**/generated/**").
func WithExcludes(patterns ...string) Option {
	return func(e *Engine) {
		e.patterns = append(e.patterns, patterns...)
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	for _, p := range e.patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("typeloc: exclude pattern %q: %w", p, err)
		}
		e.excludes = append(e.excludes, g)
	}

	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("typeloc: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("typeloc: migrate: %w", err)
	}
	e.store = s
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Resolver returns a Resolver backed by this Engine.
func (e *Engine) Resolver() *Resolver {
	return NewResolver(e, e, WithResolverLogger(e.logger))
}

// IndexStale reports whether the index was built by a different extractor
// version, or never built. When true the caller should reindex from scratch.
func (e *Engine) IndexStale() bool {
	stored, err := e.store.GetMetadata(metaExtractorVersion)
	if err != nil || stored == "" {
		return true
	}
	return stored != ExtractorVersion
}

// Generation returns the id stamped by the last index run that changed the
// index, or "" if none has.
func (e *Engine) Generation() (string, error) {
	return e.store.GetMetadata(metaGeneration)
}

// stampGeneration records a new generation id and the extractor version.
func (e *Engine) stampGeneration() error {
	gen := uuid.NewString()
	if err := e.store.SetMetadata(metaGeneration, gen); err != nil {
		return err
	}
	if err := e.store.SetMetadata(metaExtractorVersion, ExtractorVersion); err != nil {
		return err
	}
	e.logger.Debug("index generation", "id", gen)
	return nil
}

// skipDirs are directory names excluded from the filesystem walk.
var skipDirs = map[string]bool{
	"node_modules": true,
	"build":        true,
	"target":       true,
	"out":          true,
}

// IndexDirectory indexes all Java sources under root. If root is inside a
// git repository, git ls-files is used so .gitignore is respected. Falls
// back to a filesystem walk (skipping hidden dirs and build output) if git
// is unavailable. File resources under root that no longer exist are
// removed from the index.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("typeloc: resolve %s: %w", root, err)
	}
	paths, err := e.gitListFiles(root)
	if err != nil {
		e.logger.Debug("git ls-files unavailable, walking", "root", root, "error", err)
		paths, err = e.walkListFiles(root)
		if err != nil {
			return err
		}
	}
	paths = e.filterExcluded(root, paths)

	if err := e.pruneMissing(root, paths); err != nil {
		return err
	}
	return e.IndexFiles(ctx, paths)
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) source files under root.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if javasrc.IsSourceFile(absPath) {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers source files by walking the filesystem.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if javasrc.IsSourceFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("typeloc: walk directory: %w", err)
	}
	return paths, nil
}

func (e *Engine) filterExcluded(root string, paths []string) []string {
	if len(e.excludes) == 0 {
		return paths
	}
	kept := paths[:0]
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err == nil && e.excluded(filepath.ToSlash(rel)) {
			e.logger.Debug("excluded", "path", p)
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func (e *Engine) excluded(rel string) bool {
	for _, g := range e.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// pruneMissing deletes indexed file resources under root that are not in
// present.
func (e *Engine) pruneMissing(root string, present []string) error {
	files, err := e.store.ResourcesByKind(store.KindFile)
	if err != nil {
		return fmt.Errorf("typeloc: list files: %w", err)
	}
	keep := make(map[string]bool, len(present))
	for _, p := range present {
		keep[p] = true
	}
	prefix := root + string(filepath.Separator)
	var stale []int64
	for _, f := range files {
		if strings.HasPrefix(f.Path, prefix) && !keep[f.Path] {
			stale = append(stale, f.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	e.logger.Info("pruning removed files", "count", len(stale))
	if err := e.store.DeleteResources(stale); err != nil {
		return fmt.Errorf("typeloc: prune: %w", err)
	}
	return nil
}

// IndexArchive indexes the Java entries of a source archive (a zip or
// -sources.jar) as read-only library resources. Entries that vanished from
// the archive since the last run are removed from the index.
func (e *Engine) IndexArchive(ctx context.Context, archivePath string) error {
	archivePath, err := filepath.Abs(archivePath)
	if err != nil {
		return fmt.Errorf("typeloc: resolve %s: %w", archivePath, err)
	}
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("typeloc: open archive %s: %w", archivePath, err)
	}
	defer zr.Close()

	var sources []source
	present := make(map[string]bool)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !javasrc.IsSourceFile(f.Name) {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return fmt.Errorf("typeloc: read %s!%s: %w", archivePath, f.Name, err)
		}
		ref := LibraryRef(archivePath, f.Name, 0)
		present[ref.URI()] = true
		sources = append(sources, source{ref: ref, content: content})
	}

	existing, err := e.store.ResourcesInArchive(archivePath)
	if err != nil {
		return fmt.Errorf("typeloc: list archive %s: %w", archivePath, err)
	}
	var stale []int64
	for _, r := range existing {
		if !present[r.URI] {
			stale = append(stale, r.ID)
		}
	}
	if err := e.store.DeleteResources(stale); err != nil {
		return fmt.Errorf("typeloc: prune archive %s: %w", archivePath, err)
	}

	e.logger.Info("indexing archive", "archive", archivePath, "entries", len(sources))
	return e.indexSources(ctx, sources)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// --- StructureProvider ---

// ContentOf returns the current text of a resource: the file on disk, or
// the entry read from its archive.
func (e *Engine) ContentOf(ctx context.Context, ref ResourceRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch ref.Kind {
	case ResourceFile:
		content, err := os.ReadFile(ref.Path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, ref.Path)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ref.Path, err)
		}
		return content, nil
	case ResourceLibrary:
		zr, err := zip.OpenReader(ref.Archive)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, ref.Archive)
		}
		if err != nil {
			return nil, fmt.Errorf("open archive %s: %w", ref.Archive, err)
		}
		defer zr.Close()
		for _, f := range zr.File {
			if f.Name == ref.Entry {
				content, err := readZipFile(f)
				if err != nil {
					return nil, fmt.Errorf("read %s!%s: %w", ref.Archive, ref.Entry, err)
				}
				return content, nil
			}
		}
		return nil, fmt.Errorf("%w: %s!%s", ErrResourceNotFound, ref.Archive, ref.Entry)
	default:
		return nil, fmt.Errorf("%w: unknown resource kind %d", ErrResourceNotFound, ref.Kind)
	}
}

// TreeOf parses the resource and returns its declaration tree.
func (e *Engine) TreeOf(ctx context.Context, ref ResourceRef) (*structure.Node, error) {
	u, err := e.parse(ctx, ref)
	if err != nil {
		return nil, err
	}
	return u.Root, nil
}

// PackageOf parses the resource and returns its package name.
func (e *Engine) PackageOf(ctx context.Context, ref ResourceRef) (string, error) {
	u, err := e.parse(ctx, ref)
	if err != nil {
		return "", err
	}
	return u.Package, nil
}

func (e *Engine) parse(ctx context.Context, ref ResourceRef) (*javasrc.Unit, error) {
	content, err := e.ContentOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	u, err := javasrc.Parse(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ref, err)
	}
	return u, nil
}

// Content returns the text of the resource named by uri.
func (e *Engine) Content(ctx context.Context, uri string) ([]byte, error) {
	ref, err := ParseResourceRef(uri)
	if err != nil {
		return nil, err
	}
	content, err := e.ContentOf(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("typeloc: content %s: %w", uri, err)
	}
	return content, nil
}

// --- ResourceLocator ---

// ResourcesDeclaring returns the indexed resources declaring outerName,
// files before libraries, then those whose declaration spans hintLine.
func (e *Engine) ResourcesDeclaring(ctx context.Context, outerName string, hintLine int) ([]ResourceRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := e.store.ResourcesDeclaring(outerName, hintLine)
	if err != nil {
		return nil, err
	}
	refs := make([]ResourceRef, len(rows))
	for i, r := range rows {
		refs[i] = refFromResource(r)
	}
	return refs, nil
}
