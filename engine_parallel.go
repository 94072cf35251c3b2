package typeloc

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/typeloc/internal/javasrc"
	"github.com/jward/typeloc/internal/store"
)

// source is one resource's text awaiting parsing.
type source struct {
	ref     ResourceRef
	content []byte
}

// workItem holds everything a parse worker needs and what it produces.
type workItem struct {
	source
	hash  string
	batch *store.Batch
	err   error
}

// IndexFiles indexes the given workspace files. Unsupported extensions are
// skipped. Errors on individual files are collected and reported after the
// rest of the files are committed.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	var sources []source
	var errs []error
	for _, path := range paths {
		if !javasrc.IsSourceFile(path) {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		sources = append(sources, source{ref: FileRef(path), content: content})
	}
	if err := e.indexSources(ctx, sources); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("typeloc: indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// indexSources runs the three-phase pipeline:
//
//	Phase A (serial):   Hash check against the stored resource.
//	Phase B (parallel): Parse and build batches on an errgroup.
//	Phase C (serial):   Commit all batches in one transaction.
func (e *Engine) indexSources(ctx context.Context, sources []source) error {
	// ---- Phase A: change detection ----
	var items []*workItem
	for _, src := range sources {
		uri := src.ref.URI()
		hash := fmt.Sprintf("%x", sha256.Sum256(src.content))
		existing, err := e.store.ResourceByURI(uri)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", uri, err)
		}
		if existing != nil && existing.Hash == hash {
			continue
		}
		items = append(items, &workItem{source: src, hash: hash})
	}
	if len(items) == 0 {
		e.logger.Debug("index up to date", "resources", len(sources))
		return nil
	}

	// ---- Phase B: parallel parse ----
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item.batch, item.err = e.buildBatch(gctx, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("index: %w", err)
	}

	// ---- Phase C: serial commit ----
	var (
		batches []*store.Batch
		errs    []error
	)
	for _, item := range items {
		if item.err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", item.ref, item.err))
			continue
		}
		batches = append(batches, item.batch)
	}
	if err := e.store.CommitBatches(batches); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if len(batches) > 0 {
		if err := e.stampGeneration(); err != nil {
			return fmt.Errorf("stamp generation: %w", err)
		}
	}
	e.logger.Info("indexed", "changed", len(batches), "unchanged", len(sources)-len(items), "failed", len(errs))

	if len(errs) > 0 {
		return fmt.Errorf("%d resource(s) failed to parse: %w", len(errs), errs[0])
	}
	return nil
}

// buildBatch parses one source into its resource row and top-level types.
func (e *Engine) buildBatch(ctx context.Context, item *workItem) (*store.Batch, error) {
	u, err := javasrc.Parse(ctx, item.content)
	if err != nil {
		return nil, err
	}
	if u.HasErrors {
		e.logger.Debug("syntax errors", "resource", item.ref.URI())
	}

	r := store.Resource{
		URI:         item.ref.URI(),
		Package:     u.Package,
		Hash:        item.hash,
		LineCount:   u.LineCount,
		LastIndexed: time.Now(),
	}
	switch item.ref.Kind {
	case ResourceLibrary:
		r.Kind = store.KindLibrary
		r.Archive = item.ref.Archive
		r.Entry = item.ref.Entry
	default:
		r.Kind = store.KindFile
		r.Path = item.ref.Path
	}

	types := make([]store.DeclaredType, len(u.Types))
	for i, t := range u.Types {
		types[i] = store.DeclaredType{
			OuterName:  u.Outer(t),
			SimpleName: t.Name,
			Kind:       t.Kind.String(),
			StartLine:  t.StartLine,
			EndLine:    t.EndLine,
		}
	}
	return &store.Batch{Resource: r, Types: types}, nil
}
