package typeloc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode"

	"github.com/jward/typeloc/internal/binname"
	"github.com/jward/typeloc/internal/logging"
	"github.com/jward/typeloc/internal/structure"
)

// StructureProvider supplies the declaration tree, package and text of a
// resource. Implementations return an error matching ErrResourceNotFound
// when the resource's content is gone.
type StructureProvider interface {
	TreeOf(ctx context.Context, ref ResourceRef) (*structure.Node, error)
	PackageOf(ctx context.Context, ref ResourceRef) (string, error)
	ContentOf(ctx context.Context, ref ResourceRef) ([]byte, error)
}

// ResourceLocator lists the resources declaring a top-level type, most
// relevant first. hintLine may be used to rank candidates.
type ResourceLocator interface {
	ResourcesDeclaring(ctx context.Context, outerName string, hintLine int) ([]ResourceRef, error)
}

// Resolver maps binary type names to resources and back. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	provider StructureProvider
	locator  ResourceLocator
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger used for ambiguity and skip warnings.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a Resolver over the given collaborators.
func NewResolver(provider StructureProvider, locator ResourceLocator, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		provider: provider,
		locator:  locator,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IdentifyFqnInResource returns the binary name of the innermost type
// declaration enclosing offset. An offset outside every type, or outside
// the resource, yields an error matching ErrNotFound.
func (r *Resolver) IdentifyFqnInResource(ctx context.Context, ref ResourceRef, offset int) (FqnResult, error) {
	snap, err := r.load(ctx, ref)
	if err != nil {
		return FqnResult{}, fmt.Errorf("typeloc: identify %s: %w", ref, err)
	}
	fqn, err := snap.fqnAt(offset)
	if err != nil {
		return FqnResult{}, fmt.Errorf("typeloc: identify %s at %d: %w", ref, offset, err)
	}
	return FqnResult{FQN: fqn, Resource: ref}, nil
}

// IdentifyFqnAtLine is IdentifyFqnInResource at the first non-blank byte of
// a 1-based line.
func (r *Resolver) IdentifyFqnAtLine(ctx context.Context, ref ResourceRef, line int) (FqnResult, error) {
	snap, err := r.load(ctx, ref)
	if err != nil {
		return FqnResult{}, fmt.Errorf("typeloc: identify %s: %w", ref, err)
	}
	probes, ok := probeOffsets(snap.content, line)
	if !ok {
		return FqnResult{}, fmt.Errorf("typeloc: identify %s: %w: %w: line %d", ref, ErrNotFound, ErrOffsetOutOfRange, line)
	}
	fqn, err := snap.fqnAt(probes[0])
	if err != nil {
		return FqnResult{}, fmt.Errorf("typeloc: identify %s at line %d: %w", ref, line, err)
	}
	return FqnResult{FQN: fqn, Resource: ref}, nil
}

// FindResourcesByFqn returns the resources declaring fqn. With a single
// candidate it is returned as Exact without inspecting its structure.
// Otherwise each candidate is probed at hintLine: one match is Exact,
// several are all Ambiguous, and none falls back to the locator's first
// candidate. A malformed fqn fails with ErrMalformedFqn.
func (r *Resolver) FindResourcesByFqn(ctx context.Context, fqn string, hintLine int) ([]Match, error) {
	name, err := binname.Decode(fqn)
	if err != nil {
		return nil, fmt.Errorf("typeloc: find %q: %w", fqn, err)
	}

	candidates, err := r.locator.ResourcesDeclaring(ctx, name.Outer, hintLine)
	if err != nil {
		return nil, fmt.Errorf("typeloc: find %q: locate %s: %w", fqn, name.Outer, err)
	}
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return []Match{{Resource: candidates[0], Confidence: Exact}}, nil
	}

	var (
		matched  []ResourceRef
		fallback *ResourceRef
	)
	for i, ref := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := r.matchesAt(ctx, ref, fqn, hintLine)
		if errors.Is(err, ErrResourceNotFound) {
			r.logger.Warn("skipping vanished candidate", "fqn", fqn, "resource", ref.URI(), "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("typeloc: find %q: %w", fqn, err)
		}
		if fallback == nil {
			fallback = &candidates[i]
		}
		if ok {
			matched = append(matched, ref)
		}
	}

	switch {
	case len(matched) == 1:
		return []Match{{Resource: matched[0], Confidence: Exact}}, nil
	case len(matched) > 1:
		uris := make([]string, len(matched))
		out := make([]Match, len(matched))
		for i, ref := range matched {
			uris[i] = ref.URI()
			out[i] = Match{Resource: ref, Confidence: Ambiguous}
		}
		r.logger.Warn("ambiguous fqn", "fqn", fqn, "hint_line", hintLine, "resources", uris)
		return out, nil
	case fallback != nil:
		r.logger.Debug("no candidate matched, falling back", "fqn", fqn, "resource", fallback.URI())
		return []Match{{Resource: *fallback, Confidence: Fallback}}, nil
	default:
		return nil, nil
	}
}

// matchesAt reports whether the type enclosing either end of hintLine in ref
// has exactly the binary name fqn.
func (r *Resolver) matchesAt(ctx context.Context, ref ResourceRef, fqn string, hintLine int) (bool, error) {
	snap, err := r.load(ctx, ref)
	if err != nil {
		return false, err
	}
	probes, ok := probeOffsets(snap.content, hintLine)
	if !ok {
		return false, nil
	}
	for _, offset := range probes {
		got, err := snap.fqnAt(offset)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%s: %w", ref, err)
		}
		if got == fqn {
			return true, nil
		}
	}
	return false, nil
}

// snapshot is everything one call needs from the provider for a resource.
type snapshot struct {
	content []byte
	root    *structure.Node
	pkg     string
}

func (r *Resolver) load(ctx context.Context, ref ResourceRef) (*snapshot, error) {
	content, err := r.provider.ContentOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	root, err := r.provider.TreeOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	pkg, err := r.provider.PackageOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &snapshot{content: content, root: root, pkg: pkg}, nil
}

func (s *snapshot) fqnAt(offset int) (string, error) {
	frames, err := structure.ScopesAtOffset(s.root, len(s.content), offset)
	if errors.Is(err, structure.ErrOffsetOutOfRange) {
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return "", err
	}
	if len(frames) == 0 {
		return "", fmt.Errorf("%w: offset %d", ErrNotFound, offset)
	}
	return binname.Encode(frames, s.pkg), nil
}

// lineBounds returns the byte offsets [start, end) of a 1-based line,
// excluding its terminator.
func lineBounds(content []byte, line int) (int, int, bool) {
	if line < 1 {
		return 0, 0, false
	}
	start := 0
	for i := 1; i < line; i++ {
		nl := bytes.IndexByte(content[start:], '\n')
		if nl < 0 {
			return 0, 0, false
		}
		start += nl + 1
	}
	if start == len(content) && line > 1 {
		return 0, 0, false
	}
	end := len(content)
	if nl := bytes.IndexByte(content[start:], '\n'); nl >= 0 {
		end = start + nl
	}
	if end > start && content[end-1] == '\r' {
		end--
	}
	return start, end, true
}

// probeOffsets returns the first and last non-blank byte of a 1-based line,
// or the line start when it is blank.
func probeOffsets(content []byte, line int) ([]int, bool) {
	start, end, ok := lineBounds(content, line)
	if !ok {
		return nil, false
	}
	text := content[start:end]
	notSpace := func(r rune) bool { return !unicode.IsSpace(r) }
	first := bytes.IndexFunc(text, notSpace)
	if first < 0 {
		return []int{start}, true
	}
	last := bytes.LastIndexFunc(text, notSpace)
	if last == first {
		return []int{start + first}, true
	}
	return []int{start + first, start + last}, true
}
