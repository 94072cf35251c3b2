package typeloc

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typeloc/internal/structure"
)

// fakeResource is a resource served by fakeProvider. Content is made of
// fixed-width lines so line n covers bytes [(n-1)*10, (n-1)*10+9].
type fakeResource struct {
	content []byte
	root    *structure.Node
	pkg     string
}

type fakeProvider map[ResourceRef]fakeResource

func (p fakeProvider) get(ref ResourceRef) (fakeResource, error) {
	r, ok := p[ref]
	if !ok {
		return fakeResource{}, fmt.Errorf("%w: %s", ErrResourceNotFound, ref)
	}
	return r, nil
}

func (p fakeProvider) TreeOf(_ context.Context, ref ResourceRef) (*structure.Node, error) {
	r, err := p.get(ref)
	return r.root, err
}

func (p fakeProvider) PackageOf(_ context.Context, ref ResourceRef) (string, error) {
	r, err := p.get(ref)
	return r.pkg, err
}

func (p fakeProvider) ContentOf(_ context.Context, ref ResourceRef) ([]byte, error) {
	r, err := p.get(ref)
	return r.content, err
}

type fakeLocator struct {
	refs  map[string][]ResourceRef
	calls int
}

func (l *fakeLocator) ResourcesDeclaring(_ context.Context, outer string, _ int) ([]ResourceRef, error) {
	l.calls++
	return l.refs[outer], nil
}

// fixedLines returns n lines of nine non-blank bytes each.
func fixedLines(n int) []byte {
	return []byte(strings.Repeat("xxxxxxxxx\n", n))
}

// classA builds a 12-line unit declaring class A on lines 1-10 with a method
// body on lines 2-5. With anon set the body holds an anonymous class on
// lines 3-4.
func classA(anon bool) fakeResource {
	body := &structure.Node{Kind: structure.KindBody, Range: structure.Range{Start: 10, End: 49}}
	if anon {
		body.Children = []*structure.Node{
			{Kind: structure.KindAnonymous, Range: structure.Range{Start: 20, End: 39}},
		}
	}
	a := &structure.Node{
		Kind: structure.KindClass, Name: "A",
		Range:    structure.Range{Start: 0, End: 99},
		Children: []*structure.Node{body},
	}
	return fakeResource{
		content: fixedLines(12),
		pkg:     "p",
		root: &structure.Node{
			Kind:     structure.KindUnit,
			Range:    structure.Range{Start: 0, End: 119},
			Children: []*structure.Node{a},
		},
	}
}

func newFakeResolver(p fakeProvider, refs ...ResourceRef) (*Resolver, *fakeLocator) {
	loc := &fakeLocator{refs: map[string][]ResourceRef{"p.A": refs}}
	return NewResolver(p, loc), loc
}

var (
	refX    = FileRef("/ws/x/A.java")
	refY    = FileRef("/ws/y/A.java")
	refLib  = LibraryRef("/libs/p-sources.jar", "p/A.java", 7)
	refGone = FileRef("/ws/gone/A.java")
)

// =============================================================================
// IdentifyFqnInResource
// =============================================================================

func TestIdentify_AnonymousAndNamed(t *testing.T) {
	t.Parallel()
	r, _ := newFakeResolver(fakeProvider{refX: classA(true)})
	ctx := context.Background()

	got, err := r.IdentifyFqnInResource(ctx, refX, 25)
	require.NoError(t, err)
	assert.Equal(t, FqnResult{FQN: "p.A$1", Resource: refX}, got)

	got, err = r.IdentifyFqnInResource(ctx, refX, 65)
	require.NoError(t, err)
	assert.Equal(t, "p.A", got.FQN)
}

func TestIdentify_InclusiveBoundaries(t *testing.T) {
	t.Parallel()
	r, _ := newFakeResolver(fakeProvider{refX: classA(true)})
	ctx := context.Background()

	for _, offset := range []int{20, 39} {
		got, err := r.IdentifyFqnInResource(ctx, refX, offset)
		require.NoError(t, err)
		assert.Equal(t, "p.A$1", got.FQN, "offset %d", offset)
	}
	for _, offset := range []int{19, 40} {
		got, err := r.IdentifyFqnInResource(ctx, refX, offset)
		require.NoError(t, err)
		assert.Equal(t, "p.A", got.FQN, "offset %d", offset)
	}
}

func TestIdentify_NotFound(t *testing.T) {
	t.Parallel()
	r, _ := newFakeResolver(fakeProvider{refX: classA(false)})
	ctx := context.Background()

	_, err := r.IdentifyFqnInResource(ctx, refX, 105)
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrOffsetOutOfRange)

	_, err = r.IdentifyFqnInResource(ctx, refX, 500)
	require.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)

	_, err = r.IdentifyFqnInResource(ctx, refX, -1)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)
}

func TestIdentify_UnknownResource(t *testing.T) {
	t.Parallel()
	r, _ := newFakeResolver(fakeProvider{})

	_, err := r.IdentifyFqnInResource(context.Background(), refGone, 0)
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestIdentify_Idempotent(t *testing.T) {
	t.Parallel()
	r, _ := newFakeResolver(fakeProvider{refX: classA(true)})
	ctx := context.Background()

	first, err := r.IdentifyFqnInResource(ctx, refX, 30)
	require.NoError(t, err)
	second, err := r.IdentifyFqnInResource(ctx, refX, 30)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIdentifyAtLine(t *testing.T) {
	t.Parallel()
	r, _ := newFakeResolver(fakeProvider{refX: classA(true)})
	ctx := context.Background()

	got, err := r.IdentifyFqnAtLine(ctx, refX, 3)
	require.NoError(t, err)
	assert.Equal(t, "p.A$1", got.FQN)

	got, err = r.IdentifyFqnAtLine(ctx, refX, 7)
	require.NoError(t, err)
	assert.Equal(t, "p.A", got.FQN)

	for _, line := range []int{0, 13, 99} {
		_, err := r.IdentifyFqnAtLine(ctx, refX, line)
		assert.ErrorIs(t, err, ErrNotFound, "line %d", line)
	}
}

// =============================================================================
// FindResourcesByFqn
// =============================================================================

func TestFind_RoundTrip(t *testing.T) {
	t.Parallel()
	r, _ := newFakeResolver(fakeProvider{refX: classA(true)}, refX)
	ctx := context.Background()

	id, err := r.IdentifyFqnInResource(ctx, refX, 25)
	require.NoError(t, err)

	matches, err := r.FindResourcesByFqn(ctx, id.FQN, 3)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Resource: refX, Confidence: Exact}}, matches)
}

func TestFind_SingleCandidateSkipsProbe(t *testing.T) {
	t.Parallel()
	// The provider knows nothing about refLib, so any probe would fail.
	r, _ := newFakeResolver(fakeProvider{}, refLib)

	matches, err := r.FindResourcesByFqn(context.Background(), "p.A$9", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, Exact, matches[0].Confidence)
	assert.True(t, strings.HasPrefix(matches[0].Resource.URI(), "jdt://"))
	assert.False(t, matches[0].Resource.Editable())
}

func TestFind_Disambiguates(t *testing.T) {
	t.Parallel()
	p := fakeProvider{refX: classA(true), refY: classA(false)}
	r, _ := newFakeResolver(p, refY, refX)

	matches, err := r.FindResourcesByFqn(context.Background(), "p.A$1", 3)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Resource: refX, Confidence: Exact}}, matches)
}

func TestFind_Ambiguous(t *testing.T) {
	t.Parallel()
	p := fakeProvider{refX: classA(true), refY: classA(true)}
	r, _ := newFakeResolver(p, refY, refX)

	matches, err := r.FindResourcesByFqn(context.Background(), "p.A$1", 4)
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Resource: refY, Confidence: Ambiguous},
		{Resource: refX, Confidence: Ambiguous},
	}, matches)
}

func TestFind_Fallback(t *testing.T) {
	t.Parallel()
	p := fakeProvider{refX: classA(true), refY: classA(false)}
	r, _ := newFakeResolver(p, refY, refX)

	matches, err := r.FindResourcesByFqn(context.Background(), "p.A$7", 3)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Resource: refY, Confidence: Fallback}}, matches)
}

func TestFind_NamedNeverMatchesByPrefix(t *testing.T) {
	t.Parallel()
	p := fakeProvider{refX: classA(true), refY: classA(false)}
	r, _ := newFakeResolver(p, refX, refY)

	// At line 3 refX composes p.A$1 and refY composes p.A; only refY matches.
	matches, err := r.FindResourcesByFqn(context.Background(), "p.A", 3)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Resource: refY, Confidence: Exact}}, matches)
}

func TestFind_NoCandidates(t *testing.T) {
	t.Parallel()
	r, loc := newFakeResolver(fakeProvider{})

	matches, err := r.FindResourcesByFqn(context.Background(), "q.Missing$1", 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, 1, loc.calls)
}

func TestFind_Malformed(t *testing.T) {
	t.Parallel()
	r, loc := newFakeResolver(fakeProvider{refX: classA(true)}, refX)

	for _, fqn := range []string{"", "p.A$", "$1", "p..A"} {
		matches, err := r.FindResourcesByFqn(context.Background(), fqn, 0)
		assert.ErrorIs(t, err, ErrMalformedFqn, "fqn %q", fqn)
		assert.Empty(t, matches)
	}
	assert.Zero(t, loc.calls)
}

func TestFind_Cancelled(t *testing.T) {
	t.Parallel()
	p := fakeProvider{refX: classA(true), refY: classA(true)}
	r, _ := newFakeResolver(p, refX, refY)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	matches, err := r.FindResourcesByFqn(ctx, "p.A$1", 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, matches)
}

func TestFind_SkipsVanishedCandidate(t *testing.T) {
	t.Parallel()
	p := fakeProvider{refX: classA(true), refY: classA(false)}
	r, _ := newFakeResolver(p, refGone, refY, refX)

	matches, err := r.FindResourcesByFqn(context.Background(), "p.A$1", 3)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Resource: refX, Confidence: Exact}}, matches)

	// The fallback is the first candidate that could be read.
	matches, err = r.FindResourcesByFqn(context.Background(), "p.A$5", 3)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Resource: refY, Confidence: Fallback}}, matches)
}

func TestFind_AllCandidatesVanished(t *testing.T) {
	t.Parallel()
	r, _ := newFakeResolver(fakeProvider{}, refGone, refY)

	matches, err := r.FindResourcesByFqn(context.Background(), "p.A$1", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFind_InconsistentTreePropagates(t *testing.T) {
	t.Parallel()
	bad := classA(true)
	bad.root.Children[0].Children[0].Range.End = 150
	p := fakeProvider{refX: classA(true), refY: bad}
	r, _ := newFakeResolver(p, refX, refY)

	_, err := r.FindResourcesByFqn(context.Background(), "p.A$1", 3)
	assert.ErrorIs(t, err, ErrInconsistentTree)
}

func TestFind_HintLineOutsideCandidate(t *testing.T) {
	t.Parallel()
	p := fakeProvider{refX: classA(true), refY: classA(true)}
	r, _ := newFakeResolver(p, refX, refY)

	matches, err := r.FindResourcesByFqn(context.Background(), "p.A$1", 400)
	require.NoError(t, err)
	assert.Equal(t, []Match{{Resource: refX, Confidence: Fallback}}, matches)
}

// =============================================================================
// Line probes
// =============================================================================

func TestProbeOffsets(t *testing.T) {
	t.Parallel()
	content := []byte("  ab  \n\n\tx\r\nlast")

	tests := []struct {
		line int
		want []int
		ok   bool
	}{
		{line: 1, want: []int{2, 3}, ok: true},
		{line: 2, want: []int{7}, ok: true},
		{line: 3, want: []int{9}, ok: true},
		{line: 4, want: []int{12, 15}, ok: true},
		{line: 0, ok: false},
		{line: 5, ok: false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.line), func(t *testing.T) {
			got, ok := probeOffsets(content, tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProbeOffsets_TrailingNewline(t *testing.T) {
	t.Parallel()
	content := []byte("a\nb\n")

	got, ok := probeOffsets(content, 2)
	require.True(t, ok)
	assert.Equal(t, []int{2}, got)

	_, ok = probeOffsets(content, 3)
	assert.False(t, ok)
}

// =============================================================================
// ResourceRef
// =============================================================================

func TestResourceRef_URI(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "file:///ws/x/A.java", refX.URI())
	assert.Equal(t, "jdt://contents/p/A.java?archive=%2Flibs%2Fp-sources.jar&node=7", refLib.URI())
	assert.Equal(t, "jdt://contents/p/A.java?archive=%2Flibs%2Fp-sources.jar",
		LibraryRef("/libs/p-sources.jar", "p/A.java", 0).URI())
	assert.True(t, refX.Editable())
	assert.False(t, refLib.Editable())
}

func TestParseResourceRef(t *testing.T) {
	t.Parallel()
	for _, ref := range []ResourceRef{refX, refLib, LibraryRef("/a b/x.jar", "q/B.java", 0)} {
		got, err := ParseResourceRef(ref.URI())
		require.NoError(t, err)
		assert.Equal(t, ref, got)
	}

	for _, raw := range []string{"http://x/A.java", "file:", "jdt://contents/p/A.java", "jdt://other/p/A.java?archive=/x.jar"} {
		_, err := ParseResourceRef(raw)
		assert.Error(t, err, raw)
	}
}
