package typeloc

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jward/typeloc/internal/store"
)

// Public type aliases for internal store types returned by Engine.Store.
// These are Go type aliases (=) and need no conversion.

type Store = store.Store
type Resource = store.Resource
type DeclaredType = store.DeclaredType

// ResourceKind tells editable workspace files apart from read-only library
// archive entries.
type ResourceKind uint8

const (
	ResourceFile ResourceKind = iota + 1
	ResourceLibrary
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceFile:
		return "file"
	case ResourceLibrary:
		return "library"
	default:
		return "unknown"
	}
}

// ResourceRef identifies a resource. File refs carry an absolute Path;
// library refs carry the absolute Archive path, the Entry inside it and,
// once indexed, the index row ID in NodeID.
type ResourceRef struct {
	Kind    ResourceKind
	Path    string
	Archive string
	Entry   string
	NodeID  int64
}

// FileRef returns a reference to a workspace file.
func FileRef(path string) ResourceRef {
	return ResourceRef{Kind: ResourceFile, Path: path}
}

// LibraryRef returns a reference to an entry of a source archive.
func LibraryRef(archive, entry string, nodeID int64) ResourceRef {
	return ResourceRef{Kind: ResourceLibrary, Archive: archive, Entry: entry, NodeID: nodeID}
}

// Editable reports whether the resource can be opened for editing.
func (r ResourceRef) Editable() bool {
	return r.Kind == ResourceFile
}

// URI renders the ref as file:///abs/path or
// jdt://contents/<entry>?archive=<archive>[&node=<id>].
func (r ResourceRef) URI() string {
	switch r.Kind {
	case ResourceFile:
		u := url.URL{Scheme: "file", Path: filepath.ToSlash(r.Path)}
		return u.String()
	case ResourceLibrary:
		q := url.Values{"archive": {filepath.ToSlash(r.Archive)}}
		if r.NodeID != 0 {
			q.Set("node", strconv.FormatInt(r.NodeID, 10))
		}
		u := url.URL{
			Scheme:   "jdt",
			Host:     "contents",
			Path:     "/" + strings.TrimPrefix(r.Entry, "/"),
			RawQuery: q.Encode(),
		}
		return u.String()
	default:
		return ""
	}
}

func (r ResourceRef) String() string {
	return r.URI()
}

// ParseResourceRef inverts ResourceRef.URI.
func ParseResourceRef(raw string) (ResourceRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ResourceRef{}, fmt.Errorf("typeloc: parse uri %q: %w", raw, err)
	}
	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return ResourceRef{}, fmt.Errorf("typeloc: parse uri %q: empty path", raw)
		}
		return FileRef(filepath.FromSlash(u.Path)), nil
	case "jdt":
		if u.Host != "contents" {
			return ResourceRef{}, fmt.Errorf("typeloc: parse uri %q: unknown authority %q", raw, u.Host)
		}
		entry := strings.TrimPrefix(u.Path, "/")
		q := u.Query()
		archive := q.Get("archive")
		if entry == "" || archive == "" {
			return ResourceRef{}, fmt.Errorf("typeloc: parse uri %q: missing entry or archive", raw)
		}
		var node int64
		if s := q.Get("node"); s != "" {
			node, err = strconv.ParseInt(s, 10, 64)
			if err != nil {
				return ResourceRef{}, fmt.Errorf("typeloc: parse uri %q: node: %w", raw, err)
			}
		}
		return LibraryRef(filepath.FromSlash(archive), entry, node), nil
	default:
		return ResourceRef{}, fmt.Errorf("typeloc: parse uri %q: unsupported scheme %q", raw, u.Scheme)
	}
}

// refFromResource converts an index row into a ResourceRef.
func refFromResource(r *store.Resource) ResourceRef {
	if r.Kind == store.KindLibrary {
		return LibraryRef(r.Archive, r.Entry, r.ID)
	}
	return FileRef(r.Path)
}

// FqnResult is the binary name of the type enclosing a position.
type FqnResult struct {
	FQN      string
	Resource ResourceRef
}

// Confidence grades a FindResourcesByFqn match.
type Confidence uint8

const (
	// Exact means exactly one candidate matched, or only one existed.
	Exact Confidence = iota
	// Ambiguous means several candidates composed the same name.
	Ambiguous
	// Fallback means no candidate matched and the first was returned.
	Fallback
)

func (c Confidence) String() string {
	switch c {
	case Exact:
		return "exact"
	case Ambiguous:
		return "ambiguous"
	case Fallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// MarshalText encodes the confidence by name.
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Match is one resource returned by FindResourcesByFqn.
type Match struct {
	Resource   ResourceRef
	Confidence Confidence
}
