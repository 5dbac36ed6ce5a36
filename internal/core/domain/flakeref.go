package domain

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// RefKind identifies the locator family of a flake reference.
type RefKind string

const (
	// KindForge is the owner/repo shorthand for a well-known forge,
	// e.g. "github:NixOS/nixpkgs".
	KindForge RefKind = "forge"

	// KindGit is a generic git repository, e.g. "git+https://...".
	KindGit RefKind = "git"

	// KindMercurial is a generic mercurial repository.
	KindMercurial RefKind = "mercurial"

	// KindTarball is a fetchable archive URL.
	KindTarball RefKind = "tarball"

	// KindPath is a local filesystem path containing a flake.
	KindPath RefKind = "path"

	// KindIndirect resolves through the flake registry,
	// e.g. "flake:nixpkgs" or the bare id "nixpkgs".
	KindIndirect RefKind = "indirect"
)

// forgeHosts maps shorthand schemes to their canonical authority.
// New forges are additive entries here, nothing else branches per host.
var forgeHosts = map[string]string{
	"github":    "github.com",
	"gitlab":    "gitlab.com",
	"sourcehut": "git.sr.ht",
	"gitea":     "gitea.com",
	"forgejo":   "codeberg.org",
}

// webHosts is the reverse direction: a pasted browser URL for one of
// these hosts is converted to the shorthand form.
var webHosts = map[string]string{
	"github.com":   "github",
	"gitlab.com":   "gitlab",
	"git.sr.ht":    "sourcehut",
	"codeberg.org": "forgejo",
}

// tarballSuffixes are the archive forms the tarball fetcher accepts.
var tarballSuffixes = []string{
	".zip", ".tar", ".tgz", ".tar.gz", ".tar.xz", ".tar.bz2", ".tar.zst",
}

// RefParams are the query parameters a flake reference may carry.
// Unknown keys are preserved in Extra for forward compatibility.
type RefParams struct {
	Ref        string
	Rev        string
	Host       string
	Dir        string
	Shallow    bool
	Submodules bool
	Extra      map[string]string
}

func (p RefParams) empty() bool {
	return p.Ref == "" && p.Rev == "" && p.Host == "" && p.Dir == "" &&
		!p.Shallow && !p.Submodules && len(p.Extra) == 0
}

// SourceRef is the parsed form of a flake reference.
// Exactly one of the location fields is populated, selected by Kind:
// Owner/Repo for forges, URL for git/mercurial/tarball, Path for local
// paths and ID for registry-indirect references.
type SourceRef struct {
	Kind  RefKind
	Forge string // forge scheme key, e.g. "github"
	Owner string
	Repo  string
	URL   string // full transport URL for git/mercurial/tarball kinds
	Path  string
	ID    string

	// RefOrRev is the positional third segment of forge and indirect
	// references. Whether it names a revision is decided by IsRevision.
	RefOrRev string

	Params RefParams
}

// IsRevision reports whether s looks like a full git revision:
// exactly 40 lowercase hexadecimal characters.
func IsRevision(s string) bool {
	if len(s) != 40 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Rev returns the pinned revision, if any. The explicit rev= parameter
// always wins over heuristic classification of the positional segment.
func (r *SourceRef) Rev() string {
	if r.Params.Rev != "" {
		return r.Params.Rev
	}
	if r.Params.Ref != "" {
		// explicit ref= claims the positional slot is not a rev
		return ""
	}
	if IsRevision(r.RefOrRev) {
		return r.RefOrRev
	}
	return ""
}

// Ref returns the symbolic ref, if any.
func (r *SourceRef) Ref() string {
	if r.Params.Ref != "" {
		return r.Params.Ref
	}
	if r.RefOrRev != "" && !IsRevision(r.RefOrRev) {
		return r.RefOrRev
	}
	return ""
}

// Pinned reports whether the reference carries any ref or rev at all.
func (r *SourceRef) Pinned() bool {
	return r.RefOrRev != "" || r.Params.Ref != "" || r.Params.Rev != ""
}

// SetRefOrRev pins the reference to the given ref or rev, replacing
// whichever pin is currently present.
func (r *SourceRef) SetRefOrRev(v string) {
	switch r.Kind {
	case KindForge, KindIndirect:
		if r.Params.Ref != "" || r.Params.Rev != "" {
			r.Params.Ref = ""
			r.Params.Rev = ""
		}
		r.RefOrRev = v
	default:
		if IsRevision(v) {
			r.Params.Rev = v
			r.Params.Ref = ""
		} else {
			r.Params.Ref = v
			r.Params.Rev = ""
		}
		r.RefOrRev = ""
	}
}

// ClearRefOrRev removes any pin, reverting to the upstream default.
func (r *SourceRef) ClearRefOrRev() {
	r.RefOrRev = ""
	r.Params.Ref = ""
	r.Params.Rev = ""
}

// InferID derives an input id from the reference: the repository name
// for forge kinds, the registry id for indirect references, the last
// path segment otherwise. An empty return means inference failed.
func (r *SourceRef) InferID() string {
	switch r.Kind {
	case KindForge:
		return r.Repo
	case KindIndirect:
		return r.ID
	case KindPath:
		return lastSegment(r.Path)
	case KindGit, KindMercurial, KindTarball:
		seg := lastSegment(r.URL)
		seg = strings.TrimSuffix(seg, ".git")
		for _, suf := range tarballSuffixes {
			seg = strings.TrimSuffix(seg, suf)
		}
		return seg
	}
	return ""
}

func lastSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// ParseRef parses a flake reference string into a SourceRef.
func ParseRef(text string) (*SourceRef, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidAuthority)
	}

	body, params, err := splitQuery(text)
	if err != nil {
		return nil, err
	}

	// Bare paths carry no scheme at all.
	if strings.HasPrefix(body, "/") || strings.HasPrefix(body, "./") || strings.HasPrefix(body, "../") {
		return &SourceRef{Kind: KindPath, Path: strings.TrimRight(body, "/"), Params: params}, nil
	}

	scheme, rest, found := strings.Cut(body, ":")
	if !found {
		// A bare identifier resolves through the registry.
		if isIdentifier(body) {
			return &SourceRef{Kind: KindIndirect, ID: body, Params: params}, nil
		}
		return nil, fmt.Errorf("%w: %q has no scheme", ErrInvalidScheme, text)
	}

	if _, ok := forgeHosts[scheme]; ok {
		return parseForge(scheme, rest, params)
	}

	switch {
	case scheme == "path":
		if rest == "" {
			return nil, fmt.Errorf("%w: path reference %q has no path", ErrInvalidAuthority, text)
		}
		return &SourceRef{Kind: KindPath, Path: strings.TrimRight(rest, "/"), Params: params}, nil

	case scheme == "flake":
		return parseIndirect(rest, params)

	case scheme == "git" || strings.HasPrefix(scheme, "git+"):
		return parseTransport(KindGit, scheme, rest, params)

	case scheme == "hg" || strings.HasPrefix(scheme, "hg+"):
		return parseTransport(KindMercurial, scheme, rest, params)

	case strings.HasPrefix(scheme, "tarball+") || strings.HasPrefix(scheme, "file+"):
		return parseTransport(KindTarball, scheme, rest, params)

	case scheme == "http" || scheme == "https":
		return parseWebURL(scheme, rest, params)
	}

	return nil, fmt.Errorf("%w: %q", ErrInvalidScheme, scheme)
}

func parseForge(scheme, rest string, params RefParams) (*SourceRef, error) {
	rest = strings.TrimRight(rest, "/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: %s: wanted owner/repo[/ref-or-rev], got %q",
			ErrInvalidAuthority, scheme, rest)
	}
	ref := &SourceRef{
		Kind:   KindForge,
		Forge:  scheme,
		Owner:  parts[0],
		Repo:   parts[1],
		Params: params,
	}
	if len(parts) == 3 {
		if parts[2] == "" {
			return nil, fmt.Errorf("%w: %s: empty ref-or-rev segment", ErrInvalidAuthority, scheme)
		}
		ref.RefOrRev = parts[2]
	}
	return ref, nil
}

func parseIndirect(rest string, params RefParams) (*SourceRef, error) {
	rest = strings.TrimRight(rest, "/")
	id, refOrRev, _ := strings.Cut(rest, "/")
	if !isIdentifier(id) {
		return nil, fmt.Errorf("%w: registry id %q", ErrInvalidAuthority, rest)
	}
	return &SourceRef{Kind: KindIndirect, ID: id, RefOrRev: refOrRev, Params: params}, nil
}

// parseTransport handles git+https://, hg+ssh://, tarball+https:// and
// friends. The stored URL keeps the inner transport but drops the
// fetcher prefix, which is re-derived on serialization.
func parseTransport(kind RefKind, scheme, rest string, params RefParams) (*SourceRef, error) {
	inner := scheme
	if _, transport, ok := strings.Cut(scheme, "+"); ok {
		inner = transport
	}
	if !strings.HasPrefix(rest, "//") && inner != "file" {
		return nil, fmt.Errorf("%w: %s: expected %s://...", ErrInvalidAuthority, scheme, inner)
	}
	return &SourceRef{
		Kind:   kind,
		URL:    strings.TrimRight(inner+":"+rest, "/"),
		Params: params,
	}, nil
}

// parseWebURL converts a pasted browser URL for a known forge into the
// shorthand form, and treats everything else as a tarball.
func parseWebURL(scheme, rest string, params RefParams) (*SourceRef, error) {
	full := scheme + ":" + rest
	u, err := url.Parse(full)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAuthority, full, err)
	}
	if forge, ok := webHosts[u.Host]; ok {
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segs) >= 2 && segs[0] != "" && segs[1] != "" {
			return &SourceRef{
				Kind:   KindForge,
				Forge:  forge,
				Owner:  segs[0],
				Repo:   strings.TrimSuffix(segs[1], ".git"),
				Params: params,
			}, nil
		}
	}
	return &SourceRef{Kind: KindTarball, URL: strings.TrimRight(full, "/"), Params: params}, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

func splitQuery(text string) (string, RefParams, error) {
	params := RefParams{}
	body, query, found := strings.Cut(text, "?")
	if !found || query == "" {
		return body, params, nil
	}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return "", params, fmt.Errorf("%w: %q is not key=value", ErrMalformedQuery, pair)
		}
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return "", params, fmt.Errorf("%w: %q: %v", ErrMalformedQuery, pair, err)
		}
		switch key {
		case "ref":
			params.Ref = decoded
		case "rev":
			params.Rev = decoded
		case "host":
			params.Host = decoded
		case "dir":
			params.Dir = decoded
		case "shallow":
			params.Shallow = isTruthy(decoded)
		case "submodules":
			params.Submodules = isTruthy(decoded)
		default:
			if params.Extra == nil {
				params.Extra = map[string]string{}
			}
			params.Extra[key] = decoded
		}
	}
	return body, params, nil
}

func isTruthy(v string) bool {
	return v == "1" || v == "true"
}

// String serializes the reference in canonical form. Query parameters
// are emitted in lexicographic key order, so the output is a pure
// function of the value rather than of parse history.
func (r *SourceRef) String() string {
	var b strings.Builder
	switch r.Kind {
	case KindForge:
		b.WriteString(r.Forge)
		b.WriteByte(':')
		b.WriteString(r.Owner)
		b.WriteByte('/')
		b.WriteString(r.Repo)
		if r.RefOrRev != "" {
			b.WriteByte('/')
			b.WriteString(r.RefOrRev)
		}
	case KindIndirect:
		b.WriteString("flake:")
		b.WriteString(r.ID)
		if r.RefOrRev != "" {
			b.WriteByte('/')
			b.WriteString(r.RefOrRev)
		}
	case KindPath:
		b.WriteString("path:")
		b.WriteString(r.Path)
	case KindGit:
		b.WriteString(fetcherURL("git", r.URL))
	case KindMercurial:
		b.WriteString(fetcherURL("hg", r.URL))
	case KindTarball:
		b.WriteString(r.URL)
	}
	b.WriteString(r.Params.encode())
	return b.String()
}

// fetcherURL prefixes the transport URL with the fetcher family unless
// the transport already is the family scheme (plain git://).
func fetcherURL(family, u string) string {
	if strings.HasPrefix(u, family+"://") {
		return u
	}
	return family + "+" + u
}

func (p RefParams) encode() string {
	if p.empty() {
		return ""
	}
	pairs := map[string]string{}
	if p.Dir != "" {
		pairs["dir"] = p.Dir
	}
	if p.Host != "" {
		pairs["host"] = p.Host
	}
	if p.Ref != "" {
		pairs["ref"] = p.Ref
	}
	if p.Rev != "" {
		pairs["rev"] = p.Rev
	}
	if p.Shallow {
		pairs["shallow"] = "1"
	}
	if p.Submodules {
		pairs["submodules"] = "1"
	}
	for k, v := range p.Extra {
		pairs[k] = v
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(pairs[k])
	}
	return b.String()
}

// Equal reports semantic equality of two references: same kind, same
// location and identical parameters regardless of parse order.
func (r *SourceRef) Equal(o *SourceRef) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.String() == o.String()
}

// SameUpstream reports whether two references name the same upstream
// source, ignoring any pinned ref or rev. Used by the follows
// reconciler, where the intent is "track the same upstream".
func (r *SourceRef) SameUpstream(o *SourceRef) bool {
	if r == nil || o == nil || r.Kind != o.Kind {
		return false
	}
	switch r.Kind {
	case KindForge:
		return r.Forge == o.Forge &&
			strings.EqualFold(r.Owner, o.Owner) &&
			strings.EqualFold(r.Repo, o.Repo)
	case KindIndirect:
		return r.ID == o.ID
	case KindPath:
		return r.Path == o.Path
	default:
		return r.URL == o.URL
	}
}
