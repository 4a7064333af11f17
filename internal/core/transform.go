package core

import "path/filepath"

// RelativeKind records which directory a source path was expressed relative to.
type RelativeKind int

const (
	// RelativeNone means no repository root contains the source.
	RelativeNone RelativeKind = iota
	// RelativeBase means the source lies under the repository base.
	RelativeBase
	// RelativeRoot means the source lies under the root but outside the base.
	RelativeRoot
)

func (k RelativeKind) String() string {
	switch k {
	case RelativeBase:
		return "base"
	case RelativeRoot:
		return "root"
	default:
		return "none"
	}
}

// Transform is the derived mapping of one source path.
type Transform struct {
	Source      string
	Destination string

	// Repository owns Source by root containment; nil when Kind is RelativeNone.
	Repository *Repository
	Kind       RelativeKind

	PathRewrite Rewrite
	ExtRewrite  Rewrite
}

// Transform maps a canonical source path to its destination.
//
// The path is expressed relative to the owning repository's base when it lies
// there, otherwise relative to the root. Path rules run first, then extension
// rules on the result. A path-rule hit anchors the result under the base; a
// miss leaves it anchored where it was found. Sources outside every root map
// to themselves.
func (g *Registry) Transform(source string) Transform {
	t := Transform{
		Source:      source,
		Destination: source,
		PathRewrite: unchanged(""),
		ExtRewrite:  unchanged(""),
	}

	repo := g.Owner(source)
	if repo == nil {
		return t
	}
	t.Repository = repo

	anchor := repo.Base
	rel, ok := Within(repo.Base, source)
	if ok {
		t.Kind = RelativeBase
	} else {
		t.Kind = RelativeRoot
		anchor = repo.Root
		rel, _ = Within(repo.Root, source)
	}

	t.PathRewrite = ApplyPathRules(repo.PathRules, rel)
	t.ExtRewrite = ApplyExtRules(repo.ExtRules, t.PathRewrite.Path)

	if t.PathRewrite.Kind == Rewritten {
		anchor = repo.Base
	}
	t.Destination = filepath.Join(anchor, filepath.FromSlash(t.ExtRewrite.Path))
	return t
}

// MappedEntry pairs a worklist entry with its transform.
type MappedEntry struct {
	Entry     *WorklistEntry
	Transform Transform
}

// MapWorklist transforms every entry of wl, preserving worklist order.
func (g *Registry) MapWorklist(wl *Worklist) []MappedEntry {
	entries := wl.Entries()
	out := make([]MappedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, MappedEntry{Entry: e, Transform: g.Transform(e.Path)})
	}
	return out
}
