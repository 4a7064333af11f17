package core

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathRule rewrites a leading run of path segments.
//
// From is matched against the repository-relative path as a whole-segment
// prefix: "build" matches "build" and "build/x", never "buildx".
type PathRule struct {
	From string
	To   string
}

// ExtRule rewrites a trailing suffix, typically a file extension.
type ExtRule struct {
	From string
	To   string
}

// TargetSpec is one deployment target under a repository's output directory.
//
// Label and Path are both slash-separated and relative. The target root is
// <output dir>/<label>/<path>; an empty TargetSpec means the output directory itself.
type TargetSpec struct {
	Label string
	Path  string
}

// Validate rejects absolute label or path values and any that climb out of
// the output directory with "..".
func (t TargetSpec) Validate() error {
	for _, f := range []struct{ field, value string }{{"label", t.Label}, {"path", t.Path}} {
		v := strings.ReplaceAll(f.value, `\`, "/")
		if v == "" {
			continue
		}
		if path.IsAbs(v) || filepath.IsAbs(filepath.FromSlash(v)) {
			return fmt.Errorf("target %s %q must be relative", f.field, f.value)
		}
		if c := path.Clean(v); c == ".." || strings.HasPrefix(c, "../") {
			return fmt.Errorf("target %s %q escapes the output directory", f.field, f.value)
		}
	}
	return nil
}

// Root returns the absolute target root for the given output directory.
func (t TargetSpec) Root(outputDir string) string {
	return filepath.Join(outputDir, filepath.FromSlash(t.Label), filepath.FromSlash(t.Path))
}

// Repository is one independently-versioned source tree and its deployment rules.
type Repository struct {
	// Name is unique across the registry.
	Name string

	// Root is the version-control checkout directory.
	Root string

	// Base is the subtree of Root whose structure is mirrored into targets.
	Base string

	// OutputDir is the copy-output root for this repository. It is destroyed
	// and recreated before the repository's artifacts are distributed.
	OutputDir string

	// PathRules and ExtRules are evaluated in order; the first match wins.
	PathRules []PathRule
	ExtRules  []ExtRule

	// Targets lists the deployment targets. Empty means one implicit target:
	// the output directory itself.
	Targets []TargetSpec

	Enabled bool

	// BuildFile is passed to the build tool. Relative paths resolve under Root.
	// Empty disables the build step.
	BuildFile string

	// Exclude holds doublestar patterns matched against base-relative,
	// slash-separated destinations. Matching groups are reported, not copied.
	Exclude []string
}

// Excluded reports whether the base-relative destination rel matches one of
// the exclude patterns.
func (r *Repository) Excluded(rel string) bool {
	for _, pat := range r.Exclude {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// TargetRoots returns the absolute root of every target, in configured order.
func (r *Repository) TargetRoots() []string {
	if len(r.Targets) == 0 {
		return []string{r.OutputDir}
	}
	roots := make([]string, 0, len(r.Targets))
	for _, t := range r.Targets {
		roots = append(roots, t.Root(r.OutputDir))
	}
	return roots
}

// BuildFilePath returns the build file resolved against Root.
func (r *Repository) BuildFilePath() string {
	if r.BuildFile == "" {
		return ""
	}
	p := normalizeSeparators(r.BuildFile)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(r.Root, p)
}

// Registry is the static, configuration-derived table of repositories.
//
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	repos  []*Repository
	byName map[string]*Repository
}

// NewRegistry validates and canonicalizes the given repositories.
//
// Root, Base and OutputDir must be absolute. Base must lie under Root, names
// must be unique, and base paths must not overlap (classification relies on
// at most one base containing any destination). Targets must stay under the
// output directory and exclude patterns must parse.
func NewRegistry(repos []Repository) (*Registry, error) {
	if len(repos) == 0 {
		return nil, errors.New("no repositories configured")
	}

	reg := &Registry{
		repos:  make([]*Repository, 0, len(repos)),
		byName: make(map[string]*Repository, len(repos)),
	}

	var errs []error
	for i := range repos {
		r := repos[i]
		name := strings.TrimSpace(r.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("repository #%d: name is required", i+1))
			continue
		}
		if _, dup := reg.byName[name]; dup {
			errs = append(errs, fmt.Errorf("repository %q: duplicate name", name))
			continue
		}
		r.Name = name

		for _, p := range []struct {
			field string
			value *string
		}{{"root", &r.Root}, {"base", &r.Base}, {"output dir", &r.OutputDir}} {
			v := normalizeSeparators(*p.value)
			if !filepath.IsAbs(v) {
				errs = append(errs, fmt.Errorf("repository %q: %s must be absolute (got %q)", name, p.field, *p.value))
				continue
			}
			*p.value = canonicalDir(v)
		}
		if _, ok := Within(r.Root, r.Base); !ok {
			errs = append(errs, fmt.Errorf("repository %q: base %s is not under root %s", name, r.Base, r.Root))
		}

		for j, rule := range r.PathRules {
			if strings.Trim(rule.From, "/\\") == "" {
				errs = append(errs, fmt.Errorf("repository %q: path rule #%d has an empty source prefix", name, j+1))
			}
		}
		for j, rule := range r.ExtRules {
			if rule.From == "" {
				errs = append(errs, fmt.Errorf("repository %q: extension rule #%d has an empty source suffix", name, j+1))
			}
		}

		for j, t := range r.Targets {
			if err := t.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("repository %q: target #%d: %w", name, j+1, err))
			}
		}
		for _, pat := range r.Exclude {
			if !doublestar.ValidatePattern(pat) {
				errs = append(errs, fmt.Errorf("repository %q: invalid exclude pattern %q", name, pat))
			}
		}

		rp := &r
		reg.repos = append(reg.repos, rp)
		reg.byName[name] = rp
	}

	for i, a := range reg.repos {
		for _, b := range reg.repos[i+1:] {
			_, ab := Within(a.Base, b.Base)
			_, ba := Within(b.Base, a.Base)
			if ab || ba {
				errs = append(errs, fmt.Errorf("repositories %q and %q have overlapping base paths", a.Name, b.Name))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return reg, nil
}

// Repositories returns the repositories in configured order.
func (g *Registry) Repositories() []*Repository {
	out := make([]*Repository, len(g.repos))
	copy(out, g.repos)
	return out
}

// Lookup returns the repository with the given name.
func (g *Registry) Lookup(name string) (*Repository, bool) {
	r, ok := g.byName[name]
	return r, ok
}

// Owner returns the repository whose root contains p.
//
// When roots nest, the most specific (longest) root wins; ties resolve in
// configured order. Returns nil when no root contains p.
func (g *Registry) Owner(p string) *Repository {
	var best *Repository
	for _, r := range g.repos {
		if _, ok := Within(r.Root, p); !ok {
			continue
		}
		if best == nil || len(r.Root) > len(best.Root) {
			best = r
		}
	}
	return best
}

// baseOwner returns the first repository, in configured order, whose base contains p.
func (g *Registry) baseOwner(p string) *Repository {
	for _, r := range g.repos {
		if _, ok := Within(r.Base, p); ok {
			return r
		}
	}
	return nil
}
