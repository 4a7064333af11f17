package core

import (
	"path"
	"strings"
)

// RewriteKind tags the outcome of a rule evaluation.
type RewriteKind int

const (
	Unchanged RewriteKind = iota
	Rewritten
)

func (k RewriteKind) String() string {
	if k == Rewritten {
		return "rewritten"
	}
	return "unchanged"
}

// Rewrite is the result of evaluating an ordered rule list against a path.
//
// Rule is the index of the matching rule, or -1 when Kind is Unchanged.
type Rewrite struct {
	Kind RewriteKind
	Rule int
	Path string
}

func unchanged(p string) Rewrite { return Rewrite{Kind: Unchanged, Rule: -1, Path: p} }

// ApplyPathRules rewrites the leading segments of a slash-separated relative
// path using the first rule whose From is a whole-segment prefix.
func ApplyPathRules(rules []PathRule, rel string) Rewrite {
	for i, r := range rules {
		rest, ok := matchSegments(rel, r.From)
		if !ok {
			continue
		}
		to := strings.Trim(filepathToSlash(r.To), "/")
		return Rewrite{Kind: Rewritten, Rule: i, Path: path.Join(to, rest)}
	}
	return unchanged(rel)
}

// ApplyExtRules replaces the suffix of rel using the first rule whose From it ends with.
func ApplyExtRules(rules []ExtRule, rel string) Rewrite {
	for i, r := range rules {
		if r.From == "" || !strings.HasSuffix(rel, r.From) {
			continue
		}
		return Rewrite{Kind: Rewritten, Rule: i, Path: rel[:len(rel)-len(r.From)] + r.To}
	}
	return unchanged(rel)
}

// matchSegments reports whether prefix matches rel on segment boundaries and
// returns the remainder.
func matchSegments(rel, prefix string) (string, bool) {
	prefix = strings.Trim(filepathToSlash(prefix), "/")
	if prefix == "" {
		return "", false
	}
	if rel == prefix {
		return "", true
	}
	if strings.HasPrefix(rel, prefix+"/") {
		return rel[len(prefix)+1:], true
	}
	return "", false
}

func filepathToSlash(p string) string { return strings.ReplaceAll(p, `\`, "/") }
