package report

import (
	"sort"
	"strings"

	"patchdeploy/internal/core"
)

// buildLabels groups successfully written artifacts by target label: the first
// segment of the written path relative to the repository output directory.
//
// Only repositories with Labeled set contribute, that is repositories
// configured with explicit targets. A repository using the legacy dir key or
// the default output directory has no label segment, so the first segment of
// its written paths would be an artifact directory rather than a label.
func buildLabels(repos []RepositoryReport) []LabelSection {
	byLabel := map[string]map[string]struct{}{}
	for _, repo := range repos {
		if !repo.Labeled {
			continue
		}
		for _, l := range repo.Groups {
			if l.Status != StatusOK {
				continue
			}
			for _, w := range l.Written {
				rel, ok := core.Within(repo.OutputDir, w)
				if !ok || rel == "." {
					continue
				}
				label, _, _ := strings.Cut(rel, "/")
				if byLabel[label] == nil {
					byLabel[label] = map[string]struct{}{}
				}
				byLabel[label][l.Display] = struct{}{}
			}
		}
	}

	out := make([]LabelSection, 0, len(byLabel))
	for label, set := range byLabel {
		sec := LabelSection{Label: label}
		for e := range set {
			sec.Entries = append(sec.Entries, e)
		}
		sort.Strings(sec.Entries)
		out = append(out, sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
