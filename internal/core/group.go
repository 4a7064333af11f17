package core

import "sort"

// DestinationGroup is the unit of copying and reporting: one destination path
// and every source that mapped onto it.
type DestinationGroup struct {
	Destination string

	// Entries are sorted by source path.
	Entries []*WorklistEntry
}

// Sources returns the canonical source paths, sorted.
func (d *DestinationGroup) Sources() []string {
	out := make([]string, 0, len(d.Entries))
	for _, e := range d.Entries {
		out = append(out, e.Path)
	}
	return out
}

// RawCount is the total number of worklist lines behind this group.
func (d *DestinationGroup) RawCount() int {
	n := 0
	for _, e := range d.Entries {
		n += e.Count()
	}
	return n
}

// Group collapses mapped entries onto their destinations.
//
// Groups are returned sorted by destination. An entry appears in exactly one
// group, and a source appearing twice in the input is recorded once.
func Group(mapped []MappedEntry) []*DestinationGroup {
	byDest := make(map[string]*DestinationGroup)
	seen := make(map[string]struct{}, len(mapped))

	for _, m := range mapped {
		if _, dup := seen[m.Entry.Path]; dup {
			continue
		}
		seen[m.Entry.Path] = struct{}{}

		dest := m.Transform.Destination
		g, ok := byDest[dest]
		if !ok {
			g = &DestinationGroup{Destination: dest}
			byDest[dest] = g
		}
		g.Entries = append(g.Entries, m.Entry)
	}

	groups := make([]*DestinationGroup, 0, len(byDest))
	for _, g := range byDest {
		sort.Slice(g.Entries, func(i, j int) bool { return g.Entries[i].Path < g.Entries[j].Path })
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Destination < groups[j].Destination })
	return groups
}
