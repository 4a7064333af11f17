package core

// Classification partitions destination groups by the repository base that
// contains each destination.
type Classification struct {
	buckets  map[string][]*DestinationGroup
	Unmapped []*DestinationGroup
}

// Bucket returns the groups assigned to the named repository, sorted by destination.
func (c *Classification) Bucket(name string) []*DestinationGroup {
	return c.buckets[name]
}

// Classify assigns each group to the repository whose base contains its
// destination, or to Unmapped when none does.
//
// Classification looks only at the destination. A source under some root that
// was anchored at the root (not rewritten into the base) therefore lands in
// Unmapped.
func (g *Registry) Classify(groups []*DestinationGroup) *Classification {
	c := &Classification{buckets: make(map[string][]*DestinationGroup, len(g.repos))}
	for _, grp := range groups {
		repo := g.baseOwner(grp.Destination)
		if repo == nil {
			c.Unmapped = append(c.Unmapped, grp)
			continue
		}
		c.buckets[repo.Name] = append(c.buckets[repo.Name], grp)
	}
	return c
}

// Pipeline runs transform, group and classify over a loaded worklist.
func (g *Registry) Pipeline(wl *Worklist) *Classification {
	return g.Classify(Group(g.MapWorklist(wl)))
}
