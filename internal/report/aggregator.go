package report

import (
	"sync"
	"time"
)

// Aggregator is a concurrency-safe in-memory collector of repository results.
//
// Recording takes a single mutex; ordering is computed in Report, after
// collection, so contention never affects the output.
type Aggregator struct {
	order []string

	mu       sync.Mutex
	repos    []RepositoryReport
	unmapped []GroupLine
}

// NewAggregator returns an Aggregator that orders repositories as in order.
func NewAggregator(order []string) *Aggregator {
	return &Aggregator{order: append([]string(nil), order...)}
}

// Record stores the result of one repository.
func (a *Aggregator) Record(r RepositoryReport) {
	a.mu.Lock()
	a.repos = append(a.repos, r)
	a.mu.Unlock()
}

// RecordUnmapped stores lines for groups no repository base contains.
func (a *Aggregator) RecordUnmapped(lines ...GroupLine) {
	a.mu.Lock()
	a.unmapped = append(a.unmapped, lines...)
	a.mu.Unlock()
}

// Report builds the canonical report from everything recorded so far.
// The result is independent of the aggregator.
func (a *Aggregator) Report(runID string, started time.Time) Report {
	a.mu.Lock()
	r := Report{
		RunID:        runID,
		Started:      started,
		Repositories: make([]RepositoryReport, len(a.repos)),
		Unmapped:     make([]GroupLine, len(a.unmapped)),
	}
	copy(r.Repositories, a.repos)
	copy(r.Unmapped, a.unmapped)
	a.mu.Unlock()

	for i := range r.Repositories {
		r.Repositories[i].Groups = append([]GroupLine(nil), r.Repositories[i].Groups...)
	}
	r.canonicalize(a.order)
	r.Labels = buildLabels(r.Repositories)
	r.summarize()
	return r
}
