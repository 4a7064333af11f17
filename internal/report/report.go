// Package report collects per-repository distribution results and renders the
// run report.
//
// Results may be recorded from any goroutine in any order. Ordering is fixed
// after collection, so serial and parallel runs render identical reports.
package report

import (
	"sort"
	"time"

	"patchdeploy/internal/core"
)

// Status is the outcome of one report line.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"

	// StatusExcluded marks a group matched by a repository exclude pattern.
	// It is not copied and is counted apart from skipped groups.
	StatusExcluded Status = "excluded"
)

// Marker returns the bracketed marker of s in the text report. Skipped and
// excluded lines share "-"; the summary line tells them apart.
func (s Status) Marker() string {
	switch s {
	case StatusOK:
		return "O"
	case StatusFailed:
		return "X"
	default:
		return "-"
	}
}

// RepoState is the processing state shown for a repository.
type RepoState string

const (
	StateActive   RepoState = "active"
	StateEmpty    RepoState = "empty"
	StateDisabled RepoState = "disabled"
)

// GroupLine is one destination group in the report.
type GroupLine struct {
	// Display is the base-relative path for repository lines and the absolute
	// destination for unmapped lines.
	Display     string   `json:"display"`
	Destination string   `json:"destination"`
	Status      Status   `json:"status"`
	Written     []string `json:"written,omitempty"`
	Errors      []string `json:"errors,omitempty"`

	Contributors []core.LiteralCount `json:"contributors"`
	Raw          int                 `json:"raw"`
}

// NewGroupLine returns a line for g with its contributing literals filled in.
// Contributors follow source order, then first appearance within a source.
func NewGroupLine(g *core.DestinationGroup, display string) GroupLine {
	line := GroupLine{Display: display, Destination: g.Destination, Raw: g.RawCount()}
	for _, e := range g.Entries {
		line.Contributors = append(line.Contributors, e.LiteralCounts()...)
	}
	return line
}

// Counts is a groups/raw pair.
type Counts struct {
	Groups int `json:"groups"`
	Raw    int `json:"raw"`
}

func (c *Counts) add(l GroupLine) {
	c.Groups++
	c.Raw += l.Raw
}

// RepositoryReport is the result for one repository.
type RepositoryReport struct {
	Name      string      `json:"name"`
	State     RepoState   `json:"state"`
	Base      string      `json:"base"`
	OutputDir string      `json:"output_dir"`
	Targets   []string    `json:"targets"`
	Labeled   bool        `json:"labeled"`
	Build     string      `json:"build"`
	Groups    []GroupLine `json:"groups"`
}

// Totals returns the total, success and failure counts for the repository.
func (r RepositoryReport) Totals() (total, success, fail Counts) {
	for _, l := range r.Groups {
		total.add(l)
		switch l.Status {
		case StatusOK:
			success.add(l)
		case StatusFailed:
			fail.add(l)
		}
	}
	return total, success, fail
}

// LabelSection lists the artifacts deployed under one target label.
type LabelSection struct {
	Label   string   `json:"label"`
	Entries []string `json:"entries"`
}

// Summary holds the run-wide counters.
type Summary struct {
	Total    Counts `json:"total"`
	Success  Counts `json:"success"`
	Fail     Counts `json:"fail"`
	Unmapped Counts `json:"unmapped"`
	Skipped  Counts `json:"skipped"`
	Excluded Counts `json:"excluded"`
}

// Report is the complete, canonically ordered run report.
type Report struct {
	RunID        string             `json:"run_id"`
	Started      time.Time          `json:"started"`
	Repositories []RepositoryReport `json:"repositories"`
	Unmapped     []GroupLine        `json:"unmapped"`
	Labels       []LabelSection     `json:"labels"`
	Summary      Summary            `json:"summary"`
}

// canonicalize orders repositories by the given configuration order (unknown
// names last, by name) and every line list by destination.
func (r *Report) canonicalize(order []string) {
	rank := make(map[string]int, len(order))
	for i, n := range order {
		rank[n] = i
	}
	sort.SliceStable(r.Repositories, func(i, j int) bool {
		ri, iok := rank[r.Repositories[i].Name]
		rj, jok := rank[r.Repositories[j].Name]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return r.Repositories[i].Name < r.Repositories[j].Name
		}
	})
	for i := range r.Repositories {
		sortLines(r.Repositories[i].Groups)
	}
	sortLines(r.Unmapped)
}

func sortLines(lines []GroupLine) {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Destination < lines[j].Destination })
}

func (r *Report) summarize() {
	var s Summary
	for _, repo := range r.Repositories {
		for _, l := range repo.Groups {
			s.Total.add(l)
			switch l.Status {
			case StatusOK:
				s.Success.add(l)
			case StatusFailed:
				s.Fail.add(l)
			case StatusSkipped:
				s.Skipped.add(l)
			case StatusExcluded:
				s.Excluded.add(l)
			}
		}
	}
	for _, l := range r.Unmapped {
		s.Total.add(l)
		s.Unmapped.add(l)
	}
	r.Summary = s
}
