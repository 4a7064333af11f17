package core

import "sort"

// WorklistEntry is one canonical source path together with every literal line
// that resolved to it.
type WorklistEntry struct {
	Path     string
	Literals []string
}

// Count is the raw number of worklist lines that named this path.
func (e *WorklistEntry) Count() int {
	return len(e.Literals)
}

// LiteralCount pairs a literal worklist string with how often it occurred.
type LiteralCount struct {
	Literal string `json:"literal"`
	Count   int    `json:"count"`
}

// LiteralCounts returns the distinct literals in order of first appearance.
func (e *WorklistEntry) LiteralCounts() []LiteralCount {
	var out []LiteralCount
	index := make(map[string]int, len(e.Literals))
	for _, l := range e.Literals {
		if i, ok := index[l]; ok {
			out[i].Count++
			continue
		}
		index[l] = len(out)
		out = append(out, LiteralCount{Literal: l, Count: 1})
	}
	return out
}

// Worklist is the validated, de-duplicated set of source paths for a run.
//
// Entries keep the order in which their canonical path first appeared.
type Worklist struct {
	entries []*WorklistEntry
	index   map[string]*WorklistEntry
	raw     int
}

// NewWorklist returns an empty worklist.
func NewWorklist() *Worklist {
	return &Worklist{index: make(map[string]*WorklistEntry)}
}

// add records one literal occurrence of a canonical path.
func (w *Worklist) add(literal, canonical string) {
	w.raw++
	if e, ok := w.index[canonical]; ok {
		e.Literals = append(e.Literals, literal)
		return
	}
	e := &WorklistEntry{Path: canonical, Literals: []string{literal}}
	w.index[canonical] = e
	w.entries = append(w.entries, e)
}

// Entries returns the entries in first-appearance order.
func (w *Worklist) Entries() []*WorklistEntry {
	out := make([]*WorklistEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Lookup returns the entry for a canonical path.
func (w *Worklist) Lookup(canonical string) (*WorklistEntry, bool) {
	e, ok := w.index[canonical]
	return e, ok
}

// Len is the number of unique canonical paths.
func (w *Worklist) Len() int { return len(w.entries) }

// RawCount is the number of accepted lines, duplicates included.
func (w *Worklist) RawCount() int { return w.raw }

// Paths returns the canonical paths sorted lexicographically.
func (w *Worklist) Paths() []string {
	out := make([]string, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, e.Path)
	}
	sort.Strings(out)
	return out
}
