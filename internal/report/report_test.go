package report

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"patchdeploy/internal/core"
)

func sampleRepos() []RepositoryReport {
	return []RepositoryReport{
		{
			Name:  "batch",
			State: StateDisabled,
			Base:  "/src/batch",
			Groups: []GroupLine{{
				Display: "bin/job.sh", Destination: "/src/batch/bin/job.sh", Status: StatusSkipped,
				Contributors: []core.LiteralCount{{Literal: "/src/batch/bin/job.sh", Count: 1}}, Raw: 1,
			}},
		},
		{
			Name:      "repoA",
			State:     StateActive,
			Base:      "/src/repoA/WEB-INF/classes",
			OutputDir: "/deploy/copy/repoA",
			Targets:   []string{"/deploy/copy/repoA/dev/a", "/deploy/copy/repoA/prd/b"},
			Labeled:   true,
			Build:     "SKIP",
			Groups: []GroupLine{
				{
					Display: "com/x/Foo.class", Destination: "/src/repoA/WEB-INF/classes/com/x/Foo.class", Status: StatusOK,
					Written: []string{
						"/deploy/copy/repoA/dev/a/com/x/Foo.class",
						"/deploy/copy/repoA/prd/b/com/x/Foo.class",
					},
					Contributors: []core.LiteralCount{
						{Literal: "/src/repoA/WEB-INF/classes/com/x/Foo.java", Count: 1},
						{Literal: "/src/repoA/build/com/x/Foo.class", Count: 1},
					},
					Raw: 2,
				},
				{
					Display: "com/x/Bar.class", Destination: "/src/repoA/WEB-INF/classes/com/x/Bar.class", Status: StatusFailed,
					Errors:       []string{"not found: /src/repoA/WEB-INF/classes/com/x/Bar.class"},
					Contributors: []core.LiteralCount{{Literal: "/src/repoA/WEB-INF/classes/com/x/Bar.java", Count: 1}},
					Raw:          1,
				},
				{
					Display: "com/x/gen/Stub.class", Destination: "/src/repoA/WEB-INF/classes/com/x/gen/Stub.class", Status: StatusExcluded,
					Contributors: []core.LiteralCount{{Literal: "/src/repoA/WEB-INF/classes/com/x/gen/Stub.class", Count: 1}},
					Raw:          1,
				},
			},
		},
	}
}

// TestRender_Golden verifies the full text layout, ordering and counters.
func TestRender_Golden(t *testing.T) {
	agg := NewAggregator([]string{"repoA", "batch"})
	repos := sampleRepos()
	agg.Record(repos[0])
	agg.Record(repos[1])
	agg.RecordUnmapped(GroupLine{
		Display: "/other/unrelated/file.txt", Destination: "/other/unrelated/file.txt", Status: StatusFailed,
		Contributors: []core.LiteralCount{{Literal: "/other/unrelated/file.txt", Count: 1}}, Raw: 1,
	})

	started := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	if err := Render(&buf, agg.Report("run-1", started)); err != nil {
		t.Fatalf("Render: %v", err)
	}

	want := `> 2026-10-19 10:00:00

=================================
[repoA]
---------------------------------
state: active
base: /src/repoA/WEB-INF/classes
target: /deploy/copy/repoA/dev/a
target: /deploy/copy/repoA/prd/b
build: SKIP
---------------------------------
[X] com/x/Bar.class (1)
    : not found: /src/repoA/WEB-INF/classes/com/x/Bar.class
    /src/repoA/WEB-INF/classes/com/x/Bar.java,1
[O] com/x/Foo.class (2)
    -> /deploy/copy/repoA/dev/a/com/x/Foo.class
    -> /deploy/copy/repoA/prd/b/com/x/Foo.class
    /src/repoA/WEB-INF/classes/com/x/Foo.java,1
    /src/repoA/build/com/x/Foo.class,1
[-] com/x/gen/Stub.class (1)
    /src/repoA/WEB-INF/classes/com/x/gen/Stub.class,1
total: 3/4, success: 1/2, fail: 1/1
=================================

=================================
[batch]
---------------------------------
state: disabled
base: /src/batch
---------------------------------
[-] bin/job.sh (1)
    /src/batch/bin/job.sh,1
total: 1/1, success: 0/0, fail: 0/0
=================================

=================================
[UNMAPPED]
---------------------------------
[X] /other/unrelated/file.txt (1)
    /other/unrelated/file.txt,1
=================================

=================================
[LABELS]
---------------------------------
dev
    com/x/Foo.class
prd
    com/x/Foo.class
=================================

total: 5/6, success: 1/2, fail: 1/1, unmapped: 1/1, skipped: 1/1, excluded: 1/1
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

// TestAggregator_OrderIndependent verifies concurrent recording in any order
// yields the same report.
func TestAggregator_OrderIndependent(t *testing.T) {
	repos := sampleRepos()
	started := time.Unix(0, 0)

	serial := NewAggregator([]string{"repoA", "batch"})
	for _, r := range repos {
		serial.Record(r)
	}

	parallel := NewAggregator([]string{"repoA", "batch"})
	var wg sync.WaitGroup
	for i := len(repos) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(r RepositoryReport) {
			defer wg.Done()
			parallel.Record(r)
		}(repos[i])
	}
	wg.Wait()

	if diff := cmp.Diff(serial.Report("x", started), parallel.Report("x", started)); diff != "" {
		t.Errorf("reports differ (-serial +parallel):\n%s", diff)
	}
}

// TestNewGroupLine merges contributors across sources in source order.
func TestNewGroupLine(t *testing.T) {
	g := &core.DestinationGroup{
		Destination: "/b/x.class",
		Entries: []*core.WorklistEntry{
			{Path: "/b/x.class", Literals: []string{"/b/x.class"}},
			{Path: "/r/x.java", Literals: []string{"/r/x.java", "/r/./x.java", "/r/x.java"}},
		},
	}
	line := NewGroupLine(g, "x.class")
	want := []core.LiteralCount{
		{Literal: "/b/x.class", Count: 1},
		{Literal: "/r/x.java", Count: 2},
		{Literal: "/r/./x.java", Count: 1},
	}
	if diff := cmp.Diff(want, line.Contributors); diff != "" {
		t.Errorf("contributors (-want +got):\n%s", diff)
	}
	if line.Raw != 4 {
		t.Errorf("raw = %d, want 4", line.Raw)
	}
}

func TestStatus_Marker(t *testing.T) {
	for s, want := range map[Status]string{
		StatusOK:       "O",
		StatusFailed:   "X",
		StatusSkipped:  "-",
		StatusExcluded: "-",
	} {
		if got := s.Marker(); got != want {
			t.Errorf("%s.Marker() = %q, want %q", s, got, want)
		}
	}
}

// TestSummary_ExcludedApartFromSkipped verifies excluded groups of an active
// repository and skipped groups of a disabled one land in separate counters.
func TestSummary_ExcludedApartFromSkipped(t *testing.T) {
	agg := NewAggregator(nil)
	for _, r := range sampleRepos() {
		agg.Record(r)
	}
	s := agg.Report("x", time.Unix(0, 0)).Summary
	if s.Skipped != (Counts{Groups: 1, Raw: 1}) {
		t.Errorf("skipped = %v", s.Skipped)
	}
	if s.Excluded != (Counts{Groups: 1, Raw: 1}) {
		t.Errorf("excluded = %v", s.Excluded)
	}
	if s.Total != (Counts{Groups: 4, Raw: 5}) {
		t.Errorf("total = %v", s.Total)
	}
}

// TestBuildLabels_LabeledOnly verifies repositories without explicit targets
// never produce label sections, even though their written paths sit under the
// output directory.
func TestBuildLabels_LabeledOnly(t *testing.T) {
	line := GroupLine{
		Display: "index.jsp", Destination: "/src/site/index.jsp", Status: StatusOK,
		Written: []string{"/deploy/copy/site/html/index.jsp"},
	}
	repos := []RepositoryReport{
		{Name: "site", OutputDir: "/deploy/copy/site", Groups: []GroupLine{line}},
		{Name: "app", OutputDir: "/deploy/copy/app", Labeled: true, Groups: []GroupLine{{
			Display: "a.class", Destination: "/src/app/a.class", Status: StatusOK,
			Written: []string{"/deploy/copy/app/dev/a.class"},
		}}},
	}
	want := []LabelSection{{Label: "dev", Entries: []string{"a.class"}}}
	if diff := cmp.Diff(want, buildLabels(repos)); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
}
