package report

import (
	"bytes"
	"fmt"
	"io"
)

const (
	heavyRule = "================================="
	lightRule = "---------------------------------"

	// TimestampLayout is the layout of the report header line.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Render writes the text form of r to w in a single Write call.
func Render(w io.Writer, r Report) error {
	var b bytes.Buffer

	fmt.Fprintf(&b, "> %s\n", r.Started.Format(TimestampLayout))

	for _, repo := range r.Repositories {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s\n[%s]\n%s\n", heavyRule, repo.Name, lightRule)
		fmt.Fprintf(&b, "state: %s\n", repo.State)
		fmt.Fprintf(&b, "base: %s\n", repo.Base)
		for _, t := range repo.Targets {
			fmt.Fprintf(&b, "target: %s\n", t)
		}
		if repo.Build != "" {
			fmt.Fprintf(&b, "build: %s\n", repo.Build)
		}
		b.WriteString(lightRule + "\n")
		for _, l := range repo.Groups {
			writeLine(&b, l)
		}
		total, success, fail := repo.Totals()
		fmt.Fprintf(&b, "total: %s, success: %s, fail: %s\n", total, success, fail)
		b.WriteString(heavyRule + "\n")
	}

	if len(r.Unmapped) > 0 {
		fmt.Fprintf(&b, "\n%s\n[UNMAPPED]\n%s\n", heavyRule, lightRule)
		for _, l := range r.Unmapped {
			writeLine(&b, l)
		}
		b.WriteString(heavyRule + "\n")
	}

	if len(r.Labels) > 0 {
		fmt.Fprintf(&b, "\n%s\n[LABELS]\n%s\n", heavyRule, lightRule)
		for _, sec := range r.Labels {
			b.WriteString(sec.Label + "\n")
			for _, e := range sec.Entries {
				fmt.Fprintf(&b, "    %s\n", e)
			}
		}
		b.WriteString(heavyRule + "\n")
	}

	s := r.Summary
	fmt.Fprintf(&b, "\ntotal: %s, success: %s, fail: %s, unmapped: %s, skipped: %s, excluded: %s\n",
		s.Total, s.Success, s.Fail, s.Unmapped, s.Skipped, s.Excluded)

	_, err := w.Write(b.Bytes())
	return err
}

func (c Counts) String() string {
	return fmt.Sprintf("%d/%d", c.Groups, c.Raw)
}

func writeLine(b *bytes.Buffer, l GroupLine) {
	fmt.Fprintf(b, "[%s] %s (%d)\n", l.Status.Marker(), l.Display, l.Raw)
	for _, w := range l.Written {
		fmt.Fprintf(b, "    -> %s\n", w)
	}
	for _, e := range l.Errors {
		fmt.Fprintf(b, "    : %s\n", e)
	}
	for _, c := range l.Contributors {
		fmt.Fprintf(b, "    %s,%d\n", c.Literal, c.Count)
	}
}
