// Package build decides whether a repository must be rebuilt before its
// artifacts are distributed, and runs the external build tool.
package build

import (
	"patchdeploy/internal/core"
)

// Decision is the outcome of the build gate.
type Decision string

const (
	Skip Decision = "SKIP"
	Run  Decision = "RUN"
)

// GateResult explains a gate decision.
type GateResult struct {
	Decision Decision

	// Reason is a short human-readable explanation.
	Reason string

	// Trigger is the first worklist path under the repository root, when any.
	Trigger string
}

// Decide returns RUN iff the repository is enabled, declares a build file, and
// at least one canonical worklist path lies under its root.
//
// paths must be canonical; Worklist.Paths returns them sorted, which makes
// Trigger deterministic.
func Decide(repo *core.Repository, paths []string) GateResult {
	switch {
	case !repo.Enabled:
		return GateResult{Decision: Skip, Reason: "repository disabled"}
	case repo.BuildFile == "":
		return GateResult{Decision: Skip, Reason: "no build file"}
	}
	for _, p := range paths {
		if _, ok := core.Within(repo.Root, p); ok {
			return GateResult{Decision: Run, Reason: "worklist touches repository", Trigger: p}
		}
	}
	return GateResult{Decision: Skip, Reason: "no worklist path under root"}
}
