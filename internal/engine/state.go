package engine

import "fmt"

// RepoState is the runtime processing state of one repository within a run.
type RepoState string

const (
	RepoPending      RepoState = "PENDING"
	RepoBuilding     RepoState = "BUILDING"
	RepoDistributing RepoState = "DISTRIBUTING"
	RepoCompleted    RepoState = "COMPLETED"
	RepoFailed       RepoState = "FAILED"
	RepoSkipped      RepoState = "SKIPPED"
)

// ExecutionState holds per-repository state keyed by repository name.
type ExecutionState map[string]RepoState

// IsTerminal reports whether the state is final.
func IsTerminal(s RepoState) bool {
	switch s {
	case RepoCompleted, RepoFailed, RepoSkipped:
		return true
	default:
		return false
	}
}

// Transition performs a validated transition for a single repository.
//
// The caller supplies the expected prior state so races are observable. The
// map is mutated if and only if the transition is valid.
func Transition(state ExecutionState, repo string, from, to RepoState) error {
	cur, ok := state[repo]
	if !ok {
		return fmt.Errorf("unknown repository in state: %q", repo)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", repo, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", repo, from, to)
	}
	state[repo] = to
	return nil
}

func isAllowedTransition(from, to RepoState) bool {
	switch from {
	case RepoPending:
		return to == RepoBuilding || to == RepoDistributing || to == RepoCompleted || to == RepoSkipped || to == RepoFailed
	case RepoBuilding:
		return to == RepoDistributing || to == RepoCompleted || to == RepoFailed
	case RepoDistributing:
		return to == RepoCompleted || to == RepoFailed
	default:
		return false
	}
}
