package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunRecorder maintains the run.json and failure.json records of runs.
type RunRecorder struct {
	Store *Store

	// Now defaults to time.Now.
	Now func() time.Time
}

func (r *RunRecorder) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// StartRun persists run with status running.
func (r *RunRecorder) StartRun(run Run) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("Store is required")
	}
	if run.StartTime.IsZero() {
		run.StartTime = r.now()
	}
	run.Status = RunStatusRunning
	run.FinishTime = nil
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// FinishRun persists the terminal status and counts of run.
func (r *RunRecorder) FinishRun(run Run, status RunStatus, counts *RunCounts) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("Store is required")
	}
	if status != RunStatusCompleted && status != RunStatusFailed {
		return Run{}, fmt.Errorf("status %q is not terminal", status)
	}
	t := r.now()
	run.Status = status
	run.FinishTime = &t
	run.Counts = counts
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// RecordFailure classifies err and writes failure.json for runID.
func (r *RunRecorder) RecordFailure(runID string, err error) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	f, ferr := FailureFromError(err)
	if ferr != nil {
		return ferr
	}
	return r.Store.SaveFailure(runID, f)
}
