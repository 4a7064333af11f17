package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type ExecutionMode string

const (
	ExecutionModeSerial   ExecutionMode = "serial"
	ExecutionModeParallel ExecutionMode = "parallel"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunCounts mirrors the report summary line.
type RunCounts struct {
	Total    int `json:"total"`
	Success  int `json:"success"`
	Fail     int `json:"fail"`
	Unmapped int `json:"unmapped"`
	Skipped  int `json:"skipped"`
	Excluded int `json:"excluded"`
}

// Run is the persisted metadata of one deployment run.
//
// FinishTime and Counts are null until the run ends.
type Run struct {
	RunID        string        `json:"run_id"`
	StartTime    time.Time     `json:"start_time"`
	FinishTime   *time.Time    `json:"finish_time"`
	Mode         ExecutionMode `json:"mode"`
	Workers      int           `json:"workers"`
	ConfigPath   string        `json:"config_path"`
	WorklistPath string        `json:"worklist_path"`
	Status       RunStatus     `json:"status"`
	Counts       *RunCounts    `json:"counts"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Mode {
	case ExecutionModeSerial, ExecutionModeParallel:
	default:
		errs = append(errs, fmt.Errorf("invalid mode %q", r.Mode))
	}
	if r.Workers < 1 {
		errs = append(errs, errors.New("workers must be >= 1"))
	}
	switch r.Status {
	case RunStatusRunning:
	case RunStatusCompleted, RunStatusFailed:
		if r.FinishTime == nil {
			errs = append(errs, fmt.Errorf("finish_time is required for status %q", r.Status))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	FailureClassConfig    FailureClass = "config"
	FailureClassBuild     FailureClass = "build"
	FailureClassWorkspace FailureClass = "workspace"
	FailureClassSystem    FailureClass = "system"
)

// Failure is the recorded reason a run terminated early.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Repository   *string      `json:"repository,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassConfig, FailureClassBuild, FailureClassWorkspace, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.Repository != nil && strings.TrimSpace(*f.Repository) == "" {
		errs = append(errs, errors.New("repository must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
