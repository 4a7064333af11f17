package state

import (
	"errors"
	"fmt"
)

// ConfigFailureError is a configuration-class fatal: bad config file, bad
// worklist entry, unusable repository table.
type ConfigFailureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *ConfigFailureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("config failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("config failure: %s", e.Message)
}

func (e *ConfigFailureError) Unwrap() error { return e.Cause }

// BuildFailureError is a fatal build of one repository.
type BuildFailureError struct {
	Repository string
	Code       string
	Message    string
	Cause      error
}

func (e *BuildFailureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Repository != "" {
		return fmt.Sprintf("build failure repository=%s: %s", e.Repository, e.Message)
	}
	return fmt.Sprintf("build failure: %s", e.Message)
}

func (e *BuildFailureError) Unwrap() error { return e.Cause }

// WorkspaceFailureError is a fatal filesystem problem with the output tree:
// the output root could not be reset or backed up.
type WorkspaceFailureError struct {
	Repository string
	Code       string
	Message    string
	Cause      error
}

func (e *WorkspaceFailureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("workspace failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("workspace failure: %s", e.Message)
}

func (e *WorkspaceFailureError) Unwrap() error { return e.Cause }

// SystemFailureError covers interruption and anything unclassified.
type SystemFailureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *SystemFailureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("system failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("system failure: %s", e.Message)
}

func (e *SystemFailureError) Unwrap() error { return e.Cause }

// FailureFromError classifies err into the failure taxonomy.
// Unclassified errors become system failures.
func FailureFromError(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}

	var cf *ConfigFailureError
	if errors.As(err, &cf) && cf != nil {
		return Failure{
			FailureClass: FailureClassConfig,
			ErrorCode:    nonEmptyOr(cf.Code, "ConfigFailure"),
			ErrorMessage: nonEmptyOr(cf.Message, cf.Error()),
		}, nil
	}

	var bf *BuildFailureError
	if errors.As(err, &bf) && bf != nil {
		return Failure{
			FailureClass: FailureClassBuild,
			Repository:   optional(bf.Repository),
			ErrorCode:    nonEmptyOr(bf.Code, "BuildFailure"),
			ErrorMessage: nonEmptyOr(bf.Message, bf.Error()),
		}, nil
	}

	var wf *WorkspaceFailureError
	if errors.As(err, &wf) && wf != nil {
		return Failure{
			FailureClass: FailureClassWorkspace,
			Repository:   optional(wf.Repository),
			ErrorCode:    nonEmptyOr(wf.Code, "WorkspaceFailure"),
			ErrorMessage: nonEmptyOr(wf.Message, wf.Error()),
		}, nil
	}

	var sf *SystemFailureError
	if errors.As(err, &sf) && sf != nil {
		return Failure{
			FailureClass: FailureClassSystem,
			ErrorCode:    nonEmptyOr(sf.Code, "SystemFailure"),
			ErrorMessage: nonEmptyOr(sf.Message, sf.Error()),
		}, nil
	}

	return Failure{
		FailureClass: FailureClassSystem,
		ErrorCode:    "UnknownError",
		ErrorMessage: err.Error(),
	}, nil
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
