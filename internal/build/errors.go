package build

import (
	"errors"
	"fmt"
)

var (
	ErrToolNotFound      = errors.New("build tool not found")
	ErrBuildFileNotFound = errors.New("build file not found")
	ErrBuildFailed       = errors.New("build failed")
	ErrCancelled         = errors.New("build cancelled")
)

// Error is a fatal build failure for one repository.
type Error struct {
	Repository string
	Path       string

	// ExitCode is set when Err is ErrBuildFailed.
	ExitCode int

	// Output is the combined stdout/stderr of the build, when it ran.
	Output []byte

	Err error
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Err, ErrBuildFailed):
		return fmt.Sprintf("repository %s: build failed with exit code %d", e.Repository, e.ExitCode)
	case e.Path != "":
		return fmt.Sprintf("repository %s: %v: %s", e.Repository, e.Err, e.Path)
	default:
		return fmt.Sprintf("repository %s: %v", e.Repository, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }
