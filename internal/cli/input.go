package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
)

const (
	ExitSuccess           = 0
	ExitBuildFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

const (
	DefaultConfigPath = "config/config.yml"
	DefaultEnvFile    = ".env"
)

// Invocation is the canonical description of one run as requested on the
// command line. Empty fields defer to the environment and the config file.
//
// Paths are cleaned and made absolute against the process working directory
// at parse time, so later stages never consult it.
type Invocation struct {
	ConfigPath   string
	WorklistPath string
	EnvFile      string

	Parallel    bool
	ParallelSet bool
	Workers     int

	Verbose  bool
	NoBackup bool
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ExitError carries the exit code of a run that started but did not finish
// cleanly.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// BindFlags registers the invocation flags on fs.
func BindFlags(fs *pflag.FlagSet, inv *Invocation) {
	fs.StringVarP(&inv.ConfigPath, "config", "c", "", "Configuration file (default $PATCHDEPLOY_CONFIG or "+DefaultConfigPath+")")
	fs.StringVarP(&inv.WorklistPath, "worklist", "w", "", "Worklist file; overrides worklist_file")
	fs.StringVar(&inv.EnvFile, "env-file", DefaultEnvFile, "Dotenv file consulted for PATCHDEPLOY_* overrides")
	fs.BoolVarP(&inv.Parallel, "parallel", "p", false, "Process repositories on a bounded worker pool")
	fs.IntVar(&inv.Workers, "workers", 0, "Worker pool size; overrides workers")
	fs.BoolVarP(&inv.Verbose, "verbose", "v", false, "Debug logging on the console")
	fs.BoolVar(&inv.NoBackup, "no-backup", false, "Skip the one-time backup of copy_dir")
}

// ParseInvocation parses CLI flags into a canonical Invocation.
func ParseInvocation(args []string) (Invocation, error) {
	var inv Invocation
	fs := pflag.NewFlagSet("patchdeploy", pflag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed
	BindFlags(fs, &inv)

	if err := fs.Parse(args); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	if fs.NArg() != 0 {
		return Invocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(fs.Args(), " "))
	}
	inv.ParallelSet = fs.Changed("parallel")
	return inv.canonicalize(fs.Changed("workers"))
}

func (inv Invocation) canonicalize(workersSet bool) (Invocation, error) {
	if workersSet && inv.Workers < 1 {
		return Invocation{}, invalidInvocationf("--workers must be >= 1 (got %d)", inv.Workers)
	}

	var err error
	if inv.ConfigPath, err = absPath("--config", inv.ConfigPath); err != nil {
		return Invocation{}, err
	}
	if inv.WorklistPath, err = absPath("--worklist", inv.WorklistPath); err != nil {
		return Invocation{}, err
	}
	if inv.EnvFile, err = absPath("--env-file", inv.EnvFile); err != nil {
		return Invocation{}, err
	}
	return inv, nil
}

func absPath(flag, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", nil
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", invalidInvocationf("%s must not be '.'", flag)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return "", invalidInvocationf("%s: %v", flag, err)
	}
	return abs, nil
}

// ExitCode extracts the semantic exit code from an error returned by this
// package. Unknown errors map to ExitInternalError.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr != nil && exitErr.Code != 0 {
		return exitErr.Code
	}
	return ExitInternalError
}
