package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"patchdeploy/internal/core"
)

// Result is a completed build.
type Result struct {
	Tool      string
	BuildFile string

	// Output is the combined stdout/stderr stream.
	Output   []byte
	ExitCode int
}

// Runner invokes the external build tool in a repository root.
type Runner struct {
	// Tool is a command name looked up in PATH, or a path to an executable.
	Tool string

	// Args precede the build file on the command line.
	Args []string

	// Echo receives each build's combined output after it finishes. Writes
	// are serialized so parallel builds never interleave.
	Echo io.Writer

	Logger *zap.Logger

	mu sync.Mutex
}

// NewRunner returns a Runner for tool.
func NewRunner(tool string, args []string, echo io.Writer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Tool: tool, Args: args, Echo: echo, Logger: logger}
}

// Preflight resolves the tool and the repository's build file without running anything.
func (r *Runner) Preflight(repo *core.Repository) (tool, buildFile string, err error) {
	tool, err = exec.LookPath(r.Tool)
	if err != nil {
		return "", "", &Error{Repository: repo.Name, Path: r.Tool, Err: ErrToolNotFound}
	}
	// The command runs in the repository root; a tool found relative to the
	// working directory must stay the same file there.
	if abs, absErr := filepath.Abs(tool); absErr == nil {
		tool = abs
	}

	buildFile = repo.BuildFilePath()
	info, statErr := os.Stat(buildFile)
	if statErr != nil || info.IsDir() {
		return "", "", &Error{Repository: repo.Name, Path: buildFile, Err: ErrBuildFileNotFound}
	}
	return tool, buildFile, nil
}

// Build runs the build tool for repo in its root directory.
//
// A missing tool, a missing build file and a non-zero exit are all returned as
// *Error. Cancelling ctx kills the whole process group.
func (r *Runner) Build(ctx context.Context, repo *core.Repository) (*Result, error) {
	tool, buildFile, err := r.Preflight(repo)
	if err != nil {
		return nil, err
	}

	args := append(append([]string{}, r.Args...), buildFile)
	cmd := exec.Command(tool, args...)
	cmd.Dir = repo.Root
	setProcessGroup(cmd)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	r.Logger.Info("build starting",
		zap.String("repository", repo.Name),
		zap.String("tool", tool),
		zap.String("build_file", buildFile))

	if err := cmd.Start(); err != nil {
		return nil, &Error{Repository: repo.Name, Path: tool, Err: fmt.Errorf("%w: %v", ErrToolNotFound, err)}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		return nil, &Error{Repository: repo.Name, Output: out.Bytes(), Err: fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())}
	case err = <-done:
	}

	res := &Result{Tool: tool, BuildFile: buildFile, Output: out.Bytes()}
	r.echo(repo.Name, res.Output)

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &Error{Repository: repo.Name, Output: res.Output, Err: fmt.Errorf("%w: %v", ErrBuildFailed, err)}
		}
		res.ExitCode = exitErr.ExitCode()
		r.Logger.Error("build failed", zap.String("repository", repo.Name), zap.Int("exit_code", res.ExitCode))
		return res, &Error{Repository: repo.Name, ExitCode: res.ExitCode, Output: res.Output, Err: ErrBuildFailed}
	}

	r.Logger.Info("build finished", zap.String("repository", repo.Name))
	return res, nil
}

func (r *Runner) echo(repo string, output []byte) {
	if r.Echo == nil || len(output) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Echo, "--- build output: %s ---\n", repo)
	r.Echo.Write(output)
	if output[len(output)-1] != '\n' {
		io.WriteString(r.Echo, "\n")
	}
}
