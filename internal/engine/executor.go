package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"patchdeploy/internal/build"
	"patchdeploy/internal/core"
	"patchdeploy/internal/deploy"
	"patchdeploy/internal/report"
	"patchdeploy/internal/state"
)

// Executor processes every repository of a RunContext.
//
// All state reads and writes are synchronized by mu; builds and copies run
// outside the lock.
type Executor struct {
	rc    *RunContext
	repos []*core.Repository
	paths []string

	mu    sync.Mutex
	state ExecutionState
}

// NewExecutor validates rc and initializes every repository to PENDING.
func NewExecutor(rc *RunContext) (*Executor, error) {
	switch {
	case rc == nil:
		return nil, errors.New("nil RunContext")
	case rc.Registry == nil || rc.Worklist == nil || rc.Classification == nil:
		return nil, errors.New("RunContext requires Registry, Worklist and Classification")
	case rc.Builder == nil || rc.Distributor == nil || rc.Report == nil:
		return nil, errors.New("RunContext requires Builder, Distributor and Report")
	}

	e := &Executor{
		rc:    rc,
		repos: rc.Registry.Repositories(),
		paths: rc.Worklist.Paths(),
		state: make(ExecutionState),
	}
	for _, r := range e.repos {
		e.state[r.Name] = RepoPending
	}
	return e, nil
}

// StateSnapshot returns a copy of the current per-repository state.
func (e *Executor) StateSnapshot() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(ExecutionState, len(e.state))
	for k, v := range e.state {
		out[k] = v
	}
	return out
}

// Run records the unmapped groups and processes every repository, on a pool
// of workers goroutines when parallel is set.
func (e *Executor) Run(ctx context.Context, parallel bool, workers int) error {
	var unmapped []report.GroupLine
	for _, g := range e.rc.Classification.Unmapped {
		line := report.NewGroupLine(g, g.Destination)
		line.Status = report.StatusFailed
		unmapped = append(unmapped, line)
	}
	e.rc.Report.RecordUnmapped(unmapped...)

	if parallel {
		return e.RunParallel(ctx, workers)
	}
	return e.RunSerial(ctx)
}

// RunSerial processes repositories one at a time in configured order and
// stops at the first fatal error.
func (e *Executor) RunSerial(ctx context.Context) error {
	for _, repo := range e.repos {
		if err := e.processRepository(ctx, repo); err != nil {
			return err
		}
	}
	return nil
}

// RunParallel processes repositories on at most workers goroutines. The
// first fatal error cancels every in-flight repository and is returned.
func (e *Executor) RunParallel(ctx context.Context, workers int) error {
	if workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", workers)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, repo := range e.repos {
		repo := repo
		g.Go(func() error {
			return e.processRepository(gctx, repo)
		})
	}
	return g.Wait()
}

func (e *Executor) transition(name string, from, to RepoState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Transition(e.state, name, from, to)
}

// processRepository runs the build gate, resets the output directory and
// distributes the repository's groups. Only fatal errors are returned.
func (e *Executor) processRepository(ctx context.Context, repo *core.Repository) error {
	if err := ctx.Err(); err != nil {
		return &state.SystemFailureError{Code: "Interrupted", Message: err.Error(), Cause: err}
	}

	log := e.rc.logger().With(zap.String("repo", repo.Name))
	groups := e.rc.Classification.Bucket(repo.Name)

	rr := report.RepositoryReport{
		Name:      repo.Name,
		Base:      repo.Base,
		OutputDir: repo.OutputDir,
		Targets:   repo.TargetRoots(),
		Labeled:   len(repo.Targets) > 0,
	}

	if !repo.Enabled {
		rr.State = report.StateDisabled
		for _, g := range groups {
			line := report.NewGroupLine(g, displayPath(repo, g))
			line.Status = report.StatusSkipped
			rr.Groups = append(rr.Groups, line)
		}
		e.rc.Report.Record(rr)
		log.Info("repository disabled", zap.Int("groups", len(groups)))
		return e.transition(repo.Name, RepoPending, RepoSkipped)
	}

	cur := RepoPending
	gate := build.Decide(repo, e.paths)
	rr.Build = string(gate.Decision)
	log.Debug("build gate", zap.String("decision", string(gate.Decision)), zap.String("reason", gate.Reason), zap.String("trigger", gate.Trigger))

	if gate.Decision == build.Run {
		if err := e.transition(repo.Name, cur, RepoBuilding); err != nil {
			return err
		}
		cur = RepoBuilding
		res, err := e.rc.Builder.Build(ctx, repo)
		if err != nil {
			_ = e.transition(repo.Name, cur, RepoFailed)
			return buildFailure(repo.Name, err)
		}
		rr.Build = fmt.Sprintf("RUN (exit %d)", res.ExitCode)
	}

	if len(groups) == 0 {
		rr.State = report.StateEmpty
		e.rc.Report.Record(rr)
		log.Info("no artifacts assigned")
		return e.transition(repo.Name, cur, RepoCompleted)
	}
	rr.State = report.StateActive

	var copyable []*core.DestinationGroup
	for _, g := range groups {
		display := displayPath(repo, g)
		if !repo.Excluded(display) {
			copyable = append(copyable, g)
			continue
		}
		line := report.NewGroupLine(g, display)
		line.Status = report.StatusExcluded
		rr.Groups = append(rr.Groups, line)
	}
	if len(copyable) == 0 {
		e.rc.Report.Record(rr)
		log.Info("every artifact excluded", zap.Int("excluded", len(rr.Groups)))
		return e.transition(repo.Name, cur, RepoCompleted)
	}
	excluded := len(rr.Groups)

	if err := e.rc.PrepareOutput(repo); err != nil {
		_ = e.transition(repo.Name, cur, RepoFailed)
		return &state.WorkspaceFailureError{Repository: repo.Name, Code: "OutputReset", Message: err.Error(), Cause: err}
	}

	if err := e.transition(repo.Name, cur, RepoDistributing); err != nil {
		return err
	}
	outcomes, err := e.rc.Distributor.Distribute(ctx, repo, copyable)
	for _, o := range outcomes {
		rr.Groups = append(rr.Groups, groupLine(repo, o))
	}
	e.rc.Report.Record(rr)
	if err != nil {
		_ = e.transition(repo.Name, RepoDistributing, RepoFailed)
		return &state.SystemFailureError{Code: "Interrupted", Message: err.Error(), Cause: err}
	}

	total, success, fail := rr.Totals()
	log.Info("repository distributed",
		zap.Int("groups", total.Groups),
		zap.Int("success", success.Groups),
		zap.Int("fail", fail.Groups),
		zap.Int("excluded", excluded))
	return e.transition(repo.Name, RepoDistributing, RepoCompleted)
}

func buildFailure(repo string, err error) error {
	if errors.Is(err, build.ErrCancelled) {
		return &state.SystemFailureError{Code: "Interrupted", Message: err.Error(), Cause: err}
	}
	code := "BuildFailed"
	switch {
	case errors.Is(err, build.ErrToolNotFound):
		code = "BuildToolNotFound"
	case errors.Is(err, build.ErrBuildFileNotFound):
		code = "BuildFileNotFound"
	}
	return &state.BuildFailureError{Repository: repo, Code: code, Message: err.Error(), Cause: err}
}

func displayPath(repo *core.Repository, g *core.DestinationGroup) string {
	if rel, ok := core.Within(repo.Base, g.Destination); ok {
		return rel
	}
	return g.Destination
}

func groupLine(repo *core.Repository, o deploy.Outcome) report.GroupLine {
	display := o.Relative
	if display == "" {
		display = displayPath(repo, o.Group)
	}
	line := report.NewGroupLine(o.Group, display)
	line.Status = report.StatusFailed
	if o.OK() {
		line.Status = report.StatusOK
	}
	line.Written = o.Written()
	for _, err := range o.Errors() {
		line.Errors = append(line.Errors, err.Error())
	}
	return line
}
