package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"patchdeploy/internal/build"
	"patchdeploy/internal/config"
	"patchdeploy/internal/core"
	"patchdeploy/internal/deploy"
	"patchdeploy/internal/engine"
	"patchdeploy/internal/logging"
	"patchdeploy/internal/report"
	"patchdeploy/internal/state"
)

const (
	logFileName     = "patchdeploy.log"
	summaryFileName = "summary.log"
)

// Result is the outcome of Execute.
type Result struct {
	ExitCode int
	RunID    string

	// Report is nil when the run stopped before distribution finished.
	Report *report.Report

	// ReportErr is set when the rendered report reached stdout but not every
	// report file.
	ReportErr error
}

// Environment holds the process-level dependencies of a run.
type Environment struct {
	Stdout io.Writer
	Stderr io.Writer

	// Now defaults to time.Now.
	Now func() time.Time
}

func (env Environment) withDefaults() Environment {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	if env.Now == nil {
		env.Now = time.Now
	}
	return env
}

// Execute runs inv against the process streams.
func Execute(ctx context.Context, inv Invocation) (Result, error) {
	return ExecuteWith(ctx, inv, Environment{})
}

// ExecuteWith maps an Invocation to a complete deployment run.
//
// Responsibilities:
//   - Resolve the configuration from flags, environment, dotenv file and
//     config file, in that order of precedence.
//   - Record the run under the logs directory before any side effect and
//     finalize the record on every exit path.
//   - Render the report to stdout and the report files.
//   - Translate outcomes to semantic exit codes.
func ExecuteWith(ctx context.Context, inv Invocation, env Environment) (res Result, execErr error) {
	res.ExitCode = ExitInternalError
	env = env.withDefaults()
	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitInternalError
			execErr = fmt.Errorf("internal error: %v", r)
		}
	}()

	cfg, configPath, err := resolveConfig(inv)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	logger, closeLog, err := logging.New(logging.Options{
		Verbose: inv.Verbose,
		File:    filepath.Join(cfg.LogsPath(), logFileName),
		Console: env.Stderr,
	})
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	defer closeLog()

	rec := newRecorder(cfg.LogsPath(), env.Now, logger)
	mode := state.ExecutionModeSerial
	if cfg.Parallel {
		mode = state.ExecutionModeParallel
	}
	run := rec.start(state.Run{
		RunID:        state.NewRunID(),
		Mode:         mode,
		Workers:      cfg.Workers,
		ConfigPath:   configPath,
		WorklistPath: cfg.Resolve(cfg.WorklistFile),
	})
	res.RunID = run.RunID
	logger = logger.With(zap.String("run", run.RunID))
	logger.Info("run started",
		zap.String("config", configPath),
		zap.String("mode", string(mode)),
		zap.Int("workers", cfg.Workers))

	fail := func(code int, err error) (Result, error) {
		rec.fail(run, err)
		logger.Error("run failed", zap.Error(err))
		res.ExitCode = code
		return res, err
	}

	reg, err := core.NewRegistry(cfg.CoreRepositories())
	if err != nil {
		return fail(ExitConfigError, &state.ConfigFailureError{Code: "RepositoryTable", Message: err.Error(), Cause: err})
	}

	wl, err := loadWorklist(cfg)
	if err != nil {
		return fail(ExitConfigError, &state.ConfigFailureError{Code: "WorklistInvalid", Message: err.Error(), Cause: err})
	}
	logger.Info("worklist loaded", zap.Int("entries", wl.Len()), zap.Int("lines", wl.RawCount()))

	var order []string
	for _, r := range reg.Repositories() {
		order = append(order, r.Name)
	}
	rc := &engine.RunContext{
		ID:             run.RunID,
		Registry:       reg,
		Worklist:       wl,
		Classification: reg.Pipeline(wl),
		Builder:        build.NewRunner(cfg.BuildToolPath(), cfg.BuildArgs, env.Stdout, logger),
		Distributor:    deploy.NewCopier(logger),
		Report:         report.NewAggregator(order),
		Logger:         logger,
		CopyDir:        cfg.CopyPath(),
		BackupDir:      cfg.BackupPath(),
		Backup:         cfg.BackupEnabled(),
		Now:            env.Now,
	}
	exec, err := engine.NewExecutor(rc)
	if err != nil {
		return fail(ExitInternalError, &state.SystemFailureError{Code: "ExecutorInit", Message: err.Error(), Cause: err})
	}

	if err := exec.Run(ctx, cfg.Parallel, cfg.Workers); err != nil {
		return fail(fatalExitCode(err), err)
	}

	rep := rc.Report.Report(run.RunID, run.StartTime.In(time.Local))
	res.Report = &rep

	files := make([]string, 0, len(cfg.ReportFiles)+1)
	files = append(files, filepath.Join(cfg.LogsPath(), summaryFileName))
	for _, f := range cfg.ReportFiles {
		files = append(files, cfg.Resolve(f))
	}
	var text bytes.Buffer
	if err := report.Render(&text, rep); err != nil {
		return fail(ExitInternalError, &state.SystemFailureError{Code: "ReportRender", Message: err.Error(), Cause: err})
	}
	// Artifacts are already distributed; a report file that cannot be written
	// is logged and does not change the outcome.
	if err := logging.TeeReport(env.Stdout, text.Bytes(), files); err != nil {
		res.ReportErr = err
		logger.Warn("report not written everywhere", zap.Error(err))
	}
	rec.saveReport(run.RunID, rep)

	rec.finish(run, state.RunStatusCompleted, &state.RunCounts{
		Total:    rep.Summary.Total.Groups,
		Success:  rep.Summary.Success.Groups,
		Fail:     rep.Summary.Fail.Groups,
		Unmapped: rep.Summary.Unmapped.Groups,
		Skipped:  rep.Summary.Skipped.Groups,
		Excluded: rep.Summary.Excluded.Groups,
	})
	logger.Info("run completed",
		zap.String("total", rep.Summary.Total.String()),
		zap.String("success", rep.Summary.Success.String()),
		zap.String("fail", rep.Summary.Fail.String()))

	res.ExitCode = ExitSuccess
	return res, nil
}

// resolveConfig loads the configuration file and applies the dotenv,
// environment and flag overrides before validating the result.
func resolveConfig(inv Invocation) (*config.Config, string, error) {
	lookup, err := config.EnvLookup(inv.EnvFile)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", inv.EnvFile, err)
	}

	path := inv.ConfigPath
	if path == "" {
		if v, ok := lookup(config.EnvConfig); ok && v != "" {
			path = v
		} else {
			path = DefaultConfigPath
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, path, err
	}
	if inv.WorklistPath != "" {
		cfg.WorklistFile = inv.WorklistPath
	}
	if inv.ParallelSet {
		cfg.Parallel = inv.Parallel
	}
	if inv.Workers > 0 {
		cfg.Workers = inv.Workers
	}
	if inv.NoBackup {
		off := false
		cfg.Backup = &off
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// loadWorklist reads the worklist file, if any, followed by every
// repository's copy_list.
func loadWorklist(cfg *config.Config) (*core.Worklist, error) {
	l := core.NewWorklistLoader()
	if cfg.WorklistFile != "" {
		if err := l.ReadFile(cfg.Resolve(cfg.WorklistFile)); err != nil {
			return nil, err
		}
	}
	for i, p := range cfg.CopyList() {
		if err := l.AddLine("copy_list", i+1, p); err != nil {
			return nil, err
		}
	}
	return l.Worklist(), nil
}

func fatalExitCode(err error) int {
	var (
		bf *state.BuildFailureError
		cf *state.ConfigFailureError
		wf *state.WorkspaceFailureError
	)
	switch {
	case errors.As(err, &bf):
		return ExitBuildFailure
	case errors.As(err, &cf), errors.As(err, &wf):
		return ExitConfigError
	default:
		return ExitInternalError
	}
}
