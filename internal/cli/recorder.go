package cli

import (
	"time"

	"go.uber.org/zap"

	"patchdeploy/internal/state"
)

// recorder persists run records on a best-effort basis: a run is never
// aborted because its record could not be written.
type recorder struct {
	rec    *state.RunRecorder
	now    func() time.Time
	logger *zap.Logger
}

func newRecorder(logsDir string, now func() time.Time, logger *zap.Logger) *recorder {
	r := &recorder{now: now, logger: logger}
	st, err := state.NewStore(logsDir)
	if err != nil {
		logger.Warn("run records disabled", zap.Error(err))
		return r
	}
	r.rec = &state.RunRecorder{Store: st, Now: now}
	return r
}

func (r *recorder) start(run state.Run) state.Run {
	if r.rec == nil {
		run.StartTime = r.now().UTC()
		return run
	}
	started, err := r.rec.StartRun(run)
	if err != nil {
		r.logger.Warn("recording run start", zap.Error(err))
		run.StartTime = r.now().UTC()
		return run
	}
	return started
}

func (r *recorder) finish(run state.Run, status state.RunStatus, counts *state.RunCounts) {
	if r.rec == nil {
		return
	}
	if _, err := r.rec.FinishRun(run, status, counts); err != nil {
		r.logger.Warn("recording run finish", zap.Error(err))
	}
}

func (r *recorder) fail(run state.Run, err error) {
	if r.rec == nil {
		return
	}
	if rerr := r.rec.RecordFailure(run.RunID, err); rerr != nil {
		r.logger.Warn("recording failure", zap.Error(rerr))
	}
	r.finish(run, state.RunStatusFailed, nil)
}

func (r *recorder) saveReport(runID string, rep any) {
	if r.rec == nil {
		return
	}
	if err := r.rec.Store.SaveReport(runID, rep); err != nil {
		r.logger.Warn("recording report", zap.Error(err))
	}
}
