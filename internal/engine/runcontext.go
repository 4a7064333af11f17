// Package engine drives one deployment run: build gate, output preparation
// and distribution for every repository, serially or on a bounded pool.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"patchdeploy/internal/build"
	"patchdeploy/internal/core"
	"patchdeploy/internal/deploy"
	"patchdeploy/internal/report"
)

// Builder runs a repository's build.
type Builder interface {
	Build(ctx context.Context, repo *core.Repository) (*build.Result, error)
}

// Distributor copies a repository's destination groups to its targets.
type Distributor interface {
	Distribute(ctx context.Context, repo *core.Repository, groups []*core.DestinationGroup) ([]deploy.Outcome, error)
}

// RunContext is the explicit per-run state shared by every repository task.
//
// It owns the once-per-run backup and the once-per-repository output reset, so
// no package-level flags are needed and concurrent runs never interfere.
type RunContext struct {
	ID             string
	Registry       *core.Registry
	Worklist       *core.Worklist
	Classification *core.Classification

	Builder     Builder
	Distributor Distributor
	Report      *report.Aggregator
	Logger      *zap.Logger

	// CopyDir is backed up into BackupDir before the first output reset
	// when Backup is set.
	CopyDir   string
	BackupDir string
	Backup    bool

	Now func() time.Time

	backupOnce sync.Once
	backupPath string
	backupErr  error

	cleanMu sync.Mutex
	cleaned map[string]bool
}

func (rc *RunContext) now() time.Time {
	if rc.Now != nil {
		return rc.Now()
	}
	return time.Now()
}

func (rc *RunContext) logger() *zap.Logger {
	if rc.Logger == nil {
		return zap.NewNop()
	}
	return rc.Logger
}

// EnsureBackup backs up CopyDir at most once per run. Every caller observes
// the result of the single attempt.
func (rc *RunContext) EnsureBackup() (string, error) {
	if !rc.Backup {
		return "", nil
	}
	rc.backupOnce.Do(func() {
		rc.backupPath, rc.backupErr = deploy.Backup(rc.CopyDir, rc.BackupDir, rc.now())
		if rc.backupErr == nil && rc.backupPath != "" {
			rc.logger().Info("copy directory backed up", zap.String("backup", rc.backupPath))
		}
	})
	return rc.backupPath, rc.backupErr
}

// PrepareOutput resets repo's output directory, at most once per repository
// per run. The backup runs first.
func (rc *RunContext) PrepareOutput(repo *core.Repository) error {
	if _, err := rc.EnsureBackup(); err != nil {
		return err
	}

	rc.cleanMu.Lock()
	defer rc.cleanMu.Unlock()
	if rc.cleaned == nil {
		rc.cleaned = make(map[string]bool)
	}
	if rc.cleaned[repo.Name] {
		return nil
	}
	if err := deploy.ResetDir(repo.OutputDir); err != nil {
		return err
	}
	rc.cleaned[repo.Name] = true
	return nil
}
