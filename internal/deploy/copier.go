// Package deploy writes destination groups into their repository's targets.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"
	"go.uber.org/zap"

	"patchdeploy/internal/core"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrNotRegular  = errors.New("not a regular file")
	ErrOutsideBase = errors.New("destination is outside the repository base")
)

// TargetResult is the outcome of writing one group to one target.
type TargetResult struct {
	Root string
	Path string
	Err  error
}

// Outcome is the result of distributing one destination group.
type Outcome struct {
	Group *core.DestinationGroup

	// Relative is the destination relative to the repository base, slash-separated.
	Relative string

	// Targets holds one result per target, in configured target order.
	Targets []TargetResult

	// Err is a group-level failure that prevented any copy.
	Err error
}

// OK reports whether at least one target received the artifact.
func (o Outcome) OK() bool {
	if o.Err != nil {
		return false
	}
	for _, t := range o.Targets {
		if t.Err == nil {
			return true
		}
	}
	return false
}

// Written returns the paths that were written successfully.
func (o Outcome) Written() []string {
	var out []string
	for _, t := range o.Targets {
		if t.Err == nil {
			out = append(out, t.Path)
		}
	}
	return out
}

// Errors returns every failure attached to the outcome.
func (o Outcome) Errors() []error {
	var out []error
	if o.Err != nil {
		out = append(out, o.Err)
	}
	for _, t := range o.Targets {
		if t.Err != nil {
			out = append(out, t.Err)
		}
	}
	return out
}

// CopyFunc copies one file from src to dst, creating parent directories.
type CopyFunc func(src, dst string) error

// CopyPreservingTimes copies a file keeping its modification time. Symbolic
// links are followed so targets always receive file content.
func CopyPreservingTimes(src, dst string) error {
	return cp.Copy(src, dst, cp.Options{
		PreserveTimes: true,
		OnSymlink:     func(string) cp.SymlinkAction { return cp.Deep },
	})
}

// Copier distributes destination groups to every target of a repository.
type Copier struct {
	copy   CopyFunc
	logger *zap.Logger
}

// NewCopier returns a Copier using CopyPreservingTimes.
func NewCopier(logger *zap.Logger) *Copier {
	return NewCopierWith(CopyPreservingTimes, logger)
}

// NewCopierWith returns a Copier using the given copy function.
func NewCopierWith(fn CopyFunc, logger *zap.Logger) *Copier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Copier{copy: fn, logger: logger}
}

// CopyGroup writes g's destination file into each of repo's targets.
//
// A missing or non-regular destination fails the group without touching any
// target. Otherwise targets fail independently: a failed write never prevents
// the remaining targets from being attempted.
func (c *Copier) CopyGroup(repo *core.Repository, g *core.DestinationGroup) Outcome {
	out := Outcome{Group: g}

	rel, ok := core.Within(repo.Base, g.Destination)
	if !ok {
		out.Err = fmt.Errorf("%w: %s", ErrOutsideBase, g.Destination)
		return out
	}
	out.Relative = rel

	info, err := os.Stat(g.Destination)
	switch {
	case errors.Is(err, os.ErrNotExist):
		out.Err = fmt.Errorf("%w: %s", ErrNotFound, g.Destination)
		return out
	case err != nil:
		out.Err = err
		return out
	case !info.Mode().IsRegular():
		out.Err = fmt.Errorf("%w: %s", ErrNotRegular, g.Destination)
		return out
	}

	for _, root := range repo.TargetRoots() {
		dst := filepath.Join(root, filepath.FromSlash(rel))
		tr := TargetResult{Root: root, Path: dst}
		if err := c.copy(g.Destination, dst); err != nil {
			tr.Err = fmt.Errorf("copy to %s: %w", dst, err)
			c.logger.Warn("copy failed",
				zap.String("repository", repo.Name),
				zap.String("source", g.Destination),
				zap.String("target", dst),
				zap.Error(err))
		} else {
			c.logger.Debug("copied",
				zap.String("repository", repo.Name),
				zap.String("source", g.Destination),
				zap.String("target", dst))
		}
		out.Targets = append(out.Targets, tr)
	}
	return out
}

// Distribute copies every group in order. It stops early only when ctx is
// cancelled, returning the outcomes produced so far and ctx's error.
func (c *Copier) Distribute(ctx context.Context, repo *core.Repository, groups []*core.DestinationGroup) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, c.CopyGroup(repo, g))
	}
	return outcomes, nil
}
