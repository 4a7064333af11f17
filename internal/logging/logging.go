// Package logging builds the run's zap logger and duplicates the text report
// to its files.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// Verbose lowers the console level to debug.
	Verbose bool

	// File, when set, receives every entry at debug level as JSON.
	File string

	// Console defaults to os.Stderr.
	Console io.Writer
}

// New returns a logger writing human-readable entries to the console and,
// optionally, JSON entries to a log file. The returned func syncs and closes
// the file.
func New(opts Options) (*zap.Logger, func(), error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Verbose {
		level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), level),
	}

	closeFile := func() {}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		fileCfg := zap.NewProductionConfig().EncoderConfig
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), zapcore.DebugLevel))
		closeFile = func() { _ = f.Close() }
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger, func() {
		_ = logger.Sync()
		closeFile()
	}, nil
}

// TeeReport writes report to stdout and then to each of files. Files are
// truncated and missing parent directories are created.
//
// Every destination is independent: a file that cannot be written never
// suppresses stdout or the remaining files. The returned error joins the
// failures.
func TeeReport(stdout io.Writer, report []byte, files []string) error {
	var errs []error
	if _, err := stdout.Write(report); err != nil {
		errs = append(errs, fmt.Errorf("report to stdout: %w", err))
	}

	seen := make(map[string]bool, len(files))
	for _, p := range files {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if err := writeReportFile(p, report); err != nil {
			errs = append(errs, fmt.Errorf("report file %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func writeReportFile(path string, report []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, report, 0o644)
}
