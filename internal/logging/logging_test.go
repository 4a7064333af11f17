package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_ConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "patchdeploy.log")

	logger, closeFn, err := New(Options{File: file, Console: &console})
	require.NoError(t, err)
	logger.Debug("hidden on console", zap.String("repo", "web"))
	logger.Info("copied", zap.String("repo", "web"))
	closeFn()

	assert.Contains(t, console.String(), "copied")
	assert.NotContains(t, console.String(), "hidden on console")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "the file receives debug entries")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "copied", entry["msg"])
	assert.Equal(t, "web", entry["repo"])
}

func TestNew_Verbose(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn, err := New(Options{Verbose: true, Console: &console})
	require.NoError(t, err)
	logger.Debug("gate decided")
	closeFn()
	assert.Contains(t, console.String(), "gate decided")
}

func TestTeeReport(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "summary.log")
	b := filepath.Join(dir, "b.log")
	require.NoError(t, os.WriteFile(b, []byte("old contents"), 0o644))

	var stdout bytes.Buffer
	require.NoError(t, TeeReport(&stdout, []byte("report\n"), []string{a, b, a}))

	assert.Equal(t, "report\n", stdout.String())
	for _, p := range []string{a, b} {
		got, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "report\n", string(got), p)
	}
}

func TestTeeReport_UnwritableFileDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	bad := filepath.Join(blocker, "summary.log")
	good := filepath.Join(dir, "good.log")

	var stdout bytes.Buffer
	err := TeeReport(&stdout, []byte("report\n"), []string{bad, good})
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)

	assert.Equal(t, "report\n", stdout.String(), "stdout is written first")
	got, rerr := os.ReadFile(good)
	require.NoError(t, rerr)
	assert.Equal(t, "report\n", string(got))
}
