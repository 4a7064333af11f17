package state

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_SaveAndLoadRun_FinishTimeNullWhileRunning(t *testing.T) {
	base := t.TempDir()
	store, err := NewStore(base)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	run := Run{
		RunID:     "run-123",
		StartTime: time.Unix(1, 2).UTC(),
		Mode:      ExecutionModeSerial,
		Workers:   1,
		Status:    RunStatusRunning,
	}
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(base, "runs", "run-123", "run.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "\"finish_time\": null") {
		t.Fatalf("expected finish_time to be null; got: %s", string(data))
	}

	loaded, err := store.LoadRun("run-123")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if loaded.RunID != run.RunID || loaded.Mode != ExecutionModeSerial || loaded.FinishTime != nil {
		t.Fatalf("loaded run mismatch: %+v", loaded)
	}
}

func TestStore_RejectsInvalidRun(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	err := store.SaveRun(Run{RunID: "r", StartTime: time.Now(), Mode: "fast", Workers: 0, Status: RunStatusCompleted})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"invalid mode", "workers", "finish_time"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestStore_LoadRejectsUnknownFields(t *testing.T) {
	base := t.TempDir()
	store, _ := NewStore(base)
	dir := filepath.Join(base, "runs", "r1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "failure.json"), []byte(`{"failure_class":"build","error_code":"x","error_message":"y","extra":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadFailure("r1"); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestRunRecorder_Lifecycle(t *testing.T) {
	base := t.TempDir()
	store, _ := NewStore(base)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := &RunRecorder{Store: store, Now: func() time.Time { return fixed }}

	id := NewRunID()
	run, err := rec.StartRun(Run{RunID: id, Mode: ExecutionModeParallel, Workers: 4})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if !run.StartTime.Equal(fixed) || run.Status != RunStatusRunning {
		t.Fatalf("unexpected started run: %+v", run)
	}

	buildErr := &BuildFailureError{Repository: "web", Code: "BuildFailed", Message: "exit 1", Cause: errors.New("boom")}
	if err := rec.RecordFailure(id, buildErr); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if _, err := rec.FinishRun(run, RunStatusFailed, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	loaded, err := store.LoadRun(id)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if loaded.Status != RunStatusFailed || loaded.FinishTime == nil {
		t.Fatalf("unexpected finished run: %+v", loaded)
	}

	f, err := store.LoadFailure(id)
	if err != nil {
		t.Fatalf("LoadFailure: %v", err)
	}
	if f.FailureClass != FailureClassBuild || f.Repository == nil || *f.Repository != "web" {
		t.Fatalf("unexpected failure: %+v", f)
	}

	if _, err := rec.FinishRun(run, RunStatusRunning, nil); err == nil {
		t.Fatal("running is not a terminal status")
	}

	ids, err := store.ListRunIDs()
	if err != nil || len(ids) != 1 || ids[0] != id {
		t.Fatalf("ListRunIDs = %v, %v", ids, err)
	}
}
