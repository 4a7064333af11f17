package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	icl "patchdeploy/internal/cli"
	"patchdeploy/internal/state"
)

type project struct {
	dir      string
	config   string
	worklist string
	web      string
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}

// newProject lays out one web repository whose build script compiles a class
// into its base, a worklist naming the source, a page and a stray file, and a
// configuration using sh as the build tool.
func newProject(t *testing.T, buildScript string) *project {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	p := &project{dir: dir, web: filepath.Join(dir, "src", "web")}

	writeFile(t, filepath.Join(p.web, "build.sh"), buildScript)
	java := writeFile(t, filepath.Join(p.web, "src", "a", "B.java"), "class B {}")
	jsp := writeFile(t, filepath.Join(p.web, "WebContent", "index.jsp"), "<html/>")
	stray := writeFile(t, filepath.Join(dir, "stray.txt"), "x")

	p.worklist = writeFile(t, filepath.Join(dir, "worklist.txt"),
		"# changed files\n"+java+"\n"+jsp+"\n\n"+stray+"\n")
	p.config = writeFile(t, filepath.Join(dir, "config", "config.yml"), `
copy_dir: ../copy
worklist_file: ../worklist.txt
build_tool: sh
report_files: [../share/summary.log]
repositories:
  - name: web
    path: ../src/web
    base: WebContent
    build_file: build.sh
    path_rules:
      - [src, WEB-INF/classes]
    ext_rules:
      - {from: .java, to: .class}
    targets:
      - {label: dev}
      - {label: prd, path: app}
`)
	return p
}

const compileScript = `echo compiling
mkdir -p WebContent/WEB-INF/classes/a
echo bytecode > WebContent/WEB-INF/classes/a/B.class
`

func (p *project) run(t *testing.T, args ...string) (icl.Result, string, error) {
	t.Helper()
	inv, err := icl.ParseInvocation(append([]string{"--env-file", filepath.Join(p.dir, ".env")}, args...))
	if err != nil {
		t.Fatalf("ParseInvocation: %v", err)
	}
	var stdout, stderr bytes.Buffer
	res, err := icl.ExecuteWith(context.Background(), inv, icl.Environment{
		Stdout: &stdout,
		Stderr: &stderr,
		Now:    func() time.Time { return time.Date(2026, 10, 19, 10, 0, 0, 0, time.Local) },
	})
	return res, stdout.String(), err
}

func TestExecute_BuildsAndDistributes(t *testing.T) {
	p := newProject(t, compileScript)

	res, stdout, err := p.run(t, "--config", p.config)
	if err != nil {
		t.Fatalf("run err: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit: %d", res.ExitCode)
	}

	copyDir := filepath.Join(p.dir, "copy", "web")
	for _, rel := range []string{
		"dev/WEB-INF/classes/a/B.class",
		"prd/app/WEB-INF/classes/a/B.class",
		"dev/index.jsp",
		"prd/app/index.jsp",
	} {
		if _, err := os.Stat(filepath.Join(copyDir, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("expected %s: %v", rel, err)
		}
	}

	if !strings.Contains(stdout, "compiling") {
		t.Fatalf("build output not echoed:\n%s", stdout)
	}
	for _, want := range []string{
		"> 2026-10-19 10:00:00\n",
		"build: RUN (exit 0)\n",
		"[O] WEB-INF/classes/a/B.class (1)\n",
		"[O] index.jsp (1)\n",
		"[UNMAPPED]\n",
		"[X] " + filepath.Join(p.dir, "stray.txt") + " (1)\n",
		"total: 3/3, success: 2/2, fail: 0/0, unmapped: 1/1, skipped: 0/0, excluded: 0/0\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("report missing %q:\n%s", want, stdout)
		}
	}

	summary := string(readFile(t, filepath.Join(p.dir, "logs", "summary.log")))
	if !strings.HasSuffix(stdout, summary) || !strings.HasPrefix(summary, "> ") {
		t.Fatalf("summary.log is not the rendered report:\n%s", summary)
	}
	if shared := string(readFile(t, filepath.Join(p.dir, "share", "summary.log"))); shared != summary {
		t.Fatalf("report file differs from summary.log")
	}

	st, err := state.NewStore(filepath.Join(p.dir, "logs"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	run, err := st.LoadRun(res.RunID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if run.Status != state.RunStatusCompleted || run.Counts == nil || run.Counts.Success != 2 {
		t.Fatalf("unexpected run record: %#v", run)
	}
	if run.Mode != state.ExecutionModeSerial {
		t.Fatalf("mode: %q", run.Mode)
	}
	if _, err := os.Stat(filepath.Join(st.RunDir(res.RunID), "report.json")); err != nil {
		t.Fatalf("report.json: %v", err)
	}
}

func TestExecute_UnwritableReportFileKeepsConsoleReport(t *testing.T) {
	p := newProject(t, compileScript)
	blocker := writeFile(t, filepath.Join(p.dir, "share"), "a regular file")
	bad := filepath.Join(blocker, "summary.log")

	res, stdout, err := p.run(t, "--config", p.config)
	if err != nil {
		t.Fatalf("run err: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit: %d", res.ExitCode)
	}
	if res.ReportErr == nil || !strings.Contains(res.ReportErr.Error(), bad) {
		t.Fatalf("expected report error naming %s, got %v", bad, res.ReportErr)
	}
	if !strings.Contains(stdout, "total: 3/3, success: 2/2") {
		t.Fatalf("console report missing:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(p.dir, "copy", "web", "dev", "index.jsp")); err != nil {
		t.Fatalf("artifacts must be distributed: %v", err)
	}
	summary := string(readFile(t, filepath.Join(p.dir, "logs", "summary.log")))
	if !strings.HasSuffix(stdout, summary) {
		t.Fatalf("summary.log must still be written")
	}
}

func TestExecute_SecondRunBacksUpAndResets(t *testing.T) {
	p := newProject(t, compileScript)

	if res, _, err := p.run(t, "--config", p.config); err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("first run: %d %v", res.ExitCode, err)
	}
	stale := writeFile(t, filepath.Join(p.dir, "copy", "web", "dev", "stale.txt"), "old")

	if res, _, err := p.run(t, "--config", p.config, "--parallel", "--workers", "2"); err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("second run: %d %v", res.ExitCode, err)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale output survived the reset: %v", err)
	}
	backup := filepath.Join(p.dir, "backup", "20261019_100000", "web", "dev", "stale.txt")
	if _, err := os.Stat(backup); err != nil {
		t.Fatalf("expected backup copy: %v", err)
	}
}

func TestExecute_NoBackup(t *testing.T) {
	p := newProject(t, compileScript)
	writeFile(t, filepath.Join(p.dir, "copy", "web", "old.txt"), "old")

	if res, _, err := p.run(t, "--config", p.config, "--no-backup"); err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("run: %d %v", res.ExitCode, err)
	}
	if _, err := os.Stat(filepath.Join(p.dir, "backup")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("backup directory created despite --no-backup: %v", err)
	}
}

func TestExecute_BuildFailure(t *testing.T) {
	p := newProject(t, "echo broken\nexit 3\n")
	writeFile(t, filepath.Join(p.dir, "copy", "web", "dev", "previous.txt"), "keep")

	res, stdout, err := p.run(t, "--config", p.config)
	if err == nil {
		t.Fatalf("expected error")
	}
	if res.ExitCode != icl.ExitBuildFailure {
		t.Fatalf("exit: %d", res.ExitCode)
	}
	if !strings.Contains(stdout, "broken") {
		t.Fatalf("failed build output not echoed:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(p.dir, "copy", "web", "dev", "previous.txt")); err != nil {
		t.Fatalf("previous output must survive a failed build: %v", err)
	}

	st, _ := state.NewStore(filepath.Join(p.dir, "logs"))
	f, err := st.LoadFailure(res.RunID)
	if err != nil {
		t.Fatalf("LoadFailure: %v", err)
	}
	if f.FailureClass != state.FailureClassBuild || f.ErrorCode != "BuildFailed" {
		t.Fatalf("unexpected failure: %#v", f)
	}
	if f.Repository == nil || *f.Repository != "web" {
		t.Fatalf("failure repository: %v", f.Repository)
	}
	run, err := st.LoadRun(res.RunID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if run.Status != state.RunStatusFailed {
		t.Fatalf("status: %q", run.Status)
	}
}

func TestExecute_RelativeWorklistEntryIsConfigError(t *testing.T) {
	p := newProject(t, compileScript)
	bad := writeFile(t, filepath.Join(p.dir, "bad.txt"), "src/a/B.java\n")

	res, stdout, err := p.run(t, "--config", p.config, "--worklist", bad)
	if err == nil {
		t.Fatalf("expected error")
	}
	if res.ExitCode != icl.ExitConfigError {
		t.Fatalf("exit: %d", res.ExitCode)
	}
	if !strings.Contains(err.Error(), "bad.txt:1:") {
		t.Fatalf("error must name the line: %v", err)
	}
	if stdout != "" {
		t.Fatalf("nothing may be built or reported:\n%s", stdout)
	}

	st, _ := state.NewStore(filepath.Join(p.dir, "logs"))
	f, ferr := st.LoadFailure(res.RunID)
	if ferr != nil {
		t.Fatalf("LoadFailure: %v", ferr)
	}
	if f.FailureClass != state.FailureClassConfig || f.ErrorCode != "WorklistInvalid" {
		t.Fatalf("unexpected failure: %#v", f)
	}
}

func TestExecute_ConfigErrors(t *testing.T) {
	p := newProject(t, compileScript)
	empty := writeFile(t, filepath.Join(p.dir, "empty.yml"), "copy_dir: copy\nworklist_file: w.txt\n")
	unknown := writeFile(t, filepath.Join(p.dir, "unknown.yml"), "copy_dir: copy\nthreads: 4\n")

	for name, args := range map[string][]string{
		"missing file":    {"--config", filepath.Join(p.dir, "nope.yml")},
		"no repositories": {"--config", empty},
		"unknown key":     {"--config", unknown},
	} {
		t.Run(name, func(t *testing.T) {
			res, _, err := p.run(t, args...)
			if err == nil {
				t.Fatalf("expected error")
			}
			if res.ExitCode != icl.ExitConfigError {
				t.Fatalf("exit: %d (%v)", res.ExitCode, err)
			}
		})
	}
}

func TestExecute_ConfigFromDotenv(t *testing.T) {
	p := newProject(t, compileScript)
	writeFile(t, filepath.Join(p.dir, ".env"), "PATCHDEPLOY_CONFIG="+p.config+"\nPATCHDEPLOY_COPY_DIR="+filepath.Join(p.dir, "elsewhere")+"\n")

	res, _, err := p.run(t)
	if err != nil {
		t.Fatalf("run err: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit: %d", res.ExitCode)
	}
	if _, err := os.Stat(filepath.Join(p.dir, "elsewhere", "web", "dev", "index.jsp")); err != nil {
		t.Fatalf("copy_dir override ignored: %v", err)
	}
}

func TestRootCommand_ExitCodes(t *testing.T) {
	cmd := icl.NewRootCommand()
	cmd.SetArgs([]string{"--no-such-flag"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if got := icl.ExitCode(cmd.ExecuteContext(context.Background())); got != icl.ExitInvalidInvocation {
		t.Fatalf("unknown flag: exit %d", got)
	}

	cmd = icl.NewRootCommand()
	cmd.SetArgs([]string{"positional"})
	if got := icl.ExitCode(cmd.ExecuteContext(context.Background())); got != icl.ExitInvalidInvocation {
		t.Fatalf("positional: exit %d", got)
	}

	cmd = icl.NewRootCommand()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yml"), "--env-file", filepath.Join(t.TempDir(), ".env")})
	if got := icl.ExitCode(cmd.ExecuteContext(context.Background())); got != icl.ExitConfigError {
		t.Fatalf("missing config: exit %d", got)
	}
}
