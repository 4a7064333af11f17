package core

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

// realTempDir returns a canonical temp dir so expectations survive symlinked
// temp roots (macOS /var -> /private/var).
func realTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return dir
}

// webRepo is a repository rooted at <dir>/web with base <dir>/web/WebContent,
// compiled classes rewritten into WEB-INF/classes.
func webRepo(dir string) Repository {
	root := filepath.Join(dir, "web")
	return Repository{
		Name:      "web",
		Root:      root,
		Base:      filepath.Join(root, "WebContent"),
		OutputDir: filepath.Join(dir, "out", "web"),
		PathRules: []PathRule{{From: "src", To: "WEB-INF/classes"}},
		ExtRules:  []ExtRule{{From: ".java", To: ".class"}},
		Enabled:   true,
	}
}

func mustRegistry(t *testing.T, repos ...Repository) *Registry {
	t.Helper()
	reg, err := NewRegistry(repos)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}
