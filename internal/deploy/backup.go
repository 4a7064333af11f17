package deploy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	cp "github.com/otiai10/copy"

	"patchdeploy/internal/core"
)

// BackupLayout is the timestamp format of backup directory names.
const BackupLayout = "20060102_150405"

// Backup moves the contents of copyDir into a new timestamped directory under
// backupDir and returns its path. copyDir itself is kept, empty.
//
// Entries are renamed; an entry that cannot be renamed, for example across
// devices, is copied and then removed. A missing or empty copyDir is not an
// error; nothing is written and the returned path is empty.
func Backup(copyDir, backupDir string, now time.Time) (string, error) {
	if _, inside := core.Within(filepath.Clean(copyDir), filepath.Clean(backupDir)); inside {
		return "", fmt.Errorf("backup: backup dir %s is inside %s", backupDir, copyDir)
	}
	entries, err := os.ReadDir(copyDir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(entries) == 0) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("backup: read %s: %w", copyDir, err)
	}

	dest, err := uniqueDir(filepath.Join(backupDir, now.Format(BackupLayout)))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("backup: create %s: %w", dest, err)
	}
	for _, e := range entries {
		if err := move(filepath.Join(copyDir, e.Name()), filepath.Join(dest, e.Name())); err != nil {
			return dest, err
		}
	}
	return dest, nil
}

func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := cp.Copy(src, dst, cp.Options{PreserveTimes: true}); err != nil {
		return fmt.Errorf("backup: copy %s to %s: %w", src, dst, err)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("backup: remove %s: %w", src, err)
	}
	return nil
}

// uniqueDir returns base, or base_N for the first N that does not exist yet.
func uniqueDir(base string) (string, error) {
	candidate := base
	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("backup: stat %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
}
