package deploy

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResetDir removes dir and everything under it, then recreates it empty.
//
// Relative paths and the filesystem root are refused.
func ResetDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output dir is empty")
	}
	clean := filepath.Clean(dir)
	if !filepath.IsAbs(clean) {
		return fmt.Errorf("output dir must be absolute: %q", dir)
	}
	if clean == filepath.VolumeName(clean)+string(filepath.Separator) {
		return fmt.Errorf("refusing to clear root directory: %q", clean)
	}

	if err := os.RemoveAll(clean); err != nil {
		return fmt.Errorf("clear output dir %s: %w", clean, err)
	}
	if err := os.MkdirAll(clean, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", clean, err)
	}
	return nil
}
