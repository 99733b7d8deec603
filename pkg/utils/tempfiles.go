package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
)

// RemoveStaleTempFiles deletes files in dir matching pattern that are older
// than maxAge. A missing directory is not an error. It returns how many
// files were removed.
func RemoveStaleTempFiles(dir, pattern string, maxAge time.Duration, now time.Time) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("failed to glob temp files: %w", err)
	}

	var errs error
	removed := 0
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil || info.IsDir() || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(file); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to remove %s: %w", file, err))
			continue
		}
		removed++
	}
	return removed, errs
}
