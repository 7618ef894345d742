// Package export writes answers to dated PDF and CSV files.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DatedPath returns dir/YYYY-MM-DD/YYYY-MM-DD-HH-MM-Akande.ext for now and
// creates the day directory.
func DatedPath(dir string, now time.Time, ext string) (string, error) {
	if dir == "" {
		dir = "."
	}
	day := filepath.Join(dir, now.Format("2006-01-02"))
	if err := os.MkdirAll(day, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	return filepath.Join(day, now.Format("2006-01-02-15-04")+"-Akande."+ext), nil
}
