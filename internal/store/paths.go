package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DatabaseFile is the SQLite file name inside the output directory.
const DatabaseFile = "sisweep.db"

// DatabasePath returns the database path inside outputDir.
func DatabasePath(outputDir string) string {
	return filepath.Join(outputDir, DatabaseFile)
}

// EnsureDir creates dir if it doesn't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
