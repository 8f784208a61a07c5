package util

import (
	"fmt"
	"os"
)

// EnsureDir creates path and any missing parents. Callers use it for the
// data root and the per-library PDF directories before writing files.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
