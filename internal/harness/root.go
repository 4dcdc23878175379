package harness

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultRootDirs returns the working directory followed by the directory of
// the running executable. Entries that cannot be resolved are left out.
func DefaultRootDirs() []string {
	dirs := make([]string, 0, 2)

	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}

	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}

	return dirs
}

// LocateRoot walks up from each start directory in turn and returns the first
// directory holding a file whose name matches the glob marker.
func LocateRoot(marker string, starts ...string) (string, error) {
	if _, err := filepath.Match(marker, ""); err != nil {
		return "", fmt.Errorf("harness LocateRoot: marker %q: %w", marker, err)
	}

	for _, start := range starts {
		dir, err := filepath.Abs(start)
		if err != nil {
			continue
		}

		for {
			if hasMarker(dir, marker) {
				return dir, nil
			}

			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	return "", fmt.Errorf("marker %q: %w", marker, ErrRootNotFound)
}

func hasMarker(dir, marker string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if ok, _ := filepath.Match(marker, entry.Name()); ok {
			return true
		}
	}

	return false
}
