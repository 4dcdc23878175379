package exporter

import (
	"fmt"
	"os"
	"path/filepath"
)

// mkdirFor creates the parent directory of pth if it does not exist.
func mkdirFor(pth string) error {
	dir := filepath.Dir(pth)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err = os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("os.MkdirAll: %w", err)
		}
	}

	return nil
}
