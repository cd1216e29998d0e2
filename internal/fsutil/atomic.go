// Package fsutil holds filesystem helpers shared by the artifact writers.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile writes data to a temporary file next to path and renames it into
// place, so readers see either the old content or the new, never a partial
// file. Parent directories are created as needed.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := CreateTemp(path)
	if err != nil {
		return err
	}

	fh, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("open temp file: %w", err)
	}

	if _, err := fh.Write(data); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := fh.Sync(); err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmp, perm); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	return Replace(tmp, path)
}

// CreateTemp creates an empty temporary file in the directory of path and
// returns its name. The caller fills it and calls Replace.
func CreateTemp(path string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	fh, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	name := fh.Name()
	if err := fh.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return name, nil
}

// Replace moves tmp over path. tmp is removed if the rename fails.
func Replace(tmp, path string) error {
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move temp file into place: %w", err)
	}

	return nil
}
