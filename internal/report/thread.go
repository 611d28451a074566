package report

import (
	"fmt"
	"os"
	"path/filepath"
)

// threadFilePerm is the mode of written thread files.
const threadFilePerm = 0o644

// OutputPath returns the file a thread with the given slug is written to.
func OutputPath(dir, slug string) string {
	return filepath.Join(dir, slug+".md")
}

// WriteThread writes content to OutputPath(dir, slug), creating dir if
// needed. An existing file is replaced only after the new content has been
// fully written.
func WriteThread(dir, slug, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := OutputPath(dir, slug)

	tmp, err := os.CreateTemp(dir, "."+slug+"-*.md.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	// Remove the temporary file on any failure below.
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()        //nolint:errcheck // already failing
			_ = os.Remove(tmpName) //nolint:errcheck // already failing
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Chmod(threadFilePerm); err != nil {
		return "", fmt.Errorf("failed to set mode of %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", path, err)
	}

	ok = true
	return path, nil
}
