package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps document references to local file paths.
type Resolver struct {
	// Root is the directory relative references are resolved against. When
	// set, references pointing outside of it are rejected.
	Root string
}

// Resolve returns the path of an existing regular file for ref.
func (r Resolver) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("document reference is required")
	}

	path := filepath.Clean(ref)

	root := strings.TrimSpace(r.Root)
	if root != "" {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			return "", fmt.Errorf("resolve documents root %q: %w", root, err)
		}

		if !filepath.IsAbs(path) {
			path = filepath.Join(rootAbs, path)
		}

		rel, err := filepath.Rel(rootAbs, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, ref)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return "", fmt.Errorf("stat document %s: %w", ref, err)
	}

	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, ref)
	}

	return path, nil
}

// Extension returns the lowercased file extension of ref, including the dot.
func Extension(ref string) string {
	return strings.ToLower(filepath.Ext(ref))
}
