package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes data directory")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
	ErrNotBaseName  = errors.New("name must not contain path separators")
)

// PathValidator confines file operations to a single data directory
// using Go 1.24's os.Root API. Database files live directly inside the
// directory, so every name it accepts is a single path element.
type PathValidator struct {
	root    *os.Root
	dirPath string
}

// New creates a PathValidator for the directory at dir.
func New(dir string) (*PathValidator, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}

	return &PathValidator{
		root:    root,
		dirPath: absPath,
	}, nil
}

// Close releases resources held by the PathValidator.
func (pv *PathValidator) Close() error {
	if pv.root != nil {
		return pv.root.Close()
	}
	return nil
}

// Dir returns the absolute path of the data directory.
func (pv *PathValidator) Dir() string {
	return pv.dirPath
}

// ValidateName checks that name is a plain file name inside the data
// directory. It rejects:
// - Empty names
// - Absolute paths
// - Names containing separators or .. components
// - Names that are not local (Windows reserved names, etc.)
func (pv *PathValidator) ValidateName(name string) error {
	if name == "" {
		return ErrEmptyPath
	}

	if !filepath.IsLocal(name) {
		if filepath.IsAbs(name) {
			return fmt.Errorf("%w: %s", ErrAbsolutePath, name)
		}
		return fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %s", ErrNotBaseName, name)
	}

	return nil
}

// Path validates name and returns its absolute path inside the data directory.
func (pv *PathValidator) Path(name string) (string, error) {
	if err := pv.ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(pv.dirPath, name), nil
}

// RemoveInRoot removes a file in the data directory through os.Root.
// A missing file is not an error.
func (pv *PathValidator) RemoveInRoot(name string) error {
	if err := pv.ValidateName(name); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if err := pv.root.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ListInRoot returns the regular files in the data directory.
func (pv *PathValidator) ListInRoot() ([]fs.DirEntry, error) {
	dir, err := pv.root.Open(".")
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	defer dir.Close()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	files := entries[:0]
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e)
		}
	}
	return files, nil
}
