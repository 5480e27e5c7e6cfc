// Package store keeps uploaded inputs and generated artifacts on the local
// filesystem.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/medinventory/internal/dataset"
)

var ErrNotFound = errors.New("artifact not found")
var ErrInvalidName = errors.New("invalid artifact name")

// Store is the artifact access interface used by the pipeline and the API.
type Store interface {
	SaveUpload(originalName string, r io.Reader) (string, error)
	UploadPath(name string) (string, error)
	RemoveUpload(name string) error

	Save(name string, ds *dataset.Dataset) (string, error)
	SaveReport(name, report string) (string, error)
	Open(name string) (*os.File, error)
	Path(name string) (string, error)
	Remove(names ...string) error
}

// FileStore implements Store with two directories: one for uploads and one
// for results and intermediates.
type FileStore struct {
	uploadDir  string
	resultsDir string
}

// NewFileStore creates both directories if needed. An empty uploadDir
// disables uploads.
func NewFileStore(uploadDir, resultsDir string) (*FileStore, error) {
	for _, dir := range []string{uploadDir, resultsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return &FileStore{uploadDir: uploadDir, resultsDir: resultsDir}, nil
}

// SaveUpload stores r as "<uuid>_<sanitized name>" and returns that name.
func (s *FileStore) SaveUpload(originalName string, r io.Reader) (string, error) {
	if s.uploadDir == "" {
		return "", fmt.Errorf("%w: uploads are disabled", ErrInvalidName)
	}
	clean := SanitizeFilename(originalName)
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, originalName)
	}
	name := uuid.NewString() + "_" + clean

	f, err := os.OpenFile(filepath.Join(s.uploadDir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing upload: %w", err)
	}
	return name, nil
}

// UploadPath returns the path of a stored upload.
func (s *FileStore) UploadPath(name string) (string, error) {
	return existing(s.uploadDir, name)
}

// RemoveUpload deletes a stored upload. Missing files are not an error.
func (s *FileStore) RemoveUpload(name string) error {
	return remove(s.uploadDir, name)
}

// Save writes ds to the results directory under name and returns its path.
func (s *FileStore) Save(name string, ds *dataset.Dataset) (string, error) {
	path, err := join(s.resultsDir, name)
	if err != nil {
		return "", err
	}
	if err := dataset.WriteCSVFile(path, ds); err != nil {
		return "", err
	}
	return path, nil
}

// SaveReport writes a text report to the results directory.
func (s *FileStore) SaveReport(name, report string) (string, error) {
	path, err := join(s.resultsDir, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

// Open opens a result for reading.
func (s *FileStore) Open(name string) (*os.File, error) {
	path, err := existing(s.resultsDir, name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Path returns the path of an existing result.
func (s *FileStore) Path(name string) (string, error) {
	return existing(s.resultsDir, name)
}

// Remove deletes results. Missing files are skipped; other failures are
// joined into the returned error.
func (s *FileStore) Remove(names ...string) error {
	var errs []error
	for _, n := range names {
		if err := remove(s.resultsDir, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SanitizeFilename reduces name to a safe base name of letters, digits,
// dots, dashes and underscores. It returns "" when nothing usable remains.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), "._")
}

func join(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(dir, name), nil
}

func existing(dir, name string) (string, error) {
	path, err := join(dir, name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func remove(dir, name string) error {
	path, err := join(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

var _ Store = (*FileStore)(nil)
