// Package storage stores uploaded recipe images on the local filesystem.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// RecipeImageDir is the directory, relative to the media root, holding recipe images.
const RecipeImageDir = "uploads/recipe"

// Storage errors.
var (
	ErrNotImage      = errors.New("uploaded file is not an image")
	ErrImageTooLarge = errors.New("uploaded image is too large")
	ErrEmptyImage    = errors.New("uploaded image is empty")
	ErrInvalidPath   = errors.New("invalid image path")
)

// newFileID is replaced in tests.
var newFileID = func() string {
	return uuid.NewString()
}

// RecipeImagePath returns a fresh relative path for an uploaded image,
// keeping the original extension: uploads/recipe/<uuid>.<ext>.
// It does not touch the filesystem.
func RecipeImagePath(filename string) string {
	return recipeImagePath(newFileID(), filename)
}

func recipeImagePath(id, filename string) string {
	// Clients may send a full path; only the last element matters.
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	name := id
	if i := strings.LastIndex(base, "."); i >= 0 && i < len(base)-1 {
		name += base[i:]
	}
	return path.Join(RecipeImageDir, name)
}

// LocalImageStore writes images below a media root directory.
type LocalImageStore struct {
	root    string
	maxSize int64
}

// NewLocalImageStore creates a store rooted at root. Images larger than
// maxSize bytes are rejected; a maxSize of zero disables the check.
func NewLocalImageStore(root string, maxSize int64) *LocalImageStore {
	return &LocalImageStore{root: root, maxSize: maxSize}
}

// Root returns the media root directory.
func (s *LocalImageStore) Root() string {
	return s.root
}

// Save sniffs the content, rejects anything that is not an image and writes
// it under a newly generated path. Returns the path relative to the root.
func (s *LocalImageStore) Save(filename string, r io.Reader) (string, error) {
	limited := r
	if s.maxSize > 0 {
		limited = io.LimitReader(r, s.maxSize+1)
	}

	data, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return "", ErrImageTooLarge
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mtype.String())
	}

	rel := RecipeImagePath(filename)
	full := filepath.Join(s.root, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create image directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}

	return rel, nil
}

// Delete removes a stored image. Missing files are not an error.
func (s *LocalImageStore) Delete(rel string) error {
	if rel == "" {
		return nil
	}

	clean := path.Clean(rel)
	if !strings.HasPrefix(clean, RecipeImageDir+"/") {
		return fmt.Errorf("%w: %s", ErrInvalidPath, rel)
	}

	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// Ping reports whether the media root exists and is a directory.
func (s *LocalImageStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("media root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root %s is not a directory", s.root)
	}
	return nil
}
