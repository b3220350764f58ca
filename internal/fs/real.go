package fs

import (
	"bytes"
	"os"

	"github.com/natefinch/atomic"
)

// Real implements [FS] using the real filesystem.
//
// All methods are passthroughs to the [os] package with identical behavior
// and error semantics, except [Real.Exists] and [Real.IsDir] which wrap
// [os.Stat], and [Real.WriteFileAtomic] which uses atomic file writes.
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// A passthrough wrapper for [os.ReadFile].
func (r *Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// A passthrough wrapper for [os.ReadDir].
func (r *Real) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

// A passthrough wrapper for [os.Stat].
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Exists checks if a file exists using [os.Stat].
// Returns (true, nil) if the path exists, (false, nil) if it does not,
// or (false, err) for other errors.
func (r *Real) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// IsDir reports whether path exists and is a directory.
func (r *Real) IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return info.IsDir(), nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// WriteFileAtomic writes data via a temp file and rename.
// The perm argument is accepted for interface compatibility; the rename
// preserves the temp file's default mode.
func (r *Real) WriteFileAtomic(path string, data []byte, _ os.FileMode) error {
	return atomic.WriteFile(path, bytes.NewReader(data))
}
