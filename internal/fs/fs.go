// Package fs provides the filesystem seam the backlog engine scans through.
//
// The engine never writes backlog files, so the interface is read-heavy:
// directory listing, file reads, and metadata. The one write operation,
// [FS.WriteFileAtomic], exists for config persistence and uses an atomic
// temp-file + rename.
//
// Two implementations are provided:
//   - [Real]: production use, thin passthroughs to the [os] package
//   - [Counting]: test use, wraps another FS and counts calls so tests can
//     prove a cached request touched no files
package fs

import "os"

// FS defines the filesystem operations used by backlog scans and config IO.
type FS interface {
	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// ReadDir reads a directory and returns its entries sorted by name.
	// See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// Stat returns file metadata. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether path exists. Returns (false, err) only for
	// errors other than non-existence.
	Exists(path string) (bool, error)

	// IsDir reports whether path exists and is a directory.
	IsDir(path string) (bool, error)

	// WriteFileAtomic writes data to path via a temp file and rename, so a
	// crash never leaves a partial file behind.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error
}
