package fs

import (
	"os"
	"sync/atomic"
)

// Counting wraps another [FS] and counts calls per operation.
//
// Tests use it as a read probe: a request served from cache must not
// increase [Counting.FileReads].
//
// Example:
//
//	probe := fs.NewCounting(fs.NewReal())
//	svc := backlog.NewService(probe, root)
//	_, _ = svc.ListItems("acme", false)
//	before := probe.FileReads()
//	_, _ = svc.ListItems("acme", false)
//	// probe.FileReads() == before when the cache was fresh
type Counting struct {
	inner FS

	fileReads int64
	dirReads  int64
	stats     int64
}

// NewCounting returns a [Counting] FS wrapping inner.
func NewCounting(inner FS) *Counting {
	return &Counting{inner: inner}
}

// FileReads returns the number of ReadFile calls observed.
func (c *Counting) FileReads() int64 {
	return atomic.LoadInt64(&c.fileReads)
}

// DirReads returns the number of ReadDir calls observed.
func (c *Counting) DirReads() int64 {
	return atomic.LoadInt64(&c.dirReads)
}

// Stats returns the number of Stat calls observed.
func (c *Counting) Stats() int64 {
	return atomic.LoadInt64(&c.stats)
}

func (c *Counting) ReadFile(path string) ([]byte, error) {
	atomic.AddInt64(&c.fileReads, 1)

	return c.inner.ReadFile(path)
}

func (c *Counting) ReadDir(path string) ([]os.DirEntry, error) {
	atomic.AddInt64(&c.dirReads, 1)

	return c.inner.ReadDir(path)
}

func (c *Counting) Stat(path string) (os.FileInfo, error) {
	atomic.AddInt64(&c.stats, 1)

	return c.inner.Stat(path)
}

func (c *Counting) Exists(path string) (bool, error) {
	return c.inner.Exists(path)
}

func (c *Counting) IsDir(path string) (bool, error) {
	return c.inner.IsDir(path)
}

func (c *Counting) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return c.inner.WriteFileAtomic(path, data, perm)
}
