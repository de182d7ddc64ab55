//go:build !unix

package shm

import "errors"

// Supported reports whether this platform can back segments with mmap'd
// files. Platforms without a unix mmap get the file-based fallback store
// instead.
func Supported() bool { return false }

// Create is unavailable on this platform.
func Create(size int) (*Segment, error) {
	return nil, errors.ErrUnsupported
}

// Open is unavailable on this platform.
func Open(name string) (*Segment, error) {
	return nil, errors.ErrUnsupported
}

// Close is a no-op on this platform.
func (s *Segment) Close() error { return nil }

// Unlink is a no-op on this platform.
func (s *Segment) Unlink() error { return nil }
