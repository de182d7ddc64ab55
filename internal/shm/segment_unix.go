//go:build unix

package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Supported reports whether this platform can back segments with mmap'd
// files. Always true on unix.
func Supported() bool { return true }

// Create allocates a new segment at least size bytes long and maps it
// read-write. The backing file is padded to the page size, so AllocatedSize
// may exceed size; only the creator knows the logical length.
func Create(size int) (*Segment, error) {
	name := newName()
	path := segmentPath(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create segment %s: %w", name, err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(path)
	}
	alloc := alignToPage(size)
	if err := f.Truncate(int64(alloc)); err != nil {
		cleanup()
		return nil, fmt.Errorf("resize segment %s to %d bytes: %w", name, alloc, err)
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, alloc, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mmap segment %s: %w", name, err)
	}
	creates.Add(1)
	bytesAllocated.Add(uint64(alloc))
	return &Segment{name: name, data: data, file: f}, nil
}

// Open maps an existing segment read-only. Only the owning store writes or
// unlinks; everyone else is a reader. The error wraps fs.ErrNotExist when the
// segment has been unlinked.
func Open(name string) (*Segment, error) {
	path := segmentPath(name)
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat segment %s: %w", name, err)
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(info.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap segment %s: %w", name, err)
	}
	opens.Add(1)
	return &Segment{name: name, data: data, file: f}, nil
}

// Close unmaps the segment and closes its file. The name stays resolvable by
// other processes until the owner unlinks it. Safe to call more than once.
func (s *Segment) Close() error {
	var firstErr error
	if s.data != nil {
		if err := syscall.Munmap(s.data); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("munmap segment %s: %w", s.name, err)
		}
		s.data = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.file = nil
	}
	return firstErr
}

// Unlink removes the segment's name. Subsequent Opens fail with
// fs.ErrNotExist; existing mappings stay valid until closed. The error wraps
// fs.ErrNotExist when a cooperating peer already removed the segment.
func (s *Segment) Unlink() error {
	err := os.Remove(segmentPath(s.name))
	if err == nil {
		unlinks.Add(1)
	}
	return err
}

// segmentPath places segments under /dev/shm when present so the pages never
// hit a disk, falling back to the temp directory.
func segmentPath(name string) string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", name)
	}
	return filepath.Join(os.TempDir(), name)
}

// alignToPage rounds size up to a whole number of pages, minimum one page so
// empty buffers still map.
func alignToPage(size int) int {
	page := os.Getpagesize()
	if size <= 0 {
		return page
	}
	return (size + page - 1) &^ (page - 1)
}
