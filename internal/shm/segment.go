// Package shm provides named shared-memory segments for passing large model
// buffers between processes on one host. Segments are plain files under
// /dev/shm (or the temp dir when that is unavailable) mapped with mmap, so
// any process that knows a segment's name can map the same physical pages.
package shm

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// namePrefix marks every segment file so stray segments are easy to find.
const namePrefix = "mshare_"

// Segment is a mapped named memory region. The allocated size may exceed the
// size requested at creation because the backing file is padded to the page
// size; callers track the logical length themselves.
type Segment struct {
	name string
	data []byte
	file *os.File
}

// Name returns the segment's process-portable name.
func (s *Segment) Name() string { return s.name }

// Bytes returns the mapped region, AllocatedSize bytes long. The slice is
// only valid until Close.
func (s *Segment) Bytes() []byte { return s.data }

// AllocatedSize returns the real size of the mapped region.
func (s *Segment) AllocatedSize() int { return len(s.data) }

func (s *Segment) String() string {
	return fmt.Sprintf("Segment(%s: %d bytes)", s.name, len(s.data))
}

// newName generates a fresh segment name.
func newName() string {
	return fmt.Sprintf("%s%x", namePrefix, uuid.New())
}
