package parse

import (
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/SigmaX-ai/bolson/buffer"
)

// allocatorAdapter satisfies arrow/memory.Allocator by drawing from one of
// our buffer.Allocator variants, so Arrow's own array builders can use the
// same heap/huge-page abstraction the rest of the pipeline uses.
type allocatorAdapter struct {
	backing buffer.Allocator
}

// NewArrowAllocator wraps a buffer.Allocator as an arrow/memory.Allocator.
func NewArrowAllocator(backing buffer.Allocator) memory.Allocator {
	return &allocatorAdapter{backing: backing}
}

func (a *allocatorAdapter) Allocate(size int) []byte {
	buf, err := a.backing.Allocate(size)
	if err != nil {
		// arrow/memory.Allocator has no error return; fall back to a plain
		// make() rather than panicking mid-parse on a transient allocator
		// failure.
		return make([]byte, size)
	}
	return buf
}

func (a *allocatorAdapter) Reallocate(size int, b []byte) []byte {
	newBuf := a.Allocate(size)
	n := len(b)
	if n > size {
		n = size
	}
	copy(newBuf, b[:n])
	_ = a.backing.Free(b)
	return newBuf
}

func (a *allocatorAdapter) Free(b []byte) {
	_ = a.backing.Free(b)
}
