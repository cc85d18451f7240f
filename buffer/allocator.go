package buffer

import (
	"log/slog"
	"sync"

	"github.com/SigmaX-ai/bolson/errors"
)

// Allocator is the pluggable backing for parser output buffers. Grounded on
// original_source/src/bolson/buffer/allocator.h: two concrete variants exist,
// HeapAllocator and HugePageAllocator.
type Allocator interface {
	Allocate(size int) ([]byte, error)
	Free(buf []byte) error
}

// HeapAllocator allocates ordinary zero-initialized Go heap memory. Free
// releases the caller's reference; the Go runtime reclaims it normally.
type HeapAllocator struct{}

// NewHeapAllocator returns the ordinary heap-backed Allocator.
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{}
}

func (a *HeapAllocator) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, errors.WrapKind(errors.KindConfig, errors.ErrInvalidConfig, "HeapAllocator", "Allocate", "validate size")
	}
	return make([]byte, size), nil
}

func (a *HeapAllocator) Free(buf []byte) error {
	return nil
}

// HugePageFixedCapacity is the fixed region size the huge-page allocator
// hands out for every request, matching opae_allocator.h's
// opae_fixed_capacity = 1024 * 1024 * 1024 (1 GiB).
const HugePageFixedCapacity = 1024 * 1024 * 1024

// HugePageAllocator stands in for the original's OpaeAllocator: it ignores
// the requested size and always hands back a HugePageFixedCapacity region,
// zero-initialized, tracked so Free can report but not unmap it.
//
// Free is a documented no-op. The original's opae_allocator.cpp carries a
// large commented-out munmap implementation with the note "TODO: find out
// why munmap code below returns an error" and frees on process exit instead;
// that workaround is preserved here rather than resolved.
type HugePageAllocator struct {
	mu          sync.Mutex
	allocations map[*byte]int
	logger      *slog.Logger
}

// NewHugePageAllocator returns a device-visible, huge-page-backed Allocator.
func NewHugePageAllocator(logger *slog.Logger) *HugePageAllocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &HugePageAllocator{
		allocations: make(map[*byte]int),
		logger:      logger,
	}
}

func (a *HugePageAllocator) Allocate(size int) ([]byte, error) {
	if size != HugePageFixedCapacity {
		a.logger.Warn("hugepage allocator: requested size differs from fixed capacity, ignoring requested size",
			"requested", size, "fixed_capacity", HugePageFixedCapacity)
	}
	buf := make([]byte, HugePageFixedCapacity)
	a.mu.Lock()
	a.allocations[&buf[0]] = HugePageFixedCapacity
	a.mu.Unlock()
	return buf, nil
}

func (a *HugePageAllocator) Free(buf []byte) error {
	a.logger.Warn("hugepage allocator: free not implemented, reclaimed at process exit")
	return nil
}
