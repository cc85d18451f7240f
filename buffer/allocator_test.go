package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapAllocator_AllocateAndFree(t *testing.T) {
	a := NewHeapAllocator()
	buf, err := a.Allocate(128)
	require.NoError(t, err)
	assert.Len(t, buf, 128)
	assert.NoError(t, a.Free(buf))
}

func TestHeapAllocator_RejectsNegativeSize(t *testing.T) {
	a := NewHeapAllocator()
	_, err := a.Allocate(-1)
	assert.Error(t, err)
}

func TestHugePageAllocator_AllocateIsFixedCapacity(t *testing.T) {
	a := NewHugePageAllocator(nil)
	buf, err := a.Allocate(HugePageFixedCapacity)
	require.NoError(t, err)
	assert.Len(t, buf, HugePageFixedCapacity)
}

func TestHugePageAllocator_FreeIsNoOp(t *testing.T) {
	a := NewHugePageAllocator(nil)
	buf := make([]byte, 16)
	// Free never actually unmaps; it must still report success so callers
	// relying on Free's error return don't treat this as a failure.
	assert.NoError(t, a.Free(buf))
}
