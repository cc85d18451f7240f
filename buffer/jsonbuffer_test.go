package buffer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBuffer_FillAndBytes(t *testing.T) {
	b := NewJSONBuffer(16)
	b.Fill([]byte(`{"a":1}`+"\n"), NewSeqRange(0, 0))
	assert.Equal(t, `{"a":1}`+"\n", string(b.Bytes()))
	assert.True(t, b.Filled())
	assert.Equal(t, uint64(0), b.SeqRange().First)
}

func TestJSONBuffer_TryAppend(t *testing.T) {
	b := NewJSONBuffer(10)
	require.True(t, b.TryAppend([]byte("12345")))
	require.True(t, b.TryAppend([]byte("12345")))
	assert.Equal(t, 10, b.Size())
	assert.False(t, b.TryAppend([]byte("x")), "buffer is exactly full, no room left")
}

func TestJSONBuffer_TryAppend_DoesNotMutateOnFailure(t *testing.T) {
	b := NewJSONBuffer(4)
	require.True(t, b.TryAppend([]byte("ab")))
	ok := b.TryAppend([]byte("xyz"))
	assert.False(t, ok)
	assert.Equal(t, "ab", string(b.Bytes()), "failed append must leave existing contents untouched")
}

func TestJSONBuffer_Reset(t *testing.T) {
	b := NewJSONBuffer(16)
	b.Fill([]byte("abc"), NewSeqRange(1, 1))
	b.Reset()
	assert.Equal(t, 0, b.Size())
	assert.False(t, b.Filled())
	assert.False(t, b.SeqRange().Valid())
}

func TestJSONBuffer_SetSeqRange(t *testing.T) {
	b := NewJSONBuffer(16)
	require.True(t, b.TryAppend([]byte("abc")))
	b.SetSeqRange(NewSeqRange(5, 5))
	assert.True(t, b.Filled())
	assert.Equal(t, "abc", string(b.Bytes()), "SetSeqRange must not touch byte contents")
}

func TestPool_AcquireSubmitClaimRelease(t *testing.T) {
	p := NewPool(2, 32)
	assert.Equal(t, 2, p.Size())

	b := p.AcquireEmpty()
	b.Fill([]byte("{}\n"), NewSeqRange(0, 0))
	p.SubmitFilled(b)

	claimed, ok := p.ClaimFilled()
	require.True(t, ok)
	assert.Equal(t, "{}\n", string(claimed.Bytes()))

	p.Release(claimed)
	_, ok = p.TryAcquireEmpty()
	assert.True(t, ok, "released buffer should be available again")
}

func TestPool_CloseRaw_UnblocksClaim(t *testing.T) {
	p := NewPool(1, 8)
	p.CloseRaw()
	_, ok := p.ClaimFilled()
	assert.False(t, ok, "ClaimFilled must report ok=false once the raw queue is closed and drained")
}

func TestPool_ClaimFilledContext_ReturnsOnDeadline(t *testing.T) {
	p := NewPool(1, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	b, ok := p.ClaimFilledContext(ctx)
	assert.Nil(t, b)
	assert.False(t, ok, "ClaimFilledContext must return once ctx is done, not block forever")
}

func TestPool_ClaimFilledContext_ClaimsBufferSubmittedBeforeDeadline(t *testing.T) {
	p := NewPool(1, 8)
	b := p.AcquireEmpty()
	b.Fill([]byte("{}\n"), NewSeqRange(0, 0))
	p.SubmitFilled(b)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	claimed, ok := p.ClaimFilledContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "{}\n", string(claimed.Bytes()))
}

func TestPool_ClaimFilledContext_DoesNotLeakAWaiterPastItsDeadline(t *testing.T) {
	p := NewPool(1, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	_, ok := p.ClaimFilledContext(ctx)
	require.False(t, ok)
	cancel()

	// A buffer submitted after the first caller gave up must be claimable by
	// a fresh call, not silently consumed by an orphaned waiter.
	b := p.AcquireEmpty()
	b.Fill([]byte("{}\n"), NewSeqRange(0, 0))
	p.SubmitFilled(b)

	claimed, ok := p.ClaimFilled()
	require.True(t, ok)
	assert.Equal(t, "{}\n", string(claimed.Bytes()))
}
