package buffer

import (
	"context"
	"sync"
)

// JSONBuffer is a fixed-capacity region of bytes holding newline-delimited
// JSON records, plus the SeqRange of the records it currently holds and a
// filled/empty state. While in a parser's possession it is read-only; while
// in ingress's possession no parser observes it — the pool enforces this by
// handing the buffer to exactly one owner at a time.
type JSONBuffer struct {
	data     []byte
	size     int
	seqRange SeqRange
	filled   bool
}

// NewJSONBuffer allocates a JSONBuffer of the given fixed capacity.
func NewJSONBuffer(capacity int) *JSONBuffer {
	return &JSONBuffer{data: make([]byte, capacity)}
}

// Capacity is the fixed byte capacity of this buffer.
func (b *JSONBuffer) Capacity() int { return len(b.data) }

// Size is the number of bytes currently occupied.
func (b *JSONBuffer) Size() int { return b.size }

// Bytes returns the occupied prefix of the buffer.
func (b *JSONBuffer) Bytes() []byte { return b.data[:b.size] }

// SeqRange returns the sequence range of records this buffer currently holds.
func (b *JSONBuffer) SeqRange() SeqRange { return b.seqRange }

// Filled reports whether ingress has written records into this buffer.
func (b *JSONBuffer) Filled() bool { return b.filled }

// Fill copies data into the buffer and records its SeqRange. The caller
// (ingress) must hold exclusive ownership of the buffer when calling this.
func (b *JSONBuffer) Fill(data []byte, seqRange SeqRange) {
	n := copy(b.data, data)
	b.size = n
	b.seqRange = seqRange
	b.filled = true
}

// Remaining is the number of unused bytes left in the buffer.
func (b *JSONBuffer) Remaining() int { return len(b.data) - b.size }

// TryAppend appends record to the buffer's occupied prefix if it fits,
// returning false without modifying the buffer if it doesn't. A record is
// never split across buffers; the caller must flush and start a fresh
// buffer when TryAppend returns false.
func (b *JSONBuffer) TryAppend(record []byte) bool {
	if len(record) > b.Remaining() {
		return false
	}
	copy(b.data[b.size:], record)
	b.size += len(record)
	return true
}

// SetSeqRange records the SeqRange covered by the buffer's current contents
// and marks it filled. Called by ingress once a buffer is ready to submit.
func (b *JSONBuffer) SetSeqRange(seqRange SeqRange) {
	b.seqRange = seqRange
	b.filled = true
}

// Reset clears size, SeqRange, and filled state, returning the buffer to the
// shape the pool expects for an empty buffer.
func (b *JSONBuffer) Reset() {
	b.size = 0
	b.seqRange = SeqRange{}
	b.filled = false
}

// Pool hands out empty JSONBuffers to ingress, accepts back filled buffers
// bound for parsing, and accepts back emptied buffers from parsers. The
// total number of JSONBuffers is constant: each buffer is in exactly one of
// {empty-pool, ingress, raw-queue, parser, being-released} at any time.
type Pool struct {
	empty chan *JSONBuffer
	raw   chan *JSONBuffer
	mu    sync.Mutex
	all   []*JSONBuffer
}

// NewPool allocates n JSONBuffers of the given capacity and seeds the empty
// channel with all of them. Capacity of the raw-JSON queue equals n, since a
// buffer can be in the raw queue or the empty pool but never both.
func NewPool(n, bufferCapacity int) *Pool {
	p := &Pool{
		empty: make(chan *JSONBuffer, n),
		raw:   make(chan *JSONBuffer, n),
		all:   make([]*JSONBuffer, n),
	}
	for i := 0; i < n; i++ {
		buf := NewJSONBuffer(bufferCapacity)
		p.all[i] = buf
		p.empty <- buf
	}
	return p
}

// Size returns the total number of JSONBuffers owned by this pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// AcquireEmpty blocks until an empty buffer is available and returns it.
func (p *Pool) AcquireEmpty() *JSONBuffer {
	return <-p.empty
}

// TryAcquireEmpty returns an empty buffer without blocking, or nil and false
// if none is currently available.
func (p *Pool) TryAcquireEmpty() (*JSONBuffer, bool) {
	select {
	case b := <-p.empty:
		return b, true
	default:
		return nil, false
	}
}

// SubmitFilled publishes a filled buffer on the raw-JSON queue for a parser
// worker to claim.
func (p *Pool) SubmitFilled(b *JSONBuffer) {
	p.raw <- b
}

// ClaimFilled blocks until a filled buffer is available on the raw-JSON
// queue, or returns nil, false if the queue was closed with none pending.
func (p *Pool) ClaimFilled() (*JSONBuffer, bool) {
	b, ok := <-p.raw
	return b, ok
}

// ClaimFilledContext blocks until a filled buffer is available on the
// raw-JSON queue, ctx is done, or the queue is closed with none pending. This
// lets a caller observe cancellation without leaving a goroutine blocked on
// the raw channel after it gives up, unlike wrapping ClaimFilled in a
// disposable goroutine+timer.
func (p *Pool) ClaimFilledContext(ctx context.Context) (*JSONBuffer, bool) {
	select {
	case b, ok := <-p.raw:
		return b, ok
	case <-ctx.Done():
		return nil, false
	}
}

// TryClaimFilled returns a filled buffer without blocking.
func (p *Pool) TryClaimFilled() (*JSONBuffer, bool) {
	select {
	case b, ok := <-p.raw:
		return b, ok
	default:
		return nil, false
	}
}

// Release clears the buffer's size and SeqRange and returns it to the empty
// pool.
func (p *Pool) Release(b *JSONBuffer) {
	b.Reset()
	p.empty <- b
}

// CloseRaw closes the raw-JSON queue so ClaimFilled unblocks with ok=false
// once drained, letting parser workers observe shutdown.
func (p *Pool) CloseRaw() {
	close(p.raw)
}
