package convert

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SigmaX-ai/bolson/buffer"
	"github.com/SigmaX-ai/bolson/parse"
)

// stubParser turns every input JSONBuffer into a one-row-per-sequence
// record, without touching the buffer's bytes — enough to exercise
// Orchestrator's wiring without a real JSON decoder.
type stubParser struct{}

func (stubParser) Parse(inputs []*buffer.JSONBuffer) ([]parse.ParsedBatch, error) {
	out := make([]parse.ParsedBatch, 0, len(inputs))
	for _, in := range inputs {
		n := int64(in.SeqRange().NumRows())
		mem := memory.NewGoAllocator()
		schema := arrow.NewSchema([]arrow.Field{{Name: "v", Type: arrow.PrimitiveTypes.Uint64}}, nil)
		b := array.NewUint64Builder(mem)
		for i := int64(0); i < n; i++ {
			b.Append(uint64(i))
		}
		col := b.NewArray()
		rec := array.NewRecord(schema, []arrow.Array{col}, n)
		col.Release()
		b.Release()
		out = append(out, parse.ParsedBatch{Batch: rec, SeqRange: in.SeqRange()})
	}
	return out, nil
}

func TestOrchestrator_ProcessesBuffersToOutput(t *testing.T) {
	pool := buffer.NewPool(2, 64)

	b := pool.AcquireEmpty()
	b.Fill([]byte(`{"v":1}`+"\n"), buffer.NewSeqRange(0, 0))
	pool.SubmitFilled(b)

	output := make(chan SerializedBatch, 4)
	o := &Orchestrator{
		Pool:       pool,
		Parsers:    []parse.Parser{stubParser{}},
		Resizer:    NewResizer(0),
		Serializer: MockSerializer{},
		Output:     output,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var stats Stats
	go func() {
		stats, _ = o.Start(ctx)
		close(done)
	}()

	select {
	case sb := <-output:
		assert.Equal(t, buffer.NewSeqRange(0, 0), sb.SeqRange)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for serialized batch")
	}

	cancel()
	<-done
	assert.Equal(t, uint64(1), stats.NumJSONs)
}

func TestOrchestrator_ClaimsBufferSubmittedAfterIdleGap(t *testing.T) {
	pool := buffer.NewPool(1, 64)

	output := make(chan SerializedBatch, 1)
	o := &Orchestrator{
		Pool:       pool,
		Parsers:    []parse.Parser{stubParser{}},
		Resizer:    NewResizer(0),
		Serializer: MockSerializer{},
		Output:     output,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_, _ = o.Start(ctx)
		close(done)
	}()

	// Idle past PollTimeout before anything is submitted, so the worker's
	// claimWithTimeout call has already timed out at least once.
	time.Sleep(3 * PollTimeout)

	b := pool.AcquireEmpty()
	b.Fill([]byte(`{"v":1}`+"\n"), buffer.NewSeqRange(0, 0))
	pool.SubmitFilled(b)

	select {
	case sb := <-output:
		assert.Equal(t, buffer.NewSeqRange(0, 0), sb.SeqRange)
	case <-time.After(time.Second):
		t.Fatal("buffer submitted after an idle gap was never claimed and published")
	}

	cancel()
	<-done
}

func TestOrchestrator_StopsOnCancelWithoutWork(t *testing.T) {
	pool := buffer.NewPool(1, 64)
	o := &Orchestrator{
		Pool:       pool,
		Parsers:    []parse.Parser{stubParser{}},
		Resizer:    NewResizer(0),
		Serializer: MockSerializer{},
		Output:     make(chan SerializedBatch, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		_, _ = o.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("orchestrator did not observe cancellation")
	}
	require.True(t, true)
}
