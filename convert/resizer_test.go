package convert

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SigmaX-ai/bolson/buffer"
	"github.com/SigmaX-ai/bolson/parse"
)

func uint64Record(t *testing.T, n int64) arrow.Record {
	t.Helper()
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{{Name: "v", Type: arrow.PrimitiveTypes.Uint64}}, nil)
	b := array.NewUint64Builder(mem)
	defer b.Release()
	for i := int64(0); i < n; i++ {
		b.Append(uint64(i))
	}
	col := b.NewArray()
	defer col.Release()
	return array.NewRecord(schema, []arrow.Array{col}, n)
}

func TestResizer_PassesThroughWhenUnderLimit(t *testing.T) {
	rec := uint64Record(t, 10)
	r := NewResizer(100)
	out := r.Resize(parse.ParsedBatch{Batch: rec, SeqRange: buffer.NewSeqRange(0, 9)})
	require.Len(t, out, 1)
	assert.Equal(t, rec, out[0].Batch)
	assert.Equal(t, buffer.NewSeqRange(0, 9), out[0].SeqRange)
}

func TestResizer_SplitsOnBoundary(t *testing.T) {
	rec := uint64Record(t, 25)
	r := NewResizer(10)
	out := r.Resize(parse.ParsedBatch{Batch: rec, SeqRange: buffer.NewSeqRange(100, 124)})
	require.Len(t, out, 3)

	assert.Equal(t, int64(10), out[0].Batch.NumRows())
	assert.Equal(t, buffer.NewSeqRange(100, 109), out[0].SeqRange)

	assert.Equal(t, int64(10), out[1].Batch.NumRows())
	assert.Equal(t, buffer.NewSeqRange(110, 119), out[1].SeqRange)

	assert.Equal(t, int64(5), out[2].Batch.NumRows(), "final slice carries the remainder, not a full MaxRows chunk")
	assert.Equal(t, buffer.NewSeqRange(120, 124), out[2].SeqRange)
}

func TestResizer_ZeroMaxRowsMeansUnbounded(t *testing.T) {
	rec := uint64Record(t, 1000)
	r := NewResizer(0)
	out := r.Resize(parse.ParsedBatch{Batch: rec, SeqRange: buffer.NewSeqRange(0, 999)})
	require.Len(t, out, 1)
}
