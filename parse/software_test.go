package parse

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SigmaX-ai/bolson/buffer"
)

func testSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "voltage", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	}, nil)
}

func fillBuffer(t *testing.T, jsonLines string, first, last uint64) *buffer.JSONBuffer {
	t.Helper()
	b := buffer.NewJSONBuffer(len(jsonLines))
	b.Fill([]byte(jsonLines), buffer.NewSeqRange(first, last))
	return b
}

func TestSoftwareParser_ParsesBufferWithoutSeqColumn(t *testing.T) {
	ctx := NewSoftwareContext(SoftwareOptions{
		Schema:    testSchema(),
		SeqColumn: false,
		ChunkSize: 1 << 10,
	}, 1, nil)
	defer ctx.Close()

	parsers := ctx.Parsers()
	require.Len(t, parsers, 1)

	in := fillBuffer(t, "{\"voltage\":1.5}\n{\"voltage\":2.5}\n", 0, 1)
	out, err := parsers[0].Parse([]*buffer.JSONBuffer{in})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, buffer.NewSeqRange(0, 1), out[0].SeqRange)
	assert.Equal(t, int64(2), out[0].Batch.NumRows())
	assert.Equal(t, int64(1), out[0].Batch.NumCols(), "no seq column requested")
	out[0].Batch.Release()
}

func TestSoftwareParser_PrependsSeqColumn(t *testing.T) {
	ctx := NewSoftwareContext(SoftwareOptions{
		Schema:    testSchema(),
		SeqColumn: true,
		ChunkSize: 1 << 10,
	}, 1, nil)
	defer ctx.Close()

	parsers := ctx.Parsers()
	in := fillBuffer(t, "{\"voltage\":9.9}\n", 42, 42)
	out, err := parsers[0].Parse([]*buffer.JSONBuffer{in})
	require.NoError(t, err)
	require.Len(t, out, 1)

	rec := out[0].Batch
	defer rec.Release()
	assert.Equal(t, int64(2), rec.NumCols())
	assert.Equal(t, "seq", rec.Schema().Field(0).Name)

	col, ok := rec.Column(0).(interface{ Value(int) uint64 })
	require.True(t, ok, "seq column should be a uint64 array")
	assert.Equal(t, uint64(42), col.Value(0))
}

func TestSoftwareParser_RowCountMismatchIsParseError(t *testing.T) {
	ctx := NewSoftwareContext(SoftwareOptions{Schema: testSchema(), ChunkSize: 1 << 10}, 1, nil)
	defer ctx.Close()

	in := fillBuffer(t, "{\"voltage\":1.5}\n{\"voltage\":2.5}\n", 0, 0) // claims 1 row, has 2
	_, err := ctx.Parsers()[0].Parse([]*buffer.JSONBuffer{in})
	require.Error(t, err)
}

func TestSoftwareContext_OutputSchemaReflectsSeqColumn(t *testing.T) {
	withSeq := NewSoftwareContext(SoftwareOptions{Schema: testSchema(), SeqColumn: true}, 1, nil)
	assert.Equal(t, 2, len(withSeq.OutputSchema().Fields()))

	withoutSeq := NewSoftwareContext(SoftwareOptions{Schema: testSchema(), SeqColumn: false}, 1, nil)
	assert.Equal(t, 1, len(withoutSeq.OutputSchema().Fields()))
}
