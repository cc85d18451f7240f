package parse

import (
	"bytes"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/json"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/SigmaX-ai/bolson/buffer"
	"github.com/SigmaX-ai/bolson/errors"
)

// SoftwareOptions configures the generic software parser, grounded on
// original_source/src/bolson/parse/arrow_impl.h's ArrowOptions.
type SoftwareOptions struct {
	// Schema is the fixed output schema for this run (without the seq
	// column; SeqColumn controls whether it is prepended).
	Schema *arrow.Schema
	// SeqColumn, when true, prepends a 64-bit sequence-number column built
	// on the host rather than carrying the SeqRange out-of-band in batch
	// metadata only.
	SeqColumn bool
	// ChunkSize caps the number of rows the JSON reader batches per chunk.
	ChunkSize int64
}

// SoftwareContext is the ParserContext variant backed by Arrow's own
// streaming JSON reader, with no device resources to release on Close.
type SoftwareContext struct {
	opts      SoftwareOptions
	allocator buffer.Allocator
	mem       memory.Allocator
	numParsers int
}

// NewSoftwareContext builds the software ParserContext with numParsers
// independent Parser workers, each wrapping the same schema/options.
func NewSoftwareContext(opts SoftwareOptions, numParsers int, allocator buffer.Allocator) *SoftwareContext {
	if allocator == nil {
		allocator = buffer.NewHeapAllocator()
	}
	if numParsers < 1 {
		numParsers = 1
	}
	return &SoftwareContext{
		opts:       opts,
		allocator:  allocator,
		mem:        NewArrowAllocator(allocator),
		numParsers: numParsers,
	}
}

func (c *SoftwareContext) Parsers() []Parser {
	out := make([]Parser, c.numParsers)
	for i := range out {
		out[i] = &softwareParser{opts: c.opts, mem: c.mem}
	}
	return out
}

func (c *SoftwareContext) InputSchema() *arrow.Schema { return c.opts.Schema }

func (c *SoftwareContext) OutputSchema() *arrow.Schema {
	if c.opts.SeqColumn {
		fields := append([]arrow.Field{SeqField()}, c.opts.Schema.Fields()...)
		return arrow.NewSchema(fields, nil)
	}
	return c.opts.Schema
}

// CheckThreadCount is a no-op for the software backend: any worker count is
// valid, so the requested count is echoed back unchanged.
func (c *SoftwareContext) CheckThreadCount(n int) (int, error) { return n, nil }

// CheckBufferCount is a no-op for the software backend.
func (c *SoftwareContext) CheckBufferCount(n int) (int, error) { return n, nil }

func (c *SoftwareContext) Allocator() buffer.Allocator { return c.allocator }

func (c *SoftwareContext) Close() error { return nil }

// softwareParser parses each input buffer with Arrow's streaming JSON
// reader, producing one ParsedBatch per buffer.
type softwareParser struct {
	opts SoftwareOptions
	mem  memory.Allocator
}

func (p *softwareParser) Parse(inputs []*buffer.JSONBuffer) ([]ParsedBatch, error) {
	out := make([]ParsedBatch, 0, len(inputs))
	for _, in := range inputs {
		batch, err := p.parseOne(in)
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	return out, nil
}

func (p *softwareParser) parseOne(in *buffer.JSONBuffer) (ParsedBatch, error) {
	if !in.SeqRange().Valid() {
		return ParsedBatch{}, nil
	}

	reader := json.NewRawReader(bytes.NewReader(in.Bytes()), p.opts.Schema,
		json.WithAllocator(p.mem),
		json.WithChunk(int(p.opts.ChunkSize)),
	)
	defer reader.Release()

	if !reader.Next() {
		if err := reader.Err(); err != nil {
			return ParsedBatch{}, errors.WrapKind(errors.KindParse, err, "softwareParser", "Parse", "read JSON chunk")
		}
	}
	rec := reader.Record()
	if rec == nil {
		return ParsedBatch{}, errors.WrapKind(errors.KindParse, errors.ErrInvalidData, "softwareParser", "Parse", "empty record from input buffer")
	}
	rec.Retain()

	seqRange := in.SeqRange()
	if int64(rec.NumRows()) != int64(seqRange.NumRows()) {
		rec.Release()
		return ParsedBatch{}, errors.WrapKind(errors.KindParse, errors.ErrInvalidData, "softwareParser", "Parse", "row count does not match seq range")
	}

	if p.opts.SeqColumn {
		rec = prependSeqColumn(rec, seqRange, p.mem)
	}

	return ParsedBatch{Batch: rec, SeqRange: seqRange}, nil
}

// prependSeqColumn builds a uint64 column ascending from seqRange.First to
// seqRange.Last and prepends it to rec, matching the accelerator parser's
// host-side sequence column construction so both backends share one shape.
func prependSeqColumn(rec arrow.Record, seqRange buffer.SeqRange, mem memory.Allocator) arrow.Record {
	bldr := array.NewUint64Builder(mem)
	defer bldr.Release()
	for seq := seqRange.First; seq <= seqRange.Last; seq++ {
		bldr.Append(seq)
	}
	seqArr := bldr.NewArray()
	defer seqArr.Release()

	cols := make([]arrow.Array, 0, rec.NumCols()+1)
	cols = append(cols, seqArr)
	for i := 0; i < int(rec.NumCols()); i++ {
		cols = append(cols, rec.Column(i))
	}
	fields := append([]arrow.Field{SeqField()}, rec.Schema().Fields()...)
	schema := arrow.NewSchema(fields, nil)
	out := array.NewRecord(schema, cols, rec.NumRows())
	rec.Release()
	return out
}
