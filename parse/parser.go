// Package parse turns filled JSONBuffers into typed Arrow record batches.
// It exposes two backends: a generic software parser over the Arrow JSON
// reader, and an accelerator parser that programs memory-mapped registers on
// a device and polls for completion.
package parse

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/SigmaX-ai/bolson/buffer"
)

// ParsedBatch is a typed columnar record batch plus the SeqRange of the
// input buffer that produced it.
// Invariant: batch.NumRows() == seqRange.Last - seqRange.First + 1.
type ParsedBatch struct {
	Batch    arrow.Record
	SeqRange buffer.SeqRange
}

// Parser takes a list of filled input buffers and emits parsed batches
// paired with their sequence range. The SeqRange of each ParsedBatch equals
// that of its source JSONBuffer: Parse never merges buffers into one batch.
type Parser interface {
	Parse(inputs []*buffer.JSONBuffer) ([]ParsedBatch, error)
}

// Impl tags which backend a ParserContext was built for.
type Impl int

const (
	BackendSoftware Impl = iota
	BackendAccelerator
)

func (i Impl) String() string {
	switch i {
	case BackendSoftware:
		return "software"
	case BackendAccelerator:
		return "accelerator"
	default:
		return "unknown"
	}
}

// MaxAcceleratorInstances bounds the number of accelerator parser instances
// that fit in a 1 MiB MMIO window at the register layout described in
// Context, matching the original's up-to-256-instances constraint.
const MaxAcceleratorInstances = 256

// Context owns backend resources (schemas, device handles, output buffers)
// and exposes a fleet of Parser workers, following the ParserContext
// factory pattern: Make(options) -> Context.
type Context interface {
	// Parsers returns the fleet of independent Parser workers.
	Parsers() []Parser
	InputSchema() *arrow.Schema
	OutputSchema() *arrow.Schema
	// CheckThreadCount returns the backend-mandated worker count if the
	// requested count is incompatible with this backend.
	CheckThreadCount(n int) (int, error)
	// CheckBufferCount returns the backend-mandated buffer count if the
	// requested count is incompatible with this backend.
	CheckBufferCount(n int) (int, error)
	// Allocator returns the allocator the buffer pool must use for this
	// backend's output regions.
	Allocator() buffer.Allocator
	// Close releases backend resources (device handles, pinned memory).
	Close() error
}

// SeqField is the prepended 64-bit sequence-number column used when the
// sequence-column option is enabled, matching convert.cpp's SeqField().
func SeqField() arrow.Field {
	return arrow.Field{Name: "seq", Type: arrow.PrimitiveTypes.Uint64, Nullable: false}
}
