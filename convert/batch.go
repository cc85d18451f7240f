// Package convert resizes parsed batches to fit a bus message-size ceiling,
// serializes them to the Arrow IPC wire format, and orchestrates a pool of
// parser workers that feed a publisher.
package convert

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/SigmaX-ai/bolson/buffer"
)

// ResizedBatch is shaped like parse.ParsedBatch, holding at most the
// Resizer's MaxRows rows. Its serialized size is not checked until
// Serializer.Serialize.
type ResizedBatch struct {
	Batch    arrow.Record
	SeqRange buffer.SeqRange
}

// SerializedBatch is an opaque encoded message plus its SeqRange.
// Comparable by SeqRange.First for ordered inspection.
// Invariant: len(Message) <= max message size.
type SerializedBatch struct {
	Message  []byte
	SeqRange buffer.SeqRange
}

// ByteSize is the size of the encoded message, matching serializer.cpp's
// ByteSizeOf.
func (b SerializedBatch) ByteSize() int { return len(b.Message) }

// RecordSize is seq_range.last - seq_range.first + 1, matching
// serializer.cpp's RecordSizeOf.
func (b SerializedBatch) RecordSize() uint64 { return b.SeqRange.NumRows() }

// Less orders SerializedBatches by SeqRange.First, matching serializer.cpp's
// operator<.
func (b SerializedBatch) Less(other SerializedBatch) bool {
	return b.SeqRange.Less(other.SeqRange)
}
