package convert

import (
	"github.com/SigmaX-ai/bolson/buffer"
	"github.com/SigmaX-ai/bolson/parse"
)

// Resizer splits a ParsedBatch into slices of at most MaxRows rows while
// preserving sequence-range contiguity. It does not measure serialized size:
// a slice can still exceed the bus's maximum message size, and a single
// oversize row is not detected here; Serializer rejects such output. Grounded
// verbatim on original_source/src/bolson/convert/resizer.cpp's slicing loop.
type Resizer struct {
	MaxRows int64
}

// NewResizer returns a Resizer splitting at maxRows rows per batch.
func NewResizer(maxRows int64) Resizer {
	return Resizer{MaxRows: maxRows}
}

// Resize slices in.Batch into consecutive row ranges of at most MaxRows
// rows each. Each split inherits the contiguous sub-range of the parent
// SeqRange: {first+offset, first+offset+count-1}, with the final slice
// using the remainder instead of MaxRows. If the whole batch already fits,
// it is pushed through unresized.
func (r Resizer) Resize(in parse.ParsedBatch) []ResizedBatch {
	numRows := in.Batch.NumRows()
	if r.MaxRows <= 0 || numRows <= r.MaxRows {
		return []ResizedBatch{{Batch: in.Batch, SeqRange: in.SeqRange}}
	}

	out := make([]ResizedBatch, 0, (numRows+r.MaxRows-1)/r.MaxRows)
	first := in.SeqRange.First
	var offset int64
	remaining := numRows
	for remaining > 0 {
		count := r.MaxRows
		if remaining < count {
			count = remaining
		}
		slice := in.Batch.NewSlice(offset, offset+count)
		seqFirst := first + uint64(offset)
		seqLast := seqFirst + uint64(count) - 1
		out = append(out, ResizedBatch{
			Batch:    slice,
			SeqRange: buffer.NewSeqRange(seqFirst, seqLast),
		})
		offset += count
		remaining -= count
	}
	return out
}
