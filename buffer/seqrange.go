package buffer

import "fmt"

// SeqRange is a closed interval [First, Last] of 64-bit monotonic sequence
// numbers assigned at ingress, one per JSON record. A SeqRange covering zero
// records does not exist; use EmptySeqRange to represent "no records yet".
type SeqRange struct {
	First uint64
	Last  uint64
	valid bool
}

// NewSeqRange builds a SeqRange covering [first, last]. Panics if last < first,
// since a range with zero records is disallowed by construction.
func NewSeqRange(first, last uint64) SeqRange {
	if last < first {
		panic(fmt.Sprintf("buffer: invalid seq range [%d,%d]", first, last))
	}
	return SeqRange{First: first, Last: last, valid: true}
}

// EmptySeqRange returns the zero-value SeqRange representing "no records".
func EmptySeqRange() SeqRange {
	return SeqRange{}
}

// Valid reports whether this range covers at least one record.
func (r SeqRange) Valid() bool {
	return r.valid
}

// NumRows is the number of sequence numbers covered by this range.
func (r SeqRange) NumRows() uint64 {
	if !r.valid {
		return 0
	}
	return r.Last - r.First + 1
}

// Union returns the SeqRange spanning both r and other. Both must be valid.
func (r SeqRange) Union(other SeqRange) SeqRange {
	if !r.valid {
		return other
	}
	if !other.valid {
		return r
	}
	first, last := r.First, r.Last
	if other.First < first {
		first = other.First
	}
	if other.Last > last {
		last = other.Last
	}
	return NewSeqRange(first, last)
}

// Less orders ranges by First, matching the original serializer's
// operator< (ascending by seq_range.first).
func (r SeqRange) Less(other SeqRange) bool {
	return r.First < other.First
}

func (r SeqRange) String() string {
	if !r.valid {
		return "[]"
	}
	return fmt.Sprintf("[%d,%d]", r.First, r.Last)
}
