package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeqRange_NumRows(t *testing.T) {
	r := NewSeqRange(10, 19)
	assert.Equal(t, uint64(10), r.NumRows())
}

func TestSeqRange_Union(t *testing.T) {
	a := NewSeqRange(0, 9)
	b := NewSeqRange(10, 19)
	u := a.Union(b)
	assert.Equal(t, uint64(0), u.First)
	assert.Equal(t, uint64(19), u.Last)
}

func TestSeqRange_Less(t *testing.T) {
	a := NewSeqRange(0, 9)
	b := NewSeqRange(10, 19)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}

func TestSeqRange_PanicsOnInvertedBounds(t *testing.T) {
	assert.Panics(t, func() { NewSeqRange(5, 4) })
}

func TestEmptySeqRange_NotValid(t *testing.T) {
	r := EmptySeqRange()
	assert.False(t, r.Valid())
}

func TestSeqRange_ValidSingleRow(t *testing.T) {
	r := NewSeqRange(7, 7)
	require.True(t, r.Valid())
	assert.Equal(t, uint64(1), r.NumRows())
}
