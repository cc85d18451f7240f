package latency

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_MarkAndEndToEnd(t *testing.T) {
	tr := NewTracker()
	start := time.Now()
	tr.MarkAt(1, Received, start)
	tr.MarkAt(1, Published, start.Add(5*time.Millisecond))

	d, ok := tr.EndToEnd(1)
	require.True(t, ok)
	assert.Equal(t, 5*time.Millisecond, d)
}

func TestTracker_EndToEnd_MissingCheckpoint(t *testing.T) {
	tr := NewTracker()
	tr.Mark(2, Received)
	_, ok := tr.EndToEnd(2)
	assert.False(t, ok, "Published not yet marked, EndToEnd must report not-ready")
}

func TestTracker_MarkRange(t *testing.T) {
	tr := NewTracker()
	tr.MarkRange(10, 12, Resized)
	for seq := uint64(10); seq <= 12; seq++ {
		m := findMeasurement(t, tr, seq)
		assert.False(t, m.Points[Resized].IsZero())
	}
}

func TestTracker_Measurements_SortedBySeq(t *testing.T) {
	tr := NewTracker()
	tr.Mark(5, Received)
	tr.Mark(1, Received)
	tr.Mark(3, Received)

	ms := tr.Measurements()
	require.Len(t, ms, 3)
	assert.Equal(t, []uint64{1, 3, 5}, []uint64{ms[0].Seq, ms[1].Seq, ms[2].Seq})
}

func TestDumpCSV_WritesHeaderAndRows(t *testing.T) {
	tr := NewTracker()
	tr.Mark(1, Received)
	tr.Mark(1, Published)

	path := filepath.Join(t.TempDir(), "latency.csv")
	require.NoError(t, DumpCSV(tr, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "seq,received,parsed,resized,serialized,published")
	assert.Contains(t, string(data), "1,")
}

func findMeasurement(t *testing.T, tr *Tracker, seq uint64) Measurement {
	t.Helper()
	for _, m := range tr.Measurements() {
		if m.Seq == seq {
			return m
		}
	}
	t.Fatalf("no measurement for seq %d", seq)
	return Measurement{}
}
