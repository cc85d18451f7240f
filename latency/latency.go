// Package latency tracks per-sequence-number timestamps at a small set of
// labelled checkpoints, grounded on original_source/src/bolson/latency.h.
package latency

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/SigmaX-ai/bolson/pkg/timestamp"
)

// Checkpoint identifies a point in the pipeline at which a timestamp for a
// given sequence number is recorded. The five checkpoints match latency.h's
// TimePoints indices exactly.
type Checkpoint int

const (
	Received Checkpoint = iota
	Parsed
	Resized
	Serialized
	Published

	numCheckpoints = int(Published) + 1
)

func (c Checkpoint) String() string {
	switch c {
	case Received:
		return "received"
	case Parsed:
		return "parsed"
	case Resized:
		return "resized"
	case Serialized:
		return "serialized"
	case Published:
		return "published"
	default:
		return "unknown"
	}
}

// TimePoints holds one timestamp per checkpoint for a single sequence number.
// The zero value means "not yet recorded" for that checkpoint.
type TimePoints [numCheckpoints]time.Time

// Measurement pairs a sequence number with its TimePoints.
type Measurement struct {
	Seq    uint64
	Points TimePoints
}

// Tracker is a mapping from sequence number to TimePoints. Deliberately
// cheap: callers on a hot path may choose to sample rather than record every
// sequence number.
type Tracker struct {
	mu   sync.Mutex
	rows map[uint64]*TimePoints
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{rows: make(map[uint64]*TimePoints)}
}

// Mark records now() at the given checkpoint for seq.
func (t *Tracker) Mark(seq uint64, cp Checkpoint) {
	t.MarkAt(seq, cp, time.Now())
}

// MarkAt records the given timestamp at the given checkpoint for seq.
func (t *Tracker) MarkAt(seq uint64, cp Checkpoint, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tp, ok := t.rows[seq]
	if !ok {
		tp = &TimePoints{}
		t.rows[seq] = tp
	}
	tp[cp] = at
}

// MarkRange marks every sequence number in [first,last] at cp with the same
// timestamp, for batch-granularity checkpoints (resized/serialized/published).
func (t *Tracker) MarkRange(first, last uint64, cp Checkpoint) {
	now := time.Now()
	for seq := first; seq <= last; seq++ {
		t.MarkAt(seq, cp, now)
	}
}

// Measurements returns a snapshot of all recorded measurements, sorted by
// sequence number.
func (t *Tracker) Measurements() []Measurement {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Measurement, 0, len(t.rows))
	for seq, tp := range t.rows {
		out = append(out, Measurement{Seq: seq, Points: *tp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// DumpCSV writes one row per sequence number with its checkpoint timestamps
// (millisecond-precision, blank if unset) to path, matching the original's
// DumpLatencyStats output path. Timestamps are formatted via pkg/timestamp
// rather than time.Time.Format directly, keeping the on-disk precision
// consistent with the rest of the codebase's millisecond convention.
func DumpCSV(t *Tracker, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "seq,received,parsed,resized,serialized,published"); err != nil {
		return err
	}
	for _, m := range t.Measurements() {
		fields := make([]string, numCheckpoints)
		for i := 0; i < numCheckpoints; i++ {
			if !m.Points[i].IsZero() {
				fields[i] = timestamp.Format(timestamp.ToUnixMs(m.Points[i]))
			}
		}
		if _, err := fmt.Fprintf(f, "%d,%s,%s,%s,%s,%s\n", m.Seq,
			fields[Received], fields[Parsed], fields[Resized], fields[Serialized], fields[Published]); err != nil {
			return err
		}
	}
	return nil
}

// EndToEnd returns the duration between the Received and Published
// checkpoints for seq, or false if either is missing.
func (t *Tracker) EndToEnd(seq uint64) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tp, ok := t.rows[seq]
	if !ok {
		return 0, false
	}
	if tp[Received].IsZero() || tp[Published].IsZero() {
		return 0, false
	}
	return tp[Published].Sub(tp[Received]), true
}
