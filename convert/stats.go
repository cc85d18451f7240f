package convert

import "time"

// TimeStats breaks down a worker's wall time per stage, grounded on
// original_source/src/bolson/convert/stats.h.
type TimeStats struct {
	Parse     time.Duration
	Resize    time.Duration
	Serialize time.Duration
	Enqueue   time.Duration
	Thread    time.Duration
}

func (a *TimeStats) Add(b TimeStats) {
	a.Parse += b.Parse
	a.Resize += b.Resize
	a.Serialize += b.Serialize
	a.Enqueue += b.Enqueue
	a.Thread += b.Thread
}

// Stats holds per-worker counters for the conversion pipeline, matching
// spec.md §3's "jsons parsed, bytes parsed, batches produced, IPC bytes
// produced, and elapsed wall time in each stage".
type Stats struct {
	NumJSONs   uint64
	JSONBytes  uint64
	NumParsed  uint64
	NumIPC     uint64
	IPCBytes   uint64
	Time       TimeStats
	Status     error
}

// Add accumulates other into s, matching stats.cpp's operator+=.
func (s *Stats) Add(other Stats) {
	s.NumJSONs += other.NumJSONs
	s.JSONBytes += other.JSONBytes
	s.NumParsed += other.NumParsed
	s.NumIPC += other.NumIPC
	s.IPCBytes += other.IPCBytes
	s.Time.Add(other.Time)
	if s.Status == nil {
		s.Status = other.Status
	}
}

// AggrStats sums a slice of per-worker Stats element-wise, matching
// stats.cpp's AggrStats.
func AggrStats(all []Stats) Stats {
	var out Stats
	for _, s := range all {
		out.Add(s)
	}
	return out
}
