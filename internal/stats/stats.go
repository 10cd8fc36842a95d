// Package stats holds the shared counters the load-generator workers
// write into. Two monotonic counters plus one latency histogram is the
// entire cross-worker surface; there is no per-worker state.
package stats

import (
	"sync/atomic"
	"time"
)

// LoadStats is safe for concurrent use by any number of workers.
type LoadStats struct {
	executed atomic.Uint64
	errors   atomic.Uint64
	latency  *safeHistogram
}

func NewLoadStats() *LoadStats {
	return &LoadStats{latency: newSafeHistogram()}
}

// RecordQuery counts one successfully executed query and its latency.
func (s *LoadStats) RecordQuery(d time.Duration) {
	s.executed.Add(1)
	s.latency.record(d.Microseconds())
}

// RecordError counts one failed query. The counter never decrements.
func (s *LoadStats) RecordError() {
	s.errors.Add(1)
}

func (s *LoadStats) Executed() uint64 {
	return s.executed.Load()
}

func (s *LoadStats) Errors() uint64 {
	return s.errors.Load()
}

// SuccessRate returns the percentage of attempted queries that succeeded.
func (s *LoadStats) SuccessRate() float64 {
	ok := s.executed.Load()
	total := ok + s.errors.Load()
	if total == 0 {
		return 0
	}
	return float64(ok) / float64(total) * 100
}

func (s *LoadStats) MeanLatencyMs() float64 {
	return s.latency.mean() / 1000.0
}

func (s *LoadStats) P99LatencyMs() float64 {
	return float64(s.latency.valueAtQuantile(99)) / 1000.0
}

func (s *LoadStats) MaxLatencyMs() int64 {
	return s.latency.max() / 1000
}
