package sample

import "time"

// Store is the in-memory run state: the ordered sample sequence plus the
// run's error counter and identity. It does no I/O and is deliberately not
// safe for concurrent use; only the monitor loop mutates it. Anything that
// wants to observe a run in flight reads the checkpoint file instead.
type Store struct {
	server  string
	start   time.Time
	samples []Sample
	errors  int
}

func NewStore(server string, start time.Time) *Store {
	return &Store{server: server, start: start}
}

// Restore rebuilds a store from checkpointed state. The sample slice is
// owned by the store after this call.
func Restore(server string, start time.Time, samples []Sample, errors int) *Store {
	return &Store{
		server:  server,
		start:   start,
		samples: samples,
		errors:  errors,
	}
}

func (s *Store) Append(smp Sample) {
	s.samples = append(s.samples, smp)
}

func (s *Store) RecordError() {
	s.errors++
}

func (s *Store) Count() int {
	return len(s.samples)
}

func (s *Store) ErrorCount() int {
	return s.errors
}

// Snapshot returns a copy of the sample sequence in insertion order.
func (s *Store) Snapshot() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

func (s *Store) Server() string {
	return s.server
}

func (s *Store) StartTime() time.Time {
	return s.start
}
