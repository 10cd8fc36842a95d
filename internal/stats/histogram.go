package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// safeHistogram guards an hdrhistogram with a mutex; the library itself is
// not safe for concurrent recording.
type safeHistogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newSafeHistogram() *safeHistogram {
	// 1us to 5min covers anything short of a hung query, 3 sig figs.
	return &safeHistogram{
		hist: hdrhistogram.New(1, int64(5*time.Minute/time.Microsecond), 3),
	}
}

func (h *safeHistogram) record(us int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if us < 1 {
		us = 1
	}
	if max := h.hist.HighestTrackableValue(); us > max {
		us = max
	}
	h.hist.RecordValue(us)
}

func (h *safeHistogram) valueAtQuantile(q float64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.ValueAtQuantile(q)
}

func (h *safeHistogram) mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Mean()
}

func (h *safeHistogram) max() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Max()
}
