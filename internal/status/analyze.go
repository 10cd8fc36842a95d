// Package status inspects a run from the outside. It only ever reads the
// checkpoint file; live run state belongs to the monitor loop alone.
package status

import (
	"os"
	"time"

	"sqlpulse/internal/checkpoint"
	"sqlpulse/internal/sample"
)

// staleAfter is how old a checkpoint may be before the run is presumed
// stopped or crashed.
const staleAfter = 5 * time.Minute

type SampleLine struct {
	Time        time.Time
	CPUPct      float64
	BufferMB    float64
	TotalMB     float64
	Connections float64
}

type Averages struct {
	CPUPct       float64
	BufferPoolMB float64
	BatchPerSec  float64
	Connections  float64
	Reads        float64
	Writes       float64
}

type Peak struct {
	Value float64
	Time  time.Time
}

type Report struct {
	Path     string
	FileSize int64
	Modified time.Time

	Checkpoint *checkpoint.File

	Elapsed         time.Duration
	SinceCheckpoint time.Duration
	Stale           bool

	SuccessRate float64
	Recent      []SampleLine
	Averages    *Averages

	PeakCPU         *Peak
	PeakMemoryMB    *Peak
	PeakConnections *Peak
}

// Analyze loads a checkpoint file and derives the status view from it.
func Analyze(path string) (*Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := checkpoint.Load(path)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	r := &Report{
		Path:            path,
		FileSize:        info.Size(),
		Modified:        info.ModTime(),
		Checkpoint:      f,
		Elapsed:         f.CheckpointTime.Sub(f.StartTime),
		SinceCheckpoint: now.Sub(f.CheckpointTime),
	}
	r.Stale = r.SinceCheckpoint > staleAfter

	attempted := f.SamplesCollected + f.ErrorsCount
	if attempted > 0 {
		r.SuccessRate = float64(f.SamplesCollected) / float64(attempted) * 100
	}

	if len(f.Samples) > 0 {
		r.Recent = recentLines(f.Samples, 5)
		r.Averages = averages(f.Samples)
		r.PeakCPU = peakBy(f.Samples, cpuPct)
		r.PeakMemoryMB = peakBy(f.Samples, func(s sample.Sample) float64 {
			v, _ := s.Number("memory", "buffer_pool_mb")
			return v
		})
		r.PeakConnections = peakBy(f.Samples, func(s sample.Sample) float64 {
			v, _ := s.Number("activity", "user_connections")
			return v
		})
	}
	return r, nil
}

func cpuPct(s sample.Sample) float64 {
	cpuTime, _ := s.Number("cpu", "sql_server_cpu_time_ms")
	cpus, _ := s.Number("cpu", "total_cpus")
	if cpus <= 0 {
		return 0
	}
	return cpuTime / (cpus * 1000) * 100
}

func recentLines(samples []sample.Sample, n int) []SampleLine {
	if len(samples) < n {
		n = len(samples)
	}
	lines := make([]SampleLine, 0, n)
	for _, s := range samples[len(samples)-n:] {
		buffer, _ := s.Number("memory", "buffer_pool_mb")
		total, _ := s.Number("memory", "total_mb")
		conns, _ := s.Number("activity", "user_connections")
		lines = append(lines, SampleLine{
			Time:        s.Timestamp,
			CPUPct:      cpuPct(s),
			BufferMB:    buffer,
			TotalMB:     total,
			Connections: conns,
		})
	}
	return lines
}

func averages(samples []sample.Sample) *Averages {
	var a Averages
	for _, s := range samples {
		a.CPUPct += cpuPct(s)
		add(&a.BufferPoolMB, s, "memory", "buffer_pool_mb")
		add(&a.BatchPerSec, s, "activity", "batch_requests_per_sec")
		add(&a.Connections, s, "activity", "user_connections")
		add(&a.Reads, s, "io", "total_reads")
		add(&a.Writes, s, "io", "total_writes")
	}
	n := float64(len(samples))
	a.CPUPct /= n
	a.BufferPoolMB /= n
	a.BatchPerSec /= n
	a.Connections /= n
	a.Reads /= n
	a.Writes /= n
	return &a
}

func add(dst *float64, s sample.Sample, group, field string) {
	v, _ := s.Number(group, field)
	*dst += v
}

func peakBy(samples []sample.Sample, metric func(sample.Sample) float64) *Peak {
	best := Peak{Value: metric(samples[0]), Time: samples[0].Timestamp}
	for _, s := range samples[1:] {
		if v := metric(s); v > best.Value {
			best = Peak{Value: v, Time: s.Timestamp}
		}
	}
	return &best
}
