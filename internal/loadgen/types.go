package loadgen

import (
	"context"
	"fmt"
	"time"
)

// Intensity is a named tier controlling the synthetic query mix and the
// target aggregate rate.
type Intensity string

const (
	IntensityLight  Intensity = "light"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

func ParseIntensity(s string) (Intensity, error) {
	switch Intensity(s) {
	case IntensityLight, IntensityMedium, IntensityHigh:
		return Intensity(s), nil
	}
	return "", fmt.Errorf("unknown intensity %q (want light, medium or high)", s)
}

// QueriesPerMinute is the target aggregate rate for the tier across all
// workers.
func (i Intensity) QueriesPerMinute() int {
	switch i {
	case IntensityLight:
		return 60
	case IntensityMedium:
		return 120
	case IntensityHigh:
		return 240
	default:
		return 60
	}
}

// QueryClass partitions the synthetic queries by cost. The generator never
// interprets the query text, only picks a class per the intensity mix.
type QueryClass string

const (
	ClassLight  QueryClass = "light"
	ClassMedium QueryClass = "medium"
	ClassHeavy  QueryClass = "heavy"
)

// QuerySet maps each class to its opaque query templates.
type QuerySet map[QueryClass][]string

// Conn is one worker's private connection to the target. A Conn is owned
// exclusively by the worker that opened it.
type Conn interface {
	Exec(ctx context.Context, query string) error
	Close() error
}

// Connector dials a fresh Conn for a worker.
type Connector func(ctx context.Context) (Conn, error)

type Config struct {
	Intensity Intensity
	Duration  time.Duration
	Threads   int

	// TargetQPM overrides the intensity-derived aggregate rate when > 0.
	TargetQPM int

	// Queries defaults to DefaultQueries when nil.
	Queries QuerySet

	// ReportInterval is the cadence of the trailing-QPS progress report.
	ReportInterval time.Duration

	// JoinTimeout bounds how long Run waits for workers after deactivation.
	// Workers still running after it are abandoned, not killed.
	JoinTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.TargetQPM <= 0 {
		out.TargetQPM = out.Intensity.QueriesPerMinute()
	}
	if out.Queries == nil {
		out.Queries = DefaultQueries()
	}
	if out.ReportInterval <= 0 {
		out.ReportInterval = 10 * time.Second
	}
	if out.JoinTimeout <= 0 {
		out.JoinTimeout = 10 * time.Second
	}
	return out
}
