// Package source is the boundary to the monitored engine. The monitor
// core only sees the Source interface and the error taxonomy; everything
// SQL Server specific stays behind it.
package source

import (
	"context"
	"errors"

	"sqlpulse/internal/sample"
)

// Source produces one metrics snapshot per call. Implementations must
// honor ctx cancellation and deadlines; the monitor bounds every Collect
// with a timeout.
type Source interface {
	Collect(ctx context.Context) (sample.Sample, error)
}

var (
	// ErrConnectionFailed is fatal: the run aborts before any sampling.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrPermissionDenied is fatal: the monitoring login lacks VIEW SERVER STATE.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTimeout is recoverable: the sample is counted as an error and the
	// loop moves on.
	ErrTimeout = errors.New("sample query timed out")
	// ErrQueryFailed is recoverable, same handling as ErrTimeout.
	ErrQueryFailed = errors.New("sample query failed")
)
