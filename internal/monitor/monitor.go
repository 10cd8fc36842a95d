// Package monitor contains the sampling loop: fixed-interval pacing with
// drift correction, periodic checkpointing, and crash-safe resumption.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sqlpulse/internal/checkpoint"
	"sqlpulse/internal/report"
	"sqlpulse/internal/sample"
	"sqlpulse/internal/source"
	"sqlpulse/internal/version"
)

// ErrInterrupted marks a run stopped by the operator. The run state is
// checkpointed before it is returned, so the wrapped message carries the
// resume path.
var ErrInterrupted = errors.New("monitoring interrupted")

type Config struct {
	// Server is the monitored server's identity, stamped into checkpoints
	// and the final report.
	Server   string
	Database string

	Duration time.Duration
	// Interval is the target spacing between sample starts.
	Interval time.Duration
	// CheckpointInterval is the wall-clock cadence of durability saves.
	CheckpointInterval time.Duration
	// CollectTimeout bounds each individual sample query.
	CollectTimeout time.Duration

	OutputPath string
	// ResumeFrom optionally names a checkpoint to reconstruct state from.
	ResumeFrom string
}

type Monitor struct {
	cfg      Config
	src      source.Source
	log      *zap.SugaredLogger
	ckptPath string

	// state is the run's store, retained so callers can report final
	// counts after Run returns.
	state *sample.Store
}

func New(cfg Config, src source.Source, log *zap.SugaredLogger) (*Monitor, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Duration < cfg.Interval {
		return nil, fmt.Errorf("duration %s is shorter than interval %s", cfg.Duration, cfg.Interval)
	}
	if cfg.OutputPath == "" {
		return nil, errors.New("output path is required")
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = time.Hour
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = 30 * time.Second
	}
	return &Monitor{
		cfg:      cfg,
		src:      src,
		log:      log,
		ckptPath: checkpoint.PathFor(cfg.OutputPath),
	}, nil
}

// TargetSamples is fixed for the run, floor(duration/interval).
func (m *Monitor) TargetSamples() int {
	return int(m.cfg.Duration / m.cfg.Interval)
}

// CheckpointPath is where progress snapshots for this run live.
func (m *Monitor) CheckpointPath() string {
	return m.ckptPath
}

// Collected reports the sample and error counts of the last run. Valid
// once Run has returned.
func (m *Monitor) Collected() (samples, errors int) {
	if m.state == nil {
		return 0, 0
	}
	return m.state.Count(), m.state.ErrorCount()
}

// Run executes the sampling loop until the target sample count is reached
// or ctx is cancelled. On clean completion the final report is written and
// the checkpoint removed; on interruption the state is checkpointed and
// ErrInterrupted returned.
func (m *Monitor) Run(ctx context.Context) error {
	target := m.TargetSamples()

	st, err := m.initState()
	if err != nil {
		return err
	}
	m.state = st

	if st.Count() >= target {
		m.log.Infow("nothing to do, checkpoint already holds the full run",
			"samples", st.Count(), "target", target)
		return m.finish(st, target)
	}

	m.log.Infow("starting monitoring",
		"target_samples", target,
		"resume_from_sample", st.Count(),
		"interval", m.cfg.Interval,
		"checkpoint_every", m.cfg.CheckpointInterval,
	)

	nextCheckpoint := time.Now().Add(m.cfg.CheckpointInterval)

	for i := st.Count(); i < target; i++ {
		if ctx.Err() != nil {
			return m.interrupt(st)
		}

		t0 := time.Now()

		smp, err := m.collect(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			// Cancelled during the bounded collect; not a sample failure.
			return m.interrupt(st)
		case err != nil:
			// A failed sample never retries and never blocks the loop.
			st.RecordError()
			m.log.Warnw("sample failed", "sample", i+1, "error", err)
		default:
			st.Append(smp)
			m.logProgress(st, i+1, target)
		}

		if !time.Now().Before(nextCheckpoint) {
			if err := checkpoint.Save(st, m.cfg.Database, m.ckptPath); err != nil {
				// Non-fatal: the run continues without a fresh checkpoint
				// until the next attempt succeeds.
				m.log.Warnw("checkpoint save failed", "path", m.ckptPath, "error", err)
			} else {
				m.log.Debugw("checkpoint saved", "path", m.ckptPath, "samples", st.Count())
			}
			nextCheckpoint = time.Now().Add(m.cfg.CheckpointInterval)
		}

		// Drift correction: the pause shrinks by however long collection
		// took, bottoming out at zero. A slow sample degrades to
		// back-to-back sampling instead of building up catch-up debt.
		if i < target-1 {
			if pause := m.cfg.Interval - time.Since(t0); pause > 0 {
				select {
				case <-ctx.Done():
					return m.interrupt(st)
				case <-time.After(pause):
				}
			}
		}
	}

	return m.finish(st, target)
}

// initState builds run state fresh or from the resume checkpoint. A
// missing resume file degrades to a fresh start; a corrupt one is fatal so
// the operator can discard or repair it deliberately.
func (m *Monitor) initState() (*sample.Store, error) {
	if m.cfg.ResumeFrom == "" {
		return sample.NewStore(m.cfg.Server, time.Now()), nil
	}

	f, err := checkpoint.Load(m.cfg.ResumeFrom)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		m.log.Warnw("resume checkpoint not found, starting fresh", "path", m.cfg.ResumeFrom)
		return sample.NewStore(m.cfg.Server, time.Now()), nil
	case err != nil:
		return nil, fmt.Errorf("resume from %s: %w", m.cfg.ResumeFrom, err)
	}

	m.log.Infow("resuming from checkpoint",
		"path", m.cfg.ResumeFrom,
		"samples", f.SamplesCollected,
		"errors", f.ErrorsCount,
		"started", f.StartTime,
	)
	return f.Restore(), nil
}

func (m *Monitor) collect(ctx context.Context) (sample.Sample, error) {
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CollectTimeout)
	defer cancel()
	return m.src.Collect(cctx)
}

func (m *Monitor) logProgress(st *sample.Store, i, target int) {
	elapsed := time.Since(st.StartTime()).Truncate(time.Second)
	remaining := time.Duration(target-i) * m.cfg.Interval
	m.log.Infof("sample %d/%d (%.1f%%) | elapsed: %s | remaining: %s",
		i, target, float64(i)/float64(target)*100, elapsed, remaining.Truncate(time.Second))
}

// finish persists the final result and cleans up the checkpoint. If the
// result cannot be written, an emergency checkpoint keeps the collected
// data recoverable.
func (m *Monitor) finish(st *sample.Store, target int) error {
	res := report.Result{
		Metadata: report.Metadata{
			Version:         version.Number,
			Server:          st.Server(),
			Database:        m.cfg.Database,
			StartTime:       st.StartTime(),
			EndTime:         time.Now(),
			DurationMinutes: int(m.cfg.Duration.Minutes()),
			IntervalSeconds: int(m.cfg.Interval.Seconds()),
			TotalSamples:    st.Count(),
			ErrorsCount:     st.ErrorCount(),
		},
		Samples: st.Snapshot(),
	}

	if err := report.Write(m.cfg.OutputPath, res); err != nil {
		if ckErr := checkpoint.Save(st, m.cfg.Database, m.ckptPath); ckErr != nil {
			m.log.Errorw("emergency checkpoint failed", "error", ckErr)
		} else {
			m.log.Warnw("emergency checkpoint saved", "path", m.ckptPath)
		}
		return err
	}

	if err := checkpoint.Remove(m.ckptPath); err != nil {
		m.log.Warnw("could not remove checkpoint", "path", m.ckptPath, "error", err)
	}

	m.log.Infow("monitoring completed",
		"samples", st.Count(),
		"errors", st.ErrorCount(),
		"output", m.cfg.OutputPath,
	)
	return nil
}

// interrupt persists the current state so the run can be resumed, then
// surfaces the cancellation.
func (m *Monitor) interrupt(st *sample.Store) error {
	if err := checkpoint.Save(st, m.cfg.Database, m.ckptPath); err != nil {
		m.log.Errorw("could not save checkpoint on interrupt", "error", err)
		return fmt.Errorf("%w (checkpoint save failed: %v)", ErrInterrupted, err)
	}
	m.log.Infow("partial checkpoint saved", "path", m.ckptPath, "samples", st.Count())
	return fmt.Errorf("%w: resume with --resume-from %s", ErrInterrupted, m.ckptPath)
}
