// Package loadgen drives controlled synthetic query traffic against the
// monitored server: N independent workers, each pacing its own queries so
// the aggregate rate lands on the intensity's target, all feeding a single
// pair of shared counters.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sqlpulse/internal/stats"
)

var ErrNoQueries = errors.New("query set has no templates for a selected class")

type Generator struct {
	cfg     Config
	connect Connector
	stats   *stats.LoadStats
	log     *zap.SugaredLogger

	// active is the only stop signal workers observe; they finish their
	// current query and exit once it flips false.
	active atomic.Bool
}

func New(cfg Config, connect Connector, log *zap.SugaredLogger) (*Generator, error) {
	if _, err := ParseIntensity(string(cfg.Intensity)); err != nil {
		return nil, err
	}
	if cfg.Threads <= 0 {
		return nil, fmt.Errorf("thread count must be positive, got %d", cfg.Threads)
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", cfg.Duration)
	}
	if connect == nil {
		return nil, errors.New("connector is required")
	}
	return &Generator{
		cfg:     cfg.withDefaults(),
		connect: connect,
		stats:   stats.NewLoadStats(),
		log:     log,
	}, nil
}

func (g *Generator) Stats() *stats.LoadStats {
	return g.stats
}

// Run generates load for the configured duration or until ctx is
// cancelled, whichever comes first. It returns ctx.Err on cancellation.
func (g *Generator) Run(ctx context.Context) error {
	cfg := g.cfg
	pace := pacePerWorker(cfg.TargetQPM, cfg.Threads)

	// Validate connectivity once before spawning anything, so a bad target
	// fails fast instead of as N worker errors.
	probe, err := g.connect(ctx)
	if err != nil {
		return err
	}
	probe.Close()

	g.log.Infow("starting workers",
		"threads", cfg.Threads,
		"intensity", cfg.Intensity,
		"target_qpm", cfg.TargetQPM,
		"pace_per_worker", pace,
		"duration", cfg.Duration,
	)

	g.active.Store(true)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Threads; i++ {
		wg.Add(1)
		seed := time.Now().UnixNano() + int64(i)
		go func(id int, rng *rand.Rand) {
			defer wg.Done()
			g.worker(ctx, id, rng, pace)
		}(i+1, rand.New(rand.NewSource(seed)))
	}

	start := time.Now()
	interrupted := g.report(ctx, start)

	g.active.Store(false)

	joinTimeout := cfg.JoinTimeout
	if interrupted {
		joinTimeout = 5 * time.Second
	}
	g.join(&wg, joinTimeout)

	g.logSummary(time.Since(start))
	if interrupted {
		return ctx.Err()
	}
	return nil
}

// pacePerWorker spreads the aggregate target rate across the workers. The
// division happens in float so a thread count larger than the target rate
// slows every worker down instead of flooring at one query per minute and
// overshooting the aggregate.
func pacePerWorker(targetQPM, threads int) time.Duration {
	return time.Duration(float64(time.Minute) * float64(threads) / float64(targetQPM))
}

// report blocks until the run duration elapses or ctx is cancelled,
// logging a trailing-QPS progress line on every tick. The rate comes from
// counter deltas, so no per-worker state is needed.
func (g *Generator) report(ctx context.Context, start time.Time) (interrupted bool) {
	ticker := time.NewTicker(g.cfg.ReportInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(g.cfg.Duration)
	defer deadline.Stop()

	lastQueries := g.stats.Executed()
	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-deadline.C:
			return false
		case now := <-ticker.C:
			executed := g.stats.Executed()
			dt := now.Sub(lastTime).Seconds()
			qps := 0.0
			if dt > 0 {
				qps = float64(executed-lastQueries) / dt
			}
			lastQueries = executed
			lastTime = now

			elapsed := time.Since(start)
			progress := float64(elapsed) / float64(g.cfg.Duration) * 100
			if progress > 100 {
				progress = 100
			}
			g.log.Infof("progress: %.1f%% | queries: %d | qps: %.1f | errors: %d | remaining: %s",
				progress, executed, qps, g.stats.Errors(),
				(g.cfg.Duration - elapsed).Truncate(time.Second))
		}
	}
}

// join waits for all workers, bounded. This is a best-effort join: a
// worker stuck in a slow query past the timeout is abandoned.
func (g *Generator) join(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.log.Debug("all workers finished")
	case <-time.After(timeout):
		g.log.Warnw("join timeout, abandoning unfinished workers", "timeout", timeout)
	}
}

func (g *Generator) worker(ctx context.Context, id int, rng *rand.Rand, pace time.Duration) {
	conn, err := g.connect(ctx)
	if err != nil {
		g.log.Warnw("worker failed to connect", "worker", id, "error", err)
		return
	}
	defer conn.Close()

	for g.active.Load() {
		query, err := g.pickQuery(rng)
		if err != nil {
			g.log.Errorw("worker stopping", "worker", id, "error", err)
			return
		}

		start := time.Now()
		if err := conn.Exec(ctx, query); err != nil {
			if ctx.Err() != nil {
				// Shutdown aborted the query; not a target failure.
				return
			}
			g.stats.RecordError()
			// Log every hundredth error per the shared counter, not per
			// worker, to avoid drowning the report lines.
			if n := g.stats.Errors(); n%100 == 0 {
				g.log.Warnw("query errors accumulating", "worker", id, "errors", n, "last", err)
			}
		} else {
			g.stats.RecordQuery(time.Since(start))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pace):
		}
	}
}

// pickQuery selects a query class per the intensity mix, then a template
// uniformly within the class.
func (g *Generator) pickQuery(rng *rand.Rand) (string, error) {
	class := g.pickClass(rng)
	templates := g.cfg.Queries[class]
	if len(templates) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoQueries, class)
	}
	return templates[rng.Intn(len(templates))], nil
}

func (g *Generator) pickClass(rng *rand.Rand) QueryClass {
	switch g.cfg.Intensity {
	case IntensityMedium:
		// 70% medium, 30% light.
		if rng.Float64() < 0.7 {
			return ClassMedium
		}
		return ClassLight
	case IntensityHigh:
		// 50% heavy, 30% medium, 20% light.
		r := rng.Float64()
		switch {
		case r < 0.5:
			return ClassHeavy
		case r < 0.8:
			return ClassMedium
		default:
			return ClassLight
		}
	default:
		return ClassLight
	}
}

func (g *Generator) logSummary(elapsed time.Duration) {
	executed := g.stats.Executed()
	avgQPS := 0.0
	if elapsed.Seconds() > 0 {
		avgQPS = float64(executed) / elapsed.Seconds()
	}
	g.log.Infow("workload generation finished",
		"queries", executed,
		"errors", g.stats.Errors(),
		"success_rate_pct", fmt.Sprintf("%.1f", g.stats.SuccessRate()),
		"avg_qps", fmt.Sprintf("%.1f", avgQPS),
		"p99_ms", fmt.Sprintf("%.1f", g.stats.P99LatencyMs()),
	)
}
