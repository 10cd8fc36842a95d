package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sqlpulse/internal/checkpoint"
	"sqlpulse/internal/report"
	"sqlpulse/internal/sample"
	"sqlpulse/internal/source"
)

// fakeSource produces synthetic samples and can be scripted to fail on
// specific calls or to cancel the run mid-flight.
type fakeSource struct {
	calls    int
	failOn   map[int]error // 1-based call number -> error
	perCall  time.Duration
	cancelOn int // call number at which to cancel ctx, 0 disables
	cancel   context.CancelFunc
}

func (f *fakeSource) Collect(ctx context.Context) (sample.Sample, error) {
	f.calls++
	if f.perCall > 0 {
		time.Sleep(f.perCall)
	}
	if f.cancelOn != 0 && f.calls == f.cancelOn {
		f.cancel()
		return sample.Sample{}, ctx.Err()
	}
	if err, ok := f.failOn[f.calls]; ok {
		return sample.Sample{}, err
	}
	return sample.Sample{
		Timestamp: time.Now(),
		Payload: map[string]sample.Fields{
			"cpu": {"cpu_count": float64(4), "cpu_time_ms": float64(f.calls * 100)},
		},
	}, nil
}

func testConfig(t *testing.T, samples int) Config {
	t.Helper()
	interval := 2 * time.Millisecond
	return Config{
		Server:             "testhost",
		Database:           "master",
		Duration:           time.Duration(samples) * interval,
		Interval:           interval,
		CheckpointInterval: time.Hour,
		OutputPath:         filepath.Join(t.TempDir(), "out.json"),
	}
}

func newTestMonitor(t *testing.T, cfg Config, src source.Source) *Monitor {
	t.Helper()
	m, err := New(cfg, src, zap.NewNop().Sugar())
	require.NoError(t, err)
	return m
}

func TestNewValidation(t *testing.T) {
	src := &fakeSource{}
	log := zap.NewNop().Sugar()

	_, err := New(Config{Interval: 0, Duration: time.Minute, OutputPath: "x.json"}, src, log)
	assert.Error(t, err)

	_, err = New(Config{Interval: time.Minute, Duration: time.Second, OutputPath: "x.json"}, src, log)
	assert.Error(t, err)

	_, err = New(Config{Interval: time.Second, Duration: time.Minute}, src, log)
	assert.Error(t, err)
}

func TestTargetSamplesFloors(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Interval = 2 * time.Second
	cfg.Duration = 5 * time.Second

	m := newTestMonitor(t, cfg, &fakeSource{})
	assert.Equal(t, 2, m.TargetSamples())
}

func TestRunCollectsTargetSamples(t *testing.T) {
	cfg := testConfig(t, 10)
	src := &fakeSource{}
	m := newTestMonitor(t, cfg, src)

	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, 10, src.calls)

	got, gotErrs := m.Collected()
	assert.Equal(t, 10, got)
	assert.Equal(t, 0, gotErrs)

	res := readResult(t, cfg.OutputPath)
	assert.Equal(t, 10, res.Metadata.TotalSamples)
	assert.Equal(t, 0, res.Metadata.ErrorsCount)
	assert.Equal(t, "testhost", res.Metadata.Server)
	assert.Len(t, res.Samples, 10)

	// Clean completion removes the checkpoint.
	_, err := os.Stat(m.CheckpointPath())
	assert.True(t, os.IsNotExist(err))
}

func TestRunIsolatesSampleFailures(t *testing.T) {
	cfg := testConfig(t, 10)
	src := &fakeSource{failOn: map[int]error{
		3: fmt.Errorf("%w: deadlock victim", source.ErrQueryFailed),
		7: fmt.Errorf("%w: timeout", source.ErrTimeout),
	}}
	m := newTestMonitor(t, cfg, src)

	require.NoError(t, m.Run(context.Background()))

	// A failed slot is never retried, so the run still makes 10 attempts
	// and ends with 8 samples.
	assert.Equal(t, 10, src.calls)
	got, gotErrs := m.Collected()
	assert.Equal(t, 8, got)
	assert.Equal(t, 2, gotErrs)

	res := readResult(t, cfg.OutputPath)
	assert.Equal(t, 8, res.Metadata.TotalSamples)
	assert.Equal(t, 2, res.Metadata.ErrorsCount)
	assert.Len(t, res.Samples, 8)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	cfg := testConfig(t, 10)

	st := sample.NewStore("testhost", time.Now().Add(-time.Minute))
	for i := 0; i < 4; i++ {
		st.Append(sample.Sample{Timestamp: time.Now(), Payload: map[string]sample.Fields{
			"cpu": {"cpu_count": float64(4)},
		}})
	}
	st.RecordError()
	ckpt := checkpoint.PathFor(cfg.OutputPath)
	require.NoError(t, checkpoint.Save(st, "master", ckpt))

	cfg.ResumeFrom = ckpt
	src := &fakeSource{}
	m := newTestMonitor(t, cfg, src)

	require.NoError(t, m.Run(context.Background()))

	// Only the missing 6 samples are collected on resume.
	assert.Equal(t, 6, src.calls)
	got, gotErrs := m.Collected()
	assert.Equal(t, 10, got)
	assert.Equal(t, 1, gotErrs)

	res := readResult(t, cfg.OutputPath)
	assert.Len(t, res.Samples, 10)
}

func TestRunResumeMissingCheckpointStartsFresh(t *testing.T) {
	cfg := testConfig(t, 3)
	cfg.ResumeFrom = filepath.Join(t.TempDir(), "gone.json")
	src := &fakeSource{}
	m := newTestMonitor(t, cfg, src)

	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, 3, src.calls)
}

func TestRunResumeCorruptCheckpointFails(t *testing.T) {
	cfg := testConfig(t, 3)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{broken"), 0o644))
	cfg.ResumeFrom = bad

	src := &fakeSource{}
	m := newTestMonitor(t, cfg, src)

	err := m.Run(context.Background())
	assert.ErrorIs(t, err, checkpoint.ErrCorrupt)
	assert.Equal(t, 0, src.calls)
}

func TestRunCompletedCheckpointSkipsCollection(t *testing.T) {
	cfg := testConfig(t, 3)

	st := sample.NewStore("testhost", time.Now().Add(-time.Minute))
	for i := 0; i < 3; i++ {
		st.Append(sample.Sample{Timestamp: time.Now(), Payload: map[string]sample.Fields{
			"cpu": {"cpu_count": float64(4)},
		}})
	}
	ckpt := checkpoint.PathFor(cfg.OutputPath)
	require.NoError(t, checkpoint.Save(st, "master", ckpt))
	cfg.ResumeFrom = ckpt

	src := &fakeSource{}
	m := newTestMonitor(t, cfg, src)

	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, 0, src.calls)

	res := readResult(t, cfg.OutputPath)
	assert.Len(t, res.Samples, 3)
}

func TestRunInterruptSavesCheckpoint(t *testing.T) {
	cfg := testConfig(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{cancelOn: 4, cancel: cancel}
	m := newTestMonitor(t, cfg, src)

	err := m.Run(ctx)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Contains(t, err.Error(), m.CheckpointPath())

	f, lerr := checkpoint.Load(m.CheckpointPath())
	require.NoError(t, lerr)
	assert.Equal(t, 3, f.SamplesCollected)

	// No final report on interrupt.
	_, serr := os.Stat(cfg.OutputPath)
	assert.True(t, os.IsNotExist(serr))
}

func TestRunEmergencyCheckpointWhenReportUnwritable(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out.json")
	require.NoError(t, os.Mkdir(outDir, 0o755))

	cfg := testConfig(t, 2)
	cfg.OutputPath = outDir // writing a file over a directory fails

	src := &fakeSource{}
	m := newTestMonitor(t, cfg, src)

	err := m.Run(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInterrupted)

	f, lerr := checkpoint.Load(m.CheckpointPath())
	require.NoError(t, lerr)
	assert.Equal(t, 2, f.SamplesCollected)
}

func TestRunPacesWithDriftCorrection(t *testing.T) {
	cfg := testConfig(t, 5)
	cfg.Interval = 20 * time.Millisecond
	cfg.Duration = 100 * time.Millisecond

	src := &fakeSource{perCall: 5 * time.Millisecond}
	m := newTestMonitor(t, cfg, src)

	start := time.Now()
	require.NoError(t, m.Run(context.Background()))
	elapsed := time.Since(start)

	// Four inter-sample pauses plus five collections; the pause after the
	// final sample is skipped.
	assert.GreaterOrEqual(t, elapsed, 85*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	cfg := testConfig(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{}
	m := newTestMonitor(t, cfg, src)

	err := m.Run(ctx)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, 0, src.calls)

	f, lerr := checkpoint.Load(m.CheckpointPath())
	require.NoError(t, lerr)
	assert.Equal(t, 0, f.SamplesCollected)
}

func readResult(t *testing.T, path string) report.Result {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var res report.Result
	require.NoError(t, json.Unmarshal(data, &res))
	return res
}
