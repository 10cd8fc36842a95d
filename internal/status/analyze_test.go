package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlpulse/internal/checkpoint"
	"sqlpulse/internal/sample"
)

func writeCheckpoint(t *testing.T, samples, errs int) string {
	t.Helper()
	st := sample.NewStore("testhost", time.Now().Add(-30*time.Minute))
	for i := 0; i < samples; i++ {
		st.Append(sample.Sample{
			Timestamp: time.Now().Add(time.Duration(i-samples) * time.Minute),
			Payload: map[string]sample.Fields{
				"cpu": {
					"total_cpus":             float64(8),
					"sql_server_cpu_time_ms": float64(2000 * (i + 1)),
				},
				"memory": {
					"total_mb":       float64(16384),
					"buffer_pool_mb": float64(9000 + 100*i),
				},
				"activity": {
					"user_connections":       float64(20 + i),
					"batch_requests_per_sec": float64(150),
				},
				"io": {
					"total_reads":  float64(1000 * i),
					"total_writes": float64(500 * i),
				},
			},
		})
	}
	for i := 0; i < errs; i++ {
		st.RecordError()
	}
	path := filepath.Join(t.TempDir(), "run_checkpoint.json")
	require.NoError(t, checkpoint.Save(st, "master", path))
	return path
}

func TestAnalyze(t *testing.T) {
	path := writeCheckpoint(t, 8, 2)

	r, err := Analyze(path)
	require.NoError(t, err)

	assert.Equal(t, path, r.Path)
	assert.Greater(t, r.FileSize, int64(0))
	assert.Equal(t, "testhost", r.Checkpoint.Server)
	assert.Equal(t, 8, r.Checkpoint.SamplesCollected)

	assert.InDelta(t, 80.0, r.SuccessRate, 0.01)
	assert.False(t, r.Stale)

	require.Len(t, r.Recent, 5)
	// Recent rows are the tail of the series, oldest of the five first.
	assert.InDelta(t, 9300, r.Recent[0].BufferMB, 0.01)
	assert.InDelta(t, 9700, r.Recent[4].BufferMB, 0.01)

	require.NotNil(t, r.Averages)
	assert.InDelta(t, 112.5, r.Averages.CPUPct, 0.01)
	assert.InDelta(t, 9350, r.Averages.BufferPoolMB, 0.01)
	assert.InDelta(t, 23.5, r.Averages.Connections, 0.01)

	require.NotNil(t, r.PeakCPU)
	require.NotNil(t, r.PeakMemoryMB)
	assert.InDelta(t, 9700, r.PeakMemoryMB.Value, 0.01)
	require.NotNil(t, r.PeakConnections)
	assert.InDelta(t, 27, r.PeakConnections.Value, 0.01)
}

func TestAnalyzeFewerThanFiveSamples(t *testing.T) {
	path := writeCheckpoint(t, 2, 0)

	r, err := Analyze(path)
	require.NoError(t, err)
	assert.Len(t, r.Recent, 2)
	assert.InDelta(t, 100.0, r.SuccessRate, 0.01)
}

func TestAnalyzeEmptyCheckpoint(t *testing.T) {
	path := writeCheckpoint(t, 0, 0)

	r, err := Analyze(path)
	require.NoError(t, err)
	assert.Empty(t, r.Recent)
	assert.Nil(t, r.Averages)
	assert.Nil(t, r.PeakCPU)
	assert.Equal(t, 0.0, r.SuccessRate)
}

func TestAnalyzeMissingFile(t *testing.T) {
	_, err := Analyze(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestAnalyzeStaleCheckpoint(t *testing.T) {
	f := checkpoint.File{
		Version:          "1.0.0",
		Server:           "testhost",
		StartTime:        time.Now().Add(-2 * time.Hour),
		CheckpointTime:   time.Now().Add(-10 * time.Minute),
		SamplesCollected: 0,
		Samples:          nil,
	}
	data, err := json.Marshal(f)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "old_checkpoint.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r, err := Analyze(path)
	require.NoError(t, err)
	assert.True(t, r.Stale)
	assert.Greater(t, r.SinceCheckpoint, staleAfter)
}

func TestRenderIncludesKeySections(t *testing.T) {
	path := writeCheckpoint(t, 8, 2)

	r, err := Analyze(path)
	require.NoError(t, err)

	out := r.Render()
	assert.Contains(t, out, "testhost")
	assert.Contains(t, out, "8")
	assert.NotEmpty(t, out)
}

func TestCPUPct(t *testing.T) {
	s := sample.Sample{Payload: map[string]sample.Fields{
		"cpu": {"total_cpus": float64(4), "sql_server_cpu_time_ms": float64(2000)},
	}}
	assert.InDelta(t, 50.0, cpuPct(s), 0.01)

	// Missing CPU count degrades to zero rather than dividing by it.
	s = sample.Sample{Payload: map[string]sample.Fields{
		"cpu": {"sql_server_cpu_time_ms": float64(2000)},
	}}
	assert.Equal(t, 0.0, cpuPct(s))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(2*time.Minute+5*time.Second))
	assert.Equal(t, "1h 30m", formatDuration(90*time.Minute))
	assert.Equal(t, "1d 2h", formatDuration(26*time.Hour))
}
