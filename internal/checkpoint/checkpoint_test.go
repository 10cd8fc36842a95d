package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlpulse/internal/sample"
)

func TestPathFor(t *testing.T) {
	assert.Equal(t, "run_checkpoint.json", PathFor("run.json"))
	assert.Equal(t, "out/run_checkpoint.json", PathFor("out/run.json"))
	assert.Equal(t, "run.dat_checkpoint.json", PathFor("run.dat"))
}

func makeStore(t *testing.T, n, errs int) *sample.Store {
	t.Helper()
	st := sample.NewStore("testhost", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	for i := 0; i < n; i++ {
		st.Append(sample.Sample{
			Timestamp: time.Date(2026, 1, 2, 3, 4+i, 5, 0, time.UTC),
			Payload: map[string]sample.Fields{
				"cpu": {"cpu_count": float64(4), "cpu_time_ms": float64(1000 * i)},
			},
		})
	}
	for i := 0; i < errs; i++ {
		st.RecordError()
	}
	return st
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_checkpoint.json")
	st := makeStore(t, 3, 1)

	require.NoError(t, Save(st, "master", path))

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "testhost", f.Server)
	assert.Equal(t, "master", f.Database)
	assert.Equal(t, 3, f.SamplesCollected)
	assert.Equal(t, 1, f.ErrorsCount)
	assert.Len(t, f.Samples, 3)
	assert.True(t, f.StartTime.Equal(st.StartTime()))
	assert.False(t, f.CheckpointTime.IsZero())

	restored := f.Restore()
	assert.Equal(t, 3, restored.Count())
	assert.Equal(t, 1, restored.ErrorCount())
	assert.Equal(t, "testhost", restored.Server())
}

func TestSaveReplacesPriorContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_checkpoint.json")

	require.NoError(t, Save(makeStore(t, 2, 0), "master", path))
	require.NoError(t, Save(makeStore(t, 5, 2), "master", path))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, f.SamplesCollected)
	assert.Equal(t, 2, f.ErrorsCount)
}

func TestLoadThenSaveKeepsStateUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_checkpoint.json")
	require.NoError(t, Save(makeStore(t, 4, 2), "master", path))

	first, err := Load(path)
	require.NoError(t, err)

	// Guarantee the second save lands on a later timestamp.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, Save(first.Restore(), first.Database, path))

	second, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, first.Server, second.Server)
	assert.Equal(t, first.Database, second.Database)
	assert.Equal(t, first.SamplesCollected, second.SamplesCollected)
	assert.Equal(t, first.ErrorsCount, second.ErrorsCount)
	assert.Equal(t, first.Samples, second.Samples)
	assert.True(t, first.StartTime.Equal(second.StartTime))
	assert.True(t, second.CheckpointTime.After(first.CheckpointTime))
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run_checkpoint.json")
	require.NoError(t, Save(makeStore(t, 1, 0), "master", path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run_checkpoint.json", entries[0].Name())
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadRejectsMissingStartTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"1.0.0","server":"h","samples_collected":0,"samples":[]}`), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadRejectsCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_checkpoint.json")
	require.NoError(t, Save(makeStore(t, 2, 0), "master", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Claim more samples than are present.
	tampered := strings.Replace(string(data), `"samples_collected": 2`, `"samples_collected": 9`, 1)
	require.NotEqual(t, string(data), tampered)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	_, err = Load(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_checkpoint.json")
	require.NoError(t, Save(makeStore(t, 1, 0), "master", path))

	require.NoError(t, Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine.
	assert.NoError(t, Remove(path))
}
