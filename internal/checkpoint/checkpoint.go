// Package checkpoint persists run progress as a single durable JSON
// snapshot. Each save fully replaces the previous file for the run; the
// file is the only thing external status tooling is allowed to read while
// a run is in flight.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sqlpulse/internal/sample"
	"sqlpulse/internal/version"
)

var (
	// ErrNotFound means no checkpoint exists at the given path.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrCorrupt means the file exists but cannot be trusted. Load never
	// returns partial state from a corrupt file.
	ErrCorrupt = errors.New("checkpoint corrupt")
)

// File is the on-disk checkpoint schema.
type File struct {
	Version          string          `json:"version"`
	Server           string          `json:"server"`
	Database         string          `json:"database,omitempty"`
	StartTime        time.Time       `json:"start_time"`
	CheckpointTime   time.Time       `json:"checkpoint_time"`
	SamplesCollected int             `json:"samples_collected"`
	ErrorsCount      int             `json:"errors_count"`
	Samples          []sample.Sample `json:"samples"`
}

// Restore turns a loaded checkpoint back into run state.
func (f *File) Restore() *sample.Store {
	return sample.Restore(f.Server, f.StartTime, f.Samples, f.ErrorsCount)
}

// PathFor derives the checkpoint location from the output file name, so a
// fresh run and a resumed run agree on it without extra configuration.
func PathFor(outputPath string) string {
	if strings.HasSuffix(outputPath, ".json") {
		return strings.TrimSuffix(outputPath, ".json") + "_checkpoint.json"
	}
	return outputPath + "_checkpoint.json"
}

// Save writes a complete snapshot of the run state to path, fully
// replacing any prior content. The new content is written to a temp file
// and renamed into place so a concurrent reader never observes a partial
// file.
func Save(st *sample.Store, database, path string) error {
	f := File{
		Version:          version.Number,
		Server:           st.Server(),
		Database:         database,
		StartTime:        st.StartTime(),
		CheckpointTime:   time.Now(),
		SamplesCollected: st.Count(),
		ErrorsCount:      st.ErrorCount(),
		Samples:          st.Snapshot(),
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Load parses a checkpoint file back into memory, all-or-nothing.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if f.StartTime.IsZero() {
		return nil, fmt.Errorf("%w: missing start_time", ErrCorrupt)
	}
	if f.SamplesCollected != len(f.Samples) {
		return nil, fmt.Errorf("%w: samples_collected=%d but %d samples present",
			ErrCorrupt, f.SamplesCollected, len(f.Samples))
	}
	return &f, nil
}

// Remove deletes the checkpoint file after a clean completion. A missing
// file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
