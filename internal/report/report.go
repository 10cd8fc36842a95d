// Package report writes the final run artifacts: the JSON result file
// (a superset of the checkpoint, so tooling can read either) and an
// optional flattened CSV of the sample series.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"sqlpulse/internal/sample"
)

type Metadata struct {
	Version         string    `json:"version"`
	Server          string    `json:"server"`
	Database        string    `json:"database"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	IntervalSeconds int       `json:"interval_seconds"`
	TotalSamples    int       `json:"total_samples"`
	ErrorsCount     int       `json:"errors_count"`
}

type Result struct {
	Metadata Metadata        `json:"metadata"`
	Samples  []sample.Sample `json:"samples"`
}

func Write(path string, res Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// Read parses a result file written by Write.
func Read(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse result %s: %w", path, err)
	}
	return &res, nil
}

// WriteCSV flattens the samples into one row each, columns named
// group.field. Column order is fixed by the first sample so the file is
// stable across runs against the same query.
func WriteCSV(path string, samples []sample.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if len(samples) == 0 {
		return w.Write([]string{"timestamp"})
	}

	columns := columnOrder(samples[0])
	header := append([]string{"timestamp"}, columns...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, s := range samples {
		row := make([]string, 0, len(header))
		row = append(row, s.Timestamp.Format(time.RFC3339))
		for _, col := range columns {
			row = append(row, flatValue(s, col))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func columnOrder(s sample.Sample) []string {
	var cols []string
	groups := make([]string, 0, len(s.Payload))
	for g := range s.Payload {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		fields := make([]string, 0, len(s.Payload[g]))
		for f := range s.Payload[g] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			cols = append(cols, g+"."+f)
		}
	}
	return cols
}

func flatValue(s sample.Sample, col string) string {
	for i := 0; i < len(col); i++ {
		if col[i] == '.' {
			group, field := col[:i], col[i+1:]
			if v, ok := s.Payload[group][field]; ok {
				// JSON round-trips land numbers as float64; keep large
				// counters out of scientific notation.
				if f, ok := v.(float64); ok {
					return strconv.FormatFloat(f, 'f', -1, 64)
				}
				return fmt.Sprint(v)
			}
			return ""
		}
	}
	return ""
}
