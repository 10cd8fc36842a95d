package sample

import (
	"encoding/json"
	"fmt"
	"time"
)

// Fields is one named group of metric values (e.g. the "cpu" or "io" group).
// Values are whatever the metrics source produced; the monitor never
// interprets them.
type Fields map[string]any

// Sample is a single timestamped metrics snapshot. Immutable once created.
type Sample struct {
	Timestamp time.Time
	Payload   map[string]Fields
}

// Number returns a numeric field from the given group. JSON round-trips
// land numbers as float64, so freshly collected int values are widened too.
func (s Sample) Number(group, field string) (float64, bool) {
	g, ok := s.Payload[group]
	if !ok {
		return 0, false
	}
	switch v := g[field].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// String returns a string field from the given group.
func (s Sample) String(group, field string) (string, bool) {
	g, ok := s.Payload[group]
	if !ok {
		return "", false
	}
	v, ok := g[field].(string)
	return v, ok
}

// The wire form inlines the payload groups next to the timestamp:
//
//	{"timestamp": "...", "cpu": {...}, "memory": {...}, ...}
//
// which keeps checkpoint and final output files readable by external
// tooling that predates this implementation.

func (s Sample) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Payload)+1)
	out["timestamp"] = s.Timestamp.Format(time.RFC3339Nano)
	for name, group := range s.Payload {
		out[name] = group
	}
	return json.Marshal(out)
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	tsRaw, ok := raw["timestamp"]
	if !ok {
		return fmt.Errorf("sample: missing timestamp")
	}
	var tsStr string
	if err := json.Unmarshal(tsRaw, &tsStr); err != nil {
		return fmt.Errorf("sample: bad timestamp: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return fmt.Errorf("sample: bad timestamp: %w", err)
	}

	payload := make(map[string]Fields, len(raw)-1)
	for name, msg := range raw {
		if name == "timestamp" {
			continue
		}
		var group Fields
		if err := json.Unmarshal(msg, &group); err != nil {
			return fmt.Errorf("sample: bad field group %q: %w", name, err)
		}
		payload[name] = group
	}

	s.Timestamp = ts
	s.Payload = payload
	return nil
}
