package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sqlpulse/internal/monitor"
)

func TestMonitorConfigSummaryUsesResolvedServer(t *testing.T) {
	m, err := monitor.New(monitor.Config{
		Server:     "PRODSQL01",
		Duration:   24 * time.Hour,
		Interval:   2 * time.Minute,
		OutputPath: "out.json",
	}, nil, zap.NewNop().Sugar())
	require.NoError(t, err)

	out := monitorConfigSummary(m, "PRODSQL01", 24*time.Hour, 2*time.Minute)

	// The connected identity is shown, not the flag default.
	assert.Contains(t, out, "Server:           PRODSQL01")
	assert.NotContains(t, out, "Server:           .")
	assert.Contains(t, out, "Total samples:    720")
}
