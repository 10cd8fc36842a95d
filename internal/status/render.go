package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
)

// Render formats the report as a styled multi-section text block, the
// one-shot counterpart of the watch view.
func (r *Report) Render() string {
	var b strings.Builder

	section := func(title string) {
		b.WriteString("\n" + titleStyle.Render(title) + "\n")
	}
	row := func(label string, format string, args ...any) {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			labelStyle.Render(fmt.Sprintf("%-18s", label)),
			valueStyle.Render(fmt.Sprintf(format, args...))))
	}

	cp := r.Checkpoint

	section("Checkpoint")
	row("File", "%s", r.Path)
	row("Size", "%d bytes", r.FileSize)
	row("Modified", "%s", r.Modified.Format("2006-01-02 15:04:05"))
	row("Version", "%s", cp.Version)

	section("Server")
	row("Server", "%s", cp.Server)
	if cp.Database != "" {
		row("Database", "%s", cp.Database)
	}

	section("Timeline")
	row("Start", "%s", cp.StartTime.Format("2006-01-02 15:04:05"))
	row("Last checkpoint", "%s", cp.CheckpointTime.Format("2006-01-02 15:04:05"))
	row("Elapsed", "%s", formatDuration(r.Elapsed))
	row("Since checkpoint", "%s", formatDuration(r.SinceCheckpoint))

	section("Collection")
	row("Samples", "%d", cp.SamplesCollected)
	row("Errors", "%d", cp.ErrorsCount)
	row("Success rate", "%.1f%%", r.SuccessRate)

	if len(r.Recent) > 0 {
		section(fmt.Sprintf("Recent samples (last %d)", len(r.Recent)))
		for _, l := range r.Recent {
			b.WriteString(fmt.Sprintf("  [%s] CPU: %5.1f%% | Memory: %.0f/%.0f MB | Conn: %.0f\n",
				l.Time.Format("15:04:05"), l.CPUPct, l.BufferMB, l.TotalMB, l.Connections))
		}
	}

	if r.Averages != nil {
		a := r.Averages
		section("Averages (all samples)")
		row("CPU usage", "%.1f%%", a.CPUPct)
		row("Buffer pool", "%.0f MB", a.BufferPoolMB)
		row("Batch req/sec", "%.1f", a.BatchPerSec)
		row("Connections", "%.0f", a.Connections)
		row("Total reads", "%.0f", a.Reads)
		row("Total writes", "%.0f", a.Writes)
	}

	if r.PeakCPU != nil {
		section("Peaks")
		row("CPU", "%.1f%% at %s", r.PeakCPU.Value, r.PeakCPU.Time.Format("2006-01-02 15:04:05"))
		row("Memory", "%.0f MB at %s", r.PeakMemoryMB.Value, r.PeakMemoryMB.Time.Format("2006-01-02 15:04:05"))
		row("Connections", "%.0f at %s", r.PeakConnections.Value, r.PeakConnections.Time.Format("2006-01-02 15:04:05"))
	}

	b.WriteString("\n")
	if r.Stale {
		b.WriteString(warnStyle.Render("[WARNING] checkpoint is stale (> 5 minutes old); the monitor may have stopped") + "\n")
	} else {
		b.WriteString(okStyle.Render("[OK] monitoring appears to be running normally") + "\n")
	}

	return b.String()
}

func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < 0 {
		d = 0
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := d - m*time.Minute

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", int(s.Seconds())))
	}
	return strings.Join(parts, " ")
}
