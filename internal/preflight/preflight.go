// Package preflight runs the environment checks an operator wants green
// before committing to a multi-hour monitoring run: connectivity,
// permissions, workload query health, and output writability.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"sqlpulse/internal/source"
)

type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "OK"
	case Warn:
		return "WARN"
	default:
		return "FAIL"
	}
}

type Check struct {
	Name   string
	Status Status
	Detail string
}

// slowQueryThreshold flags a workload query too expensive to run at a
// typical sampling interval.
const slowQueryThreshold = 2 * time.Second

// Run executes all checks in order, continuing past failures so the
// operator sees the full picture in one invocation. ok is false when any
// check failed.
func Run(ctx context.Context, cfg source.Config, outputPath string, log *zap.SugaredLogger) (checks []Check, ok bool) {
	src := source.New(cfg, log)
	defer src.Close()

	connected := false
	if err := src.Connect(ctx); err != nil {
		checks = append(checks, Check{"connectivity", Fail, err.Error()})
	} else {
		connected = true
		checks = append(checks, Check{"connectivity", Pass, fmt.Sprintf("connected to %s", src.Identity())})
	}

	if connected {
		if err := src.CheckPermissions(ctx); err != nil {
			checks = append(checks, Check{"permissions", Fail, err.Error()})
		} else {
			checks = append(checks, Check{"permissions", Pass, "VIEW SERVER STATE granted"})
		}

		if err := src.LoadQuery(); err != nil {
			checks = append(checks, Check{"workload query", Fail, err.Error()})
		} else if took, err := src.TestQuery(ctx); err != nil {
			checks = append(checks, Check{"workload query", Fail, err.Error()})
		} else if took > slowQueryThreshold {
			checks = append(checks, Check{"workload query", Warn,
				fmt.Sprintf("executed in %s (> %s, consider tuning)", took.Truncate(time.Millisecond), slowQueryThreshold)})
		} else {
			checks = append(checks, Check{"workload query", Pass,
				fmt.Sprintf("executed in %s", took.Truncate(time.Millisecond))})
		}
	}

	checks = append(checks, checkWritable(outputPath))

	ok = true
	for _, c := range checks {
		if c.Status == Fail {
			ok = false
		}
	}
	return checks, ok
}

func checkWritable(outputPath string) Check {
	dir := filepath.Dir(outputPath)
	probe, err := os.CreateTemp(dir, ".sqlpulse-write-check-*")
	if err != nil {
		return Check{"output directory", Fail, fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return Check{"output directory", Pass, fmt.Sprintf("%s is writable", dir)}
}

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
)

// Summary renders the check results as a terminal table.
func Summary(checks []Check) string {
	var b strings.Builder
	for _, c := range checks {
		tag := fmt.Sprintf("[%s]", c.Status)
		switch c.Status {
		case Pass:
			tag = passStyle.Render(tag)
		case Warn:
			tag = warnStyle.Render(tag)
		default:
			tag = failStyle.Render(tag)
		}
		fmt.Fprintf(&b, "  %s %-18s %s\n", tag, c.Name, c.Detail)
	}
	return b.String()
}
