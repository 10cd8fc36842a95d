package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sqlpulse/internal/banner"
	"sqlpulse/internal/history"
	"sqlpulse/internal/logging"
	"sqlpulse/internal/monitor"
	"sqlpulse/internal/source"
)

var (
	durationMin   int
	intervalSec   int
	outputFile    string
	checkpointMin int
	resumeFrom    string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the resumable workload monitor",
	Example: `  # quick test (15 minutes, sample every 60s)
  sqlpulse monitor --server . --duration 15 --interval 60

  # production (24 hours)
  sqlpulse monitor --server . --duration 1440 --interval 120

  # resume an interrupted run
  sqlpulse monitor --server . --resume-from workload_checkpoint.json`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().IntVarP(&durationMin, "duration", "d", 1440, "total duration in minutes")
	monitorCmd.Flags().IntVarP(&intervalSec, "interval", "i", 120, "sample interval in seconds")
	monitorCmd.Flags().StringVarP(&outputFile, "output", "o", "sql_workload_monitor.json", "output JSON file")
	monitorCmd.Flags().IntVar(&checkpointMin, "checkpoint-interval", 60, "checkpoint interval in minutes")
	monitorCmd.Flags().StringVar(&resumeFrom, "resume-from", "", "resume from a checkpoint file")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	log := logging.New(verbose)
	defer log.Sync()

	fmt.Println(banner.GetString())

	duration := time.Duration(durationMin) * time.Minute
	interval := time.Duration(intervalSec) * time.Second

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := source.New(sourceConfig(), log)
	if err := src.Connect(ctx); err != nil {
		return err
	}
	defer src.Close()

	if err := src.CheckPermissions(ctx); err != nil {
		return err
	}
	if err := src.LoadQuery(); err != nil {
		return err
	}
	took, err := src.TestQuery(ctx)
	if err != nil {
		return fmt.Errorf("query test failed: %w", err)
	}
	log.Infow("query test passed", "took", took.Truncate(time.Millisecond))
	if took > 2*time.Second {
		log.Warnw("workload query is slow, consider tuning it", "took", took.Truncate(time.Millisecond))
	}

	m, err := monitor.New(monitor.Config{
		Server:             src.Identity(),
		Database:           src.Database(),
		Duration:           duration,
		Interval:           interval,
		CheckpointInterval: time.Duration(checkpointMin) * time.Minute,
		OutputPath:         outputFile,
		ResumeFrom:         resumeFrom,
	}, src, log)
	if err != nil {
		return err
	}

	fmt.Print(monitorConfigSummary(m, src.Identity(), duration, interval))

	if err := m.Run(ctx); err != nil {
		if errors.Is(err, monitor.ErrInterrupted) {
			fmt.Fprintf(os.Stderr, "\nresume with: sqlpulse monitor --resume-from %s\n", m.CheckpointPath())
		}
		return err
	}

	saveHistory(m, src, log)
	fmt.Printf("\nResults saved to: %s\n", outputFile)
	return nil
}

// monitorConfigSummary formats the run parameters. serverName is the
// connected server's identity, not the raw flag, so values resolved from
// the config file or environment show up correctly.
func monitorConfigSummary(m *monitor.Monitor, serverName string, duration, interval time.Duration) string {
	var b strings.Builder
	b.WriteString("Configuration:\n")
	fmt.Fprintf(&b, "  Server:           %s\n", serverName)
	fmt.Fprintf(&b, "  Duration:         %s (%.1f hours)\n", duration, duration.Hours())
	fmt.Fprintf(&b, "  Sample interval:  %s\n", interval)
	fmt.Fprintf(&b, "  Total samples:    %d\n", m.TargetSamples())
	fmt.Fprintf(&b, "  Checkpoint every: %d minutes\n", checkpointMin)
	fmt.Fprintf(&b, "  Output file:      %s\n", outputFile)
	b.WriteString("\n")
	return b.String()
}

// saveHistory records the completed run; failures here never turn a
// successful run into a failed exit.
func saveHistory(m *monitor.Monitor, src *source.SQLServer, log *zap.SugaredLogger) {
	path, err := history.DefaultPath()
	if err != nil {
		log.Warnw("cannot resolve history path", "error", err)
		return
	}
	hs, err := history.Open(path)
	if err != nil {
		log.Warnw("cannot open run history", "error", err)
		return
	}
	defer hs.Close()

	samples, errCount := m.Collected()
	if _, err := hs.Save(history.Entry{
		FinishedAt:      time.Now(),
		Server:          src.Identity(),
		Database:        src.Database(),
		Samples:         samples,
		Errors:          errCount,
		DurationMinutes: durationMin,
		IntervalSeconds: intervalSec,
		OutputPath:      outputFile,
	}); err != nil {
		log.Warnw("cannot save run history", "error", err)
	}
}
