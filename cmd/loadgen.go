package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sqlpulse/internal/banner"
	"sqlpulse/internal/loadgen"
	"sqlpulse/internal/logging"
	"sqlpulse/internal/source"
)

var (
	lgIntensity   string
	lgDurationMin int
	lgThreads     int
)

var loadgenCmd = &cobra.Command{
	Use:   "loadgen",
	Short: "Generate synthetic query load against the server",
	Long: `Runs a fixed-rate synthetic workload so the monitor has something to
observe. Each worker thread opens its own connection and paces itself to
hit the aggregate rate for the chosen intensity.`,
	Example: `  # light background load for 30 minutes
  sqlpulse loadgen --server . --intensity light --duration 30

  # heavier mix on four threads
  sqlpulse loadgen --server . --intensity high --threads 4 --duration 60`,
	RunE: runLoadgen,
}

func init() {
	rootCmd.AddCommand(loadgenCmd)

	loadgenCmd.Flags().StringVar(&lgIntensity, "intensity", "medium", "load intensity: light, medium or high")
	loadgenCmd.Flags().IntVarP(&lgDurationMin, "duration", "d", 60, "duration in minutes")
	loadgenCmd.Flags().IntVarP(&lgThreads, "threads", "t", 2, "number of worker threads")
}

func runLoadgen(cmd *cobra.Command, args []string) error {
	log := logging.New(verbose)
	defer log.Sync()

	fmt.Println(banner.GetString())

	intensity, err := loadgen.ParseIntensity(lgIntensity)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srcCfg := sourceConfig()
	connect := func(ctx context.Context) (loadgen.Conn, error) {
		return source.Dial(ctx, srcCfg)
	}

	gen, err := loadgen.New(loadgen.Config{
		Intensity: intensity,
		Duration:  time.Duration(lgDurationMin) * time.Minute,
		Threads:   lgThreads,
	}, connect, log)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Server:     %s\n", viper.GetString("server"))
	fmt.Printf("  Intensity:  %s (%d queries/min)\n", intensity, intensity.QueriesPerMinute())
	fmt.Printf("  Threads:    %d\n", lgThreads)
	fmt.Printf("  Duration:   %d minutes\n", lgDurationMin)
	fmt.Printf("\n")

	if err := gen.Run(ctx); err != nil {
		return err
	}

	printLoadSummary(gen)
	return nil
}

func printLoadSummary(gen *loadgen.Generator) {
	st := gen.Stats()
	fmt.Printf("\nLoad generation finished:\n")
	fmt.Printf("  Queries executed: %d\n", st.Executed())
	fmt.Printf("  Errors:           %d\n", st.Errors())
	fmt.Printf("  Success rate:     %.1f%%\n", st.SuccessRate())
	fmt.Printf("  Mean latency:     %.1f ms\n", st.MeanLatencyMs())
	fmt.Printf("  P99 latency:      %.1f ms\n", st.P99LatencyMs())
}
