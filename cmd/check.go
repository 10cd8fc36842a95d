package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sqlpulse/internal/logging"
	"sqlpulse/internal/preflight"
)

var checkOutput string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify connectivity, permissions and the workload query",
	Long: `Runs the same probes the monitor runs at startup, without starting a
run. Useful for validating credentials and permissions before committing
to a long collection window.`,
	Example: `  sqlpulse check --server . --username monitor_user --password ...`,
	RunE:    runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "sql_workload_monitor.json", "output file whose directory is probed for writability")
}

func runCheck(cmd *cobra.Command, args []string) error {
	log := logging.New(verbose)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks, ok := preflight.Run(ctx, sourceConfig(), checkOutput, log)
	fmt.Println(preflight.Summary(checks))

	if !ok {
		return fmt.Errorf("preflight failed")
	}
	return nil
}
