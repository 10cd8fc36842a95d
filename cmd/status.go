package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sqlpulse/internal/status"
)

var (
	statusWatch   bool
	statusRefresh int
)

var statusCmd = &cobra.Command{
	Use:   "status [checkpoint-file]",
	Short: "Inspect the checkpoint of a running or interrupted monitor",
	Args:  cobra.MaximumNArgs(1),
	Example: `  # one-shot snapshot
  sqlpulse status sql_workload_monitor_checkpoint.json

  # live view, refreshed every 10s
  sqlpulse status sql_workload_monitor_checkpoint.json --watch`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "refresh continuously")
	statusCmd.Flags().IntVar(&statusRefresh, "refresh", 10, "watch refresh interval in seconds")
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := "sql_workload_monitor_checkpoint.json"
	if len(args) > 0 {
		path = args[0]
	}

	if statusWatch {
		return status.Watch(path, time.Duration(statusRefresh)*time.Second)
	}

	rep, err := status.Analyze(path)
	if err != nil {
		return err
	}
	fmt.Println(rep.Render())
	return nil
}
