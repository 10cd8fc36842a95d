package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sqlpulse/internal/checkpoint"
	"sqlpulse/internal/report"
	"sqlpulse/internal/sample"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <result-or-checkpoint.json>",
	Short: "Flatten a result or checkpoint file to CSV",
	Args:  cobra.ExactArgs(1),
	Example: `  sqlpulse export sql_workload_monitor.json
  sqlpulse export sql_workload_monitor_checkpoint.json -o partial.csv`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "CSV output path (default: input with .csv extension)")
}

func runExport(cmd *cobra.Command, args []string) error {
	in := args[0]

	samples, err := loadSamples(in)
	if err != nil {
		return err
	}

	out := exportOut
	if out == "" {
		out = strings.TrimSuffix(in, ".json") + ".csv"
	}
	if err := report.WriteCSV(out, samples); err != nil {
		return err
	}

	fmt.Printf("Exported %d samples to %s\n", len(samples), out)
	return nil
}

// loadSamples accepts either a final result file or an in-flight
// checkpoint, so partial runs can be exported too.
func loadSamples(path string) ([]sample.Sample, error) {
	if res, err := report.Read(path); err == nil && res.Metadata.Version != "" {
		return res.Samples, nil
	}

	f, err := checkpoint.Load(path)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s is neither a result nor a checkpoint file: %w", path, err)
	}
	return f.Samples, nil
}
