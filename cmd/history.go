package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sqlpulse/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List completed monitor runs",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, err := history.DefaultPath()
	if err != nil {
		return err
	}
	hs, err := history.Open(path)
	if err != nil {
		return err
	}
	defer hs.Close()

	entries, err := hs.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[:historyLimit]
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tSERVER\tDATABASE\tSAMPLES\tERRORS\tDURATION\tOUTPUT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%dm\t%s\n",
			e.FinishedAt.Local().Format("2006-01-02 15:04"),
			e.Server, e.Database, e.Samples, e.Errors, e.DurationMinutes, e.OutputPath)
	}
	return w.Flush()
}
