package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/failtrack/internal/config"
	"github.com/blackwell-systems/failtrack/internal/output"
	"github.com/blackwell-systems/failtrack/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored report runs",
	Long: `List past cross-session report runs from the local history database,
newest first. Use --json for machine-readable output.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if _, err := newRuntime(); err != nil {
		return err
	}

	db, err := store.Open(config.DBPath())
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer func() { _ = db.Close() }()

	reports, err := db.ListReports(historyLimit)
	if err != nil {
		return fmt.Errorf("listing report history: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if reports == nil {
			return enc.Encode([]struct{}{})
		}
		return enc.Encode(reports)
	}

	if len(reports) == 0 {
		fmt.Println("No stored report runs.")
		return nil
	}

	table := output.NewTable("TAKEN AT", "DAYS", "FAILURES", "SESSIONS", "SUMMARY")
	for _, r := range reports {
		table.AddRow(
			r.TakenAt.Local().Format(time.DateTime),
			fmt.Sprintf("%d", r.PeriodDays),
			fmt.Sprintf("%d", r.TotalFailures),
			fmt.Sprintf("%d", r.TotalSessions),
			truncate(r.Summary, 60),
		)
	}
	table.Print()
	return nil
}
