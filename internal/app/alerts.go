package app

import (
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/failtrack/internal/output"
	"github.com/blackwell-systems/failtrack/internal/tracker"
)

var alertsPretty bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Print this session's pending alerts",
	Long: `Print the session's current alert snapshot as JSON, or as a styled
table with --pretty. An absent or unreadable snapshot prints an empty
list.`,
	Args: cobra.NoArgs,
	RunE: runAlerts,
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsPretty, "pretty", false, "Render alerts as a table")
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	store, err := rt.openStore()
	if err != nil {
		return err
	}

	alerts, err := store.PendingAlerts()
	if err != nil {
		return fmt.Errorf("reading alerts: %w", err)
	}

	if !alertsPretty {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if alerts == nil {
			return enc.Encode([]struct{}{})
		}
		return enc.Encode(alerts)
	}

	if len(alerts) == 0 {
		fmt.Println("No pending alerts.")
		return nil
	}

	table := output.NewTable("SEVERITY", "PATTERN", "KEY", "COUNT", "SAMPLE")
	for _, a := range alerts {
		key := a.ErrorType
		if a.PatternType == tracker.PatternCommandRepeated {
			key = a.Command
		}
		table.AddRow(a.Severity, a.PatternType, key,
			fmt.Sprintf("%d", a.Occurrences), truncate(a.SampleMessage, 48))
		table.StyleCell(0, output.SeverityStyle(a.Severity))
	}
	table.Print()
	return nil
}

// truncate shortens s for table display, cutting on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 1
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
