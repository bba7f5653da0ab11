// Package app contains the Cobra command tree for failtrack.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagConfig  string
	flagBase    string
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "failtrack",
	Short: "Session-isolated failure tracking for tool-execution hooks",
	Long: `failtrack records tool-execution failures delivered by hook dispatchers,
isolates them by logical session using only shared-filesystem primitives,
and detects recurring failure patterns within and across sessions.

Hook-facing subcommands (log, analyze, clear) never fail the surrounding
workflow: tracking errors are logged to stderr and the process exits 0.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("failtrack", appVersion)
		fmt.Println()
		fmt.Println("Use a subcommand:")
		fmt.Println("  session-id  Print the current (or newly created) session id")
		fmt.Println("  log         Record a failing tool event from stdin")
		fmt.Println("  analyze     Detect patterns in this session and persist alerts")
		fmt.Println("  alerts      Print this session's pending alerts")
		fmt.Println("  clear       Drop this session's alert snapshot")
		fmt.Println("  cleanup     Archive sessions older than N days")
		fmt.Println("  report      Analyze failures across all sessions")
		fmt.Println("  session     Inspect or compare individual sessions")
		fmt.Println("  history     Show stored report runs")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	defer sweepTempFiles()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		sweepTempFiles()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/failtrack/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagBase, "base", "", "Tracking root directory (default: ~/.failtrack)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging")
}
