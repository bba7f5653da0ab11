package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/failtrack/internal/config"
	"github.com/blackwell-systems/failtrack/internal/detector"
	"github.com/blackwell-systems/failtrack/internal/output"
	"github.com/blackwell-systems/failtrack/internal/store"
)

var reportDays int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Analyze failures across all sessions",
	Long: `Aggregate failure logs from every active and archived session within
the lookback window, detect recurring patterns, and print a report.
Each run is also stored in the local history database for trend
comparison with --json for machine-readable output.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "Lookback window in days (default from config)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	days := reportDays
	if days <= 0 {
		days = rt.cfg.ReportDays
	}

	report, err := rt.openDetector().AnalyzeRecent(days)
	if err != nil {
		return err
	}

	saveReportHistory(report, days)

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	renderReport(report)
	return nil
}

// saveReportHistory records the run in the local SQLite history. History
// is an observability nicety; failures only warn.
func saveReportHistory(report *detector.Report, days int) {
	db, err := store.Open(config.DBPath())
	if err != nil {
		log.Warn().Err(err).Msg("could not open history database")
		return
	}
	defer func() { _ = db.Close() }()

	row := &store.ReportRow{
		TakenAt:       time.Now(),
		PeriodDays:    days,
		TotalFailures: report.TotalFailures,
		TotalSessions: report.TotalSessions,
		Summary:       report.Summary,
		Version:       appVersion,
	}
	patterns := make([]store.PatternRow, 0, len(report.Patterns))
	for _, p := range report.Patterns {
		patterns = append(patterns, store.PatternRow{
			PatternType:      p.Type,
			PatternKey:       patternKey(p),
			Occurrences:      p.Occurrences,
			AffectedSessions: p.AffectedSessions,
			Severity:         p.Severity,
		})
	}
	if _, err := db.SaveReport(row, patterns); err != nil {
		log.Warn().Err(err).Msg("could not save report history")
	}
}

func renderReport(report *detector.Report) {
	fmt.Println(output.StyleHeader.Render("Failure Report — " + report.Period))
	fmt.Printf("Total failures: %d across %d session(s)\n", report.TotalFailures, report.TotalSessions)
	fmt.Println(report.Summary)

	if len(report.Patterns) == 0 {
		return
	}

	fmt.Println()
	table := output.NewTable("SEVERITY", "PATTERN", "KEY", "COUNT", "SESSIONS")
	for _, p := range report.Patterns {
		table.AddRow(p.Severity, p.Type, patternKey(p),
			fmt.Sprintf("%d", p.Occurrences), fmt.Sprintf("%d", p.AffectedSessions))
		table.StyleCell(0, output.SeverityStyle(p.Severity))
	}
	table.Print()

	for _, p := range report.Patterns {
		if len(p.CommonErrors) == 0 {
			continue
		}
		fmt.Printf("\n%s %s:\n", p.Type, patternKey(p))
		for _, e := range p.CommonErrors {
			fmt.Printf("  %s (%d)\n", e.ErrorType, e.Count)
		}
	}
}

// patternKey returns the discriminating value for a pattern row.
func patternKey(p detector.Pattern) string {
	switch p.Type {
	case detector.PatternProblematicTool:
		return p.ToolName
	case detector.PatternHostSpecific:
		return p.Hostname
	default:
		return p.ErrorType
	}
}
