package app

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var analyzeWindow int

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect patterns in this session and persist alerts",
	Long: `Scan this session's recent failures for recurring error kinds and
repeatedly failing commands, and persist any detected alerts as the
session's current alert snapshot.

Intended to run from a hook. Tracking errors never fail the surrounding
workflow: they are logged and the command exits 0.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeWindow, "window", 0, "Lookback window in hours (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		log.Warn().Err(err).Msg("tracking unavailable")
		return nil
	}

	store, err := rt.openStore()
	if err != nil {
		log.Warn().Err(err).Msg("could not open failure store")
		return nil
	}

	hours := analyzeWindow
	if hours <= 0 {
		hours = rt.cfg.LookbackHours
	}

	alerts, err := store.AnalyzePatterns(time.Duration(hours) * time.Hour)
	if err != nil {
		log.Warn().Err(err).Msg("pattern analysis failed")
		return nil
	}
	if len(alerts) == 0 {
		log.Debug().Str("session_id", store.SessionID).Msg("no patterns detected")
		return nil
	}

	if err := store.SaveAlerts(alerts); err != nil {
		log.Warn().Err(err).Msg("could not save alerts")
		return nil
	}
	log.Info().Str("session_id", store.SessionID).Int("alerts", len(alerts)).
		Msg("alerts saved")
	return nil
}
