package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop this session's alert snapshot",
	Long: `Remove the session's alert snapshot after its consumer has processed
it. Intended to run from a hook; errors are logged and the command
exits 0.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
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
	if err := store.ClearAlerts(); err != nil {
		log.Warn().Str("session_id", store.SessionID).Err(err).
			Msg("could not clear alerts")
	}
	return nil
}
