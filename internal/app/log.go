package app

import (
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/failtrack/internal/tracker"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record a failing tool event from stdin",
	Long: `Read a tool-execution event from stdin and, if it represents a failure
(nonzero exit code or stderr output), classify and append it to this
session's failure log.

Intended to run from a post-tool-use hook. Tracking errors never fail
the surrounding workflow: they are logged and the command exits 0.`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		log.Warn().Err(err).Msg("tracking unavailable")
		return nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Warn().Err(err).Msg("could not read event from stdin")
		return nil
	}

	event, err := tracker.ParseEvent(data)
	if err != nil {
		log.Warn().Err(err).Msg("rejected malformed event")
		return nil
	}
	if !event.IsFailure() {
		log.Debug().Str("tool_name", event.ToolName).Msg("no failure detected, skipping")
		return nil
	}

	store, err := rt.openStore()
	if err != nil {
		log.Warn().Err(err).Msg("could not open failure store")
		return nil
	}
	if err := store.LogFailure(event); err != nil {
		// Double write failure. Still exit 0: a tracking failure must
		// never abort the hook's workflow.
		log.Error().Err(err).Msg("failure could not be recorded")
	}
	return nil
}
