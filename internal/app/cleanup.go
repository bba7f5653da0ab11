package app

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/failtrack/internal/session"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [days]",
	Short: "Archive sessions older than N days",
	Long: `Move session directories older than the given number of days (default
from config) into the date-partitioned archive. Archived sessions keep
their failure logs and remain visible to cross-session reports.

Nothing is ever deleted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	days := rt.cfg.ArchiveDays
	if len(args) == 1 {
		days, err = strconv.Atoi(args[0])
		if err != nil || days < 0 {
			return fmt.Errorf("invalid days value %q", args[0])
		}
	}

	archiver := &session.Archiver{
		SessionsDir: rt.cfg.SessionsDir(),
		ArchiveDir:  rt.cfg.ArchiveDir(),
	}
	count, err := archiver.ArchiveOlderThan(days)
	if err != nil {
		return err
	}

	// Stderr, so cleanup can share a hook pipeline with commands that
	// emit structured data on stdout.
	fmt.Fprintf(os.Stderr, "Archived %d sessions older than %d days\n", count, days)
	return nil
}
