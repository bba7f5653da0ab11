package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Archiver moves aged session directories into a date-partitioned
// archive. Sessions are moved intact, never deleted, so archived failure
// logs remain readable by cross-session analysis.
type Archiver struct {
	SessionsDir string
	ArchiveDir  string
}

// ArchiveOlderThan moves every active session whose recorded start time
// is more than days days old to ArchiveDir/<start-date>/<id>/ and
// returns the number of sessions moved.
//
// Sessions without readable start-time metadata are skipped with a
// warning: leaving ambiguous data in place beats misfiling it.
func (a *Archiver) ArchiveOlderThan(days int) (int, error) {
	entries, err := os.ReadDir(a.SessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading sessions directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	archived := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sessionDir := filepath.Join(a.SessionsDir, entry.Name())

		info, err := ReadInfo(sessionDir)
		if err != nil {
			log.Warn().Str("session_id", entry.Name()).Err(err).
				Msg("could not read session metadata, leaving in place")
			continue
		}
		started, err := info.StartedAt()
		if err != nil {
			log.Warn().Str("session_id", entry.Name()).Err(err).
				Msg("unparsable session start time, leaving in place")
			continue
		}
		if !started.Before(cutoff) {
			continue
		}

		dest := filepath.Join(a.ArchiveDir, started.Format("2006-01-02"), entry.Name())
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			log.Warn().Str("session_id", entry.Name()).Err(err).
				Msg("could not create archive directory")
			continue
		}
		if err := os.Rename(sessionDir, dest); err != nil {
			log.Warn().Str("session_id", entry.Name()).Err(err).
				Msg("could not archive session")
			continue
		}

		archived++
		log.Info().Str("session_id", entry.Name()).Str("archive_path", dest).
			Msg("archived session")
	}

	return archived, nil
}
