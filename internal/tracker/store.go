package tracker

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/failtrack/internal/fsx"
	"github.com/blackwell-systems/failtrack/internal/session"
)

// markerPermission tags emergency records written after a permission
// failure on the primary log; markerUnlocked tags records written
// without the lock after a timeout. Both signal manual reconciliation.
const (
	markerPermission = "# WARNING: Written to emergency log due to permission error"
	markerUnlocked   = "# WARNING: Written without lock due to timeout"
)

// Store records failures for one session and maintains its alert
// snapshot. All mutations go through the advisory lock; the two
// emergency paths trade mutual exclusion for never losing a record.
type Store struct {
	SessionID        string
	Dir              string
	Hostname         string
	Writer           *fsx.Writer
	LockTimeout      time.Duration
	StaleThreshold   time.Duration
	PatternThreshold int
}

// FailuresPath returns the session's primary failure log path.
func (s *Store) FailuresPath() string {
	return filepath.Join(s.Dir, session.FailuresFile)
}

// AlertsPath returns the session's alert snapshot path.
func (s *Store) AlertsPath() string {
	return filepath.Join(s.Dir, session.AlertsFile)
}

// emergencyTempPath is the fallback when the primary log is not
// writable: the system temp dir is usually writable when the tracking
// root is not.
func (s *Store) emergencyTempPath() string {
	return filepath.Join(os.TempDir(), "failtrack-emergency-"+s.SessionID+".jsonl")
}

// emergencySessionPath is the fallback for lock timeouts, kept inside
// the session directory so reconciliation stays session-local.
func (s *Store) emergencySessionPath() string {
	return filepath.Join(s.Dir, "failures-emergency.jsonl")
}

// LogFailure classifies the event, builds a failure record and appends
// it to the session log under the advisory lock with a forced flush.
//
// A permission error on the primary log falls back to an emergency log
// in the temp dir; a lock timeout falls back to an unlocked append to a
// per-session emergency file. The record is never silently dropped: only
// a double failure (primary and emergency both unwritable) returns an
// error, naming the emergency path for manual recovery.
func (s *Store) LogFailure(e *Event) error {
	record := FailureRecord{
		Timestamp:    time.Now().Format(time.RFC3339),
		SessionID:    s.SessionID,
		Hostname:     s.Hostname,
		ToolName:     e.ToolName,
		ErrorType:    Classify(e),
		ErrorMessage: ExtractMessage(e),
		ToolInput:    e.ToolInput,
		ExitCode:     e.ExitCode,
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding failure record: %w", err)
	}

	err = fsx.WithLock(s.FailuresPath(), s.LockTimeout, s.StaleThreshold, func() error {
		return appendLines(s.FailuresPath(), string(line))
	})
	if err == nil {
		log.Debug().
			Str("session_id", s.SessionID).
			Str("error_type", record.ErrorType).
			Str("tool_name", record.ToolName).
			Msg("failure logged")
		return nil
	}

	switch {
	case os.IsPermission(err):
		emergency := s.emergencyTempPath()
		log.Warn().
			Str("session_id", s.SessionID).
			Str("failure_log", s.FailuresPath()).
			Str("emergency_log", emergency).
			Err(err).
			Msg("permission denied on failure log, using emergency log")

		if writeErr := appendLines(emergency, string(line), markerPermission); writeErr != nil {
			return fmt.Errorf("could not log failure due to permissions, and emergency write failed (check %s for recovery): %w", emergency, writeErr)
		}
		return nil

	case errors.Is(err, fsx.ErrLockTimeout):
		emergency := s.emergencySessionPath()
		log.Error().
			Str("session_id", s.SessionID).
			Str("failure_log", s.FailuresPath()).
			Str("emergency_log", emergency).
			Str("error_type", record.ErrorType).
			Msg("lock acquisition timeout, failure written to emergency log")

		if writeErr := appendLines(emergency, string(line), markerUnlocked); writeErr != nil {
			return fmt.Errorf("could not log failure due to lock timeout, and emergency write failed (check %s for recovery): %w", emergency, writeErr)
		}
		return nil

	default:
		return fmt.Errorf("appending failure record: %w", err)
	}
}

// AnalyzePatterns reads this session's failures within the lookback
// window and returns one alert per error kind or repeated command whose
// count meets the pattern threshold. Re-running over an unchanged log
// yields identical alerts.
func (s *Store) AnalyzePatterns(lookback time.Duration) ([]Alert, error) {
	recent, err := s.readRecent(time.Now().Add(-lookback))
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, nil
	}

	var alerts []Alert

	// Recurring error kinds.
	for _, group := range groupBy(recent, func(r FailureRecord) (string, bool) {
		return r.ErrorType, true
	}) {
		if len(group.records) < s.PatternThreshold {
			continue
		}
		first, last := group.records[0], group.records[len(group.records)-1]
		alerts = append(alerts, Alert{
			PatternType:     PatternRecurringError,
			ErrorType:       group.key,
			Occurrences:     len(group.records),
			FirstOccurrence: first.Timestamp,
			LastOccurrence:  last.Timestamp,
			SampleMessage:   last.ErrorMessage,
			ToolName:        last.ToolName,
			SessionID:       s.SessionID,
			Hostname:        last.Hostname,
			Severity:        SeverityFor(len(group.records), 1),
		})
	}

	// The same command failing repeatedly, keyed by a bounded prefix.
	for _, group := range groupBy(recent, func(r FailureRecord) (string, bool) {
		cmd, ok := r.ToolInput["command"].(string)
		if !ok || cmd == "" {
			return "", false
		}
		return commandPrefix(cmd), true
	}) {
		if len(group.records) < s.PatternThreshold {
			continue
		}
		first, last := group.records[0], group.records[len(group.records)-1]
		alerts = append(alerts, Alert{
			PatternType:     PatternCommandRepeated,
			Command:         group.key,
			Occurrences:     len(group.records),
			FirstOccurrence: first.Timestamp,
			LastOccurrence:  last.Timestamp,
			SampleMessage:   last.ErrorMessage,
			SessionID:       s.SessionID,
			Hostname:        last.Hostname,
			Severity:        SeverityFor(len(group.records), 1),
		})
	}

	return alerts, nil
}

// SaveAlerts replaces the session's alert snapshot. The write itself is
// atomic; the lock only serializes concurrent analyzers. On lock timeout
// the snapshot is written anyway: rename atomicity protects readers.
func (s *Store) SaveAlerts(alerts []Alert) error {
	snapshot := Snapshot{
		Timestamp: time.Now().Format(time.RFC3339),
		SessionID: s.SessionID,
		Hostname:  s.Hostname,
		Alerts:    alerts,
	}

	write := func() error {
		return s.Writer.WriteAtomic(s.AlertsPath(), func(out io.Writer) error {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snapshot)
		})
	}

	err := fsx.WithLock(s.AlertsPath(), s.LockTimeout, s.StaleThreshold, write)
	if errors.Is(err, fsx.ErrLockTimeout) {
		log.Warn().Str("session_id", s.SessionID).
			Msg("lock timeout saving alerts, writing without lock")
		return write()
	}
	return err
}

// PendingAlerts returns the session's current alert snapshot, or nil if
// none exists or it is unreadable.
func (s *Store) PendingAlerts() ([]Alert, error) {
	read := func() ([]Alert, error) {
		data, err := os.ReadFile(s.AlertsPath())
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		var snapshot Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			// Corrupt snapshot is treated as no pending alerts.
			log.Warn().Str("session_id", s.SessionID).Err(err).
				Msg("unparsable alert snapshot, ignoring")
			return nil, nil
		}
		return snapshot.Alerts, nil
	}

	var alerts []Alert
	err := fsx.WithLock(s.AlertsPath(), s.LockTimeout, s.StaleThreshold, func() error {
		var readErr error
		alerts, readErr = read()
		return readErr
	})
	if errors.Is(err, fsx.ErrLockTimeout) {
		// Read-only access is safe without the lock.
		return read()
	}
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// ClearAlerts drops the alert snapshot after its consumer has read it.
func (s *Store) ClearAlerts() error {
	if err := os.Remove(s.AlertsPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// readRecent reads failure records newer than cutoff. The read is
// lock-protected; on timeout it proceeds without the lock, skipping any
// torn trailing line along with other malformed lines.
func (s *Store) readRecent(cutoff time.Time) ([]FailureRecord, error) {
	read := func() ([]FailureRecord, error) {
		return ReadFailures(s.FailuresPath(), cutoff)
	}

	var records []FailureRecord
	err := fsx.WithLock(s.FailuresPath(), s.LockTimeout, s.StaleThreshold, func() error {
		var readErr error
		records, readErr = read()
		return readErr
	})
	if errors.Is(err, fsx.ErrLockTimeout) {
		return read()
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ReadFailures reads the failure log at path, returning records at or
// after cutoff. Malformed lines (including marker comments in emergency
// logs and torn trailing lines) are skipped, never fatal. A missing log
// is an empty result.
func ReadFailures(path string, cutoff time.Time) ([]FailureRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var records []FailureRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var record FailureRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		ts, err := record.Time()
		if err != nil {
			continue
		}
		if !ts.Before(cutoff) {
			records = append(records, record)
		}
	}
	if err := scanner.Err(); err != nil {
		return records, err
	}
	return records, nil
}

// appendLines appends each line plus a newline to path with a forced
// flush to stable storage.
func appendLines(path string, lines ...string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return f.Sync()
}

// commandPrefix bounds the grouping key for repeated commands.
func commandPrefix(cmd string) string {
	const maxLen = 100
	if len(cmd) > maxLen {
		return cmd[:maxLen]
	}
	return cmd
}

// group holds records sharing one grouping key in first-seen order.
type group struct {
	key     string
	records []FailureRecord
}

// groupBy buckets records by key, preserving first-seen key order so
// analysis output is deterministic.
func groupBy(records []FailureRecord, keyFn func(FailureRecord) (string, bool)) []group {
	index := make(map[string]int)
	var groups []group
	for _, r := range records {
		key, ok := keyFn(r)
		if !ok {
			continue
		}
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{key: key})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}
