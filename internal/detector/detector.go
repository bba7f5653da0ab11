// Package detector analyzes failure records across all active and
// archived sessions to surface recurring patterns with severity scores.
package detector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/failtrack/internal/session"
	"github.com/blackwell-systems/failtrack/internal/tracker"
)

// Cross-session pattern kinds.
const (
	PatternRecurringErrorType = "recurring_error_type"
	PatternProblematicTool    = "problematic_tool"
	PatternHostSpecific       = "host_specific_issue"
)

// Detection thresholds.
const (
	recurringErrorMin  = 3
	problematicToolMin = 5
	hostIssueMin       = 10
	topErrorCount      = 3

	// scanConcurrency bounds parallel session-directory reads.
	scanConcurrency = 8
)

// ErrSessionNotFound is returned when a session id matches neither an
// active nor an archived session directory.
var ErrSessionNotFound = errors.New("session not found")

// Detector reads failure logs from the sessions and archive trees.
// Reads are lock-free: analysis tolerates a torn trailing line, writers
// never do.
type Detector struct {
	SessionsDir string
	ArchiveDir  string
}

// ErrorCount pairs an error kind with its occurrence count.
type ErrorCount struct {
	ErrorType string `json:"error_type"`
	Count     int    `json:"count"`
}

// Pattern is one recurring failure signature detected across sessions.
type Pattern struct {
	Type             string       `json:"type"`
	ErrorType        string       `json:"error_type,omitempty"`
	ToolName         string       `json:"tool_name,omitempty"`
	Hostname         string       `json:"hostname,omitempty"`
	Occurrences      int          `json:"occurrences"`
	AffectedSessions int          `json:"affected_sessions"`
	Severity         string       `json:"severity"`
	FirstSeen        string       `json:"first_seen,omitempty"`
	LastSeen         string       `json:"last_seen,omitempty"`
	SampleMessage    string       `json:"sample_message,omitempty"`
	CommonErrors     []ErrorCount `json:"common_errors,omitempty"`
}

// key returns the pattern's discriminating key for sorting tie-breaks.
func (p *Pattern) key() string {
	switch p.Type {
	case PatternProblematicTool:
		return p.ToolName
	case PatternHostSpecific:
		return p.Hostname
	default:
		return p.ErrorType
	}
}

// Report is the result of one cross-session analysis pass.
type Report struct {
	Period        string    `json:"period"`
	TotalFailures int       `json:"total_failures"`
	TotalSessions int       `json:"total_sessions"`
	Patterns      []Pattern `json:"patterns"`
	Summary       string    `json:"summary"`
}

// AnalyzeRecent aggregates failures from all active and archived
// sessions within the last days days and detects recurring patterns.
// Running it twice over unchanged logs yields identical reports.
func (d *Detector) AnalyzeRecent(days int) (*Report, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	failures, err := d.collectFailures(cutoff)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Period:        fmt.Sprintf("Last %d days", days),
		TotalFailures: len(failures),
	}
	if len(failures) == 0 {
		report.Summary = "No failures in this period"
		return report, nil
	}

	report.TotalSessions = countSessions(failures)
	report.Patterns = detectPatterns(failures)
	report.Summary = summarize(report.Patterns)

	log.Info().
		Int("total_failures", report.TotalFailures).
		Int("total_sessions", report.TotalSessions).
		Int("patterns", len(report.Patterns)).
		Msg("pattern analysis complete")

	return report, nil
}

// collectFailures reads every session directory under the active and
// archive trees concurrently and returns all records newer than cutoff,
// sorted by timestamp so grouping order does not depend on scan order.
func (d *Detector) collectFailures(cutoff time.Time) ([]tracker.FailureRecord, error) {
	dirs, err := d.sessionDirs()
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		all []tracker.FailureRecord
	)

	var g errgroup.Group
	g.SetLimit(scanConcurrency)
	for _, dir := range dirs {
		g.Go(func() error {
			records, err := tracker.ReadFailures(filepath.Join(dir, session.FailuresFile), cutoff)
			if err != nil {
				// Unreadable historical logs are skipped, not fatal.
				log.Debug().Str("session_dir", dir).Err(err).Msg("skipping unreadable failure log")
				return nil
			}
			mu.Lock()
			all = append(all, records...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Timestamp != all[j].Timestamp {
			return all[i].Timestamp < all[j].Timestamp
		}
		return all[i].SessionID < all[j].SessionID
	})
	return all, nil
}

// sessionDirs lists active session directories plus every archived
// session directory under the date partitions.
func (d *Detector) sessionDirs() ([]string, error) {
	var dirs []string

	active, err := os.ReadDir(d.SessionsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading sessions directory: %w", err)
	}
	for _, entry := range active {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(d.SessionsDir, entry.Name()))
		}
	}

	dates, err := os.ReadDir(d.ArchiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return dirs, nil
		}
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}
	for _, date := range dates {
		if !date.IsDir() {
			continue
		}
		dateDir := filepath.Join(d.ArchiveDir, date.Name())
		archived, err := os.ReadDir(dateDir)
		if err != nil {
			continue
		}
		for _, entry := range archived {
			if entry.IsDir() {
				dirs = append(dirs, filepath.Join(dateDir, entry.Name()))
			}
		}
	}

	return dirs, nil
}

// detectPatterns runs the three pattern classes over the collected
// failures and returns them sorted by severity, then descending count.
func detectPatterns(failures []tracker.FailureRecord) []Pattern {
	var patterns []Pattern
	patterns = append(patterns, recurringErrorTypes(failures)...)
	patterns = append(patterns, problematicTools(failures)...)
	patterns = append(patterns, hostSpecificIssues(failures)...)

	sort.SliceStable(patterns, func(i, j int) bool {
		ri, rj := tracker.SeverityRank(patterns[i].Severity), tracker.SeverityRank(patterns[j].Severity)
		if ri != rj {
			return ri < rj
		}
		if patterns[i].Occurrences != patterns[j].Occurrences {
			return patterns[i].Occurrences > patterns[j].Occurrences
		}
		return patterns[i].key() < patterns[j].key()
	})
	return patterns
}

// recurringErrorTypes flags error kinds seen at least three times.
func recurringErrorTypes(failures []tracker.FailureRecord) []Pattern {
	var patterns []Pattern
	for _, g := range groupRecords(failures, func(r tracker.FailureRecord) string { return r.ErrorType }) {
		if len(g.records) < recurringErrorMin {
			continue
		}
		sessions := countSessions(g.records)
		first, last := g.records[0], g.records[len(g.records)-1]
		patterns = append(patterns, Pattern{
			Type:             PatternRecurringErrorType,
			ErrorType:        g.key,
			Occurrences:      len(g.records),
			AffectedSessions: sessions,
			Severity:         tracker.SeverityFor(len(g.records), sessions),
			FirstSeen:        first.Timestamp,
			LastSeen:         last.Timestamp,
			SampleMessage:    last.ErrorMessage,
		})
	}
	return patterns
}

// problematicTools flags tools failing at least five times across at
// least two sessions, with their most common error kinds.
func problematicTools(failures []tracker.FailureRecord) []Pattern {
	var patterns []Pattern
	for _, g := range groupRecords(failures, func(r tracker.FailureRecord) string { return r.ToolName }) {
		if len(g.records) < problematicToolMin {
			continue
		}
		sessions := countSessions(g.records)
		if sessions < 2 {
			continue
		}
		patterns = append(patterns, Pattern{
			Type:             PatternProblematicTool,
			ToolName:         g.key,
			Occurrences:      len(g.records),
			AffectedSessions: sessions,
			Severity:         tracker.SeverityFor(len(g.records), sessions),
			CommonErrors:     commonErrors(g.records, topErrorCount),
		})
	}
	return patterns
}

// hostSpecificIssues flags hosts responsible for a significant share of
// failures: at least ten, where the host's sessions exceed half of all
// sessions in the window. Always HIGH severity.
func hostSpecificIssues(failures []tracker.FailureRecord) []Pattern {
	totalSessions := countSessions(failures)
	if totalSessions == 0 {
		return nil
	}

	var patterns []Pattern
	for _, g := range groupRecords(failures, func(r tracker.FailureRecord) string { return r.Hostname }) {
		if len(g.records) < hostIssueMin {
			continue
		}
		hostSessions := countSessions(g.records)
		if float64(hostSessions)/float64(totalSessions) <= 0.5 {
			continue
		}
		patterns = append(patterns, Pattern{
			Type:             PatternHostSpecific,
			Hostname:         g.key,
			Occurrences:      len(g.records),
			AffectedSessions: hostSessions,
			Severity:         tracker.SeverityHigh,
			CommonErrors:     commonErrors(g.records, topErrorCount),
		})
	}
	return patterns
}

// summarize renders the human-readable pattern count line.
func summarize(patterns []Pattern) string {
	if len(patterns) == 0 {
		return "No significant patterns detected"
	}

	counts := make(map[string]int)
	for _, p := range patterns {
		counts[p.Severity]++
	}

	var parts []string
	if n := counts[tracker.SeverityCritical]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d CRITICAL pattern(s)", n))
	}
	if n := counts[tracker.SeverityHigh]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d HIGH severity pattern(s)", n))
	}
	if n := counts[tracker.SeverityMedium]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d MEDIUM severity pattern(s)", n))
	}
	if len(parts) == 0 {
		return "No significant patterns detected"
	}

	summary := "Found: " + parts[0]
	for _, p := range parts[1:] {
		summary += ", " + p
	}
	return summary
}

// commonErrors returns the top-n error kinds by count, ties broken by
// name for determinism.
func commonErrors(records []tracker.FailureRecord, n int) []ErrorCount {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.ErrorType]++
	}

	result := make([]ErrorCount, 0, len(counts))
	for errorType, count := range counts {
		result = append(result, ErrorCount{ErrorType: errorType, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].ErrorType < result[j].ErrorType
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

// countSessions returns the number of distinct session ids.
func countSessions(records []tracker.FailureRecord) int {
	seen := make(map[string]struct{})
	for _, r := range records {
		seen[r.SessionID] = struct{}{}
	}
	return len(seen)
}

// recordGroup holds records sharing one key in input order.
type recordGroup struct {
	key     string
	records []tracker.FailureRecord
}

// groupRecords buckets records by key, preserving first-seen key order.
func groupRecords(records []tracker.FailureRecord, keyFn func(tracker.FailureRecord) string) []recordGroup {
	index := make(map[string]int)
	var groups []recordGroup
	for _, r := range records {
		key := keyFn(r)
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, recordGroup{key: key})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}
