package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/blackwell-systems/failtrack/internal/session"
	"github.com/blackwell-systems/failtrack/internal/tracker"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	base := t.TempDir()
	return &Detector{
		SessionsDir: filepath.Join(base, "sessions"),
		ArchiveDir:  filepath.Join(base, "archive"),
	}
}

// seedSession writes a session directory with the given failure records.
// An archiveDate other than "" places it under that archive partition.
func seedSession(t *testing.T, d *Detector, id, archiveDate string, records []tracker.FailureRecord) {
	t.Helper()

	dir := filepath.Join(d.SessionsDir, id)
	if archiveDate != "" {
		dir = filepath.Join(d.ArchiveDir, archiveDate, id)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	f, err := os.Create(filepath.Join(dir, session.FailuresFile))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			t.Fatal(err)
		}
	}
}

// failures builds n records for one session with the given error type,
// tool and host, spaced a minute apart.
func failures(n int, sessionID, errorType, tool, host string) []tracker.FailureRecord {
	base := time.Now().Add(-time.Hour)
	records := make([]tracker.FailureRecord, n)
	for i := range records {
		records[i] = tracker.FailureRecord{
			Timestamp:    base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			SessionID:    sessionID,
			Hostname:     host,
			ToolName:     tool,
			ErrorType:    errorType,
			ErrorMessage: errorType + " happened",
			ExitCode:     1,
		}
	}
	return records
}

func findPattern(patterns []Pattern, kind, key string) *Pattern {
	for i := range patterns {
		p := &patterns[i]
		if p.Type != kind {
			continue
		}
		if p.key() == key {
			return p
		}
	}
	return nil
}

func TestAnalyzeRecent_RecurringErrorAcrossSessions(t *testing.T) {
	d := newTestDetector(t)

	// 12 occurrences of one error kind spread over 4 sessions on 4
	// hosts: frequent and widespread, so CRITICAL.
	for i := range 4 {
		id := fmt.Sprintf("session-%d", i)
		host := fmt.Sprintf("host-%d", i)
		tool := fmt.Sprintf("Tool%d", i)
		seedSession(t, d, id, "", failures(3, id, "module_not_found", tool, host))
	}

	report, err := d.AnalyzeRecent(7)
	if err != nil {
		t.Fatalf("AnalyzeRecent() error: %v", err)
	}
	if report.TotalFailures != 12 || report.TotalSessions != 4 {
		t.Errorf("totals = %d failures / %d sessions, want 12/4", report.TotalFailures, report.TotalSessions)
	}

	p := findPattern(report.Patterns, PatternRecurringErrorType, "module_not_found")
	if p == nil {
		t.Fatalf("no recurring_error_type pattern in %+v", report.Patterns)
	}
	if p.Occurrences != 12 || p.AffectedSessions != 4 {
		t.Errorf("pattern = %+v, want 12 occurrences across 4 sessions", p)
	}
	if p.Severity != tracker.SeverityCritical {
		t.Errorf("Severity = %q, want %q", p.Severity, tracker.SeverityCritical)
	}
	if p.SampleMessage == "" || p.FirstSeen == "" || p.LastSeen == "" {
		t.Errorf("pattern missing context fields: %+v", p)
	}
}

func TestAnalyzeRecent_ProblematicTool(t *testing.T) {
	d := newTestDetector(t)

	// One tool failing 6 times across two sessions, with mixed error
	// kinds kept below the recurring threshold per kind.
	a := failures(3, "session-a", "file_not_found", "Bash", "host-a")
	b := failures(3, "session-b", "permission_denied", "Bash", "host-b")
	// Bend one record per session to a unique kind.
	a[2].ErrorType = "syntax_error"
	b[2].ErrorType = "type_error"
	seedSession(t, d, "session-a", "", a)
	seedSession(t, d, "session-b", "", b)

	report, err := d.AnalyzeRecent(7)
	if err != nil {
		t.Fatalf("AnalyzeRecent() error: %v", err)
	}

	p := findPattern(report.Patterns, PatternProblematicTool, "Bash")
	if p == nil {
		t.Fatalf("no problematic_tool pattern in %+v", report.Patterns)
	}
	if p.Occurrences != 6 || p.AffectedSessions != 2 {
		t.Errorf("pattern = %+v, want 6 occurrences across 2 sessions", p)
	}
	if len(p.CommonErrors) == 0 || len(p.CommonErrors) > topErrorCount {
		t.Errorf("CommonErrors = %+v", p.CommonErrors)
	}
}

func TestAnalyzeRecent_ProblematicToolNeedsTwoSessions(t *testing.T) {
	d := newTestDetector(t)

	// Heavy failures confined to one session never flag the tool.
	records := failures(8, "session-solo", "file_not_found", "Edit", "host-a")
	seedSession(t, d, "session-solo", "", records)

	report, err := d.AnalyzeRecent(7)
	if err != nil {
		t.Fatalf("AnalyzeRecent() error: %v", err)
	}
	if p := findPattern(report.Patterns, PatternProblematicTool, "Edit"); p != nil {
		t.Errorf("single-session tool flagged: %+v", p)
	}
}

func TestAnalyzeRecent_HostSpecificIssue(t *testing.T) {
	d := newTestDetector(t)

	// Two of three sessions run on the suspect host and carry 12 of the
	// 14 failures.
	seedSession(t, d, "session-a", "", failures(6, "session-a", "test_failed", "Bash", "flaky-host"))
	seedSession(t, d, "session-b", "", failures(6, "session-b", "test_failed", "Bash", "flaky-host"))
	seedSession(t, d, "session-c", "", failures(2, "session-c", "test_failed", "Bash", "ok-host"))

	report, err := d.AnalyzeRecent(7)
	if err != nil {
		t.Fatalf("AnalyzeRecent() error: %v", err)
	}

	p := findPattern(report.Patterns, PatternHostSpecific, "flaky-host")
	if p == nil {
		t.Fatalf("no host_specific_issue pattern in %+v", report.Patterns)
	}
	if p.Severity != tracker.SeverityHigh {
		t.Errorf("Severity = %q, want %q", p.Severity, tracker.SeverityHigh)
	}
	if findPattern(report.Patterns, PatternHostSpecific, "ok-host") != nil {
		t.Error("minority host flagged as host-specific issue")
	}
}

func TestAnalyzeRecent_IncludesArchivedSessions(t *testing.T) {
	d := newTestDetector(t)

	seedSession(t, d, "session-live", "", failures(2, "session-live", "syntax_error", "Bash", "host-a"))
	seedSession(t, d, "session-past", "2026-08-20", failures(2, "session-past", "syntax_error", "Bash", "host-a"))

	report, err := d.AnalyzeRecent(7)
	if err != nil {
		t.Fatalf("AnalyzeRecent() error: %v", err)
	}
	if report.TotalFailures != 4 || report.TotalSessions != 2 {
		t.Errorf("totals = %d/%d, want archived session counted (4 failures, 2 sessions)",
			report.TotalFailures, report.TotalSessions)
	}
}

func TestAnalyzeRecent_Idempotent(t *testing.T) {
	d := newTestDetector(t)

	for i := range 4 {
		id := fmt.Sprintf("session-%d", i)
		seedSession(t, d, id, "", failures(3, id, "test_failed", "Bash", "host-a"))
	}

	first, err := d.AnalyzeRecent(7)
	if err != nil {
		t.Fatalf("AnalyzeRecent() error: %v", err)
	}
	second, err := d.AnalyzeRecent(7)
	if err != nil {
		t.Fatalf("AnalyzeRecent() error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("analysis not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestAnalyzeRecent_EmptyTree(t *testing.T) {
	d := newTestDetector(t)

	report, err := d.AnalyzeRecent(7)
	if err != nil {
		t.Fatalf("AnalyzeRecent() error: %v", err)
	}
	if report.TotalFailures != 0 {
		t.Errorf("TotalFailures = %d, want 0", report.TotalFailures)
	}
	if report.Summary != "No failures in this period" {
		t.Errorf("Summary = %q", report.Summary)
	}
}

func TestSummarize(t *testing.T) {
	patterns := []Pattern{
		{Severity: tracker.SeverityCritical},
		{Severity: tracker.SeverityHigh},
		{Severity: tracker.SeverityHigh},
		{Severity: tracker.SeverityMedium},
		{Severity: tracker.SeverityLow},
	}
	got := summarize(patterns)
	want := "Found: 1 CRITICAL pattern(s), 2 HIGH severity pattern(s), 1 MEDIUM severity pattern(s)"
	if got != want {
		t.Errorf("summarize() = %q, want %q", got, want)
	}

	if got := summarize(nil); got != "No significant patterns detected" {
		t.Errorf("summarize(nil) = %q", got)
	}
}

func TestSessionDetails_ActiveAndArchived(t *testing.T) {
	d := newTestDetector(t)

	seedSession(t, d, "session-live", "", failures(2, "session-live", "syntax_error", "Bash", "host-a"))
	seedSession(t, d, "session-past", "2026-08-20", failures(3, "session-past", "test_failed", "Bash", "host-a"))

	live, err := d.SessionDetails("session-live")
	if err != nil {
		t.Fatalf("SessionDetails() error: %v", err)
	}
	if live.Archived || live.TotalFailures != 2 || live.FailuresByType["syntax_error"] != 2 {
		t.Errorf("live details = %+v", live)
	}

	past, err := d.SessionDetails("session-past")
	if err != nil {
		t.Fatalf("SessionDetails() error: %v", err)
	}
	if !past.Archived || past.TotalFailures != 3 {
		t.Errorf("archived details = %+v", past)
	}

	if _, err := d.SessionDetails("session-nope"); err != ErrSessionNotFound {
		t.Errorf("SessionDetails(missing) error = %v, want ErrSessionNotFound", err)
	}
}

func TestCompareSessions(t *testing.T) {
	d := newTestDetector(t)

	a := append(
		failures(2, "session-a", "syntax_error", "Bash", "host-a"),
		failures(2, "session-a", "test_failed", "Bash", "host-a")...,
	)
	b := append(
		failures(1, "session-b", "test_failed", "Bash", "host-b"),
		failures(1, "session-b", "permission_denied", "Bash", "host-b")...,
	)
	seedSession(t, d, "session-a", "", a)
	seedSession(t, d, "session-b", "", b)

	cmp, err := d.CompareSessions("session-a", "session-b")
	if err != nil {
		t.Fatalf("CompareSessions() error: %v", err)
	}

	if cmp.FailuresA != 4 || cmp.FailuresB != 2 || cmp.Difference != 2 {
		t.Errorf("counts = %+v", cmp)
	}
	if !reflect.DeepEqual(cmp.CommonErrors, []string{"test_failed"}) {
		t.Errorf("CommonErrors = %v", cmp.CommonErrors)
	}
	if !reflect.DeepEqual(cmp.UniqueToA, []string{"syntax_error"}) {
		t.Errorf("UniqueToA = %v", cmp.UniqueToA)
	}
	if !reflect.DeepEqual(cmp.UniqueToB, []string{"permission_denied"}) {
		t.Errorf("UniqueToB = %v", cmp.UniqueToB)
	}
}
