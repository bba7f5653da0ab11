// Package tracker records classified tool failures into the per-session
// append-only log and maintains the session's current alert snapshot.
package tracker

import "time"

// FailureRecord is one classified failure, appended as a single JSONL
// line to the session's failure log. Records are immutable once written;
// ordering within a log is append order.
type FailureRecord struct {
	Timestamp    string         `json:"timestamp"`
	SessionID    string         `json:"session_id"`
	Hostname     string         `json:"hostname"`
	ToolName     string         `json:"tool_name"`
	ErrorType    string         `json:"error_type"`
	ErrorMessage string         `json:"error_message"`
	ToolInput    map[string]any `json:"tool_input"`
	ExitCode     int            `json:"exit_code"`
}

// Time parses the record's timestamp.
func (r *FailureRecord) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Timestamp)
}

// Pattern kinds for single-session alerts.
const (
	PatternRecurringError  = "recurring_error"
	PatternCommandRepeated = "command_repeated_failure"
)

// Alert is one detected failure pattern within a session. Alerts are
// regenerated on every analysis pass, never appended.
type Alert struct {
	PatternType     string `json:"pattern_type"`
	ErrorType       string `json:"error_type,omitempty"`
	Command         string `json:"command,omitempty"`
	Occurrences     int    `json:"occurrences"`
	FirstOccurrence string `json:"first_occurrence"`
	LastOccurrence  string `json:"last_occurrence"`
	SampleMessage   string `json:"sample_message"`
	ToolName        string `json:"tool_name,omitempty"`
	SessionID       string `json:"session_id"`
	Hostname        string `json:"hostname"`
	Severity        string `json:"severity"`
}

// Snapshot is the current contents of a session's alert file.
type Snapshot struct {
	Timestamp string  `json:"timestamp"`
	SessionID string  `json:"session_id"`
	Hostname  string  `json:"hostname"`
	Alerts    []Alert `json:"alerts"`
}
