package detector

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/blackwell-systems/failtrack/internal/session"
	"github.com/blackwell-systems/failtrack/internal/tracker"
)

// SessionDetails is everything known about one session: its metadata,
// full failure history and current alerts.
type SessionDetails struct {
	SessionID      string                  `json:"session_id"`
	Archived       bool                    `json:"archived"`
	Info           *session.Info           `json:"session_info,omitempty"`
	TotalFailures  int                     `json:"total_failures"`
	FailuresByType map[string]int          `json:"failures_by_type"`
	Alerts         []tracker.Alert         `json:"alerts"`
	Failures       []tracker.FailureRecord `json:"failures"`
}

// SessionDetails looks a session up by id, searching active sessions
// first and then the archive partitions. Returns ErrSessionNotFound if
// the id matches neither.
func (d *Detector) SessionDetails(id string) (*SessionDetails, error) {
	dir, archived, err := d.findSession(id)
	if err != nil {
		return nil, err
	}

	details := &SessionDetails{
		SessionID:      id,
		Archived:       archived,
		FailuresByType: make(map[string]int),
	}

	// Metadata and alerts are optional; failures drive the counts.
	if info, err := session.ReadInfo(dir); err == nil {
		details.Info = info
	}

	failures, err := tracker.ReadFailures(filepath.Join(dir, session.FailuresFile), time.Time{})
	if err == nil {
		details.Failures = failures
		details.TotalFailures = len(failures)
		for _, f := range failures {
			details.FailuresByType[f.ErrorType]++
		}
	}

	if data, err := os.ReadFile(filepath.Join(dir, session.AlertsFile)); err == nil {
		var snapshot tracker.Snapshot
		if err := json.Unmarshal(data, &snapshot); err == nil {
			details.Alerts = snapshot.Alerts
		}
	}

	return details, nil
}

// findSession returns the directory for the given session id and
// whether it lives in the archive.
func (d *Detector) findSession(id string) (dir string, archived bool, err error) {
	active := filepath.Join(d.SessionsDir, id)
	if st, err := os.Stat(active); err == nil && st.IsDir() {
		return active, false, nil
	}

	dates, err := os.ReadDir(d.ArchiveDir)
	if err != nil {
		return "", false, ErrSessionNotFound
	}
	for _, date := range dates {
		if !date.IsDir() {
			continue
		}
		candidate := filepath.Join(d.ArchiveDir, date.Name(), id)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true, nil
		}
	}
	return "", false, ErrSessionNotFound
}

// Comparison is the symmetric difference of two sessions' error kinds
// plus their failure-count delta.
type Comparison struct {
	SessionA     string   `json:"session_a"`
	SessionB     string   `json:"session_b"`
	FailuresA    int      `json:"failures_a"`
	FailuresB    int      `json:"failures_b"`
	Difference   int      `json:"difference"`
	CommonErrors []string `json:"common_errors"`
	UniqueToA    []string `json:"unique_to_a"`
	UniqueToB    []string `json:"unique_to_b"`
}

// CompareSessions diffs two sessions by error-kind sets and failure
// counts.
func (d *Detector) CompareSessions(idA, idB string) (*Comparison, error) {
	a, err := d.SessionDetails(idA)
	if err != nil {
		return nil, err
	}
	b, err := d.SessionDetails(idB)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		SessionA:   idA,
		SessionB:   idB,
		FailuresA:  a.TotalFailures,
		FailuresB:  b.TotalFailures,
		Difference: a.TotalFailures - b.TotalFailures,
	}

	for errorType := range a.FailuresByType {
		if _, ok := b.FailuresByType[errorType]; ok {
			cmp.CommonErrors = append(cmp.CommonErrors, errorType)
		} else {
			cmp.UniqueToA = append(cmp.UniqueToA, errorType)
		}
	}
	for errorType := range b.FailuresByType {
		if _, ok := a.FailuresByType[errorType]; !ok {
			cmp.UniqueToB = append(cmp.UniqueToB, errorType)
		}
	}

	sort.Strings(cmp.CommonErrors)
	sort.Strings(cmp.UniqueToA)
	sort.Strings(cmp.UniqueToB)
	return cmp, nil
}
