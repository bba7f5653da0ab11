package store

import (
	"time"
)

// ReportRow is one stored cross-session analysis run.
type ReportRow struct {
	ID            int64     `json:"id"`
	TakenAt       time.Time `json:"taken_at"`
	PeriodDays    int       `json:"period_days"`
	TotalFailures int       `json:"total_failures"`
	TotalSessions int       `json:"total_sessions"`
	Summary       string    `json:"summary"`
	Version       string    `json:"version"`
}

// PatternRow is one detected pattern within a stored report.
type PatternRow struct {
	ID               int64  `json:"id"`
	ReportID         int64  `json:"report_id"`
	PatternType      string `json:"pattern_type"`
	PatternKey       string `json:"pattern_key"`
	Occurrences      int    `json:"occurrences"`
	AffectedSessions int    `json:"affected_sessions"`
	Severity         string `json:"severity"`
}

// SaveReport inserts a report run with its patterns and returns the
// report id.
func (db *DB) SaveReport(r *ReportRow, patterns []PatternRow) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO reports
		(taken_at, period_days, total_failures, total_sessions, summary, version)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.TakenAt.UTC().Format(time.RFC3339), r.PeriodDays,
		r.TotalFailures, r.TotalSessions, r.Summary, r.Version,
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, p := range patterns {
		if _, err := db.conn.Exec(
			`INSERT INTO report_patterns
			(report_id, pattern_type, pattern_key, occurrences, affected_sessions, severity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, p.PatternType, p.PatternKey, p.Occurrences, p.AffectedSessions, p.Severity,
		); err != nil {
			return 0, err
		}
	}

	return id, nil
}

// ListReports returns the most recent report runs, newest first.
func (db *DB) ListReports(limit int) ([]ReportRow, error) {
	rows, err := db.conn.Query(
		`SELECT id, taken_at, period_days, total_failures, total_sessions, summary, version
		FROM reports ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var reports []ReportRow
	for rows.Next() {
		var r ReportRow
		var takenAt string
		if err := rows.Scan(&r.ID, &takenAt, &r.PeriodDays, &r.TotalFailures,
			&r.TotalSessions, &r.Summary, &r.Version); err != nil {
			return nil, err
		}
		r.TakenAt, _ = time.Parse(time.RFC3339, takenAt)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// ReportPatterns returns the patterns stored for a report.
func (db *DB) ReportPatterns(reportID int64) ([]PatternRow, error) {
	rows, err := db.conn.Query(
		`SELECT id, report_id, pattern_type, pattern_key, occurrences, affected_sessions, severity
		FROM report_patterns WHERE report_id = ? ORDER BY id`, reportID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var patterns []PatternRow
	for rows.Next() {
		var p PatternRow
		if err := rows.Scan(&p.ID, &p.ReportID, &p.PatternType, &p.PatternKey,
			&p.Occurrences, &p.AffectedSessions, &p.Severity); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
