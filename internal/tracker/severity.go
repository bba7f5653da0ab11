package tracker

// Severity levels for alerts and cross-session patterns.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// SeverityFor scores a pattern by frequency and spread: high frequency
// across many sessions is critical, the same count confined to one
// session is not.
func SeverityFor(occurrences, sessions int) string {
	switch {
	case occurrences >= 10 && sessions >= 3:
		return SeverityCritical
	case occurrences >= 5 && sessions >= 2:
		return SeverityHigh
	case occurrences >= 3:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityRank orders severities for sorting, CRITICAL first. Unknown
// severities sort last.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}
