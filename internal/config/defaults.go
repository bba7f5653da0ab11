// Package config provides configuration loading and defaults for failtrack.
package config

import "time"

// DefaultBaseDir is the default tracking root holding sessions/ and archive/.
const DefaultBaseDir = "~/.failtrack"

// DefaultConfigDir is the default location for failtrack configuration.
const DefaultConfigDir = "~/.config/failtrack"

// DefaultDBName is the filename for the report-history SQLite database.
const DefaultDBName = "failtrack.db"

// DefaultSessionEnvVar is the environment variable that, when set, is the
// authoritative session identifier and bypasses identity resolution.
const DefaultSessionEnvVar = "CLAUDE_SESSION_ID"

// DefaultPatternThreshold is the minimum number of matching failures in a
// single session before an alert is raised.
const DefaultPatternThreshold = 2

// DefaultLookbackHours is the single-session analysis window in hours.
const DefaultLookbackHours = 1

// DefaultReportDays is the cross-session report window in days.
const DefaultReportDays = 7

// DefaultArchiveDays is the age in days after which sessions are archived.
const DefaultArchiveDays = 7

// DefaultLockTimeout bounds how long a writer waits for the advisory lock.
const DefaultLockTimeout = 5 * time.Second

// DefaultLockStaleThreshold is the lock-file age beyond which a lock is
// reported as potentially stale.
const DefaultLockStaleThreshold = 5 * time.Minute

// DefaultLogLevel is the log level used when none is configured.
const DefaultLogLevel = "warn"
