package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level failtrack configuration.
type Config struct {
	BaseDir          string `mapstructure:"base_dir"`
	SessionEnvVar    string `mapstructure:"session_env_var"`
	PatternThreshold int    `mapstructure:"pattern_threshold"`
	LookbackHours    int    `mapstructure:"lookback_hours"`
	ReportDays       int    `mapstructure:"report_days"`
	ArchiveDays      int    `mapstructure:"archive_days"`
	Lock             Lock   `mapstructure:"lock"`
	LogLevel         string `mapstructure:"log_level"`
	LogFile          string `mapstructure:"log_file"`
}

// Lock defines advisory-lock timing behavior.
type Lock struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	StaleSeconds   int `mapstructure:"stale_seconds"`
}

// Timeout returns the lock acquisition timeout as a duration.
func (l Lock) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// StaleThreshold returns the stale-lock age threshold as a duration.
func (l Lock) StaleThreshold() time.Duration {
	return time.Duration(l.StaleSeconds) * time.Second
}

// SessionsDir returns the directory holding active session directories.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.BaseDir, "sessions")
}

// ArchiveDir returns the date-partitioned archive root.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.BaseDir, "archive")
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults.
	v.SetDefault("base_dir", DefaultBaseDir)
	v.SetDefault("session_env_var", DefaultSessionEnvVar)
	v.SetDefault("pattern_threshold", DefaultPatternThreshold)
	v.SetDefault("lookback_hours", DefaultLookbackHours)
	v.SetDefault("report_days", DefaultReportDays)
	v.SetDefault("archive_days", DefaultArchiveDays)
	v.SetDefault("lock.timeout_seconds", int(DefaultLockTimeout/time.Second))
	v.SetDefault("lock.stale_seconds", int(DefaultLockStaleThreshold/time.Second))
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", "")

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		configDir := expandPath(DefaultConfigDir)
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.BaseDir = expandPath(cfg.BaseDir)
	if cfg.LogFile != "" {
		cfg.LogFile = expandPath(cfg.LogFile)
	}

	return &cfg, nil
}

// DBPath returns the full path to the report-history SQLite database.
func DBPath() string {
	return filepath.Join(expandPath(DefaultConfigDir), DefaultDBName)
}
