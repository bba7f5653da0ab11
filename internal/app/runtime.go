package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/failtrack/internal/config"
	"github.com/blackwell-systems/failtrack/internal/detector"
	"github.com/blackwell-systems/failtrack/internal/fsx"
	"github.com/blackwell-systems/failtrack/internal/logging"
	"github.com/blackwell-systems/failtrack/internal/output"
	"github.com/blackwell-systems/failtrack/internal/session"
	"github.com/blackwell-systems/failtrack/internal/tracker"
)

// activeRegistry is the temp-file registry of the current invocation,
// swept once at process exit as a backstop for temp files orphaned by
// failed writes.
var activeRegistry *fsx.Registry

func sweepTempFiles() {
	if activeRegistry != nil {
		activeRegistry.Sweep()
	}
}

// runtime bundles the per-process state every command needs: loaded
// config, the temp-file registry, the atomic writer and the memoized
// boot clock. Constructed once per invocation.
type runtime struct {
	cfg    *config.Config
	reg    *fsx.Registry
	writer *fsx.Writer
	clock  *session.BootClock
}

// newRuntime loads configuration, initializes logging and color
// handling, and wires the shared components.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagBase != "" {
		cfg.BaseDir = flagBase
	}

	level := cfg.LogLevel
	if flagVerbose {
		level = "debug"
	}
	if err := logging.Init(level, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	if flagNoColor {
		output.SetNoColor(true)
	} else {
		output.AutoColor()
	}

	reg := fsx.NewRegistry()
	activeRegistry = reg

	return &runtime{
		cfg:    cfg,
		reg:    reg,
		writer: fsx.NewWriter(reg),
		clock:  &session.BootClock{},
	}, nil
}

// identity returns the session identity resolver for this invocation.
func (rt *runtime) identity() *session.Identity {
	return &session.Identity{
		EnvVar:         rt.cfg.SessionEnvVar,
		Clock:          rt.clock,
		Writer:         rt.writer,
		LockTimeout:    rt.cfg.Lock.Timeout(),
		StaleThreshold: rt.cfg.Lock.StaleThreshold(),
	}
}

// openStore resolves the session id, ensures the session directory and
// its write-once metadata exist, and returns the failure store.
func (rt *runtime) openStore() (*tracker.Store, error) {
	id := rt.identity().ResolveOrCreate()

	dir := filepath.Join(rt.cfg.SessionsDir(), id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	if err := session.WriteInfoOnce(rt.writer, dir, id); err != nil {
		// Metadata is best effort; failures still get recorded.
		log.Warn().Str("session_id", id).Err(err).Msg("could not write session metadata")
	}

	hostname, _ := os.Hostname()

	return &tracker.Store{
		SessionID:        id,
		Dir:              dir,
		Hostname:         hostname,
		Writer:           rt.writer,
		LockTimeout:      rt.cfg.Lock.Timeout(),
		StaleThreshold:   rt.cfg.Lock.StaleThreshold(),
		PatternThreshold: rt.cfg.PatternThreshold,
	}, nil
}

// openDetector returns the cross-session pattern detector.
func (rt *runtime) openDetector() *detector.Detector {
	return &detector.Detector{
		SessionsDir: rt.cfg.SessionsDir(),
		ArchiveDir:  rt.cfg.ArchiveDir(),
	}
}
