package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/failtrack/internal/fsx"
)

// Identity resolves or creates the session id shared by all hook
// invocations belonging to one logical session. Each invocation is a
// separate process, so agreement is reached through a key file derived
// from (boot epoch, parent PID) guarded by an advisory lock.
type Identity struct {
	EnvVar         string
	Clock          *BootClock
	Writer         *fsx.Writer
	LockTimeout    time.Duration
	StaleThreshold time.Duration
}

// ResolveOrCreate returns the session id for this invocation.
//
// An externally supplied id (EnvVar) is authoritative and returned
// verbatim. Otherwise the key file is checked and, if empty, a new
// GUID-based id is minted and persisted under the lock so concurrent
// sibling invocations all agree on one id. If the lock is unavailable
// or cannot be acquired in time, the id is ephemeral and nothing is
// persisted: an unguarded check-and-create could let two racing
// siblings each mint an id with one silently winning the key file, so
// this invocation simply will not be rejoinable, an accepted
// degradation.
func (i *Identity) ResolveOrCreate() string {
	if id := os.Getenv(i.EnvVar); id != "" {
		log.Debug().Str("session_id", id).Msg("using session id from environment")
		return id
	}

	keyFile := i.keyFile()

	var id string
	err := fsx.WithLockRequired(keyFile, i.LockTimeout, i.StaleThreshold, func() error {
		// Double-check under the lock: a sibling may have created the id
		// while this process was waiting.
		if existing, ok := readKeyFile(keyFile); ok {
			log.Debug().Str("session_id", existing).Str("key_file", keyFile).
				Msg("reusing existing session id")
			id = existing
			return nil
		}

		id = newSessionID()
		if err := i.Writer.WriteAtomicBytes(keyFile, []byte(id)); err != nil {
			return err
		}
		log.Info().
			Str("session_id", id).
			Str("key_file", keyFile).
			Int("pid", os.Getpid()).
			Int("ppid", os.Getppid()).
			Msg("created new session id")
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not persist session id, creating ephemeral session")
		return newSessionID()
	}
	return id
}

// keyFile is keyed by (boot epoch, parent PID) so a reused PID after a
// container restart maps to a different file.
func (i *Identity) keyFile() string {
	return filepath.Join(os.TempDir(),
		fmt.Sprintf("failtrack-session-%d-%d.txt", i.Clock.Epoch().Unix(), os.Getppid()))
}

func readKeyFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	return id, id != ""
}

func newSessionID() string {
	return "session-" + uuid.NewString()
}
