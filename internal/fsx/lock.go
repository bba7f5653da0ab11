package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrLockTimeout is returned when the advisory lock could not be
// acquired within the configured timeout. Callers treat it as a
// recoverable condition, not a fatal abort.
var ErrLockTimeout = errors.New("lock acquisition timeout")

// ErrLockUnavailable is returned by WithLockRequired when no lock can be
// taken at all: the lock file cannot be opened, or the platform has no
// flock semantics.
var ErrLockUnavailable = errors.New("lock unavailable")

// errWouldBlock is returned by the platform flock when another process
// holds the lock.
var errWouldBlock = errors.New("lock held by another process")

// errFlockUnsupported is returned on platforms without flock semantics.
var errFlockUnsupported = errors.New("file locking not supported on this platform")

// retryInterval is the sleep between acquisition attempts.
const retryInterval = 10 * time.Millisecond

// LockPath returns the sidecar lock file path for the given target file.
func LockPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".lock")
}

// WithLock runs body while holding an exclusive advisory lock on the
// sidecar lock file next to path.
//
// Acquisition is a non-blocking retry loop bounded by timeout. When the
// lock file's modification age exceeds staleThreshold a warning is
// logged and one extra acquisition attempt is made; this only succeeds
// if the real holder already released it, so a live lock is never
// force-broken. On success the lock file's mtime is touched to mark it
// fresh. The lock is released on all exit paths, including a panicking
// body.
//
// If the lock file itself cannot be opened (typically permissions), body
// runs without any lock and a warning is logged: availability wins over
// perfect mutual exclusion when the filesystem is uncooperative.
func WithLock(path string, timeout, staleThreshold time.Duration, body func() error) error {
	return withLock(path, timeout, staleThreshold, true, body)
}

// WithLockRequired is WithLock without the unlocked degradation: when no
// lock can be taken at all it returns ErrLockUnavailable and body never
// runs. For mutations that must not happen unguarded, like session-id
// check-and-create.
func WithLockRequired(path string, timeout, staleThreshold time.Duration, body func() error) error {
	return withLock(path, timeout, staleThreshold, false, body)
}

func withLock(path string, timeout, staleThreshold time.Duration, degrade bool, body func() error) error {
	lockPath := LockPath(path)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		if !degrade {
			return fmt.Errorf("opening lock file %s: %v: %w", lockPath, err, ErrLockUnavailable)
		}
		log.Warn().Str("lock_file", lockPath).Err(err).
			Msg("could not open lock file, proceeding without lock")
		return body()
	}
	defer func() { _ = f.Close() }()

	start := time.Now()
	for {
		err := flockTry(f)
		if err == nil {
			break
		}
		if errors.Is(err, errFlockUnsupported) {
			if !degrade {
				return fmt.Errorf("locking %s: %w", lockPath, ErrLockUnavailable)
			}
			log.Warn().Str("lock_file", lockPath).
				Msg("file locking unsupported, proceeding without lock")
			return body()
		}
		if !errors.Is(err, errWouldBlock) {
			if !degrade {
				return fmt.Errorf("locking %s: %v: %w", lockPath, err, ErrLockUnavailable)
			}
			log.Warn().Str("lock_file", lockPath).Err(err).
				Msg("lock attempt failed, proceeding without lock")
			return body()
		}

		if age, statErr := lockAge(lockPath); statErr == nil && age > staleThreshold {
			log.Warn().
				Str("lock_file", lockPath).
				Dur("lock_age", age).
				Dur("threshold", staleThreshold).
				Msg("detected potentially stale lock")

			// Safe retry: succeeds only if the holder released it in the
			// meantime. A live holder keeps the lock.
			if flockTry(f) == nil {
				break
			}
			log.Error().Str("lock_file", lockPath).Dur("lock_age", age).
				Msg("lock is stale but still held, possible crashed process")
		}

		if time.Since(start) > timeout {
			return fmt.Errorf("could not acquire lock on %s after %s: %w", path, timeout, ErrLockTimeout)
		}
		time.Sleep(retryInterval)
	}

	// Mark the lock fresh so waiters don't misread it as stale.
	now := time.Now()
	if err := os.Chtimes(lockPath, now, now); err != nil {
		log.Debug().Str("lock_file", lockPath).Err(err).Msg("could not touch lock file")
	}

	defer func() {
		if err := flockRelease(f); err != nil {
			log.Debug().Str("lock_file", lockPath).Err(err).Msg("could not release lock")
		}
	}()

	return body()
}

// lockAge returns how long ago the lock file was last modified.
func lockAge(lockPath string) (time.Duration, error) {
	st, err := os.Stat(lockPath)
	if err != nil {
		return 0, err
	}
	return time.Since(st.ModTime()), nil
}
