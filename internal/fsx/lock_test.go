package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// holdLock grabs the sidecar lock for path on an independent descriptor
// and returns a release func. Skips the test on platforms without flock.
func holdLock(t *testing.T, path string) func() {
	t.Helper()

	f, err := os.OpenFile(LockPath(path), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if err := flockTry(f); err != nil {
		if errors.Is(err, errFlockUnsupported) {
			_ = f.Close()
			t.Skip("flock not supported on this platform")
		}
		t.Fatalf("could not take lock for test: %v", err)
	}
	return func() {
		_ = flockRelease(f)
		_ = f.Close()
	}
}

func TestWithLock_RunsBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")

	ran := false
	err := WithLock(path, time.Second, time.Minute, func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock() error: %v", err)
	}
	if !ran {
		t.Error("body did not run")
	}

	if _, err := os.Stat(LockPath(path)); err != nil {
		t.Errorf("lock file not created: %v", err)
	}
}

func TestWithLock_PropagatesBodyError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")

	bodyErr := errors.New("body failed")
	err := WithLock(path, time.Second, time.Minute, func() error {
		return bodyErr
	})
	if !errors.Is(err, bodyErr) {
		t.Errorf("WithLock() error = %v, want body error", err)
	}
}

func TestWithLock_TimesOutWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	release := holdLock(t, path)
	defer release()

	start := time.Now()
	err := WithLock(path, 50*time.Millisecond, time.Minute, func() error {
		t.Error("body ran while lock was held")
		return nil
	})
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("WithLock() error = %v, want ErrLockTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("timed out after %s, before the timeout elapsed", elapsed)
	}
}

func TestWithLock_StaleLockIsNeverForceBroken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	release := holdLock(t, path)
	defer release()

	// Make the held lock look ancient.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(LockPath(path), old, old); err != nil {
		t.Fatal(err)
	}

	err := WithLock(path, 50*time.Millisecond, time.Millisecond, func() error {
		t.Error("body ran while a live lock was held")
		return nil
	})
	if !errors.Is(err, ErrLockTimeout) {
		t.Errorf("WithLock() error = %v, want ErrLockTimeout", err)
	}
}

func TestWithLock_AcquiresAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	release := holdLock(t, path)

	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	ran := false
	err := WithLock(path, time.Second, time.Minute, func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock() error: %v", err)
	}
	if !ran {
		t.Error("body did not run after lock release")
	}
}

func TestWithLock_SerializesConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	holdLock(t, path)() // probe flock support, releasing immediately

	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		mu      sync.Mutex
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(path, 5*time.Second, time.Minute, func() error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("WithLock() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("observed %d concurrent bodies, want 1", maxSeen)
	}
}

func TestWithLock_DegradesWhenLockFileUnopenable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	ran := false
	err := WithLock(filepath.Join(dir, "data.jsonl"), time.Second, time.Minute, func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock() error: %v", err)
	}
	if !ran {
		t.Error("body did not run in unlocked degradation")
	}
}

func TestWithLockRequired_LockUnavailable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	err := WithLockRequired(filepath.Join(dir, "data.jsonl"), time.Second, time.Minute, func() error {
		t.Error("body ran without a lock")
		return nil
	})
	if !errors.Is(err, ErrLockUnavailable) {
		t.Errorf("WithLockRequired() error = %v, want ErrLockUnavailable", err)
	}
}

func TestWithLockRequired_HeldLockStillTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	release := holdLock(t, path)
	defer release()

	// Contention is a timeout, not unavailability.
	err := WithLockRequired(path, 50*time.Millisecond, time.Minute, func() error {
		t.Error("body ran while lock was held")
		return nil
	})
	if !errors.Is(err, ErrLockTimeout) {
		t.Errorf("WithLockRequired() error = %v, want ErrLockTimeout", err)
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("/base/sessions/s1/failures.jsonl")
	want := "/base/sessions/s1/.failures.jsonl.lock"
	if got != want {
		t.Errorf("LockPath() = %q, want %q", got, want)
	}
}
