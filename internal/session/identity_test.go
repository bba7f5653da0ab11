package session

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blackwell-systems/failtrack/internal/fsx"
)

func newTestIdentity(t *testing.T) *Identity {
	t.Helper()
	t.Setenv("TMPDIR", t.TempDir())
	t.Setenv("FAILTRACK_TEST_SESSION", "")
	return &Identity{
		EnvVar:         "FAILTRACK_TEST_SESSION",
		Clock:          &BootClock{},
		Writer:         fsx.NewWriter(fsx.NewRegistry()),
		LockTimeout:    2 * time.Second,
		StaleThreshold: time.Minute,
	}
}

func TestResolveOrCreate_EnvOverride(t *testing.T) {
	i := newTestIdentity(t)
	t.Setenv(i.EnvVar, "external-id-42")

	if got := i.ResolveOrCreate(); got != "external-id-42" {
		t.Errorf("ResolveOrCreate() = %q, want external-id-42", got)
	}
}

func TestResolveOrCreate_MintsAndPersists(t *testing.T) {
	i := newTestIdentity(t)

	id := i.ResolveOrCreate()
	if !strings.HasPrefix(id, "session-") {
		t.Errorf("ResolveOrCreate() = %q, want session- prefix", id)
	}

	data, err := os.ReadFile(i.keyFile())
	if err != nil {
		t.Fatalf("key file not written: %v", err)
	}
	if strings.TrimSpace(string(data)) != id {
		t.Errorf("key file contains %q, want %q", data, id)
	}
}

func TestResolveOrCreate_ReusesExistingID(t *testing.T) {
	i := newTestIdentity(t)

	first := i.ResolveOrCreate()
	second := i.ResolveOrCreate()
	if first != second {
		t.Errorf("ids differ across invocations: %q vs %q", first, second)
	}

	// A second resolver in the same logical session agrees too.
	other := &Identity{
		EnvVar:         i.EnvVar,
		Clock:          &BootClock{},
		Writer:         i.Writer,
		LockTimeout:    i.LockTimeout,
		StaleThreshold: i.StaleThreshold,
	}
	if got := other.ResolveOrCreate(); got != first {
		t.Errorf("sibling resolver got %q, want %q", got, first)
	}
}

func TestResolveOrCreate_ConcurrentSiblingsAgree(t *testing.T) {
	i := newTestIdentity(t)

	const n = 10
	ids := make([]string, n)
	var wg sync.WaitGroup
	for j := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[j] = i.ResolveOrCreate()
		}()
	}
	wg.Wait()

	for j := 1; j < n; j++ {
		if ids[j] != ids[0] {
			t.Fatalf("concurrent resolution diverged: %q vs %q", ids[j], ids[0])
		}
	}
}

func TestResolveOrCreate_EphemeralWhenLockUnavailable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	i := newTestIdentity(t)

	// Make the key-file directory unwritable so neither the lock file
	// nor the key file can be created.
	dir := os.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	first := i.ResolveOrCreate()
	second := i.ResolveOrCreate()

	if !strings.HasPrefix(first, "session-") || !strings.HasPrefix(second, "session-") {
		t.Errorf("ephemeral ids = %q, %q, want session- prefix", first, second)
	}
	// Ephemeral means not rejoinable: each invocation mints its own id.
	if first == second {
		t.Errorf("ephemeral resolution returned the same id %q twice", first)
	}
	// And nothing was persisted without the lock.
	if _, err := os.Stat(i.keyFile()); !os.IsNotExist(err) {
		t.Errorf("key file was persisted without mutual exclusion (stat err = %v)", err)
	}
}

func TestNewSessionID_Unique(t *testing.T) {
	a, b := newSessionID(), newSessionID()
	if a == b {
		t.Errorf("newSessionID() returned duplicate %q", a)
	}
}
