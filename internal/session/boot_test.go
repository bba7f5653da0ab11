package session

import (
	"testing"
	"time"
)

func TestBootClock_EpochIsStable(t *testing.T) {
	clock := &BootClock{}

	first := clock.Epoch()
	if first.IsZero() {
		t.Fatal("Epoch() returned zero time")
	}

	time.Sleep(5 * time.Millisecond)
	second := clock.Epoch()
	if !first.Equal(second) {
		t.Errorf("Epoch() changed between calls: %s vs %s", first, second)
	}
}

func TestBootClock_EpochIsInThePast(t *testing.T) {
	clock := &BootClock{}
	if epoch := clock.Epoch(); epoch.After(time.Now()) {
		t.Errorf("Epoch() = %s, in the future", epoch)
	}
}
