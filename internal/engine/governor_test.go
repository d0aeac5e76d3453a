package engine

import (
	"testing"
	"time"
)

func TestGovernorExpiry(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g := NewGovernor(start, 300*time.Second)

	if g.Expired(start) {
		t.Fatal("governor expired at start")
	}
	if g.Expired(start.Add(299 * time.Second)) {
		t.Fatal("governor expired before deadline")
	}
	if !g.Expired(start.Add(300 * time.Second)) {
		t.Fatal("governor not expired at deadline")
	}
	if !g.Expired(start.Add(301 * time.Second)) {
		t.Fatal("governor not expired past deadline")
	}
}

// A 300s budget polled every 10s admits queries at t=0s..290s and refuses
// the one at t=300s, thirty queries in total.
func TestGovernorAdmitsThirtyTicks(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g := NewGovernor(start, 300*time.Second)

	admitted := 0
	for tick := 0; ; tick++ {
		now := start.Add(time.Duration(tick) * 10 * time.Second)
		if g.Expired(now) {
			break
		}
		admitted++
	}
	if admitted != 30 {
		t.Fatalf("admitted %d queries, want 30", admitted)
	}
}

func TestGovernorRemainingFloorsAtZero(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g := NewGovernor(start, time.Minute)

	if got := g.Remaining(start.Add(20 * time.Second)); got != 40*time.Second {
		t.Fatalf("Remaining = %v, want 40s", got)
	}
	if got := g.Remaining(start.Add(2 * time.Minute)); got != 0 {
		t.Fatalf("Remaining past deadline = %v, want 0", got)
	}
}
