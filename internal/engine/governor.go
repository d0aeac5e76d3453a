package engine

import "time"

// Governor tracks elapsed time against the poll budget. It holds no mutable
// state: both methods are pure functions of (startedAt, deadline, now).
//
// Callers must feed it time.Time values taken from the same clock source
// (the engine's nowFn, time.Now by default) so the arithmetic rides Go's
// monotonic clock reading and is immune to wall-clock skew during the window.
type Governor struct {
	startedAt time.Time
	deadline  time.Time
}

// NewGovernor fixes the budget window at poll start.
func NewGovernor(startedAt time.Time, budget time.Duration) Governor {
	return Governor{startedAt: startedAt, deadline: startedAt.Add(budget)}
}

// Remaining returns the time left in the budget, floored at zero. It feeds
// presentation countdowns.
func (g Governor) Remaining(now time.Time) time.Duration {
	left := g.deadline.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the budget is exhausted. The scheduler consults it
// before every query, so no query is issued at or past the deadline: with a
// 10s interval and 300s budget an always-pending intent gets exactly 30
// queries before timing out.
func (g Governor) Expired(now time.Time) bool {
	return !now.Before(g.deadline)
}

// Deadline exposes the fixed deadline for persistence of the intent row.
func (g Governor) Deadline() time.Time {
	return g.deadline
}
