package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/ports"
)

// Poller drives one PaymentIntent through the poll state machine. The run
// loop is strictly sequential: a tick's status query completes before the
// next tick is scheduled, so queries for one intent never overlap; a slow
// query defers the next tick instead of stacking it.
type Poller struct {
	intent   domain.PaymentIntent
	governor Governor
	hooks    Hooks

	mu    sync.Mutex
	state domain.PollState

	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}
}

type runDeps struct {
	prober      ports.StatusProber
	interval    time.Duration
	streakLimit int
	nowFn       func() time.Time
	logger      *slog.Logger
	cleanup     func()
}

func newPoller(intent domain.PaymentIntent, governor Governor, state domain.PollState, hooks Hooks) *Poller {
	return &Poller{
		intent:   intent,
		governor: governor,
		hooks:    hooks,
		state:    state,
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Intent returns the immutable intent this poller drives.
func (p *Poller) Intent() domain.PaymentIntent {
	return p.intent
}

// Done closes when the poll goroutine has exited, whatever the exit path.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Cancel stops all future ticks unconditionally. It does not touch the
// status: the engine never invents a synthetic cancelled state, the consumer
// simply detaches. Safe to call from any goroutine, any number of times.
func (p *Poller) Cancel() {
	p.cancelOnce.Do(func() {
		close(p.cancelCh)
	})
}

// Snapshot is the read-only projection of the poll for presentation.
func (p *Poller) Snapshot(now time.Time) domain.IntentSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.IntentSnapshot{
		CorrelationID:     p.intent.CorrelationID,
		Kind:              p.intent.Kind,
		Status:            p.state.Status,
		AttemptsMade:      p.state.Attempts,
		SecondsRemaining:  int(p.governor.Remaining(now).Seconds()),
		LastFailureReason: p.state.LastFailureReason,
	}
}

// run is the poll loop. The timer fires immediately for the first query,
// then every interval. The deadline check happens before each query, so no
// query is ever issued past the deadline. Every exit path releases the timer
// via defer and triggers cleanup (registry removal + lock release).
func (p *Poller) run(ctx context.Context, deps runDeps) {
	defer close(p.done)
	defer deps.cleanup()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.cancelCh:
			return
		case <-timer.C:
		}

		// A cancel that landed while the tick was already due still wins:
		// no query is issued after Cancel.
		select {
		case <-ctx.Done():
			return
		case <-p.cancelCh:
			return
		default:
		}

		if p.governor.Expired(deps.nowFn()) {
			p.settle(ctx, domain.PollStatusTimedOut, domain.Outcome{}, deps)
			return
		}

		outcome, err := deps.prober.Query(ctx, p.intent.CorrelationID, p.intent.Kind)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transport errors never move the poll to Failed: the operation
			// may still succeed. The streak limit escalates to TimedOut
			// early instead of stalling silently on a dead gateway.
			streak := p.recordTransportError(err.Error())
			deps.logger.WarnContext(ctx, "status query transport error",
				"module", "engine",
				"layer", "core",
				"operation", "status_query",
				"outcome", "failure",
				"correlation_id", p.intent.CorrelationID,
				"kind", string(p.intent.Kind),
				"transport_error_streak", streak,
				"error", err,
			)
			if streak >= deps.streakLimit {
				p.settle(ctx, domain.PollStatusTimedOut, domain.Outcome{FailureReason: err.Error()}, deps)
				return
			}
			p.notifyChange(deps.nowFn())
			timer.Reset(deps.interval)
			continue
		}

		switch outcome.Status {
		case domain.OutcomeConfirmed:
			p.recordAttempt("")
			p.settle(ctx, domain.PollStatusConfirmed, outcome, deps)
			return
		case domain.OutcomeFailed:
			p.recordAttempt(outcome.FailureReason)
			p.settle(ctx, domain.PollStatusFailed, outcome, deps)
			return
		default:
			p.recordAttempt("")
			p.notifyChange(deps.nowFn())
			timer.Reset(deps.interval)
		}
	}
}

func (p *Poller) recordAttempt(failureReason string) {
	p.mu.Lock()
	p.state.RecordAttempt()
	if failureReason != "" {
		p.state.LastFailureReason = failureReason
	}
	p.mu.Unlock()
}

func (p *Poller) recordTransportError(reason string) int {
	p.mu.Lock()
	p.state.RecordTransportError(reason)
	streak := p.state.TransportErrorStreak
	p.mu.Unlock()
	return streak
}

// settle performs the one terminal transition and emits the terminal event.
// Transition enforces monotonicity; if the state were somehow already
// terminal the event is not re-emitted.
func (p *Poller) settle(ctx context.Context, status domain.PollStatus, details domain.Outcome, deps runDeps) {
	p.mu.Lock()
	if err := p.state.Transition(status); err != nil {
		p.mu.Unlock()
		return
	}
	if details.FailureReason != "" {
		p.state.LastFailureReason = details.FailureReason
	}
	attempts := p.state.Attempts
	p.mu.Unlock()

	deps.logger.InfoContext(ctx, "poll settled",
		"module", "engine",
		"layer", "core",
		"operation", "settle_poll",
		"outcome", "success",
		"correlation_id", p.intent.CorrelationID,
		"kind", string(p.intent.Kind),
		"status", string(status),
		"attempts", attempts,
	)

	p.notifyChange(deps.nowFn())
	if p.hooks.OnSettled != nil {
		p.hooks.OnSettled(domain.TerminalOutcome{
			Intent:   p.intent,
			Status:   status,
			Details:  details,
			Attempts: attempts,
		})
	}
}

func (p *Poller) notifyChange(now time.Time) {
	if p.hooks.OnChange == nil {
		return
	}
	p.hooks.OnChange(p.Snapshot(now))
}
