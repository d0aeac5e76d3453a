package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/ports"
)

// Config carries the polling policy knobs. Interval/budget/streak are policy,
// not mechanism: defaults match the platform's user-facing wait contract
// (5 minutes, one query every 10 seconds) and can be tuned per kind.
type Config struct {
	PollInterval              time.Duration
	DefaultBudget             time.Duration
	BudgetByKind              map[domain.IntentKind]time.Duration
	TransportErrorStreakLimit int
	LockGrace                 time.Duration
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.DefaultBudget <= 0 {
		c.DefaultBudget = 300 * time.Second
	}
	if c.TransportErrorStreakLimit <= 0 {
		c.TransportErrorStreakLimit = 30
	}
	if c.LockGrace <= 0 {
		c.LockGrace = 30 * time.Second
	}
	return c
}

// BudgetFor resolves the timeout budget for a kind, falling back to the default.
func (c Config) BudgetFor(kind domain.IntentKind) time.Duration {
	if budget, ok := c.BudgetByKind[kind]; ok && budget > 0 {
		return budget
	}
	return c.DefaultBudget
}

// Hooks are the callbacks a consumer attaches to one poll. OnChange receives
// a snapshot after every state change; OnSettled fires exactly once with the
// terminal outcome. Both may be nil.
type Hooks struct {
	OnChange  func(domain.IntentSnapshot)
	OnSettled func(domain.TerminalOutcome)
}

// Engine owns all active pollers in this process. Pollers are fully isolated
// from each other; the engine only provides the registry that, together with
// the distributed lock store, keeps at most one active poll per correlation id.
type Engine struct {
	logger *slog.Logger
	prober ports.StatusProber
	locks  ports.IntentLockStore
	cfg    Config
	nowFn  func() time.Time

	baseCtx   context.Context
	cancelAll context.CancelFunc

	mu      sync.Mutex
	pollers map[string]*Poller
}

// New constructs the poll engine. Pollers run on the engine's own context so
// a finished HTTP request cannot tear down an in-flight poll; Shutdown does.
func New(logger *slog.Logger, prober ports.StatusProber, locks ports.IntentLockStore, cfg Config, nowFn func() time.Time) *Engine {
	if nowFn == nil {
		nowFn = time.Now
	}
	baseCtx, cancelAll := context.WithCancel(context.Background())
	return &Engine{
		logger:    logger,
		prober:    prober,
		locks:     locks,
		cfg:       cfg.normalized(),
		nowFn:     nowFn,
		baseCtx:   baseCtx,
		cancelAll: cancelAll,
		pollers:   make(map[string]*Poller),
	}
}

// Start begins polling for the intent. It returns domain.ErrPollInProgress
// when a poll for the correlation id is already active, here or in another
// process holding the distributed lock.
func (e *Engine) Start(ctx context.Context, intent domain.PaymentIntent, hooks Hooks) (*Poller, error) {
	if err := domain.ValidateIntent(intent); err != nil {
		return nil, err
	}

	budget := e.cfg.BudgetFor(intent.Kind)

	e.mu.Lock()
	if _, active := e.pollers[intent.CorrelationID]; active {
		e.mu.Unlock()
		return nil, domain.ErrPollInProgress
	}
	e.mu.Unlock()

	acquired, err := e.locks.Acquire(ctx, intent.CorrelationID, budget+e.cfg.LockGrace)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, domain.ErrPollInProgress
	}

	startedAt := e.nowFn()
	poller := newPoller(intent, NewGovernor(startedAt, budget), domain.NewPollState(startedAt, budget), hooks)

	e.mu.Lock()
	if _, active := e.pollers[intent.CorrelationID]; active {
		e.mu.Unlock()
		e.releaseLock(intent.CorrelationID)
		return nil, domain.ErrPollInProgress
	}
	e.pollers[intent.CorrelationID] = poller
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "poll started",
		"module", "engine",
		"layer", "core",
		"operation", "start_poll",
		"outcome", "success",
		"correlation_id", intent.CorrelationID,
		"kind", string(intent.Kind),
		"budget_seconds", int(budget.Seconds()),
		"interval_seconds", int(e.cfg.PollInterval.Seconds()),
	)

	go poller.run(e.baseCtx, runDeps{
		prober:      e.prober,
		interval:    e.cfg.PollInterval,
		streakLimit: e.cfg.TransportErrorStreakLimit,
		nowFn:       e.nowFn,
		logger:      e.logger,
		cleanup: func() {
			e.remove(intent.CorrelationID)
			e.releaseLock(intent.CorrelationID)
		},
	})
	return poller, nil
}

// Snapshot returns the current projection of an active poll.
func (e *Engine) Snapshot(correlationID string) (domain.IntentSnapshot, bool) {
	e.mu.Lock()
	poller, ok := e.pollers[correlationID]
	e.mu.Unlock()
	if !ok {
		return domain.IntentSnapshot{}, false
	}
	return poller.Snapshot(e.nowFn()), true
}

// Cancel detaches the consumer from an active poll: all future ticks stop and
// the timer is released. The status is left untouched; a pending intent stays
// pending, mirroring a user closing the dialog before resolution.
func (e *Engine) Cancel(correlationID string) bool {
	e.mu.Lock()
	poller, ok := e.pollers[correlationID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	poller.Cancel()
	return true
}

// Shutdown cancels every active poll and waits for their goroutines to exit,
// bounded by ctx. This is the process-teardown escape path; it must release
// every timer even when the UI never sent an explicit cancel.
func (e *Engine) Shutdown(ctx context.Context) {
	e.cancelAll()

	e.mu.Lock()
	active := make([]*Poller, 0, len(e.pollers))
	for _, p := range e.pollers {
		active = append(active, p)
	}
	e.mu.Unlock()

	for _, p := range active {
		select {
		case <-p.done:
		case <-ctx.Done():
			return
		}
	}
}

// Config exposes the normalized polling policy.
func (e *Engine) Config() Config {
	return e.cfg
}

// ActiveCount reports how many polls are currently running in this process.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pollers)
}

func (e *Engine) remove(correlationID string) {
	e.mu.Lock()
	delete(e.pollers, correlationID)
	e.mu.Unlock()
}

func (e *Engine) releaseLock(correlationID string) {
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.locks.Release(releaseCtx, correlationID); err != nil {
		e.logger.WarnContext(releaseCtx, "intent lock release failed",
			"module", "engine",
			"layer", "core",
			"operation", "release_lock",
			"outcome", "failure",
			"correlation_id", correlationID,
			"error", err,
		)
	}
}
