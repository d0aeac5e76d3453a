package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nyumbani/payments-service/internal/contracts"
	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/engine"
	"github.com/nyumbani/payments-service/internal/ports"
)

type stubGateway struct {
	mu        sync.Mutex
	initiated []ports.InitiateRequest
	err       error
}

func (g *stubGateway) Initiate(_ context.Context, req ports.InitiateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.initiated = append(g.initiated, req)
	return "corr-" + req.SubjectID, nil
}

type memRecords struct {
	mu      sync.Mutex
	records map[string]domain.ReconciliationRecord
}

func (m *memRecords) Insert(_ context.Context, record domain.ReconciliationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.CorrelationID]; exists {
		return domain.ErrAlreadyReconciled
	}
	m.records[record.CorrelationID] = record
	return nil
}

func (m *memRecords) GetByCorrelationID(_ context.Context, correlationID string) (domain.ReconciliationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[correlationID]
	if !ok {
		return domain.ReconciliationRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (m *memRecords) has(correlationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[correlationID]
	return ok
}

type memIntents struct {
	mu   sync.Mutex
	rows map[string]ports.IntentRecord
}

func (m *memIntents) Create(_ context.Context, record ports.IntentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[record.CorrelationID]; exists {
		return domain.ErrConflict
	}
	m.rows[record.CorrelationID] = record
	return nil
}

func (m *memIntents) MarkSettled(_ context.Context, correlationID string, status domain.PollStatus, attempts int, failureReason string, settledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[correlationID]
	if !ok {
		return domain.ErrNotFound
	}
	row.Status = status
	row.Attempts = attempts
	row.FailureReason = failureReason
	row.SettledAt = &settledAt
	m.rows[correlationID] = row
	return nil
}

func (m *memIntents) GetByCorrelationID(_ context.Context, correlationID string) (ports.IntentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[correlationID]
	if !ok {
		return ports.IntentRecord{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memIntents) List(_ context.Context, query ports.IntentQuery) ([]ports.IntentRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []ports.IntentRecord
	for _, row := range m.rows {
		if query.Status != "" && row.Status != query.Status {
			continue
		}
		if query.Kind != "" && row.Kind != query.Kind {
			continue
		}
		rows = append(rows, row)
	}
	return rows, len(rows), nil
}

func (m *memIntents) ListUnresolvedBefore(_ context.Context, deadlineBefore time.Time, limit int) ([]ports.IntentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []ports.IntentRecord
	for _, row := range m.rows {
		if row.Status == domain.PollStatusPending && row.Deadline.Before(deadlineBefore) {
			rows = append(rows, row)
			if len(rows) == limit {
				break
			}
		}
	}
	return rows, nil
}

func (m *memIntents) row(correlationID string) (ports.IntentRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[correlationID]
	return row, ok
}

type memBookings struct {
	mu       sync.Mutex
	bookings map[string]domain.Booking
	// counts kind-specific mutations so replays are observable
	confirmed map[string]int
	failed    map[string]int
}

func (m *memBookings) GetByID(_ context.Context, bookingID string) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[bookingID]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return booking, nil
}

func (m *memBookings) MarkRefundConfirmed(_ context.Context, bookingID string, amount float64, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[bookingID]
	if !ok {
		return domain.ErrNotFound
	}
	booking.RefundStatus = domain.RefundStatusConfirmed
	booking.RefundAmount = amount
	booking.RefundProcessedAt = &processedAt
	m.bookings[bookingID] = booking
	m.confirmed[bookingID]++
	return nil
}

func (m *memBookings) MarkRefundFailed(_ context.Context, bookingID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[bookingID]
	if !ok {
		return domain.ErrNotFound
	}
	booking.RefundStatus = domain.RefundStatusFailed
	booking.UpdatedAt = at
	m.bookings[bookingID] = booking
	m.failed[bookingID]++
	return nil
}

type memSubscriptions struct {
	mu            sync.Mutex
	byCheckout    map[string]domain.Subscription
	createFailure error
}

func (m *memSubscriptions) Create(_ context.Context, subscription domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createFailure != nil {
		return m.createFailure
	}
	if _, exists := m.byCheckout[subscription.CheckoutID]; exists {
		return domain.ErrConflict
	}
	m.byCheckout[subscription.CheckoutID] = subscription
	return nil
}

func (m *memSubscriptions) GetByCheckoutID(_ context.Context, checkoutID string) (domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subscription, ok := m.byCheckout[checkoutID]
	if !ok {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return subscription, nil
}

type memPayouts struct {
	mu      sync.Mutex
	payouts map[string]domain.Payout
}

func (m *memPayouts) GetByID(_ context.Context, payoutID string) (domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payout, ok := m.payouts[payoutID]
	if !ok {
		return domain.Payout{}, domain.ErrNotFound
	}
	return payout, nil
}

func (m *memPayouts) MarkProcessed(_ context.Context, payoutID, gatewayRef string, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payout, ok := m.payouts[payoutID]
	if !ok {
		return domain.ErrNotFound
	}
	payout.Status = domain.PayoutStatusProcessed
	payout.GatewayRef = gatewayRef
	payout.ProcessedAt = &processedAt
	m.payouts[payoutID] = payout
	return nil
}

func (m *memPayouts) MarkFailed(_ context.Context, payoutID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payout, ok := m.payouts[payoutID]
	if !ok {
		return domain.ErrNotFound
	}
	payout.Status = domain.PayoutStatusFailed
	payout.UpdatedAt = at
	m.payouts[payoutID] = payout
	return nil
}

type memOutbox struct {
	mu     sync.Mutex
	events []ports.OutboxEvent
}

func (m *memOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memOutbox) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}
func (m *memOutbox) MarkPublished(context.Context, uuid.UUID, string, time.Time) error { return nil }
func (m *memOutbox) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}
func (m *memOutbox) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

func (m *memOutbox) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events))
	for _, event := range m.events {
		types = append(types, event.EventType)
	}
	return types
}

type serviceFixture struct {
	service       *Service
	prober        *fixtureProber
	gateway       *stubGateway
	records       *memRecords
	intents       *memIntents
	bookings      *memBookings
	subscriptions *memSubscriptions
	payouts       *memPayouts
	outbox        *memOutbox
}

type fixtureLockStore struct {
	mu   sync.Mutex
	held map[string]bool
}

func (f *fixtureLockStore) Acquire(_ context.Context, correlationID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[correlationID] {
		return false, nil
	}
	f.held[correlationID] = true
	return true, nil
}

func (f *fixtureLockStore) Release(_ context.Context, correlationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, correlationID)
	return nil
}

// fixtureProber answers StillPending until the durable intent row exists, then
// returns the scripted outcome. This pins the settle path to run after the
// initiate path finished writing its row.
type fixtureProber struct {
	intents *memIntents
	mu      sync.Mutex
	outcome map[string]domain.Outcome
}

func (p *fixtureProber) Query(_ context.Context, correlationID string, _ domain.IntentKind) (domain.Outcome, error) {
	if _, ok := p.intents.row(correlationID); !ok {
		return domain.Outcome{Status: domain.OutcomeStillPending}, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if outcome, ok := p.outcome[correlationID]; ok {
		return outcome, nil
	}
	return domain.Outcome{Status: domain.OutcomeStillPending}, nil
}

func (p *fixtureProber) resolve(correlationID string, outcome domain.Outcome) {
	p.mu.Lock()
	p.outcome[correlationID] = outcome
	p.mu.Unlock()
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		gateway:       &stubGateway{},
		records:       &memRecords{records: make(map[string]domain.ReconciliationRecord)},
		intents:       &memIntents{rows: make(map[string]ports.IntentRecord)},
		bookings:      &memBookings{bookings: make(map[string]domain.Booking), confirmed: make(map[string]int), failed: make(map[string]int)},
		subscriptions: &memSubscriptions{byCheckout: make(map[string]domain.Subscription)},
		payouts:       &memPayouts{payouts: make(map[string]domain.Payout)},
		outbox:        &memOutbox{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	prober := &fixtureProber{intents: f.intents, outcome: make(map[string]domain.Outcome)}
	eng := engine.New(logger, prober, &fixtureLockStore{held: make(map[string]bool)}, engine.Config{
		PollInterval:  time.Millisecond,
		DefaultBudget: time.Minute,
	}, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		eng.Shutdown(ctx)
	})
	f.prober = prober

	f.service = NewService(Dependencies{
		Logger:        logger,
		Gateway:       f.gateway,
		Engine:        eng,
		Records:       f.records,
		Intents:       f.intents,
		Bookings:      f.bookings,
		Subscriptions: f.subscriptions,
		Payouts:       f.payouts,
		Outbox:        f.outbox,
	})
	return f
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCheckoutConfirmedCreatesSubscription(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	out, err := f.service.StartSubscriptionCheckout(context.Background(), CheckoutInput{
		CheckoutID:        "chk-1",
		Tier:              "gold",
		Amount:            2500,
		CounterpartyPhone: "+254700000001",
	})
	if err != nil {
		t.Fatalf("StartSubscriptionCheckout: %v", err)
	}
	if out.CorrelationID != "corr-chk-1" {
		t.Fatalf("correlation id = %q", out.CorrelationID)
	}
	if out.Snapshot.Status != domain.PollStatusPending {
		t.Fatalf("initial snapshot status = %s", out.Snapshot.Status)
	}
	if row, ok := f.intents.row("corr-chk-1"); !ok || row.Status != domain.PollStatusPending || row.Tier != "gold" {
		t.Fatalf("durable intent row = %+v, ok=%v", row, ok)
	}

	f.prober.resolve("corr-chk-1", domain.Outcome{
		Status:      domain.OutcomeConfirmed,
		Amount:      2500,
		GatewayRef:  "MPX900",
		ProcessedAt: time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
	})

	waitUntil(t, "subscription creation", func() bool {
		_, err := f.subscriptions.GetByCheckoutID(context.Background(), "chk-1")
		return err == nil
	})
	subscription, _ := f.subscriptions.GetByCheckoutID(context.Background(), "chk-1")
	if subscription.Tier != "gold" || subscription.AmountPaid != 2500 {
		t.Fatalf("subscription = %+v", subscription)
	}
	if !f.records.has("corr-chk-1") {
		t.Fatal("reconciliation record not inserted")
	}

	waitUntil(t, "intent row settle", func() bool {
		row, _ := f.intents.row("corr-chk-1")
		return row.Status == domain.PollStatusConfirmed && row.SettledAt != nil
	})
	waitUntil(t, "settled event", func() bool {
		for _, et := range f.outbox.eventTypes() {
			if et == contracts.EventPaymentConfirmed {
				return true
			}
		}
		return false
	})
}

func TestReconcileReplayIsNoOp(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.bookings.bookings["bk-1"] = domain.Booking{BookingID: "bk-1", RefundStatus: domain.RefundStatusRequested}

	outcome := domain.TerminalOutcome{
		Intent: domain.PaymentIntent{
			CorrelationID: "corr-refund-1",
			Kind:          domain.KindBookingRefund,
			SubjectID:     "bk-1",
			Amount:        4000,
		},
		Status:   domain.PollStatusConfirmed,
		Details:  domain.Outcome{Status: domain.OutcomeConfirmed, Amount: 4000},
		Attempts: 4,
	}

	if err := f.service.Reconcile(context.Background(), outcome); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	if err := f.service.Reconcile(context.Background(), outcome); err != nil {
		t.Fatalf("replay Reconcile: %v", err)
	}

	if got := f.bookings.confirmed["bk-1"]; got != 1 {
		t.Fatalf("refund confirmed applied %d times, want 1", got)
	}
	if got := len(f.outbox.eventTypes()); got != 1 {
		t.Fatalf("outbox events = %d, want 1", got)
	}
}

func TestReconcilePartialFailureRaisesAlert(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.subscriptions.createFailure = errors.New("connection reset by peer")

	outcome := domain.TerminalOutcome{
		Intent: domain.PaymentIntent{
			CorrelationID: "corr-partial",
			Kind:          domain.KindSubscriptionPayment,
			SubjectID:     "chk-9",
			Amount:        1500,
		},
		Status:  domain.PollStatusConfirmed,
		Details: domain.Outcome{Status: domain.OutcomeConfirmed},
	}

	err := f.service.Reconcile(context.Background(), outcome)
	if !errors.Is(err, domain.ErrReconciliationPartial) {
		t.Fatalf("err = %v, want ErrReconciliationPartial", err)
	}
	if !f.records.has("corr-partial") {
		t.Fatal("reconciliation record must stay inserted on partial failure")
	}

	var alertSeen bool
	for _, et := range f.outbox.eventTypes() {
		if et == contracts.EventReconciliationPartialFailure {
			alertSeen = true
		}
	}
	if !alertSeen {
		t.Fatal("partial failure alert not enqueued")
	}

	// The replay must not retry the mutation behind the record.
	if err := f.service.Reconcile(context.Background(), outcome); err != nil {
		t.Fatalf("replay after partial: %v", err)
	}
}

func TestRefundNotConfirmedMarksBookingFailed(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.bookings.bookings["bk-2"] = domain.Booking{BookingID: "bk-2", RefundStatus: domain.RefundStatusRequested}

	err := f.service.Reconcile(context.Background(), domain.TerminalOutcome{
		Intent: domain.PaymentIntent{
			CorrelationID: "corr-refund-to",
			Kind:          domain.KindBookingRefund,
			SubjectID:     "bk-2",
			Amount:        800,
		},
		Status:  domain.PollStatusTimedOut,
		Details: domain.Outcome{FailureReason: "no resolution before deadline"},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	booking, _ := f.bookings.GetByID(context.Background(), "bk-2")
	if booking.RefundStatus != domain.RefundStatusFailed {
		t.Fatalf("refund status = %s, want failed", booking.RefundStatus)
	}
	if booking.RefundAmount != 0 {
		t.Fatalf("refund amount mutated on failure: %v", booking.RefundAmount)
	}
	types := f.outbox.eventTypes()
	if len(types) != 1 || types[0] != contracts.EventRefundFailed {
		t.Fatalf("outbox events = %v", types)
	}
}

func TestPayoutConfirmedMarksProcessed(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.payouts.payouts["po-1"] = domain.Payout{PayoutID: "po-1", Status: domain.PayoutStatusRequested}

	err := f.service.Reconcile(context.Background(), domain.TerminalOutcome{
		Intent: domain.PaymentIntent{
			CorrelationID: "corr-po-1",
			Kind:          domain.KindOwnerPayout,
			SubjectID:     "po-1",
			Amount:        12000,
		},
		Status:  domain.PollStatusConfirmed,
		Details: domain.Outcome{Status: domain.OutcomeConfirmed, GatewayRef: "DSB771"},
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	payout, _ := f.payouts.GetByID(context.Background(), "po-1")
	if payout.Status != domain.PayoutStatusProcessed || payout.GatewayRef != "DSB771" {
		t.Fatalf("payout = %+v", payout)
	}
	types := f.outbox.eventTypes()
	if len(types) != 1 || types[0] != contracts.EventPayoutProcessed {
		t.Fatalf("outbox events = %v", types)
	}
}

func TestGatewayCallbackResolvesPendingIntent(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	now := time.Now().UTC()
	mustCreateIntent(t, f, ports.IntentRecord{
		CorrelationID: "corr-cb-1",
		Kind:          domain.KindSubscriptionPayment,
		SubjectID:     "chk-cb",
		Amount:        999,
		Tier:          "basic",
		Status:        domain.PollStatusPending,
		StartedAt:     now,
		Deadline:      now.Add(5 * time.Minute),
	})

	input := CallbackInput{
		CorrelationID: "corr-cb-1",
		Status:        domain.PollStatusConfirmed,
		Details:       domain.Outcome{Status: domain.OutcomeConfirmed, GatewayRef: "MPX555"},
	}
	if err := f.service.HandleGatewayCallback(context.Background(), input); err != nil {
		t.Fatalf("HandleGatewayCallback: %v", err)
	}

	subscription, err := f.subscriptions.GetByCheckoutID(context.Background(), "chk-cb")
	if err != nil {
		t.Fatalf("subscription after callback: %v", err)
	}
	if subscription.Tier != "basic" || subscription.AmountPaid != 999 {
		t.Fatalf("subscription = %+v", subscription)
	}

	// A second delivery of the same callback is a no-op.
	if err := f.service.HandleGatewayCallback(context.Background(), input); err != nil {
		t.Fatalf("duplicate callback: %v", err)
	}
	if got := len(f.outbox.eventTypes()); got != 1 {
		t.Fatalf("outbox events after duplicate = %d, want 1", got)
	}
}

func TestGatewayCallbackIgnoresPendingStatus(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	err := f.service.HandleGatewayCallback(context.Background(), CallbackInput{
		CorrelationID: "corr-cb-pending",
		Status:        domain.PollStatusPending,
	})
	if err != nil {
		t.Fatalf("pending callback err = %v", err)
	}
	if f.records.has("corr-cb-pending") {
		t.Fatal("pending callback must not reconcile")
	}
}

func TestGatewayCallbackUnknownCorrelation(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	err := f.service.HandleGatewayCallback(context.Background(), CallbackInput{
		CorrelationID: "corr-missing",
		Status:        domain.PollStatusConfirmed,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStartBookingRefundRequiresBooking(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	_, err := f.service.StartBookingRefund(context.Background(), RefundInput{
		BookingID:         "bk-missing",
		Amount:            500,
		CounterpartyPhone: "+254700000003",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(f.gateway.initiated) != 0 {
		t.Fatal("gateway called for unknown booking")
	}
}

func TestInitiateRejectedByGateway(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.gateway.err = domain.ErrGatewayRejected

	_, err := f.service.StartSubscriptionCheckout(context.Background(), CheckoutInput{
		CheckoutID:        "chk-rejected",
		Amount:            100,
		CounterpartyPhone: "+254700000004",
	})
	if !errors.Is(err, domain.ErrGatewayRejected) {
		t.Fatalf("err = %v, want ErrGatewayRejected", err)
	}
	if _, ok := f.intents.row("corr-chk-rejected"); ok {
		t.Fatal("intent row created for rejected initiation")
	}
}

func TestInitiateValidation(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	cases := []struct {
		name string
		call func() error
	}{
		{"checkout without id", func() error {
			_, err := f.service.StartSubscriptionCheckout(context.Background(), CheckoutInput{Amount: 10, CounterpartyPhone: "+254700000005"})
			return err
		}},
		{"checkout without amount", func() error {
			_, err := f.service.StartSubscriptionCheckout(context.Background(), CheckoutInput{CheckoutID: "chk-x", CounterpartyPhone: "+254700000005"})
			return err
		}},
		{"checkout without phone", func() error {
			_, err := f.service.StartSubscriptionCheckout(context.Background(), CheckoutInput{CheckoutID: "chk-x", Amount: 10})
			return err
		}},
		{"refund without id", func() error {
			_, err := f.service.StartBookingRefund(context.Background(), RefundInput{Amount: 10, CounterpartyPhone: "+254700000005"})
			return err
		}},
		{"payout without id", func() error {
			_, err := f.service.StartOwnerPayout(context.Background(), PayoutInput{Amount: 10, CounterpartyPhone: "+254700000005"})
			return err
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := tc.call(); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestIntentSnapshotFallsBackToDurableRow(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	settledAt := time.Now().UTC()
	mustCreateIntent(t, f, ports.IntentRecord{
		CorrelationID: "corr-settled",
		Kind:          domain.KindOwnerPayout,
		SubjectID:     "po-7",
		Amount:        300,
		Status:        domain.PollStatusFailed,
		Attempts:      12,
		StartedAt:     settledAt.Add(-2 * time.Minute),
		Deadline:      settledAt.Add(3 * time.Minute),
		SettledAt:     &settledAt,
		FailureReason: "insufficient float",
	})

	snap, err := f.service.IntentSnapshot(context.Background(), "corr-settled")
	if err != nil {
		t.Fatalf("IntentSnapshot: %v", err)
	}
	if snap.Status != domain.PollStatusFailed || snap.AttemptsMade != 12 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.SecondsRemaining != 0 {
		t.Fatalf("settled snapshot reports %d seconds remaining", snap.SecondsRemaining)
	}
	if snap.LastFailureReason != "insufficient float" {
		t.Fatalf("failure reason = %q", snap.LastFailureReason)
	}

	if _, err := f.service.IntentSnapshot(context.Background(), "corr-unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown snapshot err = %v, want ErrNotFound", err)
	}
}

func TestSweepTimesOutStaleIntents(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	now := time.Now().UTC()
	mustCreateIntent(t, f, ports.IntentRecord{
		CorrelationID: "corr-stale",
		Kind:          domain.KindSubscriptionPayment,
		SubjectID:     "chk-stale",
		Amount:        700,
		Status:        domain.PollStatusPending,
		Attempts:      30,
		StartedAt:     now.Add(-20 * time.Minute),
		Deadline:      now.Add(-15 * time.Minute),
	})
	mustCreateIntent(t, f, ports.IntentRecord{
		CorrelationID: "corr-fresh",
		Kind:          domain.KindSubscriptionPayment,
		SubjectID:     "chk-fresh",
		Amount:        700,
		Status:        domain.PollStatusPending,
		StartedAt:     now,
		Deadline:      now.Add(5 * time.Minute),
	})

	if err := f.service.SweepUnresolvedIntents(context.Background(), 2*time.Minute, 100); err != nil {
		t.Fatalf("SweepUnresolvedIntents: %v", err)
	}

	stale, _ := f.intents.row("corr-stale")
	if stale.Status != domain.PollStatusTimedOut {
		t.Fatalf("stale intent status = %s, want timed_out", stale.Status)
	}
	record, err := f.records.GetByCorrelationID(context.Background(), "corr-stale")
	if err != nil {
		t.Fatalf("reconciliation record for swept intent: %v", err)
	}
	if record.Outcome != domain.PollStatusTimedOut {
		t.Fatalf("record outcome = %s", record.Outcome)
	}

	fresh, _ := f.intents.row("corr-fresh")
	if fresh.Status != domain.PollStatusPending {
		t.Fatalf("fresh intent swept: %s", fresh.Status)
	}
	if f.records.has("corr-fresh") {
		t.Fatal("fresh intent reconciled by sweeper")
	}

	// The sweep is idempotent across runs.
	if err := f.service.SweepUnresolvedIntents(context.Background(), 2*time.Minute, 100); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
}

func mustCreateIntent(t *testing.T, f *serviceFixture, record ports.IntentRecord) {
	t.Helper()
	if err := f.intents.Create(context.Background(), record); err != nil {
		t.Fatalf("seed intent %s: %v", record.CorrelationID, err)
	}
}
