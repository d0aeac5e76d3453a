package grpc

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nyumbani/payments-service/internal/application"
	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/engine"
	"github.com/nyumbani/payments-service/internal/ports"
)

type stubIntentRepo struct {
	mu   sync.Mutex
	rows map[string]ports.IntentRecord
}

func (s *stubIntentRepo) Create(_ context.Context, record ports.IntentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[record.CorrelationID] = record
	return nil
}

func (s *stubIntentRepo) MarkSettled(context.Context, string, domain.PollStatus, int, string, time.Time) error {
	return nil
}

func (s *stubIntentRepo) GetByCorrelationID(_ context.Context, correlationID string) (ports.IntentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[correlationID]
	if !ok {
		return ports.IntentRecord{}, domain.ErrNotFound
	}
	return row, nil
}

func (s *stubIntentRepo) List(context.Context, ports.IntentQuery) ([]ports.IntentRecord, int, error) {
	return nil, 0, nil
}

func (s *stubIntentRepo) ListUnresolvedBefore(context.Context, time.Time, int) ([]ports.IntentRecord, error) {
	return nil, nil
}

type stubRecordRepo struct{}

func (stubRecordRepo) Insert(context.Context, domain.ReconciliationRecord) error { return nil }
func (stubRecordRepo) GetByCorrelationID(context.Context, string) (domain.ReconciliationRecord, error) {
	return domain.ReconciliationRecord{}, domain.ErrNotFound
}

type stubBookingRepo struct{}

func (stubBookingRepo) GetByID(context.Context, string) (domain.Booking, error) {
	return domain.Booking{}, domain.ErrNotFound
}
func (stubBookingRepo) MarkRefundConfirmed(context.Context, string, float64, time.Time) error {
	return nil
}
func (stubBookingRepo) MarkRefundFailed(context.Context, string, time.Time) error { return nil }

type stubSubscriptionRepo struct{}

func (stubSubscriptionRepo) Create(context.Context, domain.Subscription) error { return nil }
func (stubSubscriptionRepo) GetByCheckoutID(context.Context, string) (domain.Subscription, error) {
	return domain.Subscription{}, domain.ErrNotFound
}

type stubPayoutRepo struct{}

func (stubPayoutRepo) GetByID(context.Context, string) (domain.Payout, error) {
	return domain.Payout{}, domain.ErrNotFound
}
func (stubPayoutRepo) MarkProcessed(context.Context, string, string, time.Time) error { return nil }
func (stubPayoutRepo) MarkFailed(context.Context, string, time.Time) error            { return nil }

type stubOutboxRepo struct{}

func (stubOutboxRepo) Enqueue(context.Context, ports.OutboxEvent) error { return nil }
func (stubOutboxRepo) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}
func (stubOutboxRepo) MarkPublished(context.Context, uuid.UUID, string, time.Time) error { return nil }
func (stubOutboxRepo) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}
func (stubOutboxRepo) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

type stubGateway struct{}

func (stubGateway) Initiate(context.Context, ports.InitiateRequest) (string, error) {
	return "corr-grpc", nil
}

type pendingProber struct{}

func (pendingProber) Query(context.Context, string, domain.IntentKind) (domain.Outcome, error) {
	return domain.Outcome{Status: domain.OutcomeStillPending}, nil
}

type openLockStore struct{}

func (openLockStore) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (openLockStore) Release(context.Context, string) error                       { return nil }

func newServer(t *testing.T) (*PaymentsInternalServer, *stubIntentRepo) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	intents := &stubIntentRepo{rows: make(map[string]ports.IntentRecord)}
	eng := engine.New(logger, pendingProber{}, openLockStore{}, engine.Config{
		PollInterval:  time.Hour,
		DefaultBudget: time.Hour,
	}, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		eng.Shutdown(ctx)
	})

	service := application.NewService(application.Dependencies{
		Logger:        logger,
		Gateway:       stubGateway{},
		Engine:        eng,
		Records:       stubRecordRepo{},
		Intents:       intents,
		Bookings:      stubBookingRepo{},
		Subscriptions: stubSubscriptionRepo{},
		Payouts:       stubPayoutRepo{},
		Outbox:        stubOutboxRepo{},
	})
	return NewPaymentsInternalServer(service), intents
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return s
}

func TestGetIntentStatusServesDurableRow(t *testing.T) {
	t.Parallel()

	server, intents := newServer(t)
	now := time.Now().UTC()
	if err := intents.Create(context.Background(), ports.IntentRecord{
		CorrelationID: "corr-grpc-1",
		Kind:          domain.KindBookingRefund,
		SubjectID:     "bk-1",
		Amount:        450,
		Status:        domain.PollStatusFailed,
		Attempts:      8,
		StartedAt:     now,
		Deadline:      now.Add(5 * time.Minute),
		FailureReason: "rejected by payer",
	}); err != nil {
		t.Fatalf("seed intent: %v", err)
	}

	resp, err := server.GetIntentStatus(context.Background(), mustStruct(t, map[string]any{
		"correlation_id": "corr-grpc-1",
	}))
	if err != nil {
		t.Fatalf("GetIntentStatus: %v", err)
	}
	fields := resp.GetFields()
	if fields["status"].GetStringValue() != "failed" {
		t.Fatalf("status = %q", fields["status"].GetStringValue())
	}
	if fields["kind"].GetStringValue() != "booking_refund" {
		t.Fatalf("kind = %q", fields["kind"].GetStringValue())
	}
	if int(fields["attempts_made"].GetNumberValue()) != 8 {
		t.Fatalf("attempts = %v", fields["attempts_made"].GetNumberValue())
	}
	if fields["last_failure_reason"].GetStringValue() != "rejected by payer" {
		t.Fatalf("failure reason = %q", fields["last_failure_reason"].GetStringValue())
	}
}

func TestGetIntentStatusUnknownCorrelation(t *testing.T) {
	t.Parallel()

	server, _ := newServer(t)
	_, err := server.GetIntentStatus(context.Background(), mustStruct(t, map[string]any{
		"correlation_id": "corr-unknown",
	}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %v, want NotFound", status.Code(err))
	}
}

func TestCorrelationIDRequired(t *testing.T) {
	t.Parallel()

	server, _ := newServer(t)
	for _, req := range []*structpb.Struct{
		mustStruct(t, map[string]any{}),
		mustStruct(t, map[string]any{"correlation_id": ""}),
	} {
		if _, err := server.GetIntentStatus(context.Background(), req); status.Code(err) != codes.InvalidArgument {
			t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
		}
		if _, err := server.CancelIntent(context.Background(), req); status.Code(err) != codes.InvalidArgument {
			t.Fatalf("cancel code = %v, want InvalidArgument", status.Code(err))
		}
	}
}

func TestCancelIntentResponds(t *testing.T) {
	t.Parallel()

	server, _ := newServer(t)
	resp, err := server.CancelIntent(context.Background(), mustStruct(t, map[string]any{
		"correlation_id": "corr-grpc-cancel",
	}))
	if err != nil {
		t.Fatalf("CancelIntent: %v", err)
	}
	fields := resp.GetFields()
	if !fields["cancelled"].GetBoolValue() {
		t.Fatal("cancelled = false")
	}
	if fields["correlation_id"].GetStringValue() != "corr-grpc-cancel" {
		t.Fatalf("correlation id = %q", fields["correlation_id"].GetStringValue())
	}
}
