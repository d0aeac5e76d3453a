package ports

import (
	"context"

	"github.com/nyumbani/payments-service/internal/domain"
)

// InitiateRequest carries the inputs of one gateway initiation call.
// The same shape serves push payments, refunds and disbursements; the
// adapter picks the endpoint from the kind.
type InitiateRequest struct {
	Kind              domain.IntentKind
	SubjectID         string
	Amount            float64
	CounterpartyPhone string
}

// GatewayClient sends the initiating request to the mobile-money gateway and
// returns the correlation id used for all later status queries.
//
// Errors: domain.ErrGatewayRejected when the gateway synchronously refuses
// the request (never enters polling), domain.ErrGatewayUnavailable on
// transport failure (caller may retry the initiation).
type GatewayClient interface {
	Initiate(ctx context.Context, req InitiateRequest) (correlationID string, err error)
}

// StatusProber performs one status query for a correlation id and returns a
// normalized outcome. A transport error (timeout, 5xx) is returned as error,
// never as a Failed outcome: the operation may still succeed, so the
// scheduler treats that tick as still pending.
type StatusProber interface {
	Query(ctx context.Context, correlationID string, kind domain.IntentKind) (domain.Outcome, error)
}
