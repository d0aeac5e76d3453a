package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nyumbani/payments-service/internal/domain"
)

// Prober issues status queries against the gateway. The three flows expose
// structurally different status payloads (push payments report "status",
// refunds report "refund_status", disbursements report an upper-cased
// "state"); all of them are normalized here so nothing upstream ever sees a
// raw gateway vocabulary.
type Prober struct {
	client *Client
}

func NewProber(client *Client) *Prober {
	return &Prober{client: client}
}

// Query fetches the current gateway-side status of one in-flight operation.
// An error return means the status could not be determined (transport or
// malformed payload), never that the operation failed.
func (p *Prober) Query(ctx context.Context, correlationID string, kind domain.IntentKind) (domain.Outcome, error) {
	path, err := statusPath(kind, correlationID)
	if err != nil {
		return domain.Outcome{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.client.baseURL+path, nil)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("build status request: %w", err)
	}
	p.client.decorate(httpReq)

	resp, err := p.client.httpClient.Do(httpReq)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("status query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("status query: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Outcome{}, fmt.Errorf("status query: gateway returned %d", resp.StatusCode)
	}

	switch kind {
	case domain.KindSubscriptionPayment:
		return decodePushPaymentStatus(body)
	case domain.KindBookingRefund:
		return decodeRefundStatus(body)
	case domain.KindOwnerPayout:
		return decodeDisbursementStatus(body)
	default:
		return domain.Outcome{}, fmt.Errorf("%w: unknown intent kind %q", domain.ErrInvalidInput, kind)
	}
}

func statusPath(kind domain.IntentKind, correlationID string) (string, error) {
	base, err := initiatePath(kind)
	if err != nil {
		return "", err
	}
	return base + "/" + correlationID + "/status", nil
}

type pushPaymentStatusBody struct {
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	PayerName     string  `json:"payer_name"`
	GatewayRef    string  `json:"gateway_ref"`
	ProcessedAt   string  `json:"processed_at"`
	FailureReason string  `json:"failure_reason"`
}

func decodePushPaymentStatus(body []byte) (domain.Outcome, error) {
	var payload pushPaymentStatusBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Outcome{}, fmt.Errorf("decode push payment status: %w", err)
	}
	status, err := normalizeStatus(payload.Status)
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{
		Status:           status,
		Amount:           payload.Amount,
		CounterpartyName: payload.PayerName,
		GatewayRef:       payload.GatewayRef,
		ProcessedAt:      parseGatewayTime(payload.ProcessedAt),
		FailureReason:    failureReason(status, payload.Status, payload.FailureReason),
	}, nil
}

type refundStatusBody struct {
	RefundStatus  string  `json:"refund_status"`
	Amount        float64 `json:"amount"`
	RecipientName string  `json:"recipient_name"`
	GatewayRef    string  `json:"gateway_ref"`
	CompletedAt   string  `json:"completed_at"`
	FailureReason string  `json:"failure_reason"`
}

func decodeRefundStatus(body []byte) (domain.Outcome, error) {
	var payload refundStatusBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Outcome{}, fmt.Errorf("decode refund status: %w", err)
	}
	status, err := normalizeStatus(payload.RefundStatus)
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{
		Status:           status,
		Amount:           payload.Amount,
		CounterpartyName: payload.RecipientName,
		GatewayRef:       payload.GatewayRef,
		ProcessedAt:      parseGatewayTime(payload.CompletedAt),
		FailureReason:    failureReason(status, payload.RefundStatus, payload.FailureReason),
	}, nil
}

type disbursementStatusBody struct {
	State         string  `json:"state"`
	Amount        float64 `json:"amount"`
	RecipientName string  `json:"recipient_name"`
	ReceiptNumber string  `json:"receipt_number"`
	SettledAt     string  `json:"settled_at"`
	FailureReason string  `json:"failure_reason"`
}

func decodeDisbursementStatus(body []byte) (domain.Outcome, error) {
	var payload disbursementStatusBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Outcome{}, fmt.Errorf("decode disbursement status: %w", err)
	}
	status, err := normalizeStatus(payload.State)
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{
		Status:           status,
		Amount:           payload.Amount,
		CounterpartyName: payload.RecipientName,
		GatewayRef:       payload.ReceiptNumber,
		ProcessedAt:      parseGatewayTime(payload.SettledAt),
		FailureReason:    failureReason(status, payload.State, payload.FailureReason),
	}, nil
}

// normalizeStatus maps the per-flow gateway vocabularies onto the internal
// three-value outcome. Unknown values are errors, not failures: a gateway
// adding a new transient state must not settle intents as Failed.
func normalizeStatus(raw string) (domain.OutcomeStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "processing", "initiated", "accepted":
		return domain.OutcomeStillPending, nil
	case "confirmed", "completed", "success", "succeeded":
		return domain.OutcomeConfirmed, nil
	case "failed", "rejected", "cancelled", "expired", "timeout", "timed_out":
		return domain.OutcomeFailed, nil
	default:
		return "", fmt.Errorf("unrecognized gateway status %q", raw)
	}
}

// failureReason prefers the gateway's explicit reason; a failed status that
// carries no reason falls back to the status word itself ("timeout",
// "expired"), which is what operators see on the settled intent.
func failureReason(status domain.OutcomeStatus, raw, reason string) string {
	if reason != "" || status != domain.OutcomeFailed {
		return reason
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

func parseGatewayTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}
