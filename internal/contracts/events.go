package contracts

// Event types emitted through the outbox after a terminal reconciliation.
const (
	EventPaymentConfirmed             = "payment.confirmed"
	EventPaymentFailed                = "payment.failed"
	EventRefundConfirmed              = "refund.confirmed"
	EventRefundFailed                 = "refund.failed"
	EventPayoutProcessed              = "payout.processed"
	EventPayoutFailed                 = "payout.failed"
	EventReconciliationPartialFailure = "reconciliation.partial_failure"
)

type PaymentSettledPayload struct {
	CorrelationID string  `json:"correlation_id"`
	Kind          string  `json:"kind"`
	SubjectID     string  `json:"subject_id"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount,omitempty"`
	GatewayRef    string  `json:"gateway_ref,omitempty"`
	Attempts      int     `json:"attempts"`
	ProcessedAt   string  `json:"processed_at,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

// ReconciliationAlertPayload is the operator alert for a partial failure:
// the gateway confirmed money movement but the local mutation did not land.
type ReconciliationAlertPayload struct {
	CorrelationID string `json:"correlation_id"`
	Kind          string `json:"kind"`
	SubjectID     string `json:"subject_id"`
	Outcome       string `json:"outcome"`
	ErrorSummary  string `json:"error_summary"`
	OccurredAt    string `json:"occurred_at"`
}
