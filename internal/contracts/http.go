package contracts

type CheckoutRequest struct {
	CheckoutID        string  `json:"checkout_id"`
	Tier              string  `json:"tier"`
	Amount            float64 `json:"amount"`
	CounterpartyPhone string  `json:"counterparty_phone"`
}

type RefundRequest struct {
	Amount            float64 `json:"amount"`
	CounterpartyPhone string  `json:"counterparty_phone"`
}

type PayoutRequest struct {
	PayoutID          string  `json:"payout_id"`
	Amount            float64 `json:"amount"`
	CounterpartyPhone string  `json:"counterparty_phone"`
}

type InitiateResponse struct {
	CorrelationID string `json:"correlation_id"`
}

type IntentSnapshotResponse struct {
	CorrelationID     string `json:"correlation_id"`
	Kind              string `json:"kind"`
	Status            string `json:"status"`
	AttemptsMade      int    `json:"attempts_made"`
	SecondsRemaining  int    `json:"seconds_remaining"`
	LastFailureReason string `json:"last_failure_reason,omitempty"`
}

// GatewayCallbackRequest is the out-of-band confirmation the gateway posts
// when it resolves an operation on its side. It routes through the same
// reconciliation idempotency check as the poller.
type GatewayCallbackRequest struct {
	CorrelationID    string  `json:"correlation_id"`
	Status           string  `json:"status"`
	Amount           float64 `json:"amount,omitempty"`
	CounterpartyName string  `json:"counterparty_name,omitempty"`
	GatewayRef       string  `json:"gateway_ref,omitempty"`
	ProcessedAt      string  `json:"processed_at,omitempty"`
	FailureReason    string  `json:"failure_reason,omitempty"`
}

type IntentListItem struct {
	CorrelationID string  `json:"correlation_id"`
	Kind          string  `json:"kind"`
	SubjectID     string  `json:"subject_id"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
	Attempts      int     `json:"attempts"`
	StartedAt     string  `json:"started_at"`
	SettledAt     string  `json:"settled_at,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}
