package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/ports"
)

// Client talks to the mobile-money gateway over HTTP. One client serves all
// three flows; the endpoint is picked per kind. Push payments prompt the
// counterparty's phone; refunds and disbursements move money outward.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type initiateBody struct {
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"`
	MSISDN    string  `json:"msisdn"`
}

type initiateResult struct {
	CorrelationID string `json:"correlation_id"`
	Message       string `json:"message"`
}

// Initiate sends the kind-specific initiation request. A non-2xx response is
// domain.ErrGatewayRejected: the gateway refused synchronously and the
// operation never enters polling. Transport failures are
// domain.ErrGatewayUnavailable and may be retried by re-invoking Initiate.
func (c *Client) Initiate(ctx context.Context, req ports.InitiateRequest) (string, error) {
	path, err := initiatePath(req.Kind)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(initiateBody{
		Reference: req.SubjectID,
		Amount:    req.Amount,
		MSISDN:    req.CounterpartyPhone,
	})
	if err != nil {
		return "", fmt.Errorf("encode initiation: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build initiation request: %w", err)
	}
	c.decorate(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result initiateResult
		if err := json.Unmarshal(body, &result); err != nil {
			return "", fmt.Errorf("decode initiation response: %w", err)
		}
		if strings.TrimSpace(result.CorrelationID) == "" {
			return "", fmt.Errorf("gateway returned empty correlation id")
		}
		return result.CorrelationID, nil
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: gateway returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrGatewayRejected, rejectionMessage(body, resp.StatusCode))
	}
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func initiatePath(kind domain.IntentKind) (string, error) {
	switch kind {
	case domain.KindSubscriptionPayment:
		return "/v1/push-payments", nil
	case domain.KindBookingRefund:
		return "/v1/refunds", nil
	case domain.KindOwnerPayout:
		return "/v1/disbursements", nil
	default:
		return "", fmt.Errorf("%w: unknown intent kind %q", domain.ErrInvalidInput, kind)
	}
}

func rejectionMessage(body []byte, statusCode int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("gateway returned %d", statusCode)
}
