package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nyumbani/payments-service/internal/application"
	"github.com/nyumbani/payments-service/internal/contracts"
	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/ports"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) subscriptionCheckout(w http.ResponseWriter, r *http.Request) {
	var req contracts.CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.service.StartSubscriptionCheckout(r.Context(), application.CheckoutInput{
		CheckoutID:        req.CheckoutID,
		Tier:              req.Tier,
		Amount:            req.Amount,
		CounterpartyPhone: req.CounterpartyPhone,
	})
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusAccepted, contracts.InitiateResponse{CorrelationID: res.CorrelationID})
}

func (h *Handler) bookingRefund(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "booking_id")
	var req contracts.RefundRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.service.StartBookingRefund(r.Context(), application.RefundInput{
		BookingID:         bookingID,
		Amount:            req.Amount,
		CounterpartyPhone: req.CounterpartyPhone,
	})
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusAccepted, contracts.InitiateResponse{CorrelationID: res.CorrelationID})
}

func (h *Handler) ownerPayout(w http.ResponseWriter, r *http.Request) {
	var req contracts.PayoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	// Disbursements move money out of the platform; attribute the caller.
	if claims, ok := claimsFromContext(r.Context()); ok {
		httpLogger().InfoContext(r.Context(), "payout initiation requested",
			"operation", "owner_payout",
			"outcome", "success",
			"request_id", requestIDFromContext(r.Context()),
			"payout_id", req.PayoutID,
			"user_id", claims.UserID,
			"role", claims.Role,
		)
	}

	res, err := h.service.StartOwnerPayout(r.Context(), application.PayoutInput{
		PayoutID:          req.PayoutID,
		Amount:            req.Amount,
		CounterpartyPhone: req.CounterpartyPhone,
	})
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusAccepted, contracts.InitiateResponse{CorrelationID: res.CorrelationID})
}

func (h *Handler) intentSnapshot(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "correlation_id")
	snapshot, err := h.service.IntentSnapshot(r.Context(), correlationID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.IntentSnapshotResponse{
		CorrelationID:     snapshot.CorrelationID,
		Kind:              string(snapshot.Kind),
		Status:            string(snapshot.Status),
		AttemptsMade:      snapshot.AttemptsMade,
		SecondsRemaining:  snapshot.SecondsRemaining,
		LastFailureReason: snapshot.LastFailureReason,
	})
}

func (h *Handler) cancelIntent(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "correlation_id")
	if err := h.service.CancelIntent(r.Context(), correlationID); err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeMessage(w, http.StatusOK, "intent cancelled")
}

func (h *Handler) listIntents(w http.ResponseWriter, r *http.Request) {
	query := ports.IntentQuery{
		Status: domain.PollStatus(r.URL.Query().Get("status")),
		Kind:   domain.IntentKind(r.URL.Query().Get("kind")),
		Limit:  parseIntDefault(r.URL.Query().Get("limit"), 0),
		Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
	}

	res, err := h.service.ListIntents(r.Context(), query)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}

	items := make([]contracts.IntentListItem, 0, len(res.Intents))
	for _, item := range res.Intents {
		items = append(items, contracts.IntentListItem{
			CorrelationID: item.CorrelationID,
			Kind:          string(item.Kind),
			SubjectID:     item.SubjectID,
			Amount:        item.Amount,
			Status:        string(item.Status),
			Attempts:      item.Attempts,
			StartedAt:     item.StartedAt,
			SettledAt:     item.SettledAt,
			FailureReason: item.FailureReason,
		})
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"intents": items,
		"pagination": contracts.Pagination{
			Limit:  query.Limit,
			Offset: query.Offset,
			Total:  res.Total,
		},
	})
}

func (h *Handler) gatewayCallback(w http.ResponseWriter, r *http.Request) {
	var req contracts.GatewayCallbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	status, err := callbackStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	input := application.CallbackInput{
		CorrelationID: req.CorrelationID,
		Status:        status,
		Details: domain.Outcome{
			Status:           outcomeStatusFor(status),
			Amount:           req.Amount,
			CounterpartyName: req.CounterpartyName,
			GatewayRef:       req.GatewayRef,
			FailureReason:    req.FailureReason,
		},
	}
	if ts, parseErr := time.Parse(time.RFC3339, req.ProcessedAt); parseErr == nil {
		input.Details.ProcessedAt = ts
	}

	if err := h.service.HandleGatewayCallback(r.Context(), input); err != nil {
		statusCode, code, msg := mapDomainError(err)
		writeError(w, statusCode, code, msg)
		return
	}
	writeMessage(w, http.StatusOK, "callback accepted")
}

// callbackStatus accepts the gateway's terminal vocabulary plus "pending",
// which the service treats as a no-op.
func callbackStatus(raw string) (domain.PollStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "confirmed", "completed", "success":
		return domain.PollStatusConfirmed, nil
	case "failed", "rejected", "expired", "timeout", "timed_out":
		return domain.PollStatusFailed, nil
	case "pending", "processing":
		return domain.PollStatusPending, nil
	default:
		return "", errors.New("unrecognized callback status")
	}
}

func outcomeStatusFor(status domain.PollStatus) domain.OutcomeStatus {
	switch status {
	case domain.PollStatusConfirmed:
		return domain.OutcomeConfirmed
	case domain.PollStatusFailed:
		return domain.OutcomeFailed
	default:
		return domain.OutcomeStillPending
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func parseIntDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
