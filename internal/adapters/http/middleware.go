package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/ports"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyClaims    ctxKey = "auth_claims"
)

// requestIDMiddleware threads a request id through the context and response
// header. Callers that retry a checkout reuse their X-Request-Id, which makes
// the duplicate-initiation path traceable across attempts.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			httpLogger().ErrorContext(r.Context(), "panic recovered",
				"operation", "http_panic_recovery",
				"outcome", "failure",
				"request_id", requestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"panic", rec,
			)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// responseMeter captures the status and body size a handler produced so the
// access log can report them.
type responseMeter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeter) WriteHeader(status int) {
	m.status = status
	m.ResponseWriter.WriteHeader(status)
}

func (m *responseMeter) Write(payload []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(payload)
	m.bytes += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		meter := &responseMeter{ResponseWriter: w}
		next.ServeHTTP(meter, r)

		status := meter.status
		if status == 0 {
			status = http.StatusOK
		}
		outcome := "success"
		if status >= 400 {
			outcome = "failure"
		}
		logAt := httpLogger().InfoContext
		if status >= 400 {
			logAt = httpLogger().WarnContext
		}
		if status >= 500 {
			logAt = httpLogger().ErrorContext
		}

		logAt(r.Context(), "http request completed",
			"operation", "http_request",
			"outcome", outcome,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", status,
			"bytes", meter.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		)
	})
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		claims, err := h.verifier.ParseAndValidate(raw)
		if err != nil {
			status, code, msg := mapDomainError(err)
			writeError(w, status, code, msg)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callbackAuthMiddleware verifies the gateway's shared credential on callback
// delivery. The callback drives reconciliation with a caller-supplied outcome,
// so an unauthenticated request must never reach it; with no secret configured
// the route stays closed.
func (h *Handler) callbackAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("X-Gateway-Api-Key")
		if h.callbackSecret == "" || presented == "" ||
			subtle.ConstantTimeCompare([]byte(presented), []byte(h.callbackSecret)) != 1 {
			httpLogger().WarnContext(r.Context(), "gateway callback rejected",
				"operation", "gateway_callback_auth",
				"outcome", "failure",
				"request_id", requestIDFromContext(r.Context()),
			)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeyRequestID).(string)
	return s
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("missing bearer token")
	}
	if token := strings.TrimSpace(header[len(prefix):]); token != "" {
		return token, nil
	}
	return "", errors.New("missing bearer token")
}

func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired"
	case errors.Is(err, domain.ErrGatewayRejected):
		return http.StatusUnprocessableEntity, "GATEWAY_REJECTED", err.Error()
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", "payment gateway unavailable"
	case errors.Is(err, domain.ErrPollInProgress):
		return http.StatusConflict, "POLL_IN_PROGRESS", "a poll for this correlation id is already running"
	case errors.Is(err, domain.ErrAlreadyReconciled), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, domain.ErrTerminalState):
		return http.StatusConflict, "ALREADY_SETTLED", "intent already settled"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func claimsFromContext(ctx context.Context) (ports.AuthClaims, bool) {
	v := ctx.Value(ctxKeyClaims)
	claims, ok := v.(ports.AuthClaims)
	return claims, ok
}
