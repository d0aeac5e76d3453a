package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nyumbani/payments-service/internal/application"
	"github.com/nyumbani/payments-service/internal/ports"
)

// Handler is the HTTP adapter entrypoint for payment use-cases.
// Keeping only application dependencies here preserves clean adapter boundaries.
type Handler struct {
	service        *application.Service
	verifier       ports.TokenVerifier
	callbackSecret string
}

// NewHandler constructs an HTTP handler bound to the application service.
// callbackSecret is the shared credential the gateway presents on callbacks.
func NewHandler(service *application.Service, verifier ports.TokenVerifier, callbackSecret string) *Handler {
	return &Handler{service: service, verifier: verifier, callbackSecret: callbackSecret}
}

// NewRouter registers the payment routes and middleware stack. The gateway
// callback stays outside the bearer-token group; the gateway authenticates
// with its own shared credential, not a platform JWT.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/payments/v1", func(r chi.Router) {
		r.With(handler.callbackAuthMiddleware).Post("/gateway/callback", handler.gatewayCallback)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/subscriptions/checkout", handler.subscriptionCheckout)
			r.Post("/bookings/{booking_id}/refund", handler.bookingRefund)
			r.Post("/payouts", handler.ownerPayout)
			r.Get("/intents", handler.listIntents)
			r.Get("/intents/{correlation_id}", handler.intentSnapshot)
			r.Delete("/intents/{correlation_id}", handler.cancelIntent)
		})
	})

	return r
}
