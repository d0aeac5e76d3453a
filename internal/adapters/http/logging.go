package http

import "log/slog"

// httpLogger tags every HTTP adapter log line with the service identity so
// the gateway callback, the authenticated routes and the middleware land in
// one queryable stream.
func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", "nyumbani-payments-service",
		"module", "http",
		"layer", "adapter",
	)
}
