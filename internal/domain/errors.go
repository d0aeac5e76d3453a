package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrGatewayRejected signals the gateway synchronously refused an initiation
	// request (e.g. malformed phone number). It is terminal before any polling
	// starts and is not retryable without changing input.
	ErrGatewayRejected = errors.New("gateway rejected request")
	// ErrGatewayUnavailable is an initiation-time transport failure; the caller
	// may retry the whole initiation.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrTerminalState guards the monotonic status invariant: no transition
	// ever leaves Confirmed, Failed or TimedOut.
	ErrTerminalState = errors.New("poll already settled")
	// ErrPollInProgress is returned when a second scheduler is started for a
	// correlation id that already has an active poll.
	ErrPollInProgress = errors.New("poll already in progress for correlation id")
	// ErrAlreadyReconciled marks an idempotent replay: the reconciliation
	// record for this correlation id exists, so the mutation must not run again.
	ErrAlreadyReconciled = errors.New("correlation id already reconciled")
	// ErrReconciliationPartial signals money may have moved without local state
	// reflecting it: the reconciliation record was inserted but the domain
	// mutation failed. It must reach the alerting path, never be swallowed.
	ErrReconciliationPartial = errors.New("reconciliation partially applied")
	// ErrUnauthorized covers failed credential checks: a bad platform bearer
	// token or a gateway callback without its shared secret.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput rejects a malformed request before any side effect.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict reports a uniqueness violation on write, e.g. a duplicate
	// checkout for the same checkout id.
	ErrConflict = errors.New("conflict")
	// ErrTokenExpired distinguishes an expired bearer token from other
	// verification failures so clients know to refresh rather than re-login.
	ErrTokenExpired = errors.New("token expired")
)
