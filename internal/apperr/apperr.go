// Package apperr defines the error taxonomy of the governance layer.
//
// These are sentinel errors so the transport layer can map internal
// failures to status codes with errors.Is, no matter how many times
// the error was wrapped on the way up.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthorized means no identity could be resolved for the request.
	ErrUnauthorized = errors.New("authentication required")

	// ErrForbidden means an identity was present but its tenant, role, or
	// permission standing is insufficient for the attempted action.
	ErrForbidden = errors.New("access denied")

	// ErrNotFound is returned by ownership checks for rows that either do
	// not exist or belong to another tenant. The two cases are deliberately
	// indistinguishable so a caller cannot probe for the existence of
	// resources outside its workspace.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited means the caller exhausted its request budget.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrLockContention means a mutual-exclusion lock is held elsewhere.
	// Callers are expected to retry with backoff, not block.
	ErrLockContention = errors.New("resource is locked")

	// ErrConfiguration covers unresolvable wiring such as an unknown
	// resource type in an ownership check. Fatal for the request, never
	// retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrConflict covers uniqueness violations surfaced to callers, such
	// as signing up with an email that is already registered.
	ErrConflict = errors.New("conflict")
)

// HTTPStatus maps an error to the status code its sentinel dictates.
// Anything outside the taxonomy is an internal error: unclassified
// failures must not leak detail through the status line.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrLockContention):
		return http.StatusConflict
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrConfiguration):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

