package settle

import (
	"errors"
	"fmt"
)

// The closed error set for order settlement. Everything the coordinator can
// fail with is one of these; the HTTP boundary maps them exhaustively to
// status codes (400 validation, 401 unauthenticated, 500 upstream/store).
var (
	// ErrUnauthenticated means no verified user identity reached the call.
	ErrUnauthenticated = errors.New("settle: unauthenticated")

	// ErrUpstreamUnavailable means the snapshot fetch failed or the
	// upstream returned no data for the requested side. Nothing is settled.
	ErrUpstreamUnavailable = errors.New("settle: order book unavailable")

	// ErrSettlementFailed means the atomic persistence transaction failed.
	// The store guarantees no partial state survives.
	ErrSettlementFailed = errors.New("settle: failed to persist trade")
)

// ValidationError reports a client-fixable problem with an order request,
// detected before any network or store call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("settle: invalid %s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
