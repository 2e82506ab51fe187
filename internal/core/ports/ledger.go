package ports

import (
	"context"

	"github.com/tommypurcell/autoscape-api/internal/core/domain"
)

// CreditLedger enforces that each generation costs exactly one credit:
// reserved before work begins, refunded if the work does not complete, never
// double-charged or double-refunded.
type CreditLedger interface {
	// Reserve atomically deducts amount from the principal's balance and
	// creates a pending reservation. Fails closed with
	// domain.ErrInsufficientCredits when the balance is too low or cannot be
	// determined.
	Reserve(ctx context.Context, p domain.Principal, amount int) (string, error)

	// Complete transitions a pending reservation to completed and records the
	// result identifier. Idempotent for repeated calls with the same resultID;
	// completing a refunded reservation fails with
	// domain.ErrInvalidReservationState.
	Complete(ctx context.Context, reservationID, resultID string) error

	// Refund restores the reserved amount exactly once and transitions the
	// reservation to refunded. Refunding a completed reservation is rejected.
	Refund(ctx context.Context, reservationID, reason string) error

	// Balance returns the current balance, never negative.
	Balance(ctx context.Context, p domain.Principal) (int, error)

	// Grant adds credits to an authenticated principal (signup grant,
	// admin top-up) and returns the new balance.
	Grant(ctx context.Context, principalKey string, amount int) (int, error)
}

// BalanceStore is the durable per-principal credit counter for authenticated
// principals. DecrementIfAtLeast must be atomic: two concurrent calls against
// a balance of 1 must not both succeed.
type BalanceStore interface {
	DecrementIfAtLeast(ctx context.Context, key string, amount int) (bool, error)
	Increment(ctx context.Context, key string, amount int) (int, error)
	Get(ctx context.Context, key string) (int, error)
}

// AnonymousGate is the best-effort allowance tracker for anonymous devices.
// No cross-device consistency is possible nor required.
type AnonymousGate interface {
	// Take consumes one unit of the device allowance; false when exhausted.
	Take(ctx context.Context, deviceID string) (bool, error)
	// Restore returns one unit previously taken.
	Restore(ctx context.Context, deviceID string) error
	// Remaining reports how many units the device still has, never negative.
	Remaining(ctx context.Context, deviceID string) (int, error)
}

// ReservationRepository persists reservation records for audit and enforces
// the terminal-once transition at the storage layer: the Mark* methods return
// false when the reservation was not pending.
type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	Find(ctx context.Context, id string) (*domain.Reservation, error)
	MarkCompleted(ctx context.Context, id, resultID string) (bool, error)
	MarkRefunded(ctx context.Context, id, reason string) (bool, error)
	ListByPrincipal(ctx context.Context, principalKey string, limit int) ([]*domain.Reservation, error)
}

// BalanceEvent notifies interested components that a principal's balance
// changed, replacing ambient globals with an explicit channel.
type BalanceEvent struct {
	Principal string `json:"principal"`
	Balance   int    `json:"balance"`
	Cause     string `json:"cause"` // "reserve", "refund", "grant"
}

// BalanceNotifier is the pub/sub seam between the ledger and the UI-facing
// stream endpoint.
type BalanceNotifier interface {
	Publish(event BalanceEvent)
	// Subscribe returns a channel of events for one principal and a cancel
	// function that must be called when the subscriber goes away.
	Subscribe(principalKey string) (<-chan BalanceEvent, func())
}
