package domain

import (
	"errors"
	"time"
)

// ReservationStatus represents the lifecycle state of a credit reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationCompleted ReservationStatus = "completed"
	ReservationRefunded  ReservationStatus = "refunded"
)

// Terminal reports whether no further transitions are permitted.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationRefunded
}

var ErrInsufficientCredits = errors.New("insufficient credits")
var ErrInvalidReservationState = errors.New("invalid reservation state")
var ErrReservationNotFound = errors.New("reservation not found")

// Reservation records one credit tentatively consumed by a generation flow.
// The amount is deducted from the balance when the reservation is created;
// completion never deducts again and a refund restores it exactly once.
type Reservation struct {
	ID        string            `json:"id" bson:"_id"`
	Principal string            `json:"principal" bson:"principal"`
	Amount    int               `json:"amount" bson:"amount"`
	Status    ReservationStatus `json:"status" bson:"status"`
	ResultID  string            `json:"result_id,omitempty" bson:"result_id,omitempty"`
	Reason    string            `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" bson:"updated_at"`
}
