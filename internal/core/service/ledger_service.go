package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tommypurcell/autoscape-api/internal/api/metrics"
	"github.com/tommypurcell/autoscape-api/internal/core/domain"
	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

// LedgerService implements ports.CreditLedger on top of an atomic balance
// store (authenticated principals), a best-effort device gate (anonymous
// principals), and a reservation audit repository.
//
// Reserve fails closed: when the balance cannot be determined, the caller must
// not proceed with generation.
type LedgerService struct {
	balances     ports.BalanceStore
	anon         ports.AnonymousGate
	reservations ports.ReservationRepository
	notifier     ports.BalanceNotifier
	logger       zerolog.Logger
}

func NewLedgerService(
	balances ports.BalanceStore,
	anon ports.AnonymousGate,
	reservations ports.ReservationRepository,
	notifier ports.BalanceNotifier,
	logger zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		balances:     balances,
		anon:         anon,
		reservations: reservations,
		notifier:     notifier,
		logger:       logger,
	}
}

// Reserve atomically deducts amount from the principal's balance and records a
// pending reservation. Two concurrent reservations against a balance of 1
// cannot both succeed: the conditional decrement is atomic at the store.
func (s *LedgerService) Reserve(ctx context.Context, p domain.Principal, amount int) (string, error) {
	if amount <= 0 {
		amount = 1
	}

	if p.Anonymous() {
		if err := s.takeAnonymous(ctx, p.DeviceID, amount); err != nil {
			return "", err
		}
	} else {
		ok, err := s.balances.DecrementIfAtLeast(ctx, p.Key(), amount)
		if err != nil {
			return "", fmt.Errorf("reserve: %w", err)
		}
		if !ok {
			metrics.ReservationsRejectedTotal.Inc()
			return "", domain.ErrInsufficientCredits
		}
	}

	now := time.Now().UTC()
	reservation := &domain.Reservation{
		ID:        uuid.NewString(),
		Principal: p.Key(),
		Amount:    amount,
		Status:    domain.ReservationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reservations.Create(ctx, reservation); err != nil {
		// The deduction already happened; give it back before failing.
		s.restore(ctx, p.Key(), amount)
		return "", fmt.Errorf("reserve: record reservation: %w", err)
	}

	metrics.CreditsReservedTotal.Inc()
	s.logger.Info().
		Str("reservation_id", reservation.ID).
		Str("principal", p.Key()).
		Int("amount", amount).
		Msg("credit reserved")

	s.notify(ctx, p.Key(), "reserve")
	return reservation.ID, nil
}

// Complete transitions a pending reservation to completed. Repeating the call
// with the same resultID is a no-op; any other non-pending state is an error.
func (s *LedgerService) Complete(ctx context.Context, reservationID, resultID string) error {
	ok, err := s.reservations.MarkCompleted(ctx, reservationID, resultID)
	if err != nil {
		return fmt.Errorf("complete reservation: %w", err)
	}
	if ok {
		s.logger.Info().
			Str("reservation_id", reservationID).
			Str("result_id", resultID).
			Msg("reservation completed")
		return nil
	}

	reservation, err := s.reservations.Find(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("complete reservation: %w", err)
	}
	if reservation.Status == domain.ReservationCompleted && reservation.ResultID == resultID {
		// Idempotent replay.
		return nil
	}

	metrics.LedgerInvalidStateTotal.Inc()
	return fmt.Errorf("complete reservation %s (status %s): %w",
		reservationID, reservation.Status, domain.ErrInvalidReservationState)
}

// Refund restores the reserved amount exactly once. A completed reservation is
// never refunded: the credit was legitimately spent.
func (s *LedgerService) Refund(ctx context.Context, reservationID, reason string) error {
	reservation, err := s.reservations.Find(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("refund reservation: %w", err)
	}
	if reservation.Status.Terminal() {
		metrics.LedgerInvalidStateTotal.Inc()
		return fmt.Errorf("refund reservation %s (status %s): %w",
			reservationID, reservation.Status, domain.ErrInvalidReservationState)
	}

	ok, err := s.reservations.MarkRefunded(ctx, reservationID, reason)
	if err != nil {
		return fmt.Errorf("refund reservation: %w", err)
	}
	if !ok {
		// Lost the race against a concurrent Complete/Refund.
		metrics.LedgerInvalidStateTotal.Inc()
		return fmt.Errorf("refund reservation %s: %w", reservationID, domain.ErrInvalidReservationState)
	}

	s.restore(ctx, reservation.Principal, reservation.Amount)
	metrics.CreditsRefundedTotal.WithLabelValues(reason).Inc()
	s.logger.Info().
		Str("reservation_id", reservationID).
		Str("principal", reservation.Principal).
		Str("reason", reason).
		Msg("credit refunded")

	s.notify(ctx, reservation.Principal, "refund")
	return nil
}

// Balance is read-only and always succeeds; store failures are logged and
// reported as zero so display badges never block on the ledger.
func (s *LedgerService) Balance(ctx context.Context, p domain.Principal) (int, error) {
	var (
		balance int
		err     error
	)
	if p.Anonymous() {
		balance, err = s.anon.Remaining(ctx, p.DeviceID)
	} else {
		balance, err = s.balances.Get(ctx, p.Key())
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("principal", p.Key()).Msg("balance read failed")
		return 0, nil
	}
	if balance < 0 {
		balance = 0
	}
	return balance, nil
}

// Grant adds credits to an authenticated principal and returns the new balance.
func (s *LedgerService) Grant(ctx context.Context, principalKey string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant: amount must be positive")
	}
	if domain.IsAnonymousKey(principalKey) {
		return 0, fmt.Errorf("grant: anonymous principals cannot be granted credits")
	}

	balance, err := s.balances.Increment(ctx, principalKey, amount)
	if err != nil {
		return 0, fmt.Errorf("grant: %w", err)
	}

	s.logger.Info().Str("principal", principalKey).Int("amount", amount).Msg("credits granted")
	if s.notifier != nil {
		s.notifier.Publish(ports.BalanceEvent{Principal: principalKey, Balance: balance, Cause: "grant"})
	}
	return balance, nil
}

func (s *LedgerService) takeAnonymous(ctx context.Context, deviceID string, amount int) error {
	for taken := 0; taken < amount; taken++ {
		ok, err := s.anon.Take(ctx, deviceID)
		if err != nil {
			// Fail closed, undoing any partial take.
			for ; taken > 0; taken-- {
				_ = s.anon.Restore(ctx, deviceID)
			}
			return fmt.Errorf("reserve: %w", err)
		}
		if !ok {
			for ; taken > 0; taken-- {
				_ = s.anon.Restore(ctx, deviceID)
			}
			metrics.ReservationsRejectedTotal.Inc()
			return domain.ErrInsufficientCredits
		}
	}
	return nil
}

// restore returns amount to whichever store owns the principal's balance.
// Failures here leave the ledger short one credit; that is logged loudly, not
// surfaced, because the owning flow already reached its terminal state.
func (s *LedgerService) restore(ctx context.Context, principalKey string, amount int) {
	var err error
	if domain.IsAnonymousKey(principalKey) {
		device := domain.DeviceFromKey(principalKey)
		for i := 0; i < amount; i++ {
			if restoreErr := s.anon.Restore(ctx, device); restoreErr != nil {
				err = restoreErr
			}
		}
	} else {
		_, err = s.balances.Increment(ctx, principalKey, amount)
	}
	if err != nil {
		s.logger.Error().Err(err).
			Str("principal", principalKey).
			Int("amount", amount).
			Msg("failed to restore balance after refund")
	}
}

func (s *LedgerService) notify(ctx context.Context, principalKey, cause string) {
	if s.notifier == nil {
		return
	}
	balance, err := s.Balance(ctx, principalFromKey(principalKey))
	if err != nil {
		balance = 0
	}
	s.notifier.Publish(ports.BalanceEvent{Principal: principalKey, Balance: balance, Cause: cause})
}

func principalFromKey(key string) domain.Principal {
	if domain.IsAnonymousKey(key) {
		return domain.AnonymousPrincipal(domain.DeviceFromKey(key))
	}
	return domain.Principal{ID: key}
}
