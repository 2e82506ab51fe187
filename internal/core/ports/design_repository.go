package ports

import (
	"context"
	"time"

	"github.com/tommypurcell/autoscape-api/internal/core/domain"
)

// DesignRepository persists saved designs. The short ID carries a unique
// index; Save fails if a collision slips through generation.
type DesignRepository interface {
	Save(ctx context.Context, d *domain.SavedDesign) error
	FindByShortID(ctx context.Context, shortID string) (*domain.SavedDesign, error)
	ListByOwner(ctx context.Context, owner string) ([]*domain.SavedDesign, error)
	// ListPublic returns the newest public designs, capped at limit.
	ListPublic(ctx context.Context, limit int) ([]*domain.SavedDesign, error)
	SetPublic(ctx context.Context, shortID string, public bool) error
	Delete(ctx context.Context, shortID string) error
	// SetVideoURL attaches a generated video to an existing design.
	SetVideoURL(ctx context.Context, shortID, videoURL string) error
}

// HandoffStore keeps just-generated results that could not be persisted so the
// current session can still display them. Entries expire; a result in the
// hand-off store is not retrievable after its TTL or from another session.
type HandoffStore interface {
	Put(ctx context.Context, id string, result *domain.DesignResult, ttl time.Duration) error
	// Get returns domain.ErrDesignNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*domain.DesignResult, error)
}
