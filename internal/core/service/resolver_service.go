package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tommypurcell/autoscape-api/internal/core/domain"
	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

// ResolverService turns a route parameter into a displayable design result.
// tmp- prefixed ids resolve from the session hand-off cache (the common path
// right after a generation whose persistence failed); everything else is a
// short id looked up in the persistence store.
type ResolverService struct {
	repo    ports.DesignRepository
	handoff ports.HandoffStore
	logger  zerolog.Logger
}

func NewResolverService(repo ports.DesignRepository, handoff ports.HandoffStore, logger zerolog.Logger) *ResolverService {
	return &ResolverService{repo: repo, handoff: handoff, logger: logger}
}

// Resolve loads the design behind routeID. Private designs are visible only to
// their owner and administrators; everyone else sees not-found. Missing
// optional fields (plan, video, yard image) pass through as absent.
func (s *ResolverService) Resolve(ctx context.Context, routeID string, p domain.Principal) (*domain.DesignResult, error) {
	if strings.HasPrefix(routeID, handoffPrefix) {
		// Possession of a hand-off id is the capability: these results were
		// never persisted and expire with the session.
		return s.handoff.Get(ctx, routeID)
	}

	design, err := s.repo.FindByShortID(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if !design.Public && design.Owner != p.Key() && p.Role != domain.RoleAdmin {
		// Do not reveal that a private design exists.
		return nil, domain.ErrDesignNotFound
	}

	result := design.Result
	return &result, nil
}
