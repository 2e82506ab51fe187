package ports

import (
	"context"

	"github.com/tommypurcell/autoscape-api/internal/core/domain"
)

// GenerateDesignInput carries everything one generation flow needs.
type GenerateDesignInput struct {
	Principal    domain.Principal
	YardImage    string
	Prompt       string
	StyleID      string
	Budget       string
	LocationType string
	SpaceSize    string
	UseRAG       bool
	// UploadedStyleImages precede GalleryStyleImages in the merged reference
	// list; both keep their submission order.
	UploadedStyleImages []string
	GalleryStyleImages  []string
	MakePublic          bool
}

// GenerateDesignResult is returned to the transport layer after a flow ends.
type GenerateDesignResult struct {
	// ShortID is the shareable identifier, or a tmp- hand-off id when
	// persistence failed and the result lives only in the current session.
	ShortID   string
	Ephemeral bool
	Balance   int
	Result    domain.DesignResult
}

// DesignService drives generation flows and manages saved designs.
type DesignService interface {
	Generate(ctx context.Context, in GenerateDesignInput) (*GenerateDesignResult, error)
	ListOwn(ctx context.Context, p domain.Principal) ([]*domain.SavedDesign, error)
	ListGallery(ctx context.Context, limit int) ([]*domain.SavedDesign, error)
	Publish(ctx context.Context, shortID string, public bool, p domain.Principal) error
	Delete(ctx context.Context, shortID string, p domain.Principal) error
}

// DesignResolver turns a route parameter (short id or tmp- hand-off id) into a
// displayable result.
type DesignResolver interface {
	Resolve(ctx context.Context, routeID string, p domain.Principal) (*domain.DesignResult, error)
}

// VideoJob asks for a transformation video on an already saved design.
// RequestedBy and Role identify the requester so the worker can enforce
// the same owner-or-admin rule as the synchronous design mutations.
type VideoJob struct {
	ShortID     string
	RequestedBy string
	Role        string
}

// VideoService processes queued video jobs.
type VideoService interface {
	Process(ctx context.Context, job VideoJob) error
}
