package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/tommypurcell/autoscape-api/internal/api/metrics"
	"github.com/tommypurcell/autoscape-api/internal/core/domain"
	"github.com/tommypurcell/autoscape-api/internal/core/ports"
	"github.com/tommypurcell/autoscape-api/pkg/shortid"
)

const (
	// handoffPrefix marks route ids that resolve from the session hand-off
	// cache instead of the persistence store.
	handoffPrefix = "tmp-"

	defaultGenerationTimeout = 60 * time.Second
	defaultHandoffTTL        = 24 * time.Hour
)

// flowState tracks where a single generation invocation is. The state machine
// is linear per invocation; only the failure edges branch.
type flowState string

const (
	flowReserving  flowState = "reserving"
	flowGenerating flowState = "generating"
	flowPersisting flowState = "persisting"
	flowCommitting flowState = "committing"
	flowDone       flowState = "done"
	flowRejected   flowState = "rejected"
)

// generationFlow is the single mutable record for one invocation. The
// deferred finalizer inspects it and refunds the reservation whenever the flow
// did not reach a terminal state on its own, so the compensating action is
// enforced by construction rather than by catch-block placement.
type generationFlow struct {
	state         flowState
	reservationID string
}

// DesignService is the generation orchestrator: it sequences credit
// reservation, external generation, persistence, and reservation finalization
// as one logical transaction with compensating actions. It is the sole ledger
// caller for a generation flow.
type DesignService struct {
	ledger    ports.CreditLedger
	generator ports.ImageGenerator
	analyzer  ports.YardAnalyzer
	estimator *Estimator
	repo       ports.DesignRepository
	handoff    ports.HandoffStore
	timeout    time.Duration
	handoffTTL time.Duration
	logger     zerolog.Logger
}

func NewDesignService(
	ledger ports.CreditLedger,
	generator ports.ImageGenerator,
	analyzer ports.YardAnalyzer,
	estimator *Estimator,
	repo ports.DesignRepository,
	handoff ports.HandoffStore,
	timeout time.Duration,
	handoffTTL time.Duration,
	logger zerolog.Logger,
) *DesignService {
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	if handoffTTL <= 0 {
		handoffTTL = defaultHandoffTTL
	}
	return &DesignService{
		ledger:     ledger,
		generator:  generator,
		analyzer:   analyzer,
		estimator:  estimator,
		repo:       repo,
		handoff:    handoff,
		timeout:    timeout,
		handoffTTL: handoffTTL,
		logger:     logger,
	}
}

// Generate runs one complete flow: reserve → generate → persist → commit.
// A failed reservation produces zero generation calls; a failed generation
// produces exactly one refund; a failed persistence degrades to the hand-off
// cache with the reservation still completed (the credit was spent).
func (s *DesignService) Generate(ctx context.Context, in ports.GenerateDesignInput) (*ports.GenerateDesignResult, error) {
	start := time.Now()
	flow := &generationFlow{state: flowReserving}
	defer s.finalize(ctx, flow, start)

	reservationID, err := s.ledger.Reserve(ctx, in.Principal, 1)
	if err != nil {
		flow.state = flowRejected
		if errors.Is(err, domain.ErrInsufficientCredits) {
			return nil, err
		}
		// Fail closed: an undeterminable balance blocks generation.
		return nil, fmt.Errorf("start generation: %w", err)
	}
	flow.reservationID = reservationID
	flow.state = flowGenerating

	result, err := s.generate(ctx, in)
	if err != nil {
		// The finalizer refunds; no automatic retry, the user retries explicitly.
		s.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("generation failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	flow.state = flowPersisting
	saved, err := s.persist(ctx, in, result)

	shortID := ""
	ephemeral := false
	resultID := ""
	switch {
	case err == nil:
		shortID = saved.ShortID
		resultID = saved.ShortID
	default:
		// Generation succeeded; the artifact must survive the session even if
		// the store is down. Hand it off in memory under a placeholder route.
		s.logger.Warn().Err(err).Msg("persistence failed, falling back to session hand-off")
		metrics.HandoffFallbacksTotal.Inc()
		ephemeral = true
		shortID = handoffPrefix + shortid.New()
		if handoffErr := s.handoff.Put(ctx, shortID, result, s.handoffTTL); handoffErr != nil {
			s.logger.Error().Err(handoffErr).Msg("hand-off store rejected generated design")
			shortID = ""
		}
	}

	flow.state = flowCommitting
	if err := s.ledger.Complete(ctx, reservationID, resultID); err != nil {
		// Non-fatal: generation and (possibly) persistence already succeeded.
		s.logger.Warn().Err(err).Str("reservation_id", reservationID).Msg("reservation commit failed")
	}
	flow.state = flowDone

	balance, _ := s.ledger.Balance(ctx, in.Principal)
	return &ports.GenerateDesignResult{
		ShortID:   shortID,
		Ephemeral: ephemeral,
		Balance:   balance,
		Result:    *result,
	}, nil
}

// finalize guarantees a terminal ledger state for every invocation, including
// abandoned ones: it runs detached from the caller's cancellation.
func (s *DesignService) finalize(ctx context.Context, flow *generationFlow, start time.Time) {
	outcome := "failed"
	switch flow.state {
	case flowDone:
		outcome = "done"
	case flowRejected:
		outcome = "rejected"
	default:
		if flow.reservationID != "" {
			refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := s.ledger.Refund(refundCtx, flow.reservationID, string(flow.state)); err != nil {
				s.logger.Error().Err(err).
					Str("reservation_id", flow.reservationID).
					Msg("refund failed, reservation may be non-terminal")
			}
		}
	}

	metrics.GenerationsTotal.WithLabelValues(outcome).Inc()
	metrics.GenerationDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// generate performs the external pipeline under the generation ceiling: an
// optional structural analysis, the image render, and the cost estimate.
func (s *DesignService) generate(ctx context.Context, in ports.GenerateDesignInput) (*domain.DesignResult, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var analysis *ports.YardAnalysis
	if s.analyzer != nil {
		a, err := s.analyzer.Analyze(genCtx, in.YardImage, in.StyleID, in.Prompt)
		if err != nil {
			// Analysis seeds the prompt and the estimate; losing it degrades
			// the output but never aborts the flow.
			s.logger.Warn().Err(err).Msg("yard analysis failed, using default prompt")
		} else {
			analysis = a
		}
	}

	images, err := s.generator.Generate(genCtx, ports.GenerateImagesRequest{
		YardImage:   in.YardImage,
		StyleImages: MergeStyleReferences(in.UploadedStyleImages, in.GalleryStyleImages),
		Prompt:      buildPrompt(in, analysis),
		StyleID:     in.StyleID,
		WithPlan:    true,
	})
	if err != nil {
		return nil, err
	}
	if len(images.Images) == 0 {
		return nil, fmt.Errorf("generation service returned no images")
	}

	var items []ports.AnalysisItem
	summary := ""
	if analysis != nil {
		items = analysis.Items
		summary = analysis.Summary
	}
	estimate := s.estimator.Estimate(ctx, items, in.UseRAG)

	return &domain.DesignResult{
		Images:    images.Images,
		PlanImage: images.PlanImage,
		YardImage: in.YardImage,
		Analysis:  summary,
		StyleID:   in.StyleID,
		Estimate:  estimate,
	}, nil
}

// persist saves the design, retrying once with a fresh short id in case the
// unique index caught a collision.
func (s *DesignService) persist(ctx context.Context, in ports.GenerateDesignInput, result *domain.DesignResult) (*domain.SavedDesign, error) {
	saved := &domain.SavedDesign{
		Owner:     in.Principal.Key(),
		Public:    in.MakePublic,
		CreatedAt: time.Now().UTC(),
		Result:    *result,
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		saved.ID = ulid.Make().String()
		saved.ShortID = shortid.New()
		if err = s.repo.Save(ctx, saved); err == nil {
			visibility := "private"
			if saved.Public {
				visibility = "public"
			}
			metrics.DesignsSavedTotal.WithLabelValues(visibility).Inc()
			s.logger.Info().
				Str("short_id", saved.ShortID).
				Str("owner", saved.Owner).
				Msg("design saved")
			return saved, nil
		}
	}
	return nil, err
}

// ListOwn returns the principal's saved designs, newest first.
func (s *DesignService) ListOwn(ctx context.Context, p domain.Principal) ([]*domain.SavedDesign, error) {
	return s.repo.ListByOwner(ctx, p.Key())
}

// ListGallery returns the newest public designs.
func (s *DesignService) ListGallery(ctx context.Context, limit int) ([]*domain.SavedDesign, error) {
	return s.repo.ListPublic(ctx, limit)
}

// Publish toggles a design's visibility. Only the owner may publish; the short
// id never changes.
func (s *DesignService) Publish(ctx context.Context, shortID string, public bool, p domain.Principal) error {
	design, err := s.repo.FindByShortID(ctx, shortID)
	if err != nil {
		return err
	}
	if design.Owner != p.Key() {
		return domain.ErrForbidden
	}
	return s.repo.SetPublic(ctx, shortID, public)
}

// Delete removes a saved design. Allowed for the owner and administrators.
func (s *DesignService) Delete(ctx context.Context, shortID string, p domain.Principal) error {
	design, err := s.repo.FindByShortID(ctx, shortID)
	if err != nil {
		return err
	}
	if design.Owner != p.Key() && p.Role != domain.RoleAdmin {
		return domain.ErrForbidden
	}
	return s.repo.Delete(ctx, shortID)
}

// MergeStyleReferences produces the ordered reference list sent to the
// generation service: uploads first, gallery selections after, both in their
// original order.
func MergeStyleReferences(uploaded, gallery []string) []string {
	merged := make([]string, 0, len(uploaded)+len(gallery))
	merged = append(merged, uploaded...)
	merged = append(merged, gallery...)
	return merged
}

// buildPrompt composes the redesign prompt from the user's inputs and the
// structural analysis when available.
func buildPrompt(in ports.GenerateDesignInput, analysis *ports.YardAnalysis) string {
	var b strings.Builder
	b.WriteString("Photorealistic landscape redesign of the attached yard photo.")
	if in.StyleID != "" {
		fmt.Fprintf(&b, " Design style: %s.", in.StyleID)
	}
	if in.Prompt != "" {
		fmt.Fprintf(&b, " %s.", strings.TrimSuffix(in.Prompt, "."))
	}
	if in.LocationType != "" {
		fmt.Fprintf(&b, " Location type: %s.", in.LocationType)
	}
	if in.SpaceSize != "" {
		fmt.Fprintf(&b, " Space size: %s.", in.SpaceSize)
	}
	if in.Budget != "" {
		fmt.Fprintf(&b, " Target budget: %s.", in.Budget)
	}
	if analysis != nil && analysis.Summary != "" {
		fmt.Fprintf(&b, " Yard structure: %s", analysis.Summary)
	}
	b.WriteString(" Keep the existing perspective, framing, and permanent structures. Same scale, realistic lighting and contact shadows.")
	return b.String()
}
