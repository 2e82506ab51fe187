package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tommypurcell/autoscape-api/internal/core/domain"
	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubLedger struct {
	mu         sync.Mutex
	reserveErr error
	reserved   int
	completed  map[string]string // reservation id → result id
	refunded   map[string]string // reservation id → reason
	balance    int
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		completed: make(map[string]string),
		refunded:  make(map[string]string),
	}
}

func (l *stubLedger) Reserve(_ context.Context, _ domain.Principal, _ int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reserveErr != nil {
		return "", l.reserveErr
	}
	l.reserved++
	return "res_1", nil
}

func (l *stubLedger) Complete(_ context.Context, reservationID, resultID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed[reservationID] = resultID
	return nil
}

func (l *stubLedger) Refund(_ context.Context, reservationID, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.refunded[reservationID]; ok {
		return domain.ErrInvalidReservationState
	}
	l.refunded[reservationID] = reason
	return nil
}

func (l *stubLedger) Balance(_ context.Context, _ domain.Principal) (int, error) {
	return l.balance, nil
}

func (l *stubLedger) Grant(_ context.Context, _ string, amount int) (int, error) {
	return amount, nil
}

type stubGenerator struct {
	mu      sync.Mutex
	fn      func(ctx context.Context, req ports.GenerateImagesRequest) (*ports.GeneratedImages, error)
	calls   int
	lastReq ports.GenerateImagesRequest
}

func (g *stubGenerator) Generate(ctx context.Context, req ports.GenerateImagesRequest) (*ports.GeneratedImages, error) {
	g.mu.Lock()
	g.calls++
	g.lastReq = req
	g.mu.Unlock()
	if g.fn != nil {
		return g.fn(ctx, req)
	}
	return &ports.GeneratedImages{Images: []string{"img1", "img2"}, PlanImage: "plan"}, nil
}

type stubAnalyzer struct {
	analysis *ports.YardAnalysis
	err      error
}

func (a *stubAnalyzer) Analyze(_ context.Context, _, _, _ string) (*ports.YardAnalysis, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.analysis, nil
}

type stubDesignRepo struct {
	mu      sync.Mutex
	byShort map[string]*domain.SavedDesign
	saveErr error
}

func newStubDesignRepo() *stubDesignRepo {
	return &stubDesignRepo{byShort: make(map[string]*domain.SavedDesign)}
}

func (r *stubDesignRepo) Save(_ context.Context, d *domain.SavedDesign) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *d
	r.byShort[d.ShortID] = &clone
	return nil
}

func (r *stubDesignRepo) FindByShortID(_ context.Context, shortID string) (*domain.SavedDesign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byShort[shortID]
	if !ok {
		return nil, domain.ErrDesignNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *stubDesignRepo) ListByOwner(_ context.Context, owner string) ([]*domain.SavedDesign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SavedDesign
	for _, d := range r.byShort {
		if d.Owner == owner {
			clone := *d
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubDesignRepo) ListPublic(_ context.Context, _ int) ([]*domain.SavedDesign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SavedDesign
	for _, d := range r.byShort {
		if d.Public {
			clone := *d
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubDesignRepo) SetPublic(_ context.Context, shortID string, public bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byShort[shortID]
	if !ok {
		return domain.ErrDesignNotFound
	}
	d.Public = public
	return nil
}

func (r *stubDesignRepo) Delete(_ context.Context, shortID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byShort[shortID]; !ok {
		return domain.ErrDesignNotFound
	}
	delete(r.byShort, shortID)
	return nil
}

func (r *stubDesignRepo) SetVideoURL(_ context.Context, shortID, videoURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byShort[shortID]
	if !ok {
		return domain.ErrDesignNotFound
	}
	d.Result.VideoURL = videoURL
	return nil
}

type stubHandoff struct {
	mu      sync.Mutex
	items   map[string]*domain.DesignResult
	putErr  error
	lastTTL time.Duration
}

func newStubHandoff() *stubHandoff {
	return &stubHandoff{items: make(map[string]*domain.DesignResult)}
}

func (h *stubHandoff) Put(_ context.Context, id string, result *domain.DesignResult, ttl time.Duration) error {
	if h.putErr != nil {
		return h.putErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTTL = ttl
	clone := *result
	h.items[id] = &clone
	return nil
}

func (h *stubHandoff) Get(_ context.Context, id string) (*domain.DesignResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	result, ok := h.items[id]
	if !ok {
		return nil, domain.ErrDesignNotFound
	}
	clone := *result
	return &clone, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type designFixture struct {
	ledger    *stubLedger
	generator *stubGenerator
	repo      *stubDesignRepo
	handoff   *stubHandoff
	service   *DesignService
}

func newDesignFixture() *designFixture {
	f := &designFixture{
		ledger:    newStubLedger(),
		generator: &stubGenerator{},
		repo:      newStubDesignRepo(),
		handoff:   newStubHandoff(),
	}
	estimator := NewEstimator(nil, zerolog.Nop())
	f.service = NewDesignService(f.ledger, f.generator, nil, estimator, f.repo, f.handoff, time.Second, time.Hour, zerolog.Nop())
	return f
}

func generateInput() ports.GenerateDesignInput {
	return ports.GenerateDesignInput{
		Principal: domain.Principal{ID: "user_1"},
		YardImage: "https://img/yard.jpg",
		StyleID:   "desert-modern",
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestDesignService_Generate_Success(t *testing.T) {
	f := newDesignFixture()
	f.ledger.balance = 4

	out, err := f.service.Generate(context.Background(), generateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.ShortID == "" || out.Ephemeral {
		t.Fatalf("expected a persisted short id, got %q ephemeral=%v", out.ShortID, out.Ephemeral)
	}
	if out.Balance != 4 {
		t.Fatalf("expected balance 4, got %d", out.Balance)
	}
	if len(out.Result.Images) != 2 || out.Result.PlanImage != "plan" {
		t.Fatalf("unexpected result payload: %+v", out.Result)
	}

	if got := f.ledger.completed["res_1"]; got != out.ShortID {
		t.Fatalf("reservation must be completed with the short id, got %q", got)
	}
	if len(f.ledger.refunded) != 0 {
		t.Fatalf("no refund expected on success")
	}
	if _, err := f.repo.FindByShortID(context.Background(), out.ShortID); err != nil {
		t.Fatalf("design not persisted: %v", err)
	}
}

func TestDesignService_Generate_InsufficientCredits(t *testing.T) {
	f := newDesignFixture()
	f.ledger.reserveErr = domain.ErrInsufficientCredits

	_, err := f.service.Generate(context.Background(), generateInput())
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if f.generator.calls != 0 {
		t.Fatalf("generator must never run without a reservation")
	}
	if len(f.ledger.refunded) != 0 {
		t.Fatalf("nothing to refund when reservation was rejected")
	}
}

func TestDesignService_Generate_FailureRefundsOnce(t *testing.T) {
	f := newDesignFixture()
	f.generator.fn = func(context.Context, ports.GenerateImagesRequest) (*ports.GeneratedImages, error) {
		return nil, errors.New("provider 500")
	}

	_, err := f.service.Generate(context.Background(), generateInput())
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if reason, ok := f.ledger.refunded["res_1"]; !ok || reason != "generating" {
		t.Fatalf("expected one refund with reason generating, got %v", f.ledger.refunded)
	}
	if len(f.ledger.completed) != 0 {
		t.Fatalf("failed flow must not complete the reservation")
	}
}

func TestDesignService_Generate_EmptyOutputIsFailure(t *testing.T) {
	f := newDesignFixture()
	f.generator.fn = func(context.Context, ports.GenerateImagesRequest) (*ports.GeneratedImages, error) {
		return &ports.GeneratedImages{}, nil
	}

	_, err := f.service.Generate(context.Background(), generateInput())
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if _, ok := f.ledger.refunded["res_1"]; !ok {
		t.Fatalf("empty output must refund")
	}
}

func TestDesignService_Generate_TimeoutRefunds(t *testing.T) {
	f := newDesignFixture()
	estimator := NewEstimator(nil, zerolog.Nop())
	f.service = NewDesignService(f.ledger, f.generator, nil, estimator, f.repo, f.handoff, 20*time.Millisecond, time.Hour, zerolog.Nop())
	f.generator.fn = func(ctx context.Context, _ ports.GenerateImagesRequest) (*ports.GeneratedImages, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := f.service.Generate(context.Background(), generateInput())
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed on timeout, got %v", err)
	}
	if _, ok := f.ledger.refunded["res_1"]; !ok {
		t.Fatalf("timed-out flow must refund")
	}
}

func TestDesignService_Generate_PersistenceFallsBackToHandoff(t *testing.T) {
	f := newDesignFixture()
	f.repo.saveErr = errors.New("mongo down")

	out, err := f.service.Generate(context.Background(), generateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !out.Ephemeral {
		t.Fatalf("expected an ephemeral result")
	}
	if !strings.HasPrefix(out.ShortID, "tmp-") {
		t.Fatalf("hand-off ids must carry the tmp- prefix, got %q", out.ShortID)
	}
	if _, err := f.handoff.Get(context.Background(), out.ShortID); err != nil {
		t.Fatalf("result missing from hand-off cache: %v", err)
	}
	if f.handoff.lastTTL != time.Hour {
		t.Fatalf("hand-off must use the configured ttl, got %v", f.handoff.lastTTL)
	}

	// The credit was spent: the reservation commits without a persisted id.
	if resultID, ok := f.ledger.completed["res_1"]; !ok || resultID != "" {
		t.Fatalf("expected commit with empty result id, got %v", f.ledger.completed)
	}
	if len(f.ledger.refunded) != 0 {
		t.Fatalf("persistence failure must not refund a delivered result")
	}
}

func TestDesignService_Generate_HandoffFailureYieldsNoID(t *testing.T) {
	f := newDesignFixture()
	f.repo.saveErr = errors.New("mongo down")
	f.handoff.putErr = errors.New("redis down")

	out, err := f.service.Generate(context.Background(), generateInput())
	if err != nil {
		t.Fatalf("the result itself is still delivered: %v", err)
	}
	if out.ShortID != "" {
		t.Fatalf("no id should be handed out when nothing can serve it, got %q", out.ShortID)
	}
	if len(out.Result.Images) == 0 {
		t.Fatalf("the generated images must still be returned")
	}
}

func TestDesignService_Generate_AnalyzerFailureDegrades(t *testing.T) {
	f := newDesignFixture()
	estimator := NewEstimator(nil, zerolog.Nop())
	f.service = NewDesignService(f.ledger, f.generator, &stubAnalyzer{err: errors.New("vision down")},
		estimator, f.repo, f.handoff, time.Second, time.Hour, zerolog.Nop())

	out, err := f.service.Generate(context.Background(), generateInput())
	if err != nil {
		t.Fatalf("analysis failure must not abort the flow: %v", err)
	}
	if out.Result.Analysis != "" {
		t.Fatalf("expected empty analysis, got %q", out.Result.Analysis)
	}
}

func TestDesignService_Generate_AnalysisSeedsPromptAndEstimate(t *testing.T) {
	f := newDesignFixture()
	estimator := NewEstimator(nil, zerolog.Nop())
	analyzer := &stubAnalyzer{analysis: &ports.YardAnalysis{
		Summary: "flat lawn with a concrete path",
		Items:   []ports.AnalysisItem{{Name: "olive tree", Category: "tree", Size: "24-inch box", Quantity: 2}},
	}}
	f.service = NewDesignService(f.ledger, f.generator, analyzer, estimator, f.repo, f.handoff, time.Second, time.Hour, zerolog.Nop())

	out, err := f.service.Generate(context.Background(), generateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(f.generator.lastReq.Prompt, "flat lawn with a concrete path") {
		t.Fatalf("analysis summary missing from prompt: %q", f.generator.lastReq.Prompt)
	}
	if len(out.Result.Estimate.Items) != 1 {
		t.Fatalf("expected 1 estimate line, got %d", len(out.Result.Estimate.Items))
	}
	line := out.Result.Estimate.Items[0]
	if line.TotalLow != 500 || line.TotalHigh != 1000 {
		t.Fatalf("unexpected totals for 2x 24-inch box tree: %v - %v", line.TotalLow, line.TotalHigh)
	}
}

func TestMergeStyleReferences_Order(t *testing.T) {
	merged := MergeStyleReferences([]string{"u1", "u2"}, []string{"g1"})
	want := []string{"u1", "u2", "g1"}
	if len(merged) != len(want) {
		t.Fatalf("expected %d refs, got %d", len(want), len(merged))
	}
	for i := range want {
		if merged[i] != want[i] {
			t.Fatalf("uploads must precede gallery picks: %v", merged)
		}
	}

	if got := MergeStyleReferences(nil, nil); len(got) != 0 {
		t.Fatalf("expected empty merge, got %v", got)
	}
}

func TestBuildPrompt_IncludesInputs(t *testing.T) {
	in := generateInput()
	in.Budget = "$5,000"
	in.SpaceSize = "small"
	prompt := buildPrompt(in, nil)

	for _, want := range []string{"desert-modern", "$5,000", "small"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q: %s", want, prompt)
		}
	}
}

func TestDesignService_Publish_OwnerOnly(t *testing.T) {
	f := newDesignFixture()
	f.repo.byShort["abc12345"] = &domain.SavedDesign{ShortID: "abc12345", Owner: "user_1"}

	err := f.service.Publish(context.Background(), "abc12345", true, domain.Principal{ID: "user_2"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := f.service.Publish(context.Background(), "abc12345", true, domain.Principal{ID: "user_1"}); err != nil {
		t.Fatalf("owner publish: %v", err)
	}
	if !f.repo.byShort["abc12345"].Public {
		t.Fatalf("design should be public")
	}
}

func TestDesignService_Publish_GalleryRoundTrip(t *testing.T) {
	f := newDesignFixture()

	out, err := f.service.Generate(context.Background(), generateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	gallery, err := f.service.ListGallery(context.Background(), 50)
	if err != nil {
		t.Fatalf("gallery: %v", err)
	}
	if len(gallery) != 0 {
		t.Fatalf("private design must not appear in the gallery: %+v", gallery)
	}

	owner := domain.Principal{ID: "user_1"}
	if err := f.service.Publish(context.Background(), out.ShortID, true, owner); err != nil {
		t.Fatalf("publish: %v", err)
	}

	gallery, err = f.service.ListGallery(context.Background(), 50)
	if err != nil {
		t.Fatalf("gallery after publish: %v", err)
	}
	if len(gallery) != 1 {
		t.Fatalf("published design missing from the gallery: %+v", gallery)
	}
	if gallery[0].ShortID != out.ShortID {
		t.Fatalf("short id must survive publishing: %q vs %q", gallery[0].ShortID, out.ShortID)
	}

	// Unpublishing removes it again, still under the same id.
	if err := f.service.Publish(context.Background(), out.ShortID, false, owner); err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	gallery, _ = f.service.ListGallery(context.Background(), 50)
	if len(gallery) != 0 {
		t.Fatalf("unpublished design must leave the gallery: %+v", gallery)
	}
	if _, err := f.repo.FindByShortID(context.Background(), out.ShortID); err != nil {
		t.Fatalf("design must remain resolvable by its short id: %v", err)
	}
}

func TestDesignService_Delete_AdminOverride(t *testing.T) {
	f := newDesignFixture()
	f.repo.byShort["abc12345"] = &domain.SavedDesign{ShortID: "abc12345", Owner: "user_1"}

	err := f.service.Delete(context.Background(), "abc12345", domain.Principal{ID: "user_2"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	admin := domain.Principal{ID: "admin_1", Role: domain.RoleAdmin}
	if err := f.service.Delete(context.Background(), "abc12345", admin); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}
