package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tommypurcell/autoscape-api/internal/api/metrics"
	"github.com/tommypurcell/autoscape-api/internal/core/domain"
	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

type videoService struct {
	repo      ports.DesignRepository
	generator ports.VideoGenerator
	log       zerolog.Logger
}

// NewVideoService returns a VideoService that renders before/after
// transformation videos for saved designs.
func NewVideoService(repo ports.DesignRepository, generator ports.VideoGenerator, log zerolog.Logger) ports.VideoService {
	return &videoService{repo: repo, generator: generator, log: log}
}

// Process renders the transformation video for one design and attaches it.
// Only the design's owner and administrators may request a video. A design
// that already carries a video is skipped, which makes re-enqueued jobs
// harmless.
func (s *videoService) Process(ctx context.Context, job ports.VideoJob) error {
	design, err := s.repo.FindByShortID(ctx, job.ShortID)
	if err != nil {
		return fmt.Errorf("process video job: %w", err)
	}
	if design.Owner != job.RequestedBy && job.Role != domain.RoleAdmin {
		metrics.VideoJobsTotal.WithLabelValues("forbidden").Inc()
		return fmt.Errorf("process video job for %s: %w", job.ShortID, domain.ErrForbidden)
	}
	if design.Result.VideoURL != "" {
		s.log.Debug().Str("short_id", job.ShortID).Msg("design already has a video, skipping")
		return nil
	}
	if design.Result.YardImage == "" || len(design.Result.Images) == 0 {
		metrics.VideoJobsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("process video job: design %s is missing the before or after frame", job.ShortID)
	}

	videoURL, err := s.generator.Generate(ctx, design.Result.YardImage, design.Result.Images[0])
	if err != nil {
		metrics.VideoJobsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("process video job: %w", err)
	}

	if err := s.repo.SetVideoURL(ctx, job.ShortID, videoURL); err != nil {
		metrics.VideoJobsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("process video job: attach video: %w", err)
	}

	metrics.VideoJobsTotal.WithLabelValues("completed").Inc()
	s.log.Info().
		Str("short_id", job.ShortID).
		Str("requested_by", job.RequestedBy).
		Msg("transformation video attached")
	return nil
}
