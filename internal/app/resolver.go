package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tour_atlas/internal/adapters/observability"
	"tour_atlas/internal/domain"
	"tour_atlas/internal/reliability"
)

const persistTimeout = 10 * time.Second

// TourService orchestrates a full destination resolution: suggestions in,
// resolved landmarks out, persistence on the side.
type TourService struct {
	suggest domain.SuggestionClient
	cascade *Cascade
	repo    domain.TourRepository
	health  *reliability.Controller
	retry   *reliability.Retrier
}

func NewTourService(
	suggest domain.SuggestionClient,
	cascade *Cascade,
	repo domain.TourRepository,
	health *reliability.Controller,
	retry *reliability.Retrier,
) *TourService {
	return &TourService{suggest: suggest, cascade: cascade, repo: repo, health: health, retry: retry}
}

// ResolveTour resolves every suggested landmark for a destination.
// Candidates are processed sequentially: the external sources share per-key
// rate limits, and a burst of parallel lookups for one tour defeats them.
// Only a suggestion failure is terminal; every candidate otherwise resolves
// to something, however low its confidence.
func (s *TourService) ResolveTour(ctx context.Context, destination string) (domain.Tour, error) {
	start := time.Now()

	candidates, err := s.suggestions(ctx, destination)
	if err != nil {
		return domain.Tour{}, fmt.Errorf("%w: %s", domain.ErrNoSuggestions, destination)
	}

	center := s.cascade.CityCenter(ctx, destination)

	tour := domain.Tour{
		ID:          uuid.NewString(),
		Destination: destination,
		Landmarks:   make([]domain.ResolvedLandmark, 0, len(candidates)),
		CreatedAt:   time.Now().UTC(),
	}

	seen := make(map[string]bool)
	for _, cand := range candidates {
		if ctx.Err() != nil {
			return domain.Tour{}, ctx.Err()
		}
		lm, fallbacks := s.cascade.Refine(ctx, cand, destination, center)
		tour.Landmarks = append(tour.Landmarks, lm)
		tour.Quality.Bucket(lm.Confidence)
		for _, f := range fallbacks {
			if !seen[f] {
				seen[f] = true
				tour.FallbacksUsed = append(tour.FallbacksUsed, f)
			}
		}
	}

	elapsed := time.Since(start)
	tour.ProcessingMs = elapsed.Milliseconds()
	observability.ObserveResolve(elapsed)

	log.Info().
		Str("destination", destination).
		Int("landmarks", len(tour.Landmarks)).
		Int("high", tour.Quality.HighConfidence).
		Int("medium", tour.Quality.MediumConfidence).
		Int("low", tour.Quality.LowConfidence).
		Strs("fallbacks", tour.FallbacksUsed).
		Dur("elapsed", elapsed).
		Msg("tour resolved")

	s.persist(tour)
	return tour, nil
}

// suggestions fetches the candidate list under the language-model retry
// policy. The suggestion call is the pipeline's entry point and is not
// gated by the degradation level: without it there is nothing to degrade.
func (s *TourService) suggestions(ctx context.Context, destination string) ([]domain.LandmarkCandidate, error) {
	var candidates []domain.LandmarkCandidate
	_, err := s.retry.Do(ctx, domain.ServiceLanguageModel, func(ctx context.Context) error {
		start := time.Now()
		out, opErr := s.suggest.Suggest(ctx, destination)
		elapsed := time.Since(start)

		s.health.RecordOutcome(domain.ServiceLanguageModel, opErr == nil, elapsed)
		outcome := "ok"
		if opErr != nil {
			outcome = "error"
		}
		observability.ObserveExternal(domain.ServiceLanguageModel, outcome, elapsed)

		candidates = out
		return opErr
	})
	if err != nil {
		log.Error().Str("destination", destination).Err(err).Msg("suggestion service failed")
		return nil, err
	}
	return candidates, nil
}

// persist hands the tour to storage without blocking the caller. A sink
// failure is logged and dropped; the caller already has the result.
func (s *TourService) persist(tour domain.Tour) {
	if s.repo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.repo.SaveTour(ctx, tour); err != nil {
			log.Error().Str("tour_id", tour.ID).Err(err).Msg("tour persistence failed")
		}
	}()
}
