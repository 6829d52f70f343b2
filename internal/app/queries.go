package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tour_atlas/internal/domain"
)

// TourQueryService serves persisted tours with a cache-aside read path.
type TourQueryService struct {
	repo     domain.TourRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewTourQueryService(r domain.TourRepository, c domain.Cache, ttl time.Duration) *TourQueryService {
	return &TourQueryService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *TourQueryService) GetTour(ctx context.Context, id string) (domain.Tour, error) {
	key := "tour:" + id
	var t domain.Tour
	if ok, _ := s.cache.Get(ctx, key, &t); ok {
		return t, nil
	}
	t, err := s.repo.GetTour(ctx, id)
	if err != nil {
		return domain.Tour{}, err
	}
	_ = s.cache.Set(ctx, key, t, int(s.cacheTTL.Seconds()))
	return t, nil
}

func (s *TourQueryService) LatestTour(ctx context.Context, destination string) (domain.Tour, error) {
	key := fmt.Sprintf("tour:latest:%s", strings.ToLower(destination))
	var t domain.Tour
	if ok, _ := s.cache.Get(ctx, key, &t); ok {
		return t, nil
	}
	t, err := s.repo.LatestTour(ctx, destination)
	if err != nil {
		return domain.Tour{}, err
	}
	_ = s.cache.Set(ctx, key, t, int(s.cacheTTL.Seconds()))
	return t, nil
}
