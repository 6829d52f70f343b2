package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tour_atlas/internal/app"
	"tour_atlas/internal/domain"
	"tour_atlas/internal/reliability"
)

type fakeSuggest struct {
	calls      int
	candidates []domain.LandmarkCandidate
	err        error
}

func (f *fakeSuggest) Suggest(ctx context.Context, destination string) ([]domain.LandmarkCandidate, error) {
	f.calls++
	return f.candidates, f.err
}

type fakeRepo struct {
	saved chan domain.Tour
}

func newFakeRepo() *fakeRepo { return &fakeRepo{saved: make(chan domain.Tour, 1)} }

func (f *fakeRepo) SaveTour(ctx context.Context, t domain.Tour) error {
	f.saved <- t
	return nil
}

func (f *fakeRepo) GetTour(ctx context.Context, id string) (domain.Tour, error) {
	return domain.Tour{}, domain.ErrNotFound
}

func (f *fakeRepo) LatestTour(ctx context.Context, destination string) (domain.Tour, error) {
	return domain.Tour{}, domain.ErrNotFound
}

func TestResolveTour_MixedQualityTour(t *testing.T) {
	f := newCascadeFixture()
	f.places.byQuery = map[string][]domain.Place{
		"Eiffel Tower Paris": {eiffelPlace()},
	}
	f.llm.coords = domain.Coords{Lat: 48.86, Lon: 2.35}

	sug := &fakeSuggest{candidates: []domain.LandmarkCandidate{
		{Name: "Eiffel Tower"},
		{Name: "Hidden Courtyard"},
	}}
	repo := newFakeRepo()
	svc := app.NewTourService(sug, f.cascade, repo, f.health, reliability.NewRetrier())

	tour, err := svc.ResolveTour(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tour.ID == "" || tour.Destination != "Paris" {
		t.Fatalf("tour = %+v", tour)
	}
	if len(tour.Landmarks) != 2 {
		t.Fatalf("landmarks = %d; want 2", len(tour.Landmarks))
	}
	if tour.Quality.HighConfidence != 1 || tour.Quality.MediumConfidence != 0 || tour.Quality.LowConfidence != 1 {
		t.Fatalf("quality = %+v; want 1 high, 1 low", tour.Quality)
	}
	// First landmark hit the primary source; the second walked the cascade.
	want := []string{"geocoding", "gemini_coordinates"}
	if strings.Join(tour.FallbacksUsed, ",") != strings.Join(want, ",") {
		t.Fatalf("fallbacks = %v; want %v", tour.FallbacksUsed, want)
	}
	if tour.ProcessingMs < 0 {
		t.Fatalf("processingMs = %d", tour.ProcessingMs)
	}
	if tour.CreatedAt.IsZero() {
		t.Fatal("createdAt not set")
	}

	// Persistence runs off the request path but must still happen.
	select {
	case saved := <-repo.saved:
		if saved.ID != tour.ID {
			t.Fatalf("persisted tour %s; want %s", saved.ID, tour.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tour was never persisted")
	}
}

func TestResolveTour_FallbacksDeduplicated(t *testing.T) {
	f := newCascadeFixture()
	f.llm.coords = domain.Coords{Lat: 1, Lon: 1}

	sug := &fakeSuggest{candidates: []domain.LandmarkCandidate{
		{Name: "A"}, {Name: "B"}, {Name: "C"},
	}}
	repo := newFakeRepo()
	svc := app.NewTourService(sug, f.cascade, repo, f.health, reliability.NewRetrier())

	tour, err := svc.ResolveTour(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Every candidate used the same fallbacks; the tour records each once.
	want := []string{"geocoding", "gemini_coordinates"}
	if strings.Join(tour.FallbacksUsed, ",") != strings.Join(want, ",") {
		t.Fatalf("fallbacks = %v; want %v", tour.FallbacksUsed, want)
	}
	<-repo.saved
}

func TestResolveTour_SuggestionFailureIsFatal(t *testing.T) {
	f := newCascadeFixture()
	sug := &fakeSuggest{err: errors.New("gemini: unauthorized (401)")}
	repo := newFakeRepo()
	svc := app.NewTourService(sug, f.cascade, repo, f.health, reliability.NewRetrier())

	_, err := svc.ResolveTour(context.Background(), "Paris")
	if !errors.Is(err, domain.ErrNoSuggestions) {
		t.Fatalf("err = %v; want ErrNoSuggestions", err)
	}
	// Auth failures are terminal, not retried.
	if sug.calls != 1 {
		t.Fatalf("suggest called %d times; want 1", sug.calls)
	}
	select {
	case <-repo.saved:
		t.Fatal("nothing should be persisted on a fatal failure")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResolveTour_NilRepoSkipsPersistence(t *testing.T) {
	f := newCascadeFixture()
	f.places.results = []domain.Place{eiffelPlace()}
	sug := &fakeSuggest{candidates: []domain.LandmarkCandidate{{Name: "Eiffel Tower"}}}
	svc := app.NewTourService(sug, f.cascade, nil, f.health, reliability.NewRetrier())

	if _, err := svc.ResolveTour(context.Background(), "Paris"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}

func TestResolveTour_ContextCancelled(t *testing.T) {
	f := newCascadeFixture()
	f.places.results = []domain.Place{eiffelPlace()}
	sug := &fakeSuggest{candidates: []domain.LandmarkCandidate{{Name: "A"}, {Name: "B"}}}
	svc := app.NewTourService(sug, f.cascade, newFakeRepo(), f.health, reliability.NewRetrier())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.ResolveTour(ctx, "Paris"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
}
