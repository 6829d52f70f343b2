package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tour_atlas/internal/adapters/observability"
	"tour_atlas/internal/domain"
	"tour_atlas/internal/geo"
	"tour_atlas/internal/reliability"
)

// Confidence assigned by the layer that produced a coordinate.
const (
	confidencePlaces       = 0.9
	confidenceAlternatives = 0.8
	confidenceGeocoding    = 0.6
	confidenceLLM          = 0.3
	confidenceDefault      = 0.1
)

// A resolved coordinate further than this from the destination's city center
// is implausible and loses confidence.
const (
	plausibleRadiusKm  = 100.0
	implausiblePenalty = 0.3
)

// Cascade fallback tags, recorded when a non-primary layer produced the
// result.
const (
	fallbackAlternativeNames = "alternative_names"
	fallbackGeocoding        = "geocoding"
	fallbackGemini           = "gemini_coordinates"
	fallbackCache            = "cache"
	fallbackDefault          = "default"
)

const landmarkCacheTTLSec = 6 * 60 * 60

// Cascade resolves one landmark candidate into coordinates by trying lookup
// layers in priority order. It never fails: confidence degrades instead.
type Cascade struct {
	places  domain.PlacesClient
	geocode domain.GeocodingClient
	llm     domain.CoordinateClient
	cache   domain.Cache
	health  *reliability.Controller
	retry   *reliability.Retrier
}

func NewCascade(
	places domain.PlacesClient,
	geocode domain.GeocodingClient,
	llm domain.CoordinateClient,
	cache domain.Cache,
	health *reliability.Controller,
	retry *reliability.Retrier,
) *Cascade {
	return &Cascade{places: places, geocode: geocode, llm: llm, cache: cache, health: health, retry: retry}
}

// layer is one entry of the cascade. Keeping the order as data keeps the
// fallback sequence visible in one place and testable with fakes.
type layer struct {
	name     string // metric label and fallback tag
	source   string // gating + health name
	external bool   // external layers go through retry and health recording
	run      func(ctx context.Context, cand domain.LandmarkCandidate, destination string) (domain.ResolvedLandmark, bool, error)
}

func (c *Cascade) layers() []layer {
	return []layer{
		{fallbackCache, domain.ServiceCache, false, c.fromCache},
		{string(domain.SourcePlaces), domain.ServicePlaces, true, c.fromPlacesPrimary},
		{fallbackAlternativeNames, domain.ServicePlaces, true, c.fromPlacesAlternatives},
		{fallbackGeocoding, domain.ServiceGeocoding, true, c.fromGeocoding},
		{fallbackGemini, domain.ServiceLanguageModel, true, c.fromLLM},
	}
}

// Refine resolves a single candidate. The returned fallback tags name every
// fallback layer that was actually attempted, whether or not it produced the
// result; layers skipped by gating or for lack of input are not recorded.
func (c *Cascade) Refine(ctx context.Context, cand domain.LandmarkCandidate, destination string, center *domain.Coords) (domain.ResolvedLandmark, []string) {
	var fallbacks []string
	for _, l := range c.layers() {
		if !c.health.Enabled(l.source) {
			continue
		}
		// No alternative names means the layer has nothing to try.
		if l.name == fallbackAlternativeNames && len(cand.AlternativeNames) == 0 {
			continue
		}
		if tag := c.fallbackTag(l); tag != "" {
			fallbacks = append(fallbacks, tag)
		}

		lm, found, err := c.runLayer(ctx, l, cand, destination)
		if err != nil {
			log.Debug().
				Str("landmark", cand.Name).
				Str("layer", l.name).
				Err(err).
				Msg("cascade layer failed, falling through")
			continue
		}
		if !found {
			continue
		}

		observability.ObserveCascade(l.name)
		lm = c.checkPlausibility(lm, center)
		c.store(ctx, destination, lm)
		return lm, fallbacks
	}

	// Terminal fallback: a placeholder keeps the tour whole, but it is a
	// silent data-quality loss and must be visible in the logs.
	log.Warn().
		Str("landmark", cand.Name).
		Str("destination", destination).
		Msg("all cascade layers exhausted, emitting placeholder coordinate")
	observability.ObserveCascade(fallbackDefault)
	fallbacks = append(fallbacks, fallbackDefault)
	return domain.ResolvedLandmark{
		ID:          uuid.NewString(),
		Name:        cand.Name,
		Description: cand.Description,
		Coords:      domain.Coords{},
		Source:      domain.SourceLanguageModel,
		Confidence:  confidenceDefault,
	}, fallbacks
}

// runLayer applies the retry engine, per-call timeout and health recording
// to an external layer. The cache layer runs bare.
func (c *Cascade) runLayer(ctx context.Context, l layer, cand domain.LandmarkCandidate, destination string) (domain.ResolvedLandmark, bool, error) {
	if !l.external {
		return l.run(ctx, cand, destination)
	}

	var lm domain.ResolvedLandmark
	var found bool
	_, err := c.retry.Do(ctx, l.source, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, c.health.Timeout(l.source))
		defer cancel()

		start := time.Now()
		var opErr error
		lm, found, opErr = l.run(cctx, cand, destination)
		elapsed := time.Since(start)

		c.health.RecordOutcome(l.source, opErr == nil, elapsed)
		outcome := "ok"
		switch {
		case opErr != nil:
			outcome = "error"
		case !found:
			outcome = "not_found"
		}
		observability.ObserveExternal(l.source, outcome, elapsed)
		return opErr
	})
	return lm, found, err
}

// fallbackTag names the layer in the tour's fallback list. The primary
// places layer is not a fallback, and a cache hit only counts as one when
// the level has already shut the places source off.
func (c *Cascade) fallbackTag(l layer) string {
	switch l.name {
	case string(domain.SourcePlaces):
		return ""
	case fallbackCache:
		if c.health.Enabled(domain.ServicePlaces) {
			return ""
		}
		return fallbackCache
	default:
		return l.name
	}
}

// ---- layers ----

func landmarkKey(destination, name string) string {
	return fmt.Sprintf("landmark:%s:%s", strings.ToLower(destination), strings.ToLower(name))
}

func (c *Cascade) fromCache(ctx context.Context, cand domain.LandmarkCandidate, destination string) (domain.ResolvedLandmark, bool, error) {
	if c.cache == nil {
		return domain.ResolvedLandmark{}, false, nil
	}
	var lm domain.ResolvedLandmark
	ok, err := c.cache.Get(ctx, landmarkKey(destination, cand.Name), &lm)
	if err != nil || !ok {
		return domain.ResolvedLandmark{}, false, err
	}
	return lm, true, nil
}

func (c *Cascade) store(ctx context.Context, destination string, lm domain.ResolvedLandmark) {
	if c.cache == nil || lm.Confidence <= confidenceDefault {
		return
	}
	_ = c.cache.Set(ctx, landmarkKey(destination, lm.Name), lm, landmarkCacheTTLSec)
}

func (c *Cascade) fromPlacesPrimary(ctx context.Context, cand domain.LandmarkCandidate, destination string) (domain.ResolvedLandmark, bool, error) {
	hits, err := c.places.Search(ctx, cand.Name+" "+destination)
	if err != nil {
		return domain.ResolvedLandmark{}, false, err
	}
	if len(hits) == 0 {
		return domain.ResolvedLandmark{}, false, nil
	}
	return placeLandmark(cand, hits[0], confidencePlaces), true, nil
}

func (c *Cascade) fromPlacesAlternatives(ctx context.Context, cand domain.LandmarkCandidate, destination string) (domain.ResolvedLandmark, bool, error) {
	for _, alt := range cand.AlternativeNames {
		hits, err := c.places.Search(ctx, alt+" "+destination)
		if err != nil {
			return domain.ResolvedLandmark{}, false, err
		}
		if len(hits) > 0 {
			return placeLandmark(cand, hits[0], confidenceAlternatives), true, nil
		}
	}
	return domain.ResolvedLandmark{}, false, nil
}

func (c *Cascade) fromGeocoding(ctx context.Context, cand domain.LandmarkCandidate, destination string) (domain.ResolvedLandmark, bool, error) {
	res, found, err := c.geocode.Geocode(ctx, cand.Name+", "+destination)
	if err != nil || !found {
		return domain.ResolvedLandmark{}, false, err
	}
	return domain.ResolvedLandmark{
		ID:          uuid.NewString(),
		Name:        cand.Name,
		Coords:      res.Coords,
		Description: cand.Description,
		Source:      domain.SourceGeocoding,
		Confidence:  confidenceGeocoding,
		Address:     res.Address,
	}, true, nil
}

func (c *Cascade) fromLLM(ctx context.Context, cand domain.LandmarkCandidate, destination string) (domain.ResolvedLandmark, bool, error) {
	coords, err := c.llm.Coordinates(ctx, cand.Name, destination)
	if err != nil {
		return domain.ResolvedLandmark{}, false, err
	}
	return domain.ResolvedLandmark{
		ID:          uuid.NewString(),
		Name:        cand.Name,
		Coords:      coords,
		Description: cand.Description,
		Source:      domain.SourceLanguageModel,
		Confidence:  confidenceLLM,
	}, true, nil
}

func placeLandmark(cand domain.LandmarkCandidate, p domain.Place, confidence float64) domain.ResolvedLandmark {
	return domain.ResolvedLandmark{
		ID:          uuid.NewString(),
		Name:        cand.Name,
		Coords:      p.Coords,
		Description: cand.Description,
		PlaceID:     p.PlaceID,
		Source:      domain.SourcePlaces,
		Confidence:  confidence,
		Rating:      p.Rating,
		PhotoRefs:   p.PhotoRefs,
		Types:       p.Types,
		Address:     p.Address,
	}
}

// checkPlausibility sanity-tests a result against the destination's city
// center. An implausible coordinate keeps its place in the tour but loses
// confidence; without a reference the check is skipped entirely.
func (c *Cascade) checkPlausibility(lm domain.ResolvedLandmark, center *domain.Coords) domain.ResolvedLandmark {
	if center == nil {
		return lm
	}
	dist := geo.DistanceKm(lm.Coords.Lat, lm.Coords.Lon, center.Lat, center.Lon)
	if dist <= plausibleRadiusKm {
		return lm
	}
	reduced := lm.Confidence - implausiblePenalty
	if reduced < confidenceDefault {
		reduced = confidenceDefault
	}
	log.Warn().
		Str("landmark", lm.Name).
		Float64("distance_km", dist).
		Float64("confidence", reduced).
		Msg("resolved coordinate implausibly far from city center")
	lm.Confidence = reduced
	return lm
}

// CityCenter resolves the destination's own coordinates once per tour, used
// only for plausibility scoring. Best effort: nil when geocoding is disabled
// or fails.
func (c *Cascade) CityCenter(ctx context.Context, destination string) *domain.Coords {
	if !c.health.Enabled(domain.ServiceGeocoding) {
		return nil
	}

	var coords domain.Coords
	var found bool
	_, err := c.retry.Do(ctx, domain.ServiceGeocoding, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, c.health.Timeout(domain.ServiceGeocoding))
		defer cancel()

		start := time.Now()
		res, ok, opErr := c.geocode.Geocode(cctx, destination)
		elapsed := time.Since(start)

		c.health.RecordOutcome(domain.ServiceGeocoding, opErr == nil, elapsed)
		outcome := "ok"
		switch {
		case opErr != nil:
			outcome = "error"
		case !ok:
			outcome = "not_found"
		}
		observability.ObserveExternal(domain.ServiceGeocoding, outcome, elapsed)

		coords, found = res.Coords, ok
		return opErr
	})
	if err != nil || !found {
		log.Info().Str("destination", destination).Msg("city center unavailable, plausibility checks skipped")
		return nil
	}
	return &coords
}
