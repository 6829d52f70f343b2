package domain

import "context"

// SuggestionClient returns a destination's candidate landmarks. There is no
// fallback suggestion source: a failure here is fatal to the whole request.
type SuggestionClient interface {
	Suggest(ctx context.Context, destination string) ([]LandmarkCandidate, error)
}

// CoordinateClient is the language-model coordinate fallback: best-guess
// coordinates for a name within a destination.
type CoordinateClient interface {
	Coordinates(ctx context.Context, name, destination string) (Coords, error)
}

// PlacesClient performs a text-query place search. An empty slice means the
// query matched nothing; err is reserved for transport and upstream failures.
type PlacesClient interface {
	Search(ctx context.Context, query string) ([]Place, error)
}

// GeocodingClient converts a free-text address into coordinates.
// found=false means the address resolved to nothing.
type GeocodingClient interface {
	Geocode(ctx context.Context, address string) (GeocodeResult, bool, error)
}

// TourRepository is the persistence sink. SaveTour is invoked fire-and-forget
// by the orchestrator; read paths serve the query API.
type TourRepository interface {
	SaveTour(ctx context.Context, t Tour) error
	GetTour(ctx context.Context, id string) (Tour, error)
	LatestTour(ctx context.Context, destination string) (Tour, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
