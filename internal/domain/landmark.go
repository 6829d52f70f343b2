package domain

// CoordinateSource identifies which lookup layer produced a coordinate.
type CoordinateSource string

const (
	SourcePlaces        CoordinateSource = "places"
	SourceGeocoding     CoordinateSource = "geocoding"
	SourceLanguageModel CoordinateSource = "language_model"
)

// Service names tracked by the degradation controller. The cache is a
// pseudo-source: it never makes an outbound call but can be the only
// layer left enabled under heavy degradation.
const (
	ServicePlaces        = "places"
	ServiceGeocoding     = "geocoding"
	ServiceLanguageModel = "language_model"
	ServiceCache         = "cache"
)

type Coords struct{ Lat, Lon float64 }

// LandmarkCandidate is one unresolved suggestion for a destination.
// Produced by the suggestion service, immutable afterwards.
type LandmarkCandidate struct {
	Name             string
	AlternativeNames []string
	Description      string
	Category         string
}

// ResolvedLandmark is the cascade's output for one candidate. Created once,
// never mutated after creation.
type ResolvedLandmark struct {
	ID          string
	Name        string
	Coords      Coords
	Description string
	PlaceID     string // external place identifier, empty unless resolved via places
	Source      CoordinateSource
	Confidence  float64
	Rating      *float64
	PhotoRefs   []string
	Types       []string
	Address     string
}

// Place is a single hit from the places search service.
type Place struct {
	PlaceID   string
	Name      string
	Coords    Coords
	Address   string
	Rating    *float64
	Types     []string
	PhotoRefs []string
}

// GeocodeResult is a geocoding hit for a free-text address.
type GeocodeResult struct {
	Coords  Coords
	Address string
}
