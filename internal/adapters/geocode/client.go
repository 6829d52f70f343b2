package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"tour_atlas/internal/domain"
)

// Client resolves free-text addresses against a Nominatim-compatible
// geocoding endpoint. One request per Geocode call; retries happen upstream.
type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

func New(base string, rps int) *Client {
	if rps <= 0 {
		rps = 1 // public Nominatim allows one request per second
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 15 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// nominatim returns lat/lon as strings.
type geocodeHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c *Client) Geocode(ctx context.Context, address string) (domain.GeocodeResult, bool, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return domain.GeocodeResult{}, false, err
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("accept-language", "en")
	u := fmt.Sprintf("%s/search?%s", c.base, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.GeocodeResult{}, false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tour-atlas/1.0")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.GeocodeResult{}, false, ctx.Err()
		}
		return domain.GeocodeResult{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return domain.GeocodeResult{}, false, fmt.Errorf("geocode: rate limit exceeded (429)")
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.GeocodeResult{}, false, fmt.Errorf("geocode: unauthorized (%d)", resp.StatusCode)
	default:
		return domain.GeocodeResult{}, false, fmt.Errorf("geocode: service unavailable (%d)", resp.StatusCode)
	}

	var hits []geocodeHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("geocode: malformed response: %w", err)
	}
	if len(hits) == 0 {
		return domain.GeocodeResult{}, false, nil
	}

	lat, laterr := strconv.ParseFloat(hits[0].Lat, 64)
	lon, lonerr := strconv.ParseFloat(hits[0].Lon, 64)
	if laterr != nil || lonerr != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("geocode: malformed coordinates %q,%q", hits[0].Lat, hits[0].Lon)
	}
	return domain.GeocodeResult{
		Coords:  domain.Coords{Lat: lat, Lon: lon},
		Address: hits[0].DisplayName,
	}, true, nil
}
