package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tour_atlas/internal/domain"
)

// maxPhotoRefs caps how many photo references we keep per place; map pins
// only ever show a handful.
const maxPhotoRefs = 3

// Client talks to the text-query places search service. Retries are the
// caller's concern (the retry engine wraps every cascade call); the client
// makes exactly one request per Search.
type Client struct {
	base string
	key  string
	hc   *http.Client
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("places API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: base,
		key:  key,
		hc:   &http.Client{Timeout: 20 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// searchResponse mirrors the service's text-search payload. A non-OK status
// other than ZERO_RESULTS is surfaced as an error carrying the status text,
// which the error classifier pattern-matches.
type searchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID          string `json:"place_id"`
		Name             string `json:"name"`
		FormattedAddress string `json:"formatted_address"`
		Location         struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		Rating    *float64 `json:"rating,omitempty"`
		Types     []string `json:"types,omitempty"`
		PhotoRefs []string `json:"photo_refs,omitempty"`
	} `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string) ([]domain.Place, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("key", c.key)
	u := fmt.Sprintf("%s/search?%s", c.base, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tour-atlas/1.0")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, err
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("places: malformed response: %w", err)
	}

	switch sr.Status {
	case "OK", "":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("places: status %s", sr.Status)
	}

	out := make([]domain.Place, 0, len(sr.Results))
	for _, r := range sr.Results {
		photos := r.PhotoRefs
		if len(photos) > maxPhotoRefs {
			photos = photos[:maxPhotoRefs]
		}
		out = append(out, domain.Place{
			PlaceID:   r.PlaceID,
			Name:      r.Name,
			Coords:    domain.Coords{Lat: r.Location.Lat, Lon: r.Location.Lng},
			Address:   r.FormattedAddress,
			Rating:    r.Rating,
			Types:     r.Types,
			PhotoRefs: photos,
		})
	}
	return out, nil
}

// statusError maps HTTP status codes onto error text the classifier
// understands. 404 means the endpoint, not the place, is missing.
func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("places: unauthorized (%d)", resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("places: rate limit exceeded (429)")
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("places: service unavailable (%d)", resp.StatusCode)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("places: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
}
