package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tour_atlas/internal/domain"
)

// Client covers both language-model roles: landmark suggestions for a
// destination and the last-resort coordinate guess for a single name.
type Client struct {
	base  string
	key   string
	model string
	hc    *http.Client
	rl    *rate.Limiter
}

func New(base, key, model string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		base:  base,
		key:   key,
		model: model,
		hc:    &http.Client{Timeout: 30 * time.Second},
		rl:    rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- wire shapes ----

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// suggestionPayload is the constrained JSON we ask the model to emit.
type suggestionPayload struct {
	Landmarks []struct {
		Name             string   `json:"name"`
		AlternativeNames []string `json:"alternative_names"`
		Description      string   `json:"description"`
		Category         string   `json:"category"`
	} `json:"landmarks"`
	GuideSystemPrompt string `json:"guide_system_prompt"`
}

const suggestPrompt = `You are a travel curator. For the destination %q list its most
notable landmarks as JSON with this exact shape and nothing else:
{"landmarks":[{"name":"","alternative_names":[],"description":"","category":""}],"guide_system_prompt":""}`

const coordinatePrompt = `Reply with only a JSON array [longitude, latitude] giving your
best-guess coordinates for %q in %q. No prose, no code fences.`

// Suggest asks the model for a destination's candidate landmarks. Malformed
// model output is an error: there is no fallback suggestion source.
func (c *Client) Suggest(ctx context.Context, destination string) ([]domain.LandmarkCandidate, error) {
	text, err := c.generate(ctx, fmt.Sprintf(suggestPrompt, destination))
	if err != nil {
		return nil, err
	}

	var payload suggestionPayload
	if err := json.Unmarshal([]byte(stripFences(text)), &payload); err != nil {
		return nil, fmt.Errorf("gemini: malformed suggestion payload: %w", err)
	}
	if len(payload.Landmarks) == 0 {
		return nil, fmt.Errorf("gemini: malformed suggestion payload: empty landmark list")
	}

	out := make([]domain.LandmarkCandidate, 0, len(payload.Landmarks))
	for _, l := range payload.Landmarks {
		if strings.TrimSpace(l.Name) == "" {
			continue
		}
		out = append(out, domain.LandmarkCandidate{
			Name:             l.Name,
			AlternativeNames: l.AlternativeNames,
			Description:      l.Description,
			Category:         l.Category,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("gemini: malformed suggestion payload: no named landmarks")
	}
	return out, nil
}

// Coordinates asks for a bare [lon, lat] pair. A parse failure is a
// data-quality error for this layer only; the caller falls through.
func (c *Client) Coordinates(ctx context.Context, name, destination string) (domain.Coords, error) {
	text, err := c.generate(ctx, fmt.Sprintf(coordinatePrompt, name, destination))
	if err != nil {
		return domain.Coords{}, err
	}
	return ParseCoordinates(text)
}

// ParseCoordinates extracts a [lon, lat] pair from a constrained free-text
// model response.
func ParseCoordinates(text string) (domain.Coords, error) {
	s := stripFences(text)
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start == -1 || end <= start {
		return domain.Coords{}, fmt.Errorf("gemini: malformed coordinate response %q", truncate(text))
	}

	var pair []float64
	if err := json.Unmarshal([]byte(s[start:end+1]), &pair); err != nil || len(pair) != 2 {
		return domain.Coords{}, fmt.Errorf("gemini: malformed coordinate response %q", truncate(text))
	}
	lon, lat := pair[0], pair[1]
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return domain.Coords{}, fmt.Errorf("gemini: malformed coordinate response: out of range [%f,%f]", lon, lat)
	}
	return domain.Coords{Lat: lat, Lon: lon}, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	body, _ := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.base, c.model, c.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tour-atlas/1.0")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", fmt.Errorf("gemini: unauthorized (%d)", resp.StatusCode)
	case http.StatusTooManyRequests:
		return "", fmt.Errorf("gemini: rate limit exceeded (429)")
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gemini: service unavailable (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("gemini: malformed response envelope: %w", err)
	}
	if gr.Error != nil {
		return "", fmt.Errorf("gemini: %s: %s", gr.Error.Status, gr.Error.Message)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: malformed response: no candidates")
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}

// stripFences removes a surrounding markdown code fence the model sometimes
// adds despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
