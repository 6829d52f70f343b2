package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"tour_atlas/internal/app"
	"tour_atlas/internal/domain"
	"tour_atlas/internal/reliability"
)

type Handlers struct {
	Resolver *app.TourService
	Q        *app.TourQueryService
	Health   *reliability.Controller
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/tours/resolve", h.resolveTour)
	s.mux.Get("/v1/tours/latest", h.latestTour)
	s.mux.Get("/v1/tours/{id}", h.getTour)
	s.mux.Get("/v1/system/degradation", h.degradationStatus)
	s.mux.Put("/v1/system/degradation", h.forceDegradation)
	s.mux.Delete("/v1/system/degradation", h.releaseDegradation)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// ---- tours ----

type resolveRequest struct {
	Destination string `json:"destination"`
}

func (h *Handlers) resolveTour(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Destination) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "destination is required")
		return
	}

	tour, err := h.Resolver.ResolveTour(r.Context(), strings.TrimSpace(req.Destination))
	if err != nil {
		if errors.Is(err, domain.ErrNoSuggestions) {
			writeProblem(w, http.StatusBadGateway, "Suggestions unavailable",
				"we could not generate landmark suggestions for this destination, please try again later")
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Resolution failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tour)
}

func (h *Handlers) getTour(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tour, err := h.Q.GetTour(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "tour not found")
		return
	}
	writeCached(w, r, tour)
}

func (h *Handlers) latestTour(w http.ResponseWriter, r *http.Request) {
	dest := strings.TrimSpace(r.URL.Query().Get("destination"))
	if dest == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "destination query parameter is required")
		return
	}
	tour, err := h.Q.LatestTour(r.Context(), dest)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "no tour for destination")
		return
	}
	writeCached(w, r, tour)
}

func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// ---- degradation admin ----

type degradationStatus struct {
	Level     int                                  `json:"level"`
	Name      string                               `json:"name"`
	Sources   []string                             `json:"enabled_sources"`
	TimeoutMs int64                                `json:"timeout_ms"`
	Forced    bool                                 `json:"forced"`
	Services  map[string]reliability.ServiceHealth `json:"services"`
}

func (h *Handlers) degradationStatus(w http.ResponseWriter, r *http.Request) {
	policy := h.Health.CurrentPolicy()
	sources := make([]string, 0, len(policy.Enabled))
	for name := range policy.Enabled {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	writeJSON(w, http.StatusOK, degradationStatus{
		Level:     policy.Level,
		Name:      policy.Name,
		Sources:   sources,
		TimeoutMs: policy.Timeout.Milliseconds(),
		Forced:    h.Health.Forced(),
		Services:  h.Health.Snapshot(),
	})
}

type forceRequest struct {
	Level int `json:"level"`
}

func (h *Handlers) forceDegradation(w http.ResponseWriter, r *http.Request) {
	var req forceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "level is required")
		return
	}
	if err := h.Health.ForceLevel(req.Level); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid level", err.Error())
		return
	}
	log.Warn().Int("level", req.Level).Str("remote", remoteIP(r)).Msg("degradation level forced")
	h.degradationStatus(w, r)
}

func (h *Handlers) releaseDegradation(w http.ResponseWriter, r *http.Request) {
	h.Health.Release()
	log.Info().Str("remote", remoteIP(r)).Msg("degradation override released")
	h.degradationStatus(w, r)
}
