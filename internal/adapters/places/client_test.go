package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New("http://example", "", 5); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestSearch_ParsesResults(t *testing.T) {
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"place_id": "pl_1",
				"name": "Eiffel Tower",
				"formatted_address": "Champ de Mars, Paris",
				"location": {"lat": 48.8584, "lng": 2.2945},
				"rating": 4.7,
				"types": ["tourist_attraction", "point_of_interest"],
				"photo_refs": ["a", "b", "c", "d", "e"]
			}]
		}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "k", 100)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	hits, err := c.Search(context.Background(), "Eiffel Tower Paris")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if gotQuery != "Eiffel Tower Paris" || gotKey != "k" {
		t.Fatalf("request query=%q key=%q", gotQuery, gotKey)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d; want 1", len(hits))
	}
	p := hits[0]
	if p.PlaceID != "pl_1" || p.Coords.Lat != 48.8584 || p.Coords.Lon != 2.2945 {
		t.Fatalf("place = %+v", p)
	}
	if p.Rating == nil || *p.Rating != 4.7 {
		t.Fatalf("rating = %v", p.Rating)
	}
	if len(p.PhotoRefs) != maxPhotoRefs {
		t.Fatalf("photoRefs = %d; want capped at %d", len(p.PhotoRefs), maxPhotoRefs)
	}
}

func TestSearch_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL, "k", 100)
	hits, err := c.Search(context.Background(), "nothing here")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits != nil {
		t.Fatalf("hits = %v; want nil for no match", hits)
	}
}

func TestSearch_StatusErrors(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{http.StatusUnauthorized, "unauthorized"},
		{http.StatusForbidden, "unauthorized"},
		{http.StatusTooManyRequests, "rate limit exceeded (429)"},
		{http.StatusServiceUnavailable, "service unavailable"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
		}))
		c, _ := New(srv.URL, "k", 100)
		_, err := c.Search(context.Background(), "x")
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.code)
		}
		if got := err.Error(); !strings.Contains(got, tc.want) {
			t.Fatalf("status %d: error %q does not mention %q", tc.code, got, tc.want)
		}
	}
}

func TestSearch_APIStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "OVER_QUERY_LIMIT"}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL, "k", 100)
	_, err := c.Search(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "OVER_QUERY_LIMIT") {
		t.Fatalf("err = %v; want OVER_QUERY_LIMIT surfaced", err)
	}
}
