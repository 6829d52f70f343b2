package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeocode_ParsesFirstHit(t *testing.T) {
	var gotQ string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"lat": "48.8588897", "lon": "2.3200410", "display_name": "Paris, Ile-de-France, France"},
			{"lat": "33.6617962", "lon": "-95.5555130", "display_name": "Paris, Texas"}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, 100)
	res, found, err := c.Geocode(context.Background(), "Paris")
	if err != nil || !found {
		t.Fatalf("geocode: found=%v err=%v", found, err)
	}
	if gotQ != "Paris" {
		t.Fatalf("query = %q", gotQ)
	}
	if res.Coords.Lat != 48.8588897 || res.Coords.Lon != 2.3200410 {
		t.Fatalf("coords = %+v", res.Coords)
	}
	if !strings.Contains(res.Address, "Ile-de-France") {
		t.Fatalf("address = %q", res.Address)
	}
}

func TestGeocode_EmptyResultIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, 100)
	_, found, err := c.Geocode(context.Background(), "xyzzy nowhere")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if found {
		t.Fatal("expected found=false for empty result set")
	}
}

func TestGeocode_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, 100)
	_, _, err := c.Geocode(context.Background(), "Paris")
	if err == nil || !strings.Contains(err.Error(), "rate limit exceeded (429)") {
		t.Fatalf("err = %v; want 429 rate limit", err)
	}
}

func TestGeocode_MalformedCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": "not-a-number", "lon": "2.32", "display_name": "x"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, 100)
	_, _, err := c.Geocode(context.Background(), "Paris")
	if err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Fatalf("err = %v; want malformed coordinates", err)
	}
}
