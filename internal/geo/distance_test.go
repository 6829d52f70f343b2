package geo

import (
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 48.8584, 2.2945, 48.8584, 2.2945, 0, 0.001},
		{"paris to london", 48.8566, 2.3522, 51.5074, -0.1278, 344, 5},
		{"equator degree of longitude", 0, 0, 0, 1, 111.19, 0.5},
		{"origin to 10,10", 0, 0, 10, 10, 1568, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceKm(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			if math.Abs(got-tc.want) > tc.tolerance {
				t.Fatalf("DistanceKm = %f; want %f ± %f", got, tc.want, tc.tolerance)
			}
		})
	}
}
