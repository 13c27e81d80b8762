package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Point
		wantKm float64
		delta  float64
	}{
		{name: "same point", a: Point{40.7128, -74.0060}, b: Point{40.7128, -74.0060}, wantKm: 0, delta: 1e-9},
		{name: "one degree of latitude", a: Point{0, 0}, b: Point{1, 0}, wantKm: 111.195, delta: 0.01},
		{name: "new york to los angeles", a: Point{40.7128, -74.0060}, b: Point{34.0522, -118.2437}, wantKm: 3935.7, delta: 5},
		{name: "paris to london", a: Point{48.8566, 2.3522}, b: Point{51.5074, -0.1278}, wantKm: 343.5, delta: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantKm, tt.a.Distance(tt.b), tt.delta)
			assert.InDelta(t, tt.wantKm, HaversineKm(tt.b.Lat, tt.b.Lon, tt.a.Lat, tt.a.Lon), tt.delta)
		})
	}
}

func TestPointValid(t *testing.T) {
	assert.True(t, Point{Lat: 90, Lon: -180}.Valid())
	assert.False(t, Point{Lat: 91, Lon: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lon: 180.5}.Valid())
}
