package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		tolerance              float64
	}{
		{
			name: "identical points",
			lat1: 6.2476, lon1: -75.5658, lat2: 6.2476, lon2: -75.5658,
			want: 0, tolerance: 1e-9,
		},
		{
			name: "one degree of latitude at the equator",
			lat1: 0, lon1: 0, lat2: 1, lon2: 0,
			want: 111.19, tolerance: 0.05,
		},
		{
			name: "medellin center to rionegro airport",
			lat1: 6.2476, lon1: -75.5658, lat2: 6.1645, lon2: -75.4230,
			want: 18.2, tolerance: 0.5,
		},
		{
			name: "antipodal points",
			lat1: 0, lon1: 0, lat2: 0, lon2: 180,
			want: math.Pi * 6371.0, tolerance: 0.01,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	d1 := HaversineKm(6.2476, -75.5658, 7.2906, 80.6337)
	d2 := HaversineKm(7.2906, 80.6337, 6.2476, -75.5658)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestHaversineKm_NaNPropagates(t *testing.T) {
	assert.True(t, math.IsNaN(HaversineKm(math.NaN(), 0, 1, 1)))
}

func TestCityProfileAdmits(t *testing.T) {
	p := CityProfile{
		City:      "medellin",
		CenterLat: 6.2476,
		CenterLon: -75.5658,
		RadiusKm:  10,
	}

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"city center", 6.2476, -75.5658, true},
		{"inside radius", 6.2090, -75.5700, true},
		{"just beyond radius", 6.2476, -75.7500, false},
		{"far outside", 7.2906, 80.6337, false},
		{"nan latitude", math.NaN(), -75.5658, false},
		{"nan longitude", 6.2476, math.NaN(), false},
		{"latitude beyond envelope", 91, -75.5658, false},
		{"longitude beyond envelope", 6.2476, -181, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Admits(tt.lat, tt.lon))
		})
	}
}
