package domain

import "math"

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometers between two
// WGS-84 coordinate pairs. Returns NaN if any input is NaN.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// Admits reports whether a coordinate lies within the profile's admissible
// radius of the city center. Invalid coordinates (NaN or outside the WGS-84
// envelope) are not admitted; they never raise.
func (p CityProfile) Admits(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return HaversineKm(lat, lon, p.CenterLat, p.CenterLon) <= p.RadiusKm
}
