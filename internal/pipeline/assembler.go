package pipeline

import (
	"math"
	"sort"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

// Assemble concatenates per-city fused tables into the combined dataset and
// enforces the terminal invariants: no missing value in any required field,
// unique (city, station, timestamp) key, sorted output. Violations are
// collected and returned together in a CompletenessError so the operator
// sees every offending row after one run, and the failure halts the
// pipeline: "zero missing values, validated" is the dataset's contract.
func Assemble(perCity ...[]domain.FusedRecord) ([]domain.FusedRecord, error) {
	var combined []domain.FusedRecord
	for _, recs := range perCity {
		combined = append(combined, recs...)
	}

	sort.SliceStable(combined, func(i, j int) bool {
		a, b := combined[i], combined[j]
		if a.City != b.City {
			return a.City < b.City
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.StationID < b.StationID
	})

	var violations []domain.Violation
	seen := make(map[string]struct{}, len(combined))
	for _, r := range combined {
		violations = append(violations, missingFields(r)...)
		key := r.Key()
		if _, dup := seen[key]; dup {
			violations = append(violations, domain.Violation{
				City: r.City, StationID: r.StationID, Timestamp: r.Timestamp,
				Field: "key", Reason: "duplicate (city, station, timestamp)",
			})
		}
		seen[key] = struct{}{}
	}

	if len(violations) > 0 {
		return nil, &domain.CompletenessError{Violations: violations}
	}
	return combined, nil
}

func missingFields(r domain.FusedRecord) []domain.Violation {
	var out []domain.Violation
	add := func(field, reason string) {
		out = append(out, domain.Violation{
			City: r.City, StationID: r.StationID, Timestamp: r.Timestamp,
			Field: field, Reason: reason,
		})
	}

	if r.Timestamp.IsZero() {
		add("timestamp_utc", "zero timestamp")
	}
	if r.City == "" {
		add("city_id", "empty")
	}
	if r.StationID == "" {
		add("station_or_grid_id", "empty")
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"latitude", r.Lat},
		{"longitude", r.Lon},
		{"pollutant_value", r.PM25},
		{"wind_speed", r.WindSpeed},
		{"wind_direction", r.WindDirection},
		{"temperature", r.TemperatureC},
		{"relative_humidity", r.RelativeHumidity},
		{"boundary_layer_height", r.BoundaryLayerHeight},
		{"surface_pressure", r.SurfacePressureHPa},
	} {
		if math.IsNaN(f.value) {
			add(f.name, "missing value")
		}
	}
	return out
}
