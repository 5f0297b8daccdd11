package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

func fusedAt(city, station string, hour int) domain.FusedRecord {
	return domain.FusedRecord{
		Timestamp:           testWindowStart.Add(time.Duration(hour) * time.Hour),
		City:                city,
		StationID:           station,
		StationName:         station,
		Lat:                 6.2476,
		Lon:                 -75.5658,
		PM25:                25,
		NObs:                1,
		UWind:               3,
		VWind:               4,
		WindSpeed:           5,
		WindDirection:       53.13,
		TemperatureC:        22,
		RelativeHumidity:    73,
		BoundaryLayerHeight: 800,
		SurfacePressureHPa:  845,
	}
}

func TestAssemble(t *testing.T) {
	medellin := []domain.FusedRecord{
		fusedAt("medellin", "st-2", 1),
		fusedAt("medellin", "st-1", 1),
		fusedAt("medellin", "st-1", 0),
	}
	kandy := []domain.FusedRecord{
		fusedAt("kandy", "reanalysis-kandy", 0),
	}

	combined, err := Assemble(medellin, kandy)
	require.NoError(t, err)
	require.Len(t, combined, 4)

	// Sorted by city, timestamp, station.
	assert.Equal(t, "kandy", combined[0].City)
	assert.Equal(t, "st-1", combined[1].StationID)
	assert.Equal(t, 0, combined[1].Timestamp.Hour())
	assert.Equal(t, "st-1", combined[2].StationID)
	assert.Equal(t, "st-2", combined[3].StationID)
}

func TestAssemble_MissingValueFailsClosed(t *testing.T) {
	bad := fusedAt("medellin", "st-1", 0)
	bad.RelativeHumidity = math.NaN()

	_, err := Assemble([]domain.FusedRecord{bad})
	var compErr *domain.CompletenessError
	require.ErrorAs(t, err, &compErr)
	require.Len(t, compErr.Violations, 1)
	assert.Equal(t, "relative_humidity", compErr.Violations[0].Field)
	assert.Equal(t, "st-1", compErr.Violations[0].StationID)
}

func TestAssemble_CollectsAllViolations(t *testing.T) {
	bad1 := fusedAt("medellin", "st-1", 0)
	bad1.PM25 = math.NaN()
	bad2 := fusedAt("medellin", "st-2", 1)
	bad2.WindSpeed = math.NaN()
	bad2.TemperatureC = math.NaN()

	_, err := Assemble([]domain.FusedRecord{bad1, bad2})
	var compErr *domain.CompletenessError
	require.ErrorAs(t, err, &compErr)
	assert.Len(t, compErr.Violations, 3, "every violation is reported, not just the first")
}

func TestAssemble_DuplicateKeyAcrossInputs(t *testing.T) {
	a := fusedAt("medellin", "st-1", 0)
	b := fusedAt("medellin", "st-1", 0)

	_, err := Assemble([]domain.FusedRecord{a}, []domain.FusedRecord{b})
	var compErr *domain.CompletenessError
	require.ErrorAs(t, err, &compErr)
	require.Len(t, compErr.Violations, 1)
	assert.Equal(t, "key", compErr.Violations[0].Field)
}

func TestAssemble_EmptyInputs(t *testing.T) {
	combined, err := Assemble(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, combined)
}
