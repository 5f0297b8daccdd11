package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

const validProfilesYAML = `qc:
  iqr_multiplier: 2.5
  spike_threshold: 80
  min_coverage: 0.25
cities:
  - id: medellin
    center_lat: 6.2476
    center_lon: -75.5658
    radius_km: 10
    resolution: 1h
    pollutant_range: {min: 0, max: 500}
    source: stations
  - id: kandy
    center_lat: 7.2906
    center_lon: 80.6337
    radius_km: 5
    resolution: 3h
    pollutant_range: {min: 0, max: 500}
    source: reanalysis
    ground_truth_mean: 34.48
`

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProfiles(t *testing.T) {
	qc, profiles, err := LoadProfiles(writeProfiles(t, validProfilesYAML))
	require.NoError(t, err)

	assert.Equal(t, 2.5, qc.IQRMultiplier)
	assert.Equal(t, 80.0, qc.SpikeThreshold)
	assert.Equal(t, 0.25, qc.MinCoverage)

	require.Len(t, profiles, 2)
	assert.Equal(t, "medellin", profiles[0].City)
	assert.Equal(t, time.Hour, profiles[0].Resolution)
	assert.Equal(t, domain.SourceStations, profiles[0].Source)
	assert.Equal(t, 500.0, profiles[0].Pollutant.Max)

	assert.Equal(t, "kandy", profiles[1].City)
	assert.Equal(t, 3*time.Hour, profiles[1].Resolution)
	assert.Equal(t, domain.SourceReanalysis, profiles[1].Source)
	assert.Equal(t, 34.48, profiles[1].GroundTruthMean)
}

func TestLoadProfiles_DefaultQC(t *testing.T) {
	content := `cities:
  - id: medellin
    center_lat: 6.2476
    center_lon: -75.5658
    radius_km: 10
    resolution: 1h
    pollutant_range: {min: 0, max: 500}
    source: stations
  - id: kandy
    center_lat: 7.2906
    center_lon: 80.6337
    radius_km: 5
    resolution: 3h
    pollutant_range: {min: 0, max: 500}
    source: reanalysis
    ground_truth_mean: 34.48
`
	qc, _, err := LoadProfiles(writeProfiles(t, content))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultQCParams(), qc)
}

func TestLoadProfiles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "one city",
			mutate:  func(s string) string { return s[:len(s)-len(kandyBlock)] },
			wantErr: "expected exactly 2 cities, got 1",
		},
		{
			name: "duplicate ids",
			mutate: func(s string) string {
				return s[:len(s)-len(kandyBlock)] + kandyRenamed
			},
			wantErr: "city ids must be distinct",
		},
		{
			name: "bad resolution",
			mutate: func(s string) string {
				return replaceOnce(s, "resolution: 1h", "resolution: hourly")
			},
			wantErr: `invalid resolution "hourly"`,
		},
		{
			name: "invalid qc",
			mutate: func(s string) string {
				return replaceOnce(s, "min_coverage: 0.25", "min_coverage: 1.5")
			},
			wantErr: "min_coverage must be in (0, 1]",
		},
		{
			name: "invalid profile",
			mutate: func(s string) string {
				return replaceOnce(s, "radius_km: 10", "radius_km: -1")
			},
			wantErr: "radius",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadProfiles(writeProfiles(t, tt.mutate(validProfilesYAML)))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadProfiles_MissingFile(t *testing.T) {
	_, _, err := LoadProfiles(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read profiles")
}

func TestLoadProfiles_MalformedYAML(t *testing.T) {
	_, _, err := LoadProfiles(writeProfiles(t, "cities: [\n"))
	assert.ErrorContains(t, err, "parse profiles")
}

const kandyBlock = `  - id: kandy
    center_lat: 7.2906
    center_lon: 80.6337
    radius_km: 5
    resolution: 3h
    pollutant_range: {min: 0, max: 500}
    source: reanalysis
    ground_truth_mean: 34.48
`

const kandyRenamed = `  - id: medellin
    center_lat: 7.2906
    center_lon: 80.6337
    radius_km: 5
    resolution: 3h
    pollutant_range: {min: 0, max: 500}
    source: reanalysis
    ground_truth_mean: 34.48
`

func replaceOnce(s, old, new string) string {
	return strings.Replace(s, old, new, 1)
}
