package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
	"github.com/couchcryptid/airquality-fusion/internal/observability"
)

func testCellAt(hour int, lat, lon, proxy float64) domain.ReanalysisCell {
	return domain.ReanalysisCell{
		GridID:              "g1",
		Timestamp:           testWindowStart.Add(time.Duration(hour) * time.Hour),
		Lat:                 lat,
		Lon:                 lon,
		UWind:               3,
		VWind:               4,
		TemperatureK:        295.15,
		DewpointK:           290.15,
		BoundaryLayerHeight: 800,
		PressurePa:          84500,
		PollutantProxy:      proxy,
	}
}

func newTestRunner(days int) *Runner {
	window := domain.Window{Start: testWindowStart, End: testWindowStart.AddDate(0, 0, days)}
	return NewRunner(window, domain.DefaultQCParams(), testLogger(), observability.NewMetricsForTesting())
}

func stationDayInput(days int) CityInput {
	hours := days * 24
	obs := make([]domain.Observation, 0, hours)
	cells := make([]domain.ReanalysisCell, 0, hours)
	for h := 0; h < hours; h++ {
		obs = append(obs, obsAt("st-1", h, 20+float64(h%9)))
		cells = append(cells, testCellAt(h, 6.2476, -75.5658, math.NaN()))
	}
	return CityInput{Profile: testProfile(), Observations: obs, Cells: cells}
}

func TestRunner_StationCity(t *testing.T) {
	r := newTestRunner(1)

	results, err := r.Run(context.Background(), []CityInput{stationDayInput(1)})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "medellin", res.City)
	assert.Len(t, res.Fused, 24)
	assert.Zero(t, res.BiasFactor, "no bias correction for station-sourced cities")
	for _, rec := range res.Fused {
		assert.Equal(t, 5.0, rec.WindSpeed)
		assert.False(t, math.IsNaN(rec.PM25))
	}
}

func TestRunner_ReanalysisCityBiasCorrection(t *testing.T) {
	r := newTestRunner(1)

	profile := testProfile()
	profile.City = "kandy"
	profile.CenterLat, profile.CenterLon = 7.2906, 80.6337
	profile.Source = domain.SourceReanalysis
	profile.GroundTruthMean = 34.48

	cells := make([]domain.ReanalysisCell, 0, 24)
	for h := 0; h < 24; h++ {
		cells = append(cells, testCellAt(h, 7.2906, 80.6337, 54.5))
	}

	results, err := r.Run(context.Background(), []CityInput{{Profile: profile, Cells: cells}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.InDelta(t, 34.48/54.5, res.BiasFactor, 1e-9)
	require.Len(t, res.Fused, 24)
	for _, rec := range res.Fused {
		assert.Equal(t, "reanalysis-kandy", rec.StationID)
		assert.InDelta(t, 34.48, rec.PM25, 1e-9, "constant proxy corrects exactly to the reference mean")
	}
}

func TestRunner_ReanalysisCityPinnedFactor(t *testing.T) {
	r := newTestRunner(1)

	profile := testProfile()
	profile.City = "kandy"
	profile.CenterLat, profile.CenterLon = 7.2906, 80.6337
	profile.Source = domain.SourceReanalysis
	profile.GroundTruthMean = 34.48
	profile.BiasFactor = 0.5

	cells := []domain.ReanalysisCell{}
	for h := 0; h < 24; h++ {
		cells = append(cells, testCellAt(h, 7.2906, 80.6337, 60))
	}

	results, err := r.Run(context.Background(), []CityInput{{Profile: profile, Cells: cells}})
	require.NoError(t, err)
	assert.Equal(t, 0.5, results[0].BiasFactor)
	assert.InDelta(t, 30.0, results[0].Fused[0].PM25, 1e-9)
}

func TestRunner_ReanalysisCityWithoutProxyFails(t *testing.T) {
	r := newTestRunner(1)

	profile := testProfile()
	profile.Source = domain.SourceReanalysis
	profile.GroundTruthMean = 34.48

	cells := []domain.ReanalysisCell{testCellAt(0, 6.2476, -75.5658, math.NaN())}

	_, err := r.Run(context.Background(), []CityInput{{Profile: profile, Cells: cells}})
	var dataErr *domain.DataError
	require.ErrorAs(t, err, &dataErr)
	assert.Contains(t, err.Error(), "city medellin")
}

func TestRunner_ResultsInInputOrder(t *testing.T) {
	r := newTestRunner(1)

	kandy := testProfile()
	kandy.City = "kandy"
	kandy.CenterLat, kandy.CenterLon = 7.2906, 80.6337
	kandy.Source = domain.SourceReanalysis
	kandy.GroundTruthMean = 34.48
	kandyCells := make([]domain.ReanalysisCell, 0, 24)
	for h := 0; h < 24; h++ {
		kandyCells = append(kandyCells, testCellAt(h, 7.2906, 80.6337, 54.5))
	}

	inputs := []CityInput{
		{Profile: kandy, Cells: kandyCells},
		stationDayInput(1),
	}
	results, err := r.Run(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "kandy", results[0].City)
	assert.Equal(t, "medellin", results[1].City)
}

func TestRunner_EmptyAfterCleaningIsNotAnError(t *testing.T) {
	r := newTestRunner(1)

	in := stationDayInput(1)
	for i := range in.Observations {
		in.Observations[i].Value = -1 // everything fails range validation
	}

	results, err := r.Run(context.Background(), []CityInput{in})
	require.NoError(t, err)
	assert.Empty(t, results[0].Fused)
}

func TestRunner_Readiness(t *testing.T) {
	r := newTestRunner(1)
	require.Error(t, r.CheckReadiness(context.Background()), "not ready before any city completes")

	_, err := r.Run(context.Background(), []CityInput{stationDayInput(1)})
	require.NoError(t, err)
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRunner_CancelledContext(t *testing.T) {
	r := newTestRunner(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, []CityInput{stationDayInput(1)})
	require.ErrorIs(t, err, context.Canceled)
}
