package csvio

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

func TestParseObservations(t *testing.T) {
	input := `datetime_utc,location_id,location_name,lat,lon,pm25,source
2019-01-01T00:00:00Z,st-1,Poblado,6.2090,-75.5708,24.5,primary
2019-01-01 01:00:00,st-2,Centro,6.2518,-75.5636,30.1,
`
	obs, err := ParseObservations("test.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "st-1", obs[0].StationID)
	assert.Equal(t, "Poblado", obs[0].StationName)
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), obs[0].Timestamp)
	assert.Equal(t, 6.2090, obs[0].Lat)
	assert.Equal(t, -75.5708, obs[0].Lon)
	assert.Equal(t, 24.5, obs[0].Value)
	assert.Equal(t, "primary", obs[0].Source)

	// The space-separated layout parses too, and the optional source
	// column may be empty.
	assert.Equal(t, time.Date(2019, 1, 1, 1, 0, 0, 0, time.UTC), obs[1].Timestamp)
	assert.Empty(t, obs[1].Source)
}

func TestParseObservations_SchemaErrors(t *testing.T) {
	valid := "datetime_utc,location_id,location_name,lat,lon,pm25\n" +
		"2019-01-01T00:00:00Z,st-1,Poblado,6.2090,-75.5708,24.5\n"

	tests := []struct {
		name      string
		input     string
		wantField string
		wantLine  int
	}{
		{
			name:      "missing column",
			input:     "datetime_utc,location_id,location_name,lat,lon\n",
			wantField: "pm25",
		},
		{
			name:      "empty file",
			input:     "",
			wantField: "header",
		},
		{
			name:      "bad float",
			input:     strings.Replace(valid, "24.5", "n/a", 1),
			wantField: "pm25",
			wantLine:  2,
		},
		{
			name:      "empty value",
			input:     strings.Replace(valid, "st-1", "", 1),
			wantField: "location_id",
			wantLine:  2,
		},
		{
			name:      "bad timestamp",
			input:     strings.Replace(valid, "2019-01-01T00:00:00Z", "Jan 1 2019", 1),
			wantField: "datetime_utc",
			wantLine:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseObservations("test.csv", strings.NewReader(tt.input))
			var schemaErr *domain.SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, "test.csv", schemaErr.Source)
			assert.Equal(t, tt.wantField, schemaErr.Field)
			assert.Equal(t, tt.wantLine, schemaErr.Line)
		})
	}
}

func TestParseReanalysis(t *testing.T) {
	input := `datetime_utc,lat,lon,u10,v10,t2m,d2m,blh,sp,pm25_proxy
2019-01-01T00:00:00Z,7.240,80.584,3.0,4.0,295.15,290.15,800,84500,55.2
2019-01-01T03:00:00Z,7.240,80.584,2.0,1.0,294.15,289.15,750,84600,
`
	cells, err := ParseReanalysis("era5.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cells, 2)

	c := cells[0]
	assert.Equal(t, "7.240,80.584", c.GridID)
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), c.Timestamp)
	assert.Equal(t, 3.0, c.UWind)
	assert.Equal(t, 4.0, c.VWind)
	assert.Equal(t, 295.15, c.TemperatureK)
	assert.Equal(t, 290.15, c.DewpointK)
	assert.Equal(t, 800.0, c.BoundaryLayerHeight)
	assert.Equal(t, 84500.0, c.PressurePa)
	assert.Equal(t, 55.2, c.PollutantProxy)

	assert.True(t, math.IsNaN(cells[1].PollutantProxy), "empty proxy cell reads as NaN")
}

func TestParseReanalysis_NoProxyColumn(t *testing.T) {
	input := `datetime_utc,lat,lon,u10,v10,t2m,d2m,blh,sp
2019-01-01T00:00:00Z,6.198,-75.616,1.0,-2.0,293.15,288.15,600,85000
`
	cells, err := ParseReanalysis("era5.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.True(t, math.IsNaN(cells[0].PollutantProxy))
}

func TestParseReanalysis_MissingRequiredColumn(t *testing.T) {
	input := "datetime_utc,lat,lon,u10,v10,t2m,d2m,blh\n"
	_, err := ParseReanalysis("era5.csv", strings.NewReader(input))
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "sp", schemaErr.Field)
}

func TestReadObservations_MissingFile(t *testing.T) {
	_, err := ReadObservations("does/not/exist.csv")
	assert.ErrorContains(t, err, "open observations")
}
