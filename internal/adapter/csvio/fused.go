package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

// ReadFused parses a fused dataset CSV previously written by WriteFused.
func ReadFused(path string) ([]domain.FusedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fused: %w", err)
	}
	defer f.Close()
	return ParseFused(path, f)
}

// ParseFused parses fused-dataset CSV from r.
func ParseFused(source string, r io.Reader) ([]domain.FusedRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	h, err := readHeader(source, cr, fusedHeader)
	if err != nil {
		return nil, err
	}

	var recs []domain.FusedRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domain.SchemaError{Source: source, Field: "row", Line: line, Reason: err.Error()}
		}

		ts, err := h.timestamp(row, line, "datetime_utc")
		if err != nil {
			return nil, err
		}
		city, err := h.str(row, line, "city")
		if err != nil {
			return nil, err
		}
		stationID, err := h.str(row, line, "station_id")
		if err != nil {
			return nil, err
		}
		nObsStr, err := h.str(row, line, "n_obs")
		if err != nil {
			return nil, err
		}
		nObs, err := strconv.Atoi(nObsStr)
		if err != nil {
			return nil, &domain.SchemaError{Source: source, Field: "n_obs", Line: line,
				Reason: fmt.Sprintf("not an integer: %q", nObsStr)}
		}

		rec := domain.FusedRecord{
			Timestamp:   ts,
			City:        city,
			StationID:   stationID,
			StationName: h.optStr(row, "station_name"),
			NObs:        nObs,
		}
		for _, field := range []struct {
			col string
			dst *float64
		}{
			{"lat", &rec.Lat},
			{"lon", &rec.Lon},
			{"pm25", &rec.PM25},
			{"u_wind", &rec.UWind},
			{"v_wind", &rec.VWind},
			{"wind_speed", &rec.WindSpeed},
			{"wind_direction", &rec.WindDirection},
			{"temperature_c", &rec.TemperatureC},
			{"relative_humidity", &rec.RelativeHumidity},
			{"boundary_layer_height", &rec.BoundaryLayerHeight},
			{"surface_pressure_hpa", &rec.SurfacePressureHPa},
		} {
			v, err := h.float(row, line, field.col)
			if err != nil {
				return nil, err
			}
			*field.dst = v
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
