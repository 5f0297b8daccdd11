// Package csvio reads raw point-series and reanalysis exports and writes the
// fused per-city and combined datasets. Schema validation happens here, at
// the boundary: a missing column or unparseable value is a SchemaError with
// file, column, and line attribution, never a silently coerced zero.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

// Point-series column names follow the OpenAQ-style export convention.
const (
	colTimestamp   = "datetime_utc"
	colStationID   = "location_id"
	colStationName = "location_name"
	colLat         = "lat"
	colLon         = "lon"
	colPM25        = "pm25"
	colSource      = "source" // optional collector label
)

// Reanalysis column names follow the ERA5 short-name convention.
const (
	colUWind    = "u10"
	colVWind    = "v10"
	colTempK    = "t2m"
	colDewK     = "d2m"
	colBLH      = "blh"
	colPressure = "sp"
	colProxy    = "pm25_proxy" // optional model pollutant estimate
)

type header struct {
	source string
	idx    map[string]int
}

func readHeader(source string, r *csv.Reader, required []string) (header, error) {
	row, err := r.Read()
	if err != nil {
		return header{}, &domain.SchemaError{Source: source, Field: "header", Reason: "empty file"}
	}
	h := header{source: source, idx: make(map[string]int, len(row))}
	for i, name := range row {
		h.idx[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := h.idx[name]; !ok {
			return header{}, &domain.SchemaError{Source: source, Field: name, Reason: "missing column"}
		}
	}
	return h, nil
}

func (h header) str(row []string, line int, col string) (string, error) {
	i, ok := h.idx[col]
	if !ok || i >= len(row) {
		return "", &domain.SchemaError{Source: h.source, Field: col, Line: line, Reason: "missing value"}
	}
	v := strings.TrimSpace(row[i])
	if v == "" {
		return "", &domain.SchemaError{Source: h.source, Field: col, Line: line, Reason: "empty value"}
	}
	return v, nil
}

func (h header) float(row []string, line int, col string) (float64, error) {
	s, err := h.str(row, line, col)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &domain.SchemaError{Source: h.source, Field: col, Line: line,
			Reason: fmt.Sprintf("not a number: %q", s)}
	}
	return v, nil
}

// optFloat returns NaN when the column is absent or the cell is empty.
// A present but malformed cell is still a schema violation.
func (h header) optFloat(row []string, line int, col string) (float64, error) {
	i, ok := h.idx[col]
	if !ok || i >= len(row) || strings.TrimSpace(row[i]) == "" {
		return math.NaN(), nil
	}
	return h.float(row, line, col)
}

func (h header) optStr(row []string, col string) string {
	i, ok := h.idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (h header) timestamp(row []string, line int, col string) (time.Time, error) {
	s, err := h.str(row, line, col)
	if err != nil {
		return time.Time{}, err
	}
	// Exports vary between RFC 3339 and space-separated layouts.
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &domain.SchemaError{Source: h.source, Field: col, Line: line,
		Reason: fmt.Sprintf("unparseable timestamp: %q", s)}
}

// ReadObservations parses a point-series CSV file into observations.
func ReadObservations(path string) ([]domain.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open observations: %w", err)
	}
	defer f.Close()
	return ParseObservations(path, f)
}

// ParseObservations parses point-series CSV from r. The source name is used
// in error attribution only.
func ParseObservations(source string, r io.Reader) ([]domain.Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	h, err := readHeader(source, cr, []string{
		colTimestamp, colStationID, colStationName, colLat, colLon, colPM25,
	})
	if err != nil {
		return nil, err
	}

	var obs []domain.Observation
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domain.SchemaError{Source: source, Field: "row", Line: line, Reason: err.Error()}
		}

		ts, err := h.timestamp(row, line, colTimestamp)
		if err != nil {
			return nil, err
		}
		stationID, err := h.str(row, line, colStationID)
		if err != nil {
			return nil, err
		}
		lat, err := h.float(row, line, colLat)
		if err != nil {
			return nil, err
		}
		lon, err := h.float(row, line, colLon)
		if err != nil {
			return nil, err
		}
		value, err := h.float(row, line, colPM25)
		if err != nil {
			return nil, err
		}

		obs = append(obs, domain.Observation{
			StationID:   stationID,
			StationName: h.optStr(row, colStationName),
			Timestamp:   ts,
			Lat:         lat,
			Lon:         lon,
			Value:       value,
			Source:      h.optStr(row, colSource),
		})
	}
	return obs, nil
}

// ReadReanalysis parses a reanalysis grid CSV file into cells.
func ReadReanalysis(path string) ([]domain.ReanalysisCell, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reanalysis: %w", err)
	}
	defer f.Close()
	return ParseReanalysis(path, f)
}

// ParseReanalysis parses reanalysis CSV from r.
func ParseReanalysis(source string, r io.Reader) ([]domain.ReanalysisCell, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	h, err := readHeader(source, cr, []string{
		colTimestamp, colLat, colLon, colUWind, colVWind, colTempK, colDewK, colBLH, colPressure,
	})
	if err != nil {
		return nil, err
	}

	var cells []domain.ReanalysisCell
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domain.SchemaError{Source: source, Field: "row", Line: line, Reason: err.Error()}
		}

		ts, err := h.timestamp(row, line, colTimestamp)
		if err != nil {
			return nil, err
		}
		lat, err := h.float(row, line, colLat)
		if err != nil {
			return nil, err
		}
		lon, err := h.float(row, line, colLon)
		if err != nil {
			return nil, err
		}

		cell := domain.ReanalysisCell{
			GridID:    fmt.Sprintf("%.3f,%.3f", lat, lon),
			Timestamp: ts,
			Lat:       lat,
			Lon:       lon,
		}
		for _, field := range []struct {
			col string
			dst *float64
		}{
			{colUWind, &cell.UWind},
			{colVWind, &cell.VWind},
			{colTempK, &cell.TemperatureK},
			{colDewK, &cell.DewpointK},
			{colBLH, &cell.BoundaryLayerHeight},
			{colPressure, &cell.PressurePa},
		} {
			v, err := h.float(row, line, field.col)
			if err != nil {
				return nil, err
			}
			*field.dst = v
		}

		proxy, err := h.optFloat(row, line, colProxy)
		if err != nil {
			return nil, err
		}
		cell.PollutantProxy = proxy

		cells = append(cells, cell)
	}
	return cells, nil
}
