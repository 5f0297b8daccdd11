package pipeline

import (
	"sort"
	"time"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

// Fuse joins a cleaned pollutant series with a derived meteorology series
// for one city. Sub-hourly readings are first rounded to the nearest hour
// and averaged per station-hour (the meteorology grid is hourly); each
// resulting pollutant timestamp must then match a meteorology record
// exactly. Meteorology is gap-free by contract, so a miss is an upstream
// violation and returns a FusionError rather than interpolating.
//
// An empty pollutant series fuses to zero records without error: a city
// legitimately cleaned down to nothing is handled downstream.
//
// Output is ascending by timestamp, then by station id, and every field of
// every record is populated. That invariant is enforced here, not deferred.
func Fuse(city string, obs []domain.Observation, met []domain.Meteorology) ([]domain.FusedRecord, error) {
	if len(obs) == 0 {
		return nil, nil
	}

	byTime := make(map[time.Time]domain.Meteorology, len(met))
	for _, m := range met {
		byTime[m.Timestamp.UTC()] = m
	}

	type key struct {
		station string
		hour    time.Time
	}
	type acc struct {
		sum   float64
		n     int
		first domain.Observation
	}
	hourly := make(map[key]*acc)
	order := make([]key, 0, len(obs))
	for _, o := range obs {
		k := key{station: o.StationID, hour: o.Timestamp.UTC().Round(time.Hour)}
		a, ok := hourly[k]
		if !ok {
			a = &acc{first: o}
			hourly[k] = a
			order = append(order, k)
		}
		a.sum += o.Value
		a.n++
	}

	sort.Slice(order, func(i, j int) bool {
		if !order[i].hour.Equal(order[j].hour) {
			return order[i].hour.Before(order[j].hour)
		}
		return order[i].station < order[j].station
	})

	fused := make([]domain.FusedRecord, 0, len(order))
	for _, k := range order {
		m, ok := byTime[k.hour]
		if !ok {
			return nil, &domain.FusionError{City: city, StationID: k.station, Timestamp: k.hour}
		}
		a := hourly[k]
		fused = append(fused, domain.FusedRecord{
			Timestamp:           k.hour,
			City:                city,
			StationID:           k.station,
			StationName:         a.first.StationName,
			Lat:                 a.first.Lat,
			Lon:                 a.first.Lon,
			PM25:                a.sum / float64(a.n),
			NObs:                a.n,
			UWind:               m.UWind,
			VWind:               m.VWind,
			WindSpeed:           m.WindSpeed,
			WindDirection:       m.WindDirection,
			TemperatureC:        m.TemperatureC,
			RelativeHumidity:    m.RelativeHumidity,
			BoundaryLayerHeight: m.BoundaryLayerHeight,
			SurfacePressureHPa:  m.SurfacePressureHPa,
		})
	}
	return fused, nil
}
