package analysis

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

// WHO Air Quality Guidelines (2021), ug/m3 24-hour means.
const (
	whoAQG = 15.0
	whoIT1 = 35.0 // Interim Target 1
)

// metVar names one meteorological variable of the fused schema. The order
// here fixes the layout of the correlation-structure vector, so both cities
// always compare position for position.
type metVar struct {
	name string
	get  func(domain.FusedRecord) float64
}

var metVars = []metVar{
	{"wind_speed", func(r domain.FusedRecord) float64 { return r.WindSpeed }},
	{"temperature", func(r domain.FusedRecord) float64 { return r.TemperatureC }},
	{"relative_humidity", func(r domain.FusedRecord) float64 { return r.RelativeHumidity }},
	{"boundary_layer_height", func(r domain.FusedRecord) float64 { return r.BoundaryLayerHeight }},
	{"surface_pressure", func(r domain.FusedRecord) float64 { return r.SurfacePressureHPa }},
}

// MetStat is the mean and standard deviation of one meteorological variable.
type MetStat struct {
	Name string
	Mean float64
	Std  float64
}

// CitySummary is the descriptive statistics block for one city's fused
// dataset.
type CitySummary struct {
	City     string
	Records  int
	Stations int

	DateMin     time.Time
	DateMax     time.Time
	UniqueHours int

	Mean     float64
	Median   float64
	Std      float64
	Min      float64
	Max      float64
	P5       float64
	P25      float64
	P75      float64
	P95      float64
	Skewness float64
	Kurtosis float64

	// Fraction of readings above the WHO guideline values, in percent.
	PctAboveAQG float64
	PctAboveIT1 float64

	LatMin, LatMax float64
	LonMin, LonMax float64

	Met []MetStat
}

// Summarize computes the descriptive statistics for one city. An empty
// dataset yields a zero summary with only the city set.
func Summarize(city string, recs []domain.FusedRecord) CitySummary {
	s := CitySummary{City: city, Records: len(recs)}
	if len(recs) == 0 {
		return s
	}

	pm := make([]float64, len(recs))
	stations := make(map[string]struct{})
	hours := make(map[time.Time]struct{})
	s.LatMin, s.LatMax = recs[0].Lat, recs[0].Lat
	s.LonMin, s.LonMax = recs[0].Lon, recs[0].Lon
	s.DateMin, s.DateMax = recs[0].Timestamp, recs[0].Timestamp
	aboveAQG, aboveIT1 := 0, 0

	for i, r := range recs {
		pm[i] = r.PM25
		stations[r.StationID] = struct{}{}
		hours[r.Timestamp.UTC()] = struct{}{}
		if r.Timestamp.Before(s.DateMin) {
			s.DateMin = r.Timestamp
		}
		if r.Timestamp.After(s.DateMax) {
			s.DateMax = r.Timestamp
		}
		s.LatMin = min(s.LatMin, r.Lat)
		s.LatMax = max(s.LatMax, r.Lat)
		s.LonMin = min(s.LonMin, r.Lon)
		s.LonMax = max(s.LonMax, r.Lon)
		if r.PM25 > whoAQG {
			aboveAQG++
		}
		if r.PM25 > whoIT1 {
			aboveIT1++
		}
	}
	s.Stations = len(stations)
	s.UniqueHours = len(hours)
	s.PctAboveAQG = 100 * float64(aboveAQG) / float64(len(recs))
	s.PctAboveIT1 = 100 * float64(aboveIT1) / float64(len(recs))

	sorted := make([]float64, len(pm))
	copy(sorted, pm)
	sort.Float64s(sorted)

	s.Mean = stat.Mean(sorted, nil)
	s.Std = stat.StdDev(sorted, nil)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Median = stat.Quantile(0.5, stat.LinInterp, sorted, nil)
	s.P5 = stat.Quantile(0.05, stat.LinInterp, sorted, nil)
	s.P25 = stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	s.P75 = stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	s.P95 = stat.Quantile(0.95, stat.LinInterp, sorted, nil)
	s.Skewness = stat.Skew(sorted, nil)
	s.Kurtosis = stat.ExKurtosis(sorted, nil)

	for _, v := range metVars {
		values := make([]float64, len(recs))
		for i, r := range recs {
			values[i] = v.get(r)
		}
		s.Met = append(s.Met, MetStat{
			Name: v.name,
			Mean: stat.Mean(values, nil),
			Std:  stat.StdDev(values, nil),
		})
	}
	return s
}

// DiurnalPattern returns mean pollutant concentration by hour of day.
// Hours with no observations contribute zero.
func DiurnalPattern(recs []domain.FusedRecord) []float64 {
	return meanBy(recs, 24, func(r domain.FusedRecord) int { return r.Timestamp.UTC().Hour() })
}

// SeasonalPattern returns mean pollutant concentration by calendar month
// (index 0 = January).
func SeasonalPattern(recs []domain.FusedRecord) []float64 {
	return meanBy(recs, 12, func(r domain.FusedRecord) int { return int(r.Timestamp.UTC().Month()) - 1 })
}

// DayOfWeekPattern returns mean pollutant concentration by weekday
// (index 0 = Sunday, per time.Weekday).
func DayOfWeekPattern(recs []domain.FusedRecord) []float64 {
	return meanBy(recs, 7, func(r domain.FusedRecord) int { return int(r.Timestamp.UTC().Weekday()) })
}

func meanBy(recs []domain.FusedRecord, buckets int, bucket func(domain.FusedRecord) int) []float64 {
	sums := make([]float64, buckets)
	counts := make([]int, buckets)
	for _, r := range recs {
		b := bucket(r)
		sums[b] += r.PM25
		counts[b]++
	}
	means := make([]float64, buckets)
	for i := range sums {
		if counts[i] > 0 {
			means[i] = sums[i] / float64(counts[i])
		}
	}
	return means
}

// correlationVector is the Pearson correlation of pollutant concentration
// against each meteorological variable, in metVars order. This vector's
// direction is what the transfer-learning verdict hinges on.
func correlationVector(recs []domain.FusedRecord) []float64 {
	pm := make([]float64, len(recs))
	for i, r := range recs {
		pm[i] = r.PM25
	}
	vec := make([]float64, len(metVars))
	for vi, v := range metVars {
		values := make([]float64, len(recs))
		for i, r := range recs {
			values[i] = v.get(r)
		}
		r := stat.Correlation(pm, values, nil)
		if math.IsNaN(r) {
			// A zero-variance variable carries no relationship information.
			r = 0
		}
		vec[vi] = r
	}
	return vec
}
