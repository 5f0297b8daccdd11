package domain

import (
	"log/slog"
	"math"
	"sort"
	"time"
)

// Magnus formula constants for saturation vapor pressure over water.
const (
	magnusA = 17.625
	magnusB = 243.04 // degrees C
)

// rhNoiseTolerance separates floating-point overshoot from a genuine
// data-quality problem when clamping relative humidity to [0, 100].
const rhNoiseTolerance = 0.01 // percentage points

// DeriveMeteorology converts one reanalysis record into physical units and
// computes the derived kinematic and thermodynamic variables:
//
//	wind speed     = sqrt(u^2 + v^2)
//	wind direction = (atan2(v, u) * 180/pi) mod 360
//	RH             = 100 * es(Td) / es(T)   (Magnus formula, T and Td in C)
//
// Every required input field must be present (non-NaN); a missing field is a
// schema contract violation, not a per-record skip, because reanalysis data
// is gap-free by construction. This function performs no quality control:
// physically absurd but well-typed values pass through for downstream
// validation to flag.
//
// The second return value reports whether the RH clamp fired beyond floating
// noise, which callers surface as a data-quality warning.
func DeriveMeteorology(cell ReanalysisCell) (Meteorology, bool, error) {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"u_wind", cell.UWind},
		{"v_wind", cell.VWind},
		{"temperature_k", cell.TemperatureK},
		{"dewpoint_k", cell.DewpointK},
		{"boundary_layer_height", cell.BoundaryLayerHeight},
		{"pressure_pa", cell.PressurePa},
	} {
		if math.IsNaN(f.value) {
			return Meteorology{}, false, &SchemaError{
				Source: "reanalysis/" + cell.GridID,
				Field:  f.name,
				Reason: "missing value at " + cell.Timestamp.UTC().Format(time.RFC3339),
			}
		}
	}

	tempC := cell.TemperatureK - 273.15
	dewC := cell.DewpointK - 273.15

	rh := 100 * saturationRatio(dewC) / saturationRatio(tempC)
	clampedBeyondNoise := rh < -rhNoiseTolerance || rh > 100+rhNoiseTolerance
	rh = math.Min(math.Max(rh, 0), 100)

	return Meteorology{
		Timestamp:           cell.Timestamp,
		UWind:               cell.UWind,
		VWind:               cell.VWind,
		WindSpeed:           math.Hypot(cell.UWind, cell.VWind),
		WindDirection:       windDirectionDegrees(cell.UWind, cell.VWind),
		TemperatureC:        tempC,
		DewpointC:           dewC,
		RelativeHumidity:    rh,
		BoundaryLayerHeight: cell.BoundaryLayerHeight,
		SurfacePressureHPa:  cell.PressurePa / 100,
	}, clampedBeyondNoise, nil
}

// DeriveSeries derives a full meteorology series, aggregating data-quality
// warnings instead of emitting one log line per record.
func DeriveSeries(city string, cells []ReanalysisCell, logger *slog.Logger) ([]Meteorology, error) {
	series := make([]Meteorology, 0, len(cells))
	clamped := 0
	for _, cell := range cells {
		met, clamp, err := DeriveMeteorology(cell)
		if err != nil {
			return nil, err
		}
		if clamp {
			clamped++
		}
		series = append(series, met)
	}

	if clamped > 0 {
		logger.Warn("relative humidity clamped beyond floating noise",
			"city", city, "records", clamped, "total", len(series))
	}
	warnImplausible(city, series, logger)
	return series, nil
}

// windDirectionDegrees maps (u, v) to a bearing in [0, 360).
func windDirectionDegrees(u, v float64) float64 {
	deg := math.Atan2(v, u) * 180 / math.Pi
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 { // Mod can yield exactly 360 after the negative adjustment
		deg -= 360
	}
	return deg
}

// saturationRatio is the Magnus-formula exponential term; the 6.112 hPa
// leading coefficient cancels in the RH ratio.
func saturationRatio(tc float64) float64 {
	return math.Exp(magnusA * tc / (tc + magnusB))
}

// plausible holds the physical sanity envelope for one derived variable.
// Values outside it are logged, never modified: this component derives, it
// does not QC.
var plausible = []struct {
	name string
	get  func(Meteorology) float64
	min  float64
	max  float64
}{
	{"temperature_c", func(m Meteorology) float64 { return m.TemperatureC }, -30, 50},
	{"relative_humidity", func(m Meteorology) float64 { return m.RelativeHumidity }, 0, 100},
	{"surface_pressure_hpa", func(m Meteorology) float64 { return m.SurfacePressureHPa }, 800, 1100},
	{"boundary_layer_height", func(m Meteorology) float64 { return m.BoundaryLayerHeight }, 0, 5000},
	{"wind_speed", func(m Meteorology) float64 { return m.WindSpeed }, 0, 50},
}

func warnImplausible(city string, series []Meteorology, logger *slog.Logger) {
	for _, p := range plausible {
		below, above := 0, 0
		for _, m := range series {
			v := p.get(m)
			if v < p.min {
				below++
			}
			if v > p.max {
				above++
			}
		}
		if below > 0 || above > 0 {
			logger.Warn("physically implausible derived values",
				"city", city, "variable", p.name,
				"below_min", below, "above_max", above,
				"min", p.min, "max", p.max)
		}
	}
}

// SpatialAverage collapses a multi-point reanalysis grid into one cell per
// timestamp by averaging each field across grid points, matching how the
// acquisition layer's product is reduced to a single city series. Input
// order does not matter; output is ascending by timestamp.
func SpatialAverage(cells []ReanalysisCell) []ReanalysisCell {
	if len(cells) == 0 {
		return nil
	}

	type acc struct {
		sum ReanalysisCell
		n   int
	}
	byTime := make(map[time.Time]*acc)
	for _, c := range cells {
		ts := c.Timestamp.UTC()
		a, ok := byTime[ts]
		if !ok {
			a = &acc{sum: ReanalysisCell{Timestamp: ts}}
			byTime[ts] = a
		}
		a.sum.Lat += c.Lat
		a.sum.Lon += c.Lon
		a.sum.UWind += c.UWind
		a.sum.VWind += c.VWind
		a.sum.TemperatureK += c.TemperatureK
		a.sum.DewpointK += c.DewpointK
		a.sum.BoundaryLayerHeight += c.BoundaryLayerHeight
		a.sum.PressurePa += c.PressurePa
		a.sum.PollutantProxy += c.PollutantProxy
		a.n++
	}

	out := make([]ReanalysisCell, 0, len(byTime))
	for ts, a := range byTime {
		n := float64(a.n)
		out = append(out, ReanalysisCell{
			GridID:              "grid-mean",
			Timestamp:           ts,
			Lat:                 a.sum.Lat / n,
			Lon:                 a.sum.Lon / n,
			UWind:               a.sum.UWind / n,
			VWind:               a.sum.VWind / n,
			TemperatureK:        a.sum.TemperatureK / n,
			DewpointK:           a.sum.DewpointK / n,
			BoundaryLayerHeight: a.sum.BoundaryLayerHeight / n,
			PressurePa:          a.sum.PressurePa / n,
			PollutantProxy:      a.sum.PollutantProxy / n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
