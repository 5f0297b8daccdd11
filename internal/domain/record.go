package domain

import (
	"fmt"
	"math"
	"time"
)

// Observation is a single point pollutant reading from a ground station.
// The cleaner either keeps a physically valid observation or drops the
// record entirely; no null placeholders survive past QC.
type Observation struct {
	StationID   string
	StationName string
	Timestamp   time.Time // UTC
	Lat         float64
	Lon         float64
	Value       float64 // PM2.5 concentration, ug/m3
	Source      string  // collector label, e.g. "openaq", "siata"
}

// ReanalysisCell is one grid point of a reanalysis product at one timestamp.
// Fields that the product did not supply are NaN; the meteorology deriver
// treats a NaN required field as a schema contract violation, since
// reanalysis data is gap-free by construction.
type ReanalysisCell struct {
	GridID    string
	Timestamp time.Time // UTC
	Lat       float64
	Lon       float64

	UWind               float64 // 10m u component, m/s
	VWind               float64 // 10m v component, m/s
	TemperatureK        float64 // 2m temperature, K
	DewpointK           float64 // 2m dewpoint, K
	BoundaryLayerHeight float64 // m
	PressurePa          float64 // surface pressure, Pa

	// PollutantProxy is an optional model-derived PM2.5 estimate (e.g. CAMS).
	// NaN when the product carries no pollutant field.
	PollutantProxy float64
}

// Meteorology is the unit-normalized, derived form of a reanalysis record.
type Meteorology struct {
	Timestamp           time.Time
	UWind               float64 // m/s
	VWind               float64 // m/s
	WindSpeed           float64 // m/s
	WindDirection       float64 // degrees, [0, 360)
	TemperatureC        float64
	DewpointC           float64
	RelativeHumidity    float64 // percent, [0, 100]
	BoundaryLayerHeight float64 // m
	SurfacePressureHPa  float64
}

// FusedRecord is one row of the final per-city table: a pollutant reading
// joined with the meteorology for the same hour. After assembly every field
// is populated; that invariant is what the whole pipeline exists to deliver.
type FusedRecord struct {
	Timestamp   time.Time // UTC, hourly
	City        string
	StationID   string
	StationName string
	Lat         float64
	Lon         float64
	PM25        float64
	NObs        int // sub-hourly readings averaged into this row

	UWind               float64
	VWind               float64
	WindSpeed           float64
	WindDirection       float64
	TemperatureC        float64
	RelativeHumidity    float64
	BoundaryLayerHeight float64
	SurfacePressureHPa  float64
}

// Key identifies a fused record within the combined dataset.
func (r FusedRecord) Key() string {
	return r.City + "|" + r.StationID + "|" + r.Timestamp.UTC().Format(time.RFC3339)
}

// ValueRange is an inclusive physical plausibility envelope.
type ValueRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies inside the range. NaN is never contained.
func (r ValueRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// PollutantSource selects where a city's pollutant series comes from.
type PollutantSource string

const (
	// SourceStations uses ground-station point observations.
	SourceStations PollutantSource = "stations"
	// SourceReanalysis uses the bias-corrected reanalysis pollutant proxy,
	// for cities without usable ground coverage.
	SourceReanalysis PollutantSource = "reanalysis"
)

// CityProfile is the static per-city configuration. It is loaded once at
// startup and passed by value into every component; nothing in the fusion
// engine consults ambient/global city state.
type CityProfile struct {
	City       string
	CenterLat  float64
	CenterLon  float64
	RadiusKm   float64
	Resolution time.Duration // expected sampling interval
	Pollutant  ValueRange
	Source     PollutantSource

	// GroundTruthMean is the independent annual-mean reference used to
	// bias-correct the reanalysis proxy. Required when Source is
	// "reanalysis", ignored otherwise.
	GroundTruthMean float64

	// BiasFactor, when non-zero, is a previously computed correction factor
	// applied as-is instead of being re-derived from the raw series.
	BiasFactor float64
}

// Validate checks the profile invariants.
func (p CityProfile) Validate() error {
	if p.City == "" {
		return fmt.Errorf("city profile: id is required")
	}
	if math.IsNaN(p.CenterLat) || p.CenterLat < -90 || p.CenterLat > 90 {
		return fmt.Errorf("city profile %s: center_lat %v out of range", p.City, p.CenterLat)
	}
	if math.IsNaN(p.CenterLon) || p.CenterLon < -180 || p.CenterLon > 180 {
		return fmt.Errorf("city profile %s: center_lon %v out of range", p.City, p.CenterLon)
	}
	if !(p.RadiusKm > 0) {
		return fmt.Errorf("city profile %s: radius_km must be positive, got %v", p.City, p.RadiusKm)
	}
	if p.Resolution <= 0 {
		return fmt.Errorf("city profile %s: resolution must be positive, got %v", p.City, p.Resolution)
	}
	if !(p.Pollutant.Min < p.Pollutant.Max) {
		return fmt.Errorf("city profile %s: pollutant range min %v must be below max %v",
			p.City, p.Pollutant.Min, p.Pollutant.Max)
	}
	switch p.Source {
	case SourceStations, SourceReanalysis:
	case "":
		return fmt.Errorf("city profile %s: source is required", p.City)
	default:
		return fmt.Errorf("city profile %s: unknown source %q", p.City, p.Source)
	}
	if p.Source == SourceReanalysis && !(p.GroundTruthMean > 0) {
		return fmt.Errorf("city profile %s: ground_truth_mean must be positive for reanalysis source", p.City)
	}
	return nil
}

// QCParams are the quality-control thresholds shared by both cities.
// They are declared once here and threaded through the cleaner; no stage
// re-declares its own copy.
type QCParams struct {
	IQRMultiplier  float64 `yaml:"iqr_multiplier"`  // k in [Q1-k*IQR, Q3+k*IQR]
	SpikeThreshold float64 `yaml:"spike_threshold"` // max jump between consecutive readings, ug/m3
	MinCoverage    float64 `yaml:"min_coverage"`    // fraction of expected slots a station must cover
}

// DefaultQCParams returns the standard thresholds. The IQR multiplier of 3
// is deliberately conservative (the conventional 1.5 discards genuine
// pollution episodes).
func DefaultQCParams() QCParams {
	return QCParams{
		IQRMultiplier:  3.0,
		SpikeThreshold: 100.0,
		MinCoverage:    0.10,
	}
}

// Validate checks the threshold invariants.
func (q QCParams) Validate() error {
	if !(q.IQRMultiplier > 0) {
		return fmt.Errorf("qc params: iqr_multiplier must be positive, got %v", q.IQRMultiplier)
	}
	if !(q.SpikeThreshold > 0) {
		return fmt.Errorf("qc params: spike_threshold must be positive, got %v", q.SpikeThreshold)
	}
	if q.MinCoverage <= 0 || q.MinCoverage > 1 {
		return fmt.Errorf("qc params: min_coverage must be in (0, 1], got %v", q.MinCoverage)
	}
	return nil
}

// Window is the fixed historical period a run covers.
type Window struct {
	Start time.Time // inclusive
	End   time.Time // exclusive
}

// Validate checks the window invariants.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window: start and end are required")
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("window: end %s must be after start %s",
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// ExpectedSlots returns how many sampling slots of the given resolution the
// window contains. A station covering every slot has coverage 1.0.
func (w Window) ExpectedSlots(resolution time.Duration) int {
	if resolution <= 0 {
		return 0
	}
	return int(w.End.Sub(w.Start) / resolution)
}
