package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
	"github.com/couchcryptid/airquality-fusion/internal/observability"
)

// CityInput is everything one city's pipeline needs: its profile, the raw
// point observations (empty when the profile sources pollutant data from
// the reanalysis proxy), and the raw reanalysis grid.
type CityInput struct {
	Profile      domain.CityProfile
	Observations []domain.Observation
	Cells        []domain.ReanalysisCell
}

// CityResult is one city's fused table plus run bookkeeping.
type CityResult struct {
	City  string
	Fused []domain.FusedRecord

	// BiasFactor is the multiplicative correction applied to the reanalysis
	// pollutant proxy, 0 when the city used ground stations. Reported so
	// operators can pin it in the profile for future runs.
	BiasFactor float64
}

// Runner executes the clean-derive-fuse pipeline for each city. Cities are
// independent (the only shared state is the read-only window and QC
// thresholds) and run concurrently.
type Runner struct {
	window  domain.Window
	qc      domain.QCParams
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// NewRunner creates a Runner with the given run window and QC thresholds.
func NewRunner(window domain.Window, qc domain.QCParams, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		window:  window,
		qc:      qc,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once at least one city has fused records, or
// an error describing why the run is not yet ready.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no city has produced fused records yet")
	}
	return nil
}

// Run processes every city concurrently and returns results in input
// order. The first city error aborts the run; QC legitimately emptying a
// city is not an error.
func (r *Runner) Run(ctx context.Context, inputs []CityInput) ([]CityResult, error) {
	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)

	type outcome struct {
		idx    int
		result CityResult
		err    error
	}
	ch := make(chan outcome, len(inputs))
	for i, in := range inputs {
		go func(i int, in CityInput) {
			res, err := r.runCity(ctx, in)
			ch <- outcome{idx: i, result: res, err: err}
		}(i, in)
	}

	results := make([]CityResult, len(inputs))
	var firstErr error
	for range inputs {
		o := <-ch
		if o.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("city %s: %w", inputs[o.idx].Profile.City, o.err)
			continue
		}
		results[o.idx] = o.result
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (r *Runner) runCity(ctx context.Context, in CityInput) (CityResult, error) {
	city := in.Profile.City
	start := time.Now()
	defer func() {
		r.metrics.CityProcessingDuration.WithLabelValues(city).Observe(time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return CityResult{}, err
	}

	cells := domain.SpatialAverage(in.Cells)
	met, err := domain.DeriveSeries(city, cells, r.logger)
	if err != nil {
		return CityResult{}, err
	}
	r.logger.Info("meteorology derived", "city", city, "records", len(met))

	obs := in.Observations
	var factor float64
	if in.Profile.Source == domain.SourceReanalysis {
		obs, factor, err = r.proxyObservations(in.Profile, cells)
		if err != nil {
			return CityResult{}, err
		}
	}
	r.metrics.RecordsRead.WithLabelValues(city, string(in.Profile.Source)).Add(float64(len(obs)))

	if err := ctx.Err(); err != nil {
		return CityResult{}, err
	}

	cleaner := NewCleaner(in.Profile, r.window, r.qc, r.logger, r.metrics)
	cleaned := cleaner.Clean(obs)

	fused, err := Fuse(city, cleaned, met)
	if err != nil {
		return CityResult{}, err
	}
	r.metrics.RecordsFused.WithLabelValues(city).Add(float64(len(fused)))
	r.logger.Info("city pipeline complete",
		"city", city,
		"raw", len(obs),
		"cleaned", len(cleaned),
		"fused", len(fused),
	)
	if len(fused) > 0 {
		r.ready.Store(true)
	}

	return CityResult{City: city, Fused: fused, BiasFactor: factor}, nil
}

// proxyObservations turns the reanalysis pollutant proxy into a synthetic
// single-station series, bias-corrected against the profile's independent
// ground-truth mean. The corrected series then flows through exactly the
// same QC and fusion path as ground observations.
func (r *Runner) proxyObservations(profile domain.CityProfile, cells []domain.ReanalysisCell) ([]domain.Observation, float64, error) {
	city := profile.City
	values := make([]float64, 0, len(cells))
	kept := make([]domain.ReanalysisCell, 0, len(cells))
	for _, c := range cells {
		if math.IsNaN(c.PollutantProxy) {
			continue
		}
		values = append(values, c.PollutantProxy)
		kept = append(kept, c)
	}
	if len(values) == 0 {
		return nil, 0, &domain.DataError{City: city, Unit: "reanalysis-proxy", Reason: "no pollutant proxy values in reanalysis input"}
	}

	factor := profile.BiasFactor
	if factor == 0 {
		var err error
		factor, err = domain.BiasFactor(city, values, profile.GroundTruthMean)
		if err != nil {
			return nil, 0, err
		}
		r.logger.Info("derived bias correction factor",
			"city", city, "factor", factor, "ground_truth_mean", profile.GroundTruthMean)
	} else {
		r.logger.Info("using pinned bias correction factor", "city", city, "factor", factor)
	}

	corrected := domain.CorrectBias(values, factor)
	obs := make([]domain.Observation, len(kept))
	for i, c := range kept {
		obs[i] = domain.Observation{
			StationID:   "reanalysis-" + city,
			StationName: "reanalysis grid mean",
			Timestamp:   c.Timestamp,
			Lat:         c.Lat,
			Lon:         c.Lon,
			Value:       corrected[i],
			Source:      string(domain.SourceReanalysis),
		}
	}
	return obs, factor, nil
}
