// Command fuse runs the full two-city air quality pipeline: it cleans the
// raw pollutant series, derives meteorology from the reanalysis grid, fuses
// both into per-city hourly tables, and produces the combined dataset plus
// the cross-city similarity report.
//
// Inputs are read from RAW_DATA_DIR, one pair of files per city:
//
//	<city>_pm25.csv            ground-station point series (stations source)
//	<city>_pm25_secondary.csv  optional second collector, gap-fill only
//	<city>_era5.csv            reanalysis grid export
//
// Outputs land in OUTPUT_DIR.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/airquality-fusion/internal/adapter/csvio"
	httpadapter "github.com/couchcryptid/airquality-fusion/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/airquality-fusion/internal/adapter/kafka"
	"github.com/couchcryptid/airquality-fusion/internal/analysis"
	"github.com/couchcryptid/airquality-fusion/internal/config"
	"github.com/couchcryptid/airquality-fusion/internal/domain"
	"github.com/couchcryptid/airquality-fusion/internal/observability"
	"github.com/couchcryptid/airquality-fusion/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	qc, profiles, err := config.LoadProfiles(cfg.ProfilePath)
	if err != nil {
		return err
	}

	// WINDOW_END names the last day of the run; the window end is exclusive.
	window := domain.Window{
		Start: cfg.WindowStart,
		End:   cfg.WindowEnd.AddDate(0, 0, 1),
	}
	if err := window.Validate(); err != nil {
		return err
	}

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	logger.Info("starting fusion run",
		"cities", fmt.Sprintf("%s,%s", profiles[0].City, profiles[1].City),
		"window_start", window.Start, "window_end", window.End)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner(window, qc, logger, metrics)

	var srv *httpadapter.Server
	if cfg.HTTPEnabled {
		srv = httpadapter.NewServer(cfg.HTTPAddr, runner, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	inputs := make([]pipeline.CityInput, 0, len(profiles))
	for _, p := range profiles {
		in, err := readCityInput(cfg.RawDataDir, p, logger)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
	}

	results, err := runner.Run(ctx, inputs)
	if err != nil {
		return err
	}

	perCity := make([][]domain.FusedRecord, len(results))
	for i, res := range results {
		perCity[i] = res.Fused
		out := filepath.Join(cfg.OutputDir, res.City+"_fused.csv")
		if err := csvio.WriteFused(out, res.Fused); err != nil {
			return err
		}
		logger.Info("wrote city dataset", "city", res.City, "records", len(res.Fused), "path", out)
	}

	combined, err := pipeline.Assemble(perCity...)
	if err != nil {
		return err
	}
	combinedPath := filepath.Join(cfg.OutputDir, "combined_fused.csv")
	if err := csvio.WriteFused(combinedPath, combined); err != nil {
		return err
	}
	logger.Info("wrote combined dataset", "records", len(combined), "path", combinedPath)

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer writer.Close()
		if err := writer.PublishFused(ctx, combined); err != nil {
			return err
		}
	}

	report := analysis.NewReport(runID,
		analysis.Summarize(results[0].City, results[0].Fused),
		analysis.Summarize(results[1].City, results[1].Fused),
		analysis.Compare(results[0].City, results[0].Fused, results[1].City, results[1].Fused),
	)
	reportPath := filepath.Join(cfg.OutputDir, "similarity_report.txt")
	if err := csvio.WriteReport(reportPath, report.Render()); err != nil {
		return err
	}
	logger.Info("wrote similarity report",
		"path", reportPath,
		"verdict", report.Comparison.Verdict,
		"metrics", len(report.Values()))

	return nil
}

// readCityInput loads one city's raw files. The secondary pollutant file is
// optional; when present it gap-fills around the primary collector's range.
func readCityInput(dir string, profile domain.CityProfile, logger *slog.Logger) (pipeline.CityInput, error) {
	city := profile.City

	cells, err := csvio.ReadReanalysis(filepath.Join(dir, city+"_era5.csv"))
	if err != nil {
		return pipeline.CityInput{}, fmt.Errorf("city %s: %w", city, err)
	}

	in := pipeline.CityInput{Profile: profile, Cells: cells}
	if profile.Source != domain.SourceStations {
		return in, nil
	}

	obs, err := csvio.ReadObservations(filepath.Join(dir, city+"_pm25.csv"))
	if err != nil {
		return pipeline.CityInput{}, fmt.Errorf("city %s: %w", city, err)
	}

	secondaryPath := filepath.Join(dir, city+"_pm25_secondary.csv")
	if _, statErr := os.Stat(secondaryPath); statErr == nil {
		secondary, err := csvio.ReadObservations(secondaryPath)
		if err != nil {
			return pipeline.CityInput{}, fmt.Errorf("city %s: %w", city, err)
		}
		obs = pipeline.CombineSources(obs, secondary, logger.With("city", city))
	}

	in.Observations = obs
	return in, nil
}
