// Command validate performs end-to-end integrity checks over a completed
// fusion run: it re-reads the raw CSV fixtures, re-runs the pipeline
// in-process, and compares the result against the written artifacts. Record
// counts are pinned to the genmock dataset, so it doubles as a regression
// harness for the QC stages.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
//	PROFILE_PATH=profiles.yaml RAW_DATA_DIR=data/mock OUTPUT_DIR=data/out \
//	  WINDOW_START=2019-01-01 WINDOW_END=2019-01-14 go run ./cmd/fuse
//	go run ./cmd/validate -raw-dir data/mock -out-dir data/out
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/airquality-fusion/internal/adapter/csvio"
	"github.com/couchcryptid/airquality-fusion/internal/analysis"
	"github.com/couchcryptid/airquality-fusion/internal/domain"
	"github.com/couchcryptid/airquality-fusion/internal/observability"
	"github.com/couchcryptid/airquality-fusion/internal/pipeline"
)

var (
	windowStart = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2019, time.January, 15, 0, 0, 0, 0, time.UTC)
)

// mockProfiles mirrors the bundled profiles.yaml for the genmock dataset.
var mockProfiles = []domain.CityProfile{
	{
		City:       "medellin",
		CenterLat:  6.2476,
		CenterLon:  -75.5658,
		RadiusKm:   10,
		Resolution: time.Hour,
		Pollutant:  domain.ValueRange{Min: 0, Max: 500},
		Source:     domain.SourceStations,
	},
	{
		City:            "kandy",
		CenterLat:       7.2906,
		CenterLon:       80.6337,
		RadiusKm:        5,
		Resolution:      3 * time.Hour,
		Pollutant:       domain.ValueRange{Min: 0, Max: 500},
		Source:          domain.SourceReanalysis,
		GroundTruthMean: 34.48,
	},
}

// Pinned counts for the genmock fixtures. The raw medellin series is
// 3 stations x 264 hours plus one duplicate row and a 24-hour sparse
// station; cleaning removes the airport and sparse stations entirely, the
// duplicate, two out-of-range values, one outlier, and the two-sided
// dropout spike.
const (
	expectRawMedellin  = 817
	expectRawSecondary = 72
	expectRawERA5      = 1344

	expectFusedMedellin = 595
	expectFusedKandy    = 336
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	rawDir := flag.String("raw-dir", "", "directory containing genmock raw CSV files")
	outDir := flag.String("out-dir", "", "directory containing fuse run artifacts")
	flag.Parse()

	if *rawDir == "" || *outDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*rawDir, *outDir); code != 0 {
		os.Exit(code)
	}
}

func run(rawDir, outDir string) int {
	fmt.Println("=== Air Quality Fusion Integrity Validation ===")
	fmt.Println()

	raw, p1 := loadRaw(rawDir)
	results, p2 := reproducePipeline(raw)

	written := map[string][]domain.FusedRecord{}
	for _, profile := range mockProfiles {
		recs, err := csvio.ReadFused(filepath.Join(outDir, profile.City+"_fused.csv"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load %s fused CSV: %v\n", profile.City, err)
			return 1
		}
		written[profile.City] = recs
	}
	combined, err := csvio.ReadFused(filepath.Join(outDir, "combined_fused.csv"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load combined CSV: %v\n", err)
		return 1
	}

	phases := []*phase{
		p1, p2,
		validateArtifacts(results, written, combined),
		validateComparison(written),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d raw observations, %d combined fused\n",
		len(raw.medellinObs)+len(raw.medellinSecondary), len(combined))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// rawData holds the parsed genmock fixtures.
type rawData struct {
	medellinObs       []domain.Observation
	medellinSecondary []domain.Observation
	medellinCells     []domain.ReanalysisCell
	kandyCells        []domain.ReanalysisCell
}

// ── Phase 1: Raw Fixture Integrity ──
// The raw CSVs must parse under full schema validation and match the pinned
// genmock row counts.

func loadRaw(dir string) (rawData, *phase) {
	p := &phase{name: "Phase 1: Raw Fixture Integrity"}
	var raw rawData
	var err error

	if raw.medellinObs, err = csvio.ReadObservations(filepath.Join(dir, "medellin_pm25.csv")); err != nil {
		p.errorf("medellin_pm25: %v", err)
	} else if len(raw.medellinObs) != expectRawMedellin {
		p.errorf("medellin_pm25: expected %d rows, got %d", expectRawMedellin, len(raw.medellinObs))
	}

	if raw.medellinSecondary, err = csvio.ReadObservations(filepath.Join(dir, "medellin_pm25_secondary.csv")); err != nil {
		p.errorf("medellin_pm25_secondary: %v", err)
	} else if len(raw.medellinSecondary) != expectRawSecondary {
		p.errorf("medellin_pm25_secondary: expected %d rows, got %d", expectRawSecondary, len(raw.medellinSecondary))
	}

	if raw.medellinCells, err = csvio.ReadReanalysis(filepath.Join(dir, "medellin_era5.csv")); err != nil {
		p.errorf("medellin_era5: %v", err)
	} else if len(raw.medellinCells) != expectRawERA5 {
		p.errorf("medellin_era5: expected %d rows, got %d", expectRawERA5, len(raw.medellinCells))
	}

	if raw.kandyCells, err = csvio.ReadReanalysis(filepath.Join(dir, "kandy_era5.csv")); err != nil {
		p.errorf("kandy_era5: %v", err)
	} else if len(raw.kandyCells) != expectRawERA5 {
		p.errorf("kandy_era5: expected %d rows, got %d", expectRawERA5, len(raw.kandyCells))
	} else {
		proxied := 0
		for _, c := range raw.kandyCells {
			if !math.IsNaN(c.PollutantProxy) {
				proxied++
			}
		}
		if proxied != len(raw.kandyCells) {
			p.errorf("kandy_era5: %d of %d rows missing pm25_proxy", len(raw.kandyCells)-proxied, len(raw.kandyCells))
		}
	}

	return raw, p
}

// ── Phase 2: Pipeline Reproduction ──
// Re-runs the full clean/derive/fuse path in-process and checks the pinned
// post-QC record counts.

func reproducePipeline(raw rawData) ([]pipeline.CityResult, *phase) {
	p := &phase{name: "Phase 2: Pipeline Reproduction"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := pipeline.NewRunner(
		domain.Window{Start: windowStart, End: windowEnd},
		domain.DefaultQCParams(),
		logger,
		observability.NewMetricsForTesting(),
	)

	obs := pipeline.CombineSources(raw.medellinObs, raw.medellinSecondary, logger)
	inputs := []pipeline.CityInput{
		{Profile: mockProfiles[0], Observations: obs, Cells: raw.medellinCells},
		{Profile: mockProfiles[1], Cells: raw.kandyCells},
	}

	results, err := runner.Run(context.Background(), inputs)
	if err != nil {
		p.errorf("pipeline run: %v", err)
		return nil, p
	}

	expected := map[string]int{"medellin": expectFusedMedellin, "kandy": expectFusedKandy}
	for _, res := range results {
		if want := expected[res.City]; len(res.Fused) != want {
			p.errorf("%s: expected %d fused records, got %d", res.City, want, len(res.Fused))
		}
	}
	for _, res := range results {
		if res.City == "kandy" && res.BiasFactor <= 0 {
			p.errorf("kandy: bias factor not reported (got %g)", res.BiasFactor)
		}
	}
	return results, p
}

// ── Phase 3: Artifact Consistency ──
// The written CSVs must match the in-process reproduction record for record,
// and the combined dataset must re-assemble without completeness violations.

func validateArtifacts(results []pipeline.CityResult, written map[string][]domain.FusedRecord, combined []domain.FusedRecord) *phase {
	p := &phase{name: "Phase 3: Artifact Consistency"}

	for _, res := range results {
		got := written[res.City]
		if len(got) != len(res.Fused) {
			p.errorf("%s: CSV has %d records, reproduction has %d", res.City, len(got), len(res.Fused))
			continue
		}
		byKey := make(map[string]domain.FusedRecord, len(got))
		for _, r := range got {
			byKey[r.Key()] = r
		}
		for _, want := range res.Fused {
			r, ok := byKey[want.Key()]
			if !ok {
				p.errorf("%s: key %s missing from CSV", res.City, want.Key())
				continue
			}
			if !floatEq(r.PM25, want.PM25) {
				p.errorf("%s: key %s: pm25 CSV=%g reproduction=%g", res.City, want.Key(), r.PM25, want.PM25)
			}
			if !floatEq(r.WindSpeed, want.WindSpeed) {
				p.errorf("%s: key %s: wind_speed CSV=%g reproduction=%g", res.City, want.Key(), r.WindSpeed, want.WindSpeed)
			}
			if r.NObs != want.NObs {
				p.errorf("%s: key %s: n_obs CSV=%d reproduction=%d", res.City, want.Key(), r.NObs, want.NObs)
			}
		}
	}

	perCity := make([][]domain.FusedRecord, 0, len(written))
	for _, profile := range mockProfiles {
		perCity = append(perCity, written[profile.City])
	}
	reassembled, err := pipeline.Assemble(perCity...)
	if err != nil {
		p.errorf("reassemble: %v", err)
		return p
	}
	if len(reassembled) != len(combined) {
		p.errorf("combined: CSV has %d records, reassembly has %d", len(combined), len(reassembled))
		return p
	}
	for i := range combined {
		if combined[i].Key() != reassembled[i].Key() {
			p.errorf("combined row %d: key %s, reassembly has %s", i, combined[i].Key(), reassembled[i].Key())
			break
		}
	}
	return p
}

// ── Phase 4: Comparison Sanity ──
// The cross-city statistics over the artifacts must all be computable; the
// mock dataset is large enough that no metric should degrade to NaN.

func validateComparison(written map[string][]domain.FusedRecord) *phase {
	p := &phase{name: "Phase 4: Comparison Sanity"}

	cmp := analysis.Compare(
		mockProfiles[0].City, written[mockProfiles[0].City],
		mockProfiles[1].City, written[mockProfiles[1].City],
	)
	for name, err := range cmp.Failures {
		p.errorf("metric %s failed: %v", name, err)
	}
	checks := map[string]float64{
		"ks_statistic":       cmp.KSStatistic,
		"ks_pvalue":          cmp.KSPValue,
		"mann_whitney_u":     cmp.MannWhitneyU,
		"cohens_d":           cmp.CohensD,
		"seasonal_cosine":    cmp.SeasonalCosine,
		"diurnal_cosine":     cmp.DiurnalCosine,
		"correlation_cosine": cmp.CorrelationCosine,
	}
	for name, v := range checks {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			p.errorf("metric %s is not finite: %v", name, v)
		}
	}
	switch cmp.Verdict {
	case analysis.VerdictJustified, analysis.VerdictNotJustified:
	default:
		p.errorf("unexpected verdict %q", cmp.Verdict)
	}
	return p
}

func floatEq(a, b float64) bool {
	// CSV round-trips through strconv at full precision.
	return math.Abs(a-b) < 1e-9
}
