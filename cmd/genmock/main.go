// Command genmock generates a deterministic two-city mock dataset in the raw
// CSV layout the fuse command reads. The point series carries deliberate
// defects (negative and off-scale values, duplicate rows, an out-of-radius
// station, a sparse station, extreme outliers, and sensor spikes) so a run
// over the fixtures exercises every cleaning stage.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
//
// Pair it with WINDOW_START=2019-01-01 WINDOW_END=2019-01-14 and the
// bundled profiles.yaml.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var (
	windowStart = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2019, time.January, 15, 0, 0, 0, 0, time.UTC) // exclusive

	// The primary collector is down for the first three days; the secondary
	// file covers the outage so the gap-fill combine has work to do.
	primaryStart = windowStart.Add(72 * time.Hour)
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for mock CSV files")
	flag.Parse()
	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	// Fixed seed: fixtures must be byte-identical across runs.
	rng := rand.New(rand.NewSource(42))

	files := []struct {
		name string
		rows [][]string
	}{
		{"medellin_pm25.csv", medellinObservations(rng)},
		{"medellin_pm25_secondary.csv", medellinSecondary(rng)},
		{"medellin_era5.csv", reanalysisRows(rng, 6.2476, -75.5658, false)},
		{"kandy_era5.csv", reanalysisRows(rng, 7.2906, 80.6337, true)},
	}
	for _, f := range files {
		path := filepath.Join(*outDir, f.name)
		if err := writeCSV(path, f.rows); err != nil {
			return err
		}
		log.Printf("%s: %d rows", f.name, len(f.rows)-1)
	}
	return nil
}

// medellinObservations builds the hourly ground-station series. Stations:
//
//	st-poblado, st-centro  clean, inside the 10 km radius
//	st-airport             ~18 km out, dropped by geographic admission
//	st-sparse              reports one day out of fourteen, dropped by coverage
func medellinObservations(rng *rand.Rand) [][]string {
	rows := [][]string{{"datetime_utc", "location_id", "location_name", "lat", "lon", "pm25", "source"}}

	stations := []struct {
		id, name string
		lat, lon float64
		base     float64
	}{
		{"st-poblado", "El Poblado", 6.2090, -75.5700, 24},
		{"st-centro", "Centro", 6.2520, -75.5660, 30},
		{"st-airport", "Rionegro Airport", 6.1645, -75.4230, 22},
	}

	// Per-stage defects, replacing the clean st-centro values at those hours
	// so each one reaches the stage it is meant to trip. The dropout at hour
	// 150 sits inside the pollution episode: the value itself is ordinary,
	// only the >100 jump from the episode plateau marks it as a spike, and
	// the episode keeps the IQR fences wide enough not to catch it first.
	centroDefects := map[int]float64{
		3:   -4.0,  // below the physical range
		7:   612.0, // above the physical range
		50:  480.0, // survives range check, removed as a 3x IQR outlier
		150: 1.0,   // one-hour sensor dropout, removed as a spike
	}

	for _, st := range stations {
		h := 0
		for ts := primaryStart; ts.Before(windowEnd); ts = ts.Add(time.Hour) {
			v := diurnalPM(st.base, ts, rng)
			if st.id == "st-centro" {
				v += 100 * episodeFactor(h)
				if dv, ok := centroDefects[h]; ok {
					v = dv
				}
			}
			rows = append(rows, obsRow(ts, st.id, st.name, st.lat, st.lon, v))
			h++
		}
	}

	// Duplicate station-hour key, dropped by the first-wins rule.
	rows = append(rows, obsRow(primaryStart.Add(12*time.Hour), "st-centro", "Centro", 6.2520, -75.5660, 33.0))

	// Sparse station: first 24 hours only, well below 10% of the window.
	for ts := windowStart; ts.Before(windowStart.Add(24 * time.Hour)); ts = ts.Add(time.Hour) {
		rows = append(rows, obsRow(ts, "st-sparse", "Sparse", 6.2400, -75.5800, diurnalPM(26, ts, rng)))
	}

	return rows
}

// medellinSecondary covers the primary collector's three-day outage at the
// start of the window, exercising the gap-fill combine.
func medellinSecondary(rng *rand.Rand) [][]string {
	rows := [][]string{{"datetime_utc", "location_id", "location_name", "lat", "lon", "pm25", "source"}}
	for ts := windowStart; ts.Before(primaryStart); ts = ts.Add(time.Hour) {
		rows = append(rows, obsRow(ts, "st-centro", "Centro", 6.2520, -75.5660, diurnalPM(30, ts, rng)))
	}
	return rows
}

// reanalysisRows builds a gap-free hourly 2x2 grid around the city center.
// withProxy adds the model pollutant column for the reanalysis-sourced city.
func reanalysisRows(rng *rand.Rand, centerLat, centerLon float64, withProxy bool) [][]string {
	header := []string{"datetime_utc", "lat", "lon", "u10", "v10", "t2m", "d2m", "blh", "sp"}
	if withProxy {
		header = append(header, "pm25_proxy")
	}
	rows := [][]string{header}

	offsets := []float64{-0.05, 0.05}
	for ts := windowStart; ts.Before(windowEnd); ts = ts.Add(time.Hour) {
		hour := float64(ts.Hour())
		for _, dlat := range offsets {
			for _, dlon := range offsets {
				tempK := 295 + 4*math.Sin((hour-9)/24*2*math.Pi) + rng.Float64()
				row := []string{
					ts.Format(time.RFC3339),
					num(centerLat + dlat),
					num(centerLon + dlon),
					num(1.5 + rng.Float64()),         // u10
					num(-0.5 + rng.Float64()),        // v10
					num(tempK),                       // t2m
					num(tempK - 3 - 2*rng.Float64()), // d2m
					num(400 + 600*math.Sin(hour/24*math.Pi) + 50*rng.Float64()), // blh
					num(84000 + 200*rng.Float64()),                              // sp, ~1600m elevation
				}
				if withProxy {
					row = append(row, num(diurnalPM(55, ts, rng)))
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// episodeFactor shapes a five-day pollution episode on st-centro, ramping
// over six hours so the onset never looks like a sensor spike.
func episodeFactor(h int) float64 {
	const start, end, ramp = 96, 216, 6.0
	if h < start || h >= end {
		return 0
	}
	f := math.Min(float64(h-start+1)/ramp, float64(end-h)/ramp)
	return math.Min(f, 1)
}

// diurnalPM produces a plausible PM2.5 value with a morning rush-hour peak.
func diurnalPM(base float64, ts time.Time, rng *rand.Rand) float64 {
	hour := float64(ts.Hour())
	v := base + 8*math.Sin((hour-7)/24*2*math.Pi) + 4*rng.NormFloat64()
	return math.Max(v, 1)
}

func obsRow(ts time.Time, id, name string, lat, lon, pm25 float64) []string {
	return []string{ts.Format(time.RFC3339), id, name, num(lat), num(lon),
		strconv.FormatFloat(pm25, 'f', 1, 64), "mock"}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
