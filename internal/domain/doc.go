// Package domain models the two-city PM2.5 / meteorology fusion dataset.
//
// # Data Sources
//
// Pollutant observations come from ground sensor networks (an OpenAQ-style
// aggregator, optionally combined with a municipal network export). The
// collector layer delivers them as flat CSV with one row per reading:
// timestamp (UTC ISO-8601), station id and name, WGS-84 coordinates, and the
// PM2.5 concentration in ug/m3. Sampling is hourly or coarser depending on
// the network; sub-hourly duplicates do occur and are dropped during QC.
//
// Meteorology comes from an ERA5-style reanalysis product, delivered as CSV
// with one row per grid point per hour:
//
//	u10, v10  10m wind components, m/s
//	t2m, d2m  2m temperature and dewpoint, K
//	blh       boundary layer height, m
//	sp        surface pressure, Pa
//
// plus an optional model-derived PM2.5 proxy (CAMS-style) used for cities
// without usable ground coverage. Reanalysis is gap-free by construction:
// a missing field or hour is an upstream contract violation, never something
// to interpolate over.
//
// # Units and Derivations
//
// Derived variables are pinned for reproducibility:
//
//	wind speed      sqrt(u^2 + v^2), m/s
//	wind direction  (atan2(v, u) * 180/pi) mod 360, degrees in [0, 360)
//	temperature     K - 273.15, degrees C
//	pressure        Pa / 100, hPa
//	humidity        Magnus formula with a = 17.625, b = 243.04 C,
//	                clamped to [0, 100] percent
//
// # Quality Control Conventions
//
// The PM2.5 plausibility envelope is [0, 500] ug/m3: sensor saturation and
// sentinel error codes fall outside it. Outlier fences use 3x IQR per
// station, deliberately wider than the conventional 1.5x so that genuine
// pollution episodes survive. A jump of more than 100 ug/m3 between two
// readings one sampling interval apart is treated as an electrochemical
// spike; the same jump across a data gap is not, since a gap is missing
// data rather than a transition. Stations must cover at least 10% of the
// window's expected sampling slots, rechecked after the removal stages.
//
// # Geographic Admissibility
//
// A station represents a city's air mass only within the profile's
// admissible radius of the city center, measured as great-circle distance
// with R = 6371 km. The two cities are geographically distant but
// geomorphically similar (valley/basin topography), which is what the
// cross-city statistical comparison in the analysis package is built to
// verify.
package domain
