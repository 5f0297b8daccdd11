package pipeline

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
	"github.com/couchcryptid/airquality-fusion/internal/observability"
)

// stage is one named step of the QC pipeline. Stages run strictly in order:
// later stages compute their statistics (coverage fractions, IQR fences)
// over the survivors of earlier stages, which materially changes the
// thresholds. Reordering is not safe, which is why the sequence is data,
// not inlined mutation.
type stage struct {
	name  string
	apply func([]domain.Observation) []domain.Observation
}

// Cleaner reduces a raw multi-station pollutant series to a station set
// that is physically valid, geographically admissible, sufficiently
// covered, outlier-free, and spike-free. It is a pure transform: dropping
// every station is a legitimate outcome, not an error.
type Cleaner struct {
	profile domain.CityProfile
	window  domain.Window
	qc      domain.QCParams
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCleaner creates a Cleaner for one city.
func NewCleaner(profile domain.CityProfile, window domain.Window, qc domain.QCParams, logger *slog.Logger, metrics *observability.Metrics) *Cleaner {
	return &Cleaner{
		profile: profile,
		window:  window,
		qc:      qc,
		logger:  logger,
		metrics: metrics,
	}
}

// Clean runs the six QC stages in order, logging before/after record counts
// for each. The input is not modified.
func (c *Cleaner) Clean(obs []domain.Observation) []domain.Observation {
	// Stable order up front so every per-station computation and the final
	// output are deterministic across runs.
	current := make([]domain.Observation, len(obs))
	copy(current, obs)
	sortByStationTime(current)

	for _, s := range c.stages() {
		before := len(current)
		current = s.apply(current)
		removed := before - len(current)
		c.metrics.StageRemoved.WithLabelValues(c.profile.City, s.name).Add(float64(removed))
		c.logger.Info("qc stage complete",
			"city", c.profile.City,
			"stage", s.name,
			"in", before,
			"out", len(current),
			"removed", removed,
		)
	}

	if len(current) == 0 {
		c.logger.Warn("all observations removed during cleaning", "city", c.profile.City)
	}
	return current
}

func (c *Cleaner) stages() []stage {
	return []stage{
		{"range_validation", c.validateRange},
		{"geographic_admission", c.admitGeographic},
		{"coverage_filter", func(o []domain.Observation) []domain.Observation { return c.filterCoverage(o, "coverage_filter") }},
		{"iqr_outliers", c.removeOutliers},
		{"spike_removal", c.removeSpikes},
		{"coverage_recheck", func(o []domain.Observation) []domain.Observation { return c.filterCoverage(o, "coverage_recheck") }},
	}
}

// validateRange drops observations outside the run window or the physically
// plausible envelope (sentinel error codes, sensor saturation), and exact
// duplicate (station, timestamp) readings, keeping the first. Meteorology is
// only guaranteed gap-free inside the window, so anything outside it can
// never fuse.
func (c *Cleaner) validateRange(obs []domain.Observation) []domain.Observation {
	seen := make(map[string]struct{}, len(obs))
	kept := obs[:0:0]
	for _, o := range obs {
		if o.Timestamp.IsZero() || !c.profile.Pollutant.Contains(o.Value) {
			continue
		}
		if o.Timestamp.Before(c.window.Start) || !o.Timestamp.Before(c.window.End) {
			continue
		}
		key := o.StationID + "|" + o.Timestamp.UTC().Format(time.RFC3339)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, o)
	}
	return kept
}

// admitGeographic drops observations from coordinates beyond the city's
// admissible radius. Station coordinates are static, but filtering per
// observation is equivalent and keeps the stage a pure record filter.
func (c *Cleaner) admitGeographic(obs []domain.Observation) []domain.Observation {
	kept := obs[:0:0]
	excluded := make(map[string]struct{})
	for _, o := range obs {
		if !c.profile.Admits(o.Lat, o.Lon) {
			excluded[o.StationID] = struct{}{}
			continue
		}
		kept = append(kept, o)
	}
	for _, id := range sortedKeys(excluded) {
		c.logger.Warn("station beyond admissible radius",
			"city", c.profile.City, "station", id, "radius_km", c.profile.RadiusKm)
	}
	return kept
}

// filterCoverage drops every observation of any station covering fewer than
// the minimum fraction of the window's expected sampling slots. Statistics
// over a handful of scattered hours misrepresent seasonal and diurnal
// structure. The same filter runs twice: once before the statistical
// stages and once after, because outlier and spike removal can push a
// station back under the floor.
func (c *Cleaner) filterCoverage(obs []domain.Observation, stageName string) []domain.Observation {
	expected := c.window.ExpectedSlots(c.profile.Resolution)
	if expected == 0 {
		return obs
	}

	slots := make(map[string]map[time.Time]struct{})
	for _, o := range obs {
		s, ok := slots[o.StationID]
		if !ok {
			s = make(map[time.Time]struct{})
			slots[o.StationID] = s
		}
		s[o.Timestamp.UTC().Truncate(c.profile.Resolution)] = struct{}{}
	}

	dropped := make(map[string]struct{})
	for id, s := range slots {
		coverage := float64(len(s)) / float64(expected)
		if coverage < c.qc.MinCoverage {
			dropped[id] = struct{}{}
		}
	}
	for _, id := range sortedKeys(dropped) {
		c.metrics.StationsDropped.WithLabelValues(c.profile.City, stageName).Inc()
		c.logger.Warn("station below minimum coverage",
			"city", c.profile.City,
			"station", id,
			"covered_slots", len(slots[id]),
			"expected_slots", expected,
			"min_coverage", c.qc.MinCoverage,
		)
	}

	kept := obs[:0:0]
	for _, o := range obs {
		if _, gone := dropped[o.StationID]; gone {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}

// removeOutliers drops observations outside [Q1 - k*IQR, Q3 + k*IQR],
// computed per station over the current survivors.
func (c *Cleaner) removeOutliers(obs []domain.Observation) []domain.Observation {
	type fence struct{ lo, hi float64 }
	fences := make(map[string]fence)

	for id, group := range groupByStation(obs) {
		values := make([]float64, len(group))
		for i, o := range group {
			values[i] = o.Value
		}
		sort.Float64s(values)
		q1 := stat.Quantile(0.25, stat.LinInterp, values, nil)
		q3 := stat.Quantile(0.75, stat.LinInterp, values, nil)
		iqr := q3 - q1
		fences[id] = fence{lo: q1 - c.qc.IQRMultiplier*iqr, hi: q3 + c.qc.IQRMultiplier*iqr}
	}

	kept := obs[:0:0]
	for _, o := range obs {
		f := fences[o.StationID]
		if o.Value < f.lo || o.Value > f.hi {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}

// removeSpikes drops an observation when it jumps more than the spike
// threshold from its predecessor AND the two readings are consecutive on
// the expected sampling grid. A jump across a longer gap is missing data,
// not a spike, and must not trigger.
func (c *Cleaner) removeSpikes(obs []domain.Observation) []domain.Observation {
	drop := make(map[int]struct{})
	index := make(map[string][]int) // station -> positions in obs, already time-ordered
	for i, o := range obs {
		index[o.StationID] = append(index[o.StationID], i)
	}

	for _, positions := range index {
		for k := 1; k < len(positions); k++ {
			prev, cur := obs[positions[k-1]], obs[positions[k]]
			if cur.Timestamp.Sub(prev.Timestamp) != c.profile.Resolution {
				continue
			}
			jump := cur.Value - prev.Value
			if jump < 0 {
				jump = -jump
			}
			if jump > c.qc.SpikeThreshold {
				drop[positions[k]] = struct{}{}
			}
		}
	}

	kept := obs[:0:0]
	for i, o := range obs {
		if _, gone := drop[i]; gone {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}

func groupByStation(obs []domain.Observation) map[string][]domain.Observation {
	groups := make(map[string][]domain.Observation)
	for _, o := range obs {
		groups[o.StationID] = append(groups[o.StationID], o)
	}
	return groups
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortByStationTime(obs []domain.Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].StationID != obs[j].StationID {
			return obs[i].StationID < obs[j].StationID
		}
		return obs[i].Timestamp.Before(obs[j].Timestamp)
	})
}
