package pipeline

import (
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

// CombineSources merges two collectors' point series for the same city into
// one raw series. Where their date ranges overlap, the preferred series
// wins outright and the secondary contributes only readings outside the
// preferred range; duplicate hours from two aggregators disagree slightly
// and mixing them inside the overlap would double-count stations.
func CombineSources(preferred, secondary []domain.Observation, logger *slog.Logger) []domain.Observation {
	if len(preferred) == 0 {
		return sortedCopy(secondary)
	}
	if len(secondary) == 0 {
		return sortedCopy(preferred)
	}

	pStart, pEnd := timeRange(preferred)
	combined := make([]domain.Observation, 0, len(preferred)+len(secondary))
	combined = append(combined, preferred...)
	carried := 0
	for _, o := range secondary {
		if o.Timestamp.Before(pStart) || o.Timestamp.After(pEnd) {
			combined = append(combined, o)
			carried++
		}
	}

	logger.Info("combined point series sources",
		"preferred", len(preferred),
		"secondary", len(secondary),
		"secondary_outside_overlap", carried,
		"total", len(combined),
	)
	sortObservations(combined)
	return combined
}

func timeRange(obs []domain.Observation) (time.Time, time.Time) {
	start, end := obs[0].Timestamp, obs[0].Timestamp
	for _, o := range obs[1:] {
		if o.Timestamp.Before(start) {
			start = o.Timestamp
		}
		if o.Timestamp.After(end) {
			end = o.Timestamp
		}
	}
	return start, end
}

func sortedCopy(obs []domain.Observation) []domain.Observation {
	out := make([]domain.Observation, len(obs))
	copy(out, obs)
	sortObservations(out)
	return out
}

func sortObservations(obs []domain.Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if !obs[i].Timestamp.Equal(obs[j].Timestamp) {
			return obs[i].Timestamp.Before(obs[j].Timestamp)
		}
		return obs[i].StationID < obs[j].StationID
	})
}
