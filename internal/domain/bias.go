package domain

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// BiasFactor computes the multiplicative correction that aligns the mean of
// a reanalysis-derived pollutant series with an independent ground-truth
// mean. The factor is a property of the city/source pairing: computed once
// from the full raw series, it can be pinned in the CityProfile and reused
// for future runs against the same reference.
func BiasFactor(city string, raw []float64, groundTruthMean float64) (float64, error) {
	if len(raw) == 0 {
		return 0, &DataError{City: city, Unit: "reanalysis-proxy", Reason: "empty series, cannot derive bias factor"}
	}
	if !(groundTruthMean > 0) {
		return 0, &DataError{
			City: city, Unit: "reanalysis-proxy",
			Reason: fmt.Sprintf("ground truth mean must be positive, got %v", groundTruthMean),
		}
	}
	mean := stat.Mean(raw, nil)
	if !(mean > 0) {
		return 0, &DataError{
			City: city, Unit: "reanalysis-proxy",
			Reason: fmt.Sprintf("non-positive raw series mean %v, cannot derive bias factor", mean),
		}
	}
	return groundTruthMean / mean, nil
}

// CorrectBias applies a multiplicative factor uniformly across a series.
// Multiplicative rather than additive: it preserves the relative variance
// structure and cannot produce negative concentrations.
func CorrectBias(raw []float64, factor float64) []float64 {
	corrected := make([]float64, len(raw))
	for i, v := range raw {
		corrected[i] = v * factor
	}
	return corrected
}
