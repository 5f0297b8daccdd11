package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

// citySeries builds n hourly records whose meteorology varies linearly with
// the index, so the PM-meteorology correlation signs are fixed and known.
func citySeries(city string, n int, pmScale float64) []domain.FusedRecord {
	recs := make([]domain.FusedRecord, 0, n)
	for i := 0; i < n; i++ {
		r := rec(city, "st-1", statsBase.Add(time.Duration(i)*time.Hour), pmScale*(10+float64(i)))
		r.WindSpeed = float64(i)
		r.TemperatureC = 50 - float64(i)
		r.RelativeHumidity = 30 + 2*float64(i)
		r.BoundaryLayerHeight = 100 + 3*float64(i)
		recs = append(recs, r)
	}
	return recs
}

func TestCompare_ProportionalCorrelationStructure(t *testing.T) {
	// Pearson correlation is scale invariant, so city B with PM2.5 doubled
	// has exactly the same PM-meteorology correlation vector as city A.
	a := citySeries("medellin", 48, 1)
	b := citySeries("kandy", 48, 2)

	cmp := Compare("medellin", a, "kandy", b)

	assert.Empty(t, cmp.Failures)
	assert.False(t, cmp.LowPower)
	assert.Equal(t, 48, cmp.SampleA)
	assert.Equal(t, 48, cmp.SampleB)

	assert.InDelta(t, 1.0, cmp.CorrelationCosine, 1e-9)
	assert.Equal(t, VerdictJustified, cmp.Verdict)

	// Identical shapes, different amplitude.
	assert.InDelta(t, 1.0, cmp.DiurnalCosine, 1e-9)
	assert.InDelta(t, 1.0, cmp.DiurnalPearson, 1e-9)
	assert.InDelta(t, 1.0, cmp.SeasonalCosine, 1e-9)
	assert.InDelta(t, 1.0, cmp.DayOfWeekCosine, 1e-9)

	// B is shifted up by a full distribution width, so the KS statistic
	// and the effect size are both large.
	assert.Greater(t, cmp.KSStatistic, 0.3)
	assert.Less(t, cmp.KSPValue, 0.05)
	assert.Greater(t, math.Abs(cmp.CohensD), 0.8)
	assert.False(t, math.IsNaN(cmp.MannWhitneyU))
	assert.False(t, math.IsNaN(cmp.MannWhitneyP))
}

func TestCompare_ConstantDiurnalPattern(t *testing.T) {
	a := citySeries("medellin", 48, 1)

	// Flat PM2.5 around the clock: every diurnal bucket holds the same
	// mean, which carries no shape information.
	b := make([]domain.FusedRecord, 0, 48)
	for i := 0; i < 48; i++ {
		b = append(b, rec("kandy", "st-1", statsBase.Add(time.Duration(i)*time.Hour), 25))
	}

	cmp := Compare("medellin", a, "kandy", b)

	assert.Zero(t, cmp.DiurnalCosine)
	assert.Zero(t, cmp.DiurnalPearson)
	assert.NotContains(t, cmp.Failures, "pattern_similarity")

	// Constant PM2.5 has no correlation with anything, so city B's
	// correlation vector is all zeros and the cosine degrades to 0.
	assert.Zero(t, cmp.CorrelationCosine)
	assert.Equal(t, VerdictNotJustified, cmp.Verdict)
}

func TestCompare_InsufficientSamples(t *testing.T) {
	a := citySeries("medellin", 48, 1)
	b := citySeries("kandy", 1, 1)

	cmp := Compare("medellin", a, "kandy", b)

	for _, group := range []string{"distribution_tests", "pattern_similarity", "correlation_structure"} {
		require.Contains(t, cmp.Failures, group)
		var insufficient *domain.InsufficientDataError
		assert.ErrorAs(t, cmp.Failures[group], &insufficient)
	}

	assert.True(t, math.IsNaN(cmp.KSStatistic))
	assert.True(t, math.IsNaN(cmp.CohensD))
	assert.True(t, math.IsNaN(cmp.CorrelationCosine))
	assert.Equal(t, VerdictNotJustified, cmp.Verdict)
	assert.True(t, cmp.LowPower)
}

func TestCompare_LowPowerFlag(t *testing.T) {
	a := citySeries("medellin", 10, 1)
	b := citySeries("kandy", 10, 2)

	cmp := Compare("medellin", a, "kandy", b)
	assert.True(t, cmp.LowPower)
	assert.Empty(t, cmp.Failures)
}

func TestCompare_IdenticalDistributions(t *testing.T) {
	a := citySeries("medellin", 48, 1)
	b := citySeries("kandy", 48, 1)

	cmp := Compare("medellin", a, "kandy", b)
	assert.InDelta(t, 0.0, cmp.KSStatistic, 1e-9)
	assert.InDelta(t, 1.0, cmp.KSPValue, 1e-6)
	assert.InDelta(t, 0.0, cmp.CohensD, 1e-9)
	assert.Equal(t, VerdictJustified, cmp.Verdict)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"proportional", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 2}, []float64{-1, -2}, -1},
		{"zero norm", []float64{0, 0}, []float64{1, 2}, 0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}

	a := []float64{-0.4, -0.1, 0.2, -0.3, 0.1}
	b := []float64{0.3, 0.7, -0.2, 0.5, 0.9}
	assert.Equal(t, CosineSimilarity(a, b), CosineSimilarity(b, a), "symmetric in its arguments")
}

func TestCohensD(t *testing.T) {
	a := []float64{0, 0, 2, 2}
	b := []float64{1, 1, 3, 3}
	// Both samples have variance 4/3; the means differ by 1.
	assert.InDelta(t, 1/math.Sqrt(4.0/3.0), cohensD(a, b), 1e-9)

	assert.Zero(t, cohensD([]float64{5, 5, 5}, []float64{5, 5, 5}), "zero pooled deviation")
	assert.InDelta(t, -cohensD(a, b), cohensD(b, a), 1e-9, "sign follows direction")
}

func TestKSPValue(t *testing.T) {
	assert.Equal(t, 1.0, ksPValue(0, 100, 100))
	assert.Less(t, ksPValue(0.9, 100, 100), 1e-6)

	p := ksPValue(0.2, 50, 50)
	assert.Greater(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}
