package analysis

import (
	"math"
	"sort"

	moremath "github.com/aclements/go-moremath/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

const (
	// minSamples is the hard floor below which a statistic is undefined.
	minSamples = 2

	// lowPowerSamples marks a comparison as under-powered without failing
	// it; conclusions drawn from fewer readings than this deserve a caveat.
	lowPowerSamples = 30

	// verdictThreshold is the correlation-structure cosine similarity above
	// which transfer learning between the two cities is considered
	// justified.
	verdictThreshold = 0.80
)

// Verdict labels for the transfer-learning justification.
const (
	VerdictJustified    = "JUSTIFIED"
	VerdictNotJustified = "NOT_JUSTIFIED"
)

// Comparison is the cross-city similarity result. Metrics that could not
// be computed are NaN with the reason recorded in Failures: a borderline or
// missing score must stay auditable, never silently defaulted.
type Comparison struct {
	CityA, CityB     string
	SampleA, SampleB int

	// Distribution difference (informational; no threshold applied).
	KSStatistic  float64
	KSPValue     float64
	MannWhitneyU float64
	MannWhitneyP float64
	CohensD      float64

	// Pattern similarity.
	SeasonalCosine  float64
	SeasonalPearson float64
	DiurnalCosine   float64
	DiurnalPearson  float64
	DayOfWeekCosine float64

	// CorrelationCosine is the cosine similarity between the two cities'
	// pollutant-vs-meteorology correlation vectors: the headline
	// transfer-learning justification metric.
	CorrelationCosine float64

	Verdict  string
	LowPower bool
	Failures map[string]error // metric name -> why it could not be computed
}

// Compare computes every similarity metric between two cities' fused
// datasets. A metric lacking its minimum sample size fails individually
// with an InsufficientDataError in Failures; the remaining metrics are
// still computed.
func Compare(cityA string, a []domain.FusedRecord, cityB string, b []domain.FusedRecord) *Comparison {
	c := &Comparison{
		CityA:    cityA,
		CityB:    cityB,
		SampleA:  len(a),
		SampleB:  len(b),
		Failures: make(map[string]error),
		LowPower: len(a) < lowPowerSamples || len(b) < lowPowerSamples,
	}

	pmA := pollutantValues(a)
	pmB := pollutantValues(b)

	if err := c.requireSamples("distribution_tests", pmA, pmB); err != nil {
		c.KSStatistic, c.KSPValue = math.NaN(), math.NaN()
		c.MannWhitneyU, c.MannWhitneyP = math.NaN(), math.NaN()
		c.CohensD = math.NaN()
	} else {
		c.distributionTests(pmA, pmB)
	}

	if err := c.requireSamples("pattern_similarity", pmA, pmB); err != nil {
		c.SeasonalCosine, c.SeasonalPearson = math.NaN(), math.NaN()
		c.DiurnalCosine, c.DiurnalPearson = math.NaN(), math.NaN()
		c.DayOfWeekCosine = math.NaN()
	} else {
		c.patternSimilarity(a, b)
	}

	if err := c.requireSamples("correlation_structure", pmA, pmB); err != nil {
		c.CorrelationCosine = math.NaN()
	} else {
		c.CorrelationCosine = CosineSimilarity(correlationVector(a), correlationVector(b))
	}

	if !math.IsNaN(c.CorrelationCosine) && c.CorrelationCosine > verdictThreshold {
		c.Verdict = VerdictJustified
	} else {
		c.Verdict = VerdictNotJustified
	}
	return c
}

func (c *Comparison) requireSamples(metric string, a, b []float64) error {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < minSamples {
		err := &domain.InsufficientDataError{Metric: metric, Need: minSamples, Got: n}
		c.Failures[metric] = err
		return err
	}
	return nil
}

func (c *Comparison) distributionTests(pmA, pmB []float64) {
	sortedA := sortedCopy(pmA)
	sortedB := sortedCopy(pmB)

	c.KSStatistic = stat.KolmogorovSmirnov(sortedA, nil, sortedB, nil)
	c.KSPValue = ksPValue(c.KSStatistic, len(sortedA), len(sortedB))

	if res, err := moremath.MannWhitneyUTest(pmA, pmB, moremath.LocationDiffers); err != nil {
		c.Failures["mann_whitney"] = err
		c.MannWhitneyU, c.MannWhitneyP = math.NaN(), math.NaN()
	} else {
		c.MannWhitneyU = res.U
		c.MannWhitneyP = res.P
	}

	c.CohensD = cohensD(pmA, pmB)
}

func (c *Comparison) patternSimilarity(a, b []domain.FusedRecord) {
	seasonalA, seasonalB := SeasonalPattern(a), SeasonalPattern(b)
	c.SeasonalCosine = CosineSimilarity(seasonalA, seasonalB)
	c.SeasonalPearson = stat.Correlation(seasonalA, seasonalB, nil)

	// A city with no intra-day granularity (fixed daily timestamps) yields
	// a constant diurnal vector; its direction carries no pattern
	// information, so similarity is defined as 0 rather than NaN.
	diurnalA, diurnalB := DiurnalPattern(a), DiurnalPattern(b)
	if isConstant(diurnalA) || isConstant(diurnalB) {
		c.DiurnalCosine = 0
		c.DiurnalPearson = 0
	} else {
		c.DiurnalCosine = CosineSimilarity(diurnalA, diurnalB)
		c.DiurnalPearson = stat.Correlation(diurnalA, diurnalB, nil)
	}

	c.DayOfWeekCosine = CosineSimilarity(DayOfWeekPattern(a), DayOfWeekPattern(b))
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|), or 0 when either vector
// has zero norm. Symmetric in its arguments.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cohensD is the standardized mean difference (b - a) over the pooled
// standard deviation. Zero when the pooled variance vanishes.
func cohensD(a, b []float64) float64 {
	na, nb := float64(len(a)), float64(len(b))
	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	pooled := math.Sqrt(((na-1)*varA + (nb-1)*varB) / (na + nb - 2))
	if pooled == 0 {
		return 0
	}
	return (meanB - meanA) / pooled
}

// ksPValue approximates the two-sample Kolmogorov-Smirnov p-value with the
// standard asymptotic Kolmogorov distribution series
// Q(lambda) = 2 * sum_{j>=1} (-1)^(j-1) exp(-2 j^2 lambda^2).
func ksPValue(d float64, n1, n2 int) float64 {
	if d <= 0 {
		return 1
	}
	ne := float64(n1) * float64(n2) / float64(n1+n2)
	sqrtNe := math.Sqrt(ne)
	lambda := (sqrtNe + 0.12 + 0.11/sqrtNe) * d

	sum := 0.0
	for j := 1; j <= 100; j++ {
		term := math.Exp(-2 * float64(j*j) * lambda * lambda)
		if j%2 == 1 {
			sum += term
		} else {
			sum -= term
		}
		if term < 1e-12 {
			break
		}
	}
	p := 2 * sum
	return math.Min(math.Max(p, 0), 1)
}

func pollutantValues(recs []domain.FusedRecord) []float64 {
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i] = r.PM25
	}
	return out
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func isConstant(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] != v[0] {
			return false
		}
	}
	return true
}
