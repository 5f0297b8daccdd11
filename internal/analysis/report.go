package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/airquality-fusion/internal/domain"
)

// SimilarityReport is the terminal analysis artifact: per-city summaries,
// the cross-city comparison, and the transfer-learning verdict. It is
// produced once after both cities' fused datasets exist and never mutated.
type SimilarityReport struct {
	RunID       string
	GeneratedAt time.Time
	SummaryA    CitySummary
	SummaryB    CitySummary
	Comparison  *Comparison
}

// NewReport assembles a report from the per-city summaries and comparison.
// GeneratedAt comes from the package clock so it freezes under test.
func NewReport(runID string, a, b CitySummary, cmp *Comparison) *SimilarityReport {
	return &SimilarityReport{
		RunID:       runID,
		GeneratedAt: domain.Now(),
		SummaryA:    a,
		SummaryB:    b,
		Comparison:  cmp,
	}
}

// Values returns the structured statistic-name -> value map consumed by the
// reporting layer. Failed metrics are omitted; they appear in the rendered
// report with their failure reason instead.
func (r *SimilarityReport) Values() map[string]float64 {
	c := r.Comparison
	out := map[string]float64{}
	put := func(name string, v float64) {
		if !math.IsNaN(v) {
			out[name] = v
		}
	}
	put("ks_statistic", c.KSStatistic)
	put("ks_pvalue", c.KSPValue)
	put("mann_whitney_u", c.MannWhitneyU)
	put("mann_whitney_pvalue", c.MannWhitneyP)
	put("cohens_d", c.CohensD)
	put("seasonal_cosine_similarity", c.SeasonalCosine)
	put("seasonal_pearson_r", c.SeasonalPearson)
	put("diurnal_cosine_similarity", c.DiurnalCosine)
	put("diurnal_pearson_r", c.DiurnalPearson)
	put("day_of_week_cosine_similarity", c.DayOfWeekCosine)
	put("correlation_structure_similarity", c.CorrelationCosine)
	return out
}

// Render produces the human-readable comparison report.
func (r *SimilarityReport) Render() string {
	var b strings.Builder
	rule := strings.Repeat("=", 70)

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "PM2.5 CROSS-CITY STATISTICAL COMPARISON")
	fmt.Fprintf(&b, "Cities: %s vs %s\n", r.SummaryA.City, r.SummaryB.City)
	fmt.Fprintf(&b, "Run %s, generated %s\n", r.RunID, r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)

	for _, s := range []CitySummary{r.SummaryA, r.SummaryB} {
		renderSummary(&b, s)
	}

	renderComparison(&b, r.Comparison)
	renderInterpretation(&b, r.Comparison)
	return b.String()
}

func renderSummary(b *strings.Builder, s CitySummary) {
	fmt.Fprintf(b, "--- %s ---\n", strings.ToUpper(s.City))
	if s.Records == 0 {
		fmt.Fprintln(b, "  No data available.")
		fmt.Fprintln(b)
		return
	}

	fmt.Fprintf(b, "  Records:        %d\n", s.Records)
	fmt.Fprintf(b, "  Stations:       %d\n", s.Stations)
	fmt.Fprintf(b, "  Date range:     %s to %s\n",
		s.DateMin.Format(time.RFC3339), s.DateMax.Format(time.RFC3339))
	fmt.Fprintf(b, "  Unique hours:   %d\n", s.UniqueHours)
	fmt.Fprintf(b, "  PM2.5 mean:     %.2f ug/m3\n", s.Mean)
	fmt.Fprintf(b, "  PM2.5 median:   %.2f ug/m3\n", s.Median)
	fmt.Fprintf(b, "  PM2.5 std:      %.2f ug/m3\n", s.Std)
	fmt.Fprintf(b, "  PM2.5 range:    [%.1f, %.1f]\n", s.Min, s.Max)
	fmt.Fprintf(b, "  PM2.5 IQR:      [%.1f, %.1f]\n", s.P25, s.P75)
	fmt.Fprintf(b, "  PM2.5 skewness: %.3f\n", s.Skewness)
	fmt.Fprintf(b, "  PM2.5 kurtosis: %.3f\n", s.Kurtosis)
	fmt.Fprintf(b, "  %% above WHO AQG (15):  %.1f%%\n", s.PctAboveAQG)
	fmt.Fprintf(b, "  %% above WHO IT-1 (35): %.1f%%\n", s.PctAboveIT1)
	for _, m := range s.Met {
		fmt.Fprintf(b, "  %s: %.2f +/- %.2f\n", m.Name, m.Mean, m.Std)
	}
	fmt.Fprintln(b)
}

func renderComparison(b *strings.Builder, c *Comparison) {
	fmt.Fprintln(b, "--- CROSS-CITY COMPARISON ---")
	if c.LowPower {
		fmt.Fprintf(b, "  NOTE: under-powered comparison (samples: %d vs %d, below %d)\n",
			c.SampleA, c.SampleB, lowPowerSamples)
	}

	line := func(label string, v float64, format string) {
		if math.IsNaN(v) {
			fmt.Fprintf(b, "  %s unavailable\n", label)
			return
		}
		fmt.Fprintf(b, "  %s "+format+"\n", label, v)
	}
	line("KS statistic:        ", c.KSStatistic, "%.4f")
	line("KS p-value:          ", c.KSPValue, "%.2e")
	line("Mann-Whitney U:      ", c.MannWhitneyU, "%.0f")
	line("Mann-Whitney p:      ", c.MannWhitneyP, "%.2e")
	if !math.IsNaN(c.CohensD) {
		fmt.Fprintf(b, "  Cohen's d:            %.4f (%s)\n", c.CohensD, effectMagnitude(c.CohensD))
	}

	fmt.Fprintln(b)
	fmt.Fprintln(b, "  Pattern similarity:")
	line("  Seasonal cosine:   ", c.SeasonalCosine, "%.4f")
	line("  Seasonal Pearson r:", c.SeasonalPearson, "%.4f")
	line("  Diurnal cosine:    ", c.DiurnalCosine, "%.4f")
	line("  Diurnal Pearson r: ", c.DiurnalPearson, "%.4f")
	line("  Day-of-week cosine:", c.DayOfWeekCosine, "%.4f")
	line("  Met-PM2.5 corr sim:", c.CorrelationCosine, "%.4f")

	if len(c.Failures) > 0 {
		fmt.Fprintln(b)
		fmt.Fprintln(b, "  Metrics not computed:")
		names := make([]string, 0, len(c.Failures))
		for name := range c.Failures {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(b, "    %s: %v\n", name, c.Failures[name])
		}
	}
	fmt.Fprintln(b)
}

func renderInterpretation(b *strings.Builder, c *Comparison) {
	fmt.Fprintln(b, "--- TRANSFER LEARNING JUSTIFICATION ---")

	var supports, challenges []string
	if !math.IsNaN(c.DiurnalCosine) {
		switch {
		case c.DiurnalCosine > 0.8:
			supports = append(supports, fmt.Sprintf("similar diurnal PM2.5 patterns (cosine %.3f)", c.DiurnalCosine))
		case c.DiurnalCosine > 0.5:
			supports = append(supports, fmt.Sprintf("moderately similar diurnal patterns (cosine %.3f)", c.DiurnalCosine))
		default:
			challenges = append(challenges, fmt.Sprintf("different diurnal patterns (cosine %.3f)", c.DiurnalCosine))
		}
	}
	if !math.IsNaN(c.CorrelationCosine) {
		if c.CorrelationCosine > verdictThreshold {
			supports = append(supports, fmt.Sprintf("similar meteorology-PM2.5 relationships (cosine %.3f)", c.CorrelationCosine))
		} else {
			challenges = append(challenges, fmt.Sprintf("different meteorology-PM2.5 relationships (cosine %.3f)", c.CorrelationCosine))
		}
	}
	if !math.IsNaN(c.CohensD) {
		if math.Abs(c.CohensD) < 0.5 {
			supports = append(supports, fmt.Sprintf("similar concentration levels (Cohen's d %.3f)", c.CohensD))
		} else {
			challenges = append(challenges, fmt.Sprintf("different absolute concentration levels (Cohen's d %.3f)", c.CohensD))
		}
	}

	if len(supports) > 0 {
		fmt.Fprintln(b, "  Factors supporting transfer:")
		for _, s := range supports {
			fmt.Fprintf(b, "    + %s\n", s)
		}
	}
	if len(challenges) > 0 {
		fmt.Fprintln(b, "  Factors requiring adaptation:")
		for _, s := range challenges {
			fmt.Fprintf(b, "    - %s\n", s)
		}
	}

	fmt.Fprintln(b)
	if math.IsNaN(c.CorrelationCosine) {
		fmt.Fprintf(b, "  Verdict: %s (correlation-structure similarity unavailable)\n", c.Verdict)
		return
	}
	fmt.Fprintf(b, "  Verdict: %s (correlation-structure similarity %.4f, threshold %.2f)\n",
		c.Verdict, c.CorrelationCosine, verdictThreshold)
}

func effectMagnitude(d float64) string {
	switch a := math.Abs(d); {
	case a < 0.2:
		return "negligible"
	case a < 0.5:
		return "small"
	case a < 0.8:
		return "medium"
	default:
		return "large"
	}
}
