package domain

import (
	"fmt"
	"strings"
	"time"
)

// The fusion pipeline distinguishes five failure classes. A single station
// failing a QC threshold is handled by exclusion and is not an error;
// anything that breaks the fused-schema contract surfaces as one of these,
// carrying enough attribution (city, station, timestamp, field) to point at
// the exact offending input.

// SchemaError reports a required field that is missing or malformed in an
// input source. It is fatal for the affected stage and never coerced.
type SchemaError struct {
	Source string // file or stream the record came from
	Field  string
	Line   int // 1-based data line, 0 if not applicable
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("schema: %s line %d: field %q: %s", e.Source, e.Line, e.Field, e.Reason)
	}
	return fmt.Sprintf("schema: %s: field %q: %s", e.Source, e.Field, e.Reason)
}

// DataError reports a violated statistical precondition, such as a zero-mean
// series handed to the bias corrector. Fatal for the affected city/source
// unit, not necessarily for the run.
type DataError struct {
	City   string
	Unit   string // station or series identifier
	Reason string
}

func (e *DataError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("data: %s/%s: %s", e.City, e.Unit, e.Reason)
	}
	return fmt.Sprintf("data: %s: %s", e.City, e.Reason)
}

// FusionError reports a pollutant timestamp with no matching meteorology
// record. Meteorology is gap-free by contract, so this signals an upstream
// violation and is never masked by interpolation.
type FusionError struct {
	City      string
	StationID string
	Timestamp time.Time
}

func (e *FusionError) Error() string {
	return fmt.Sprintf("fusion: %s/%s: no meteorology record at %s",
		e.City, e.StationID, e.Timestamp.UTC().Format(time.RFC3339))
}

// InsufficientDataError reports a statistical test that lacks its minimum
// sample size. It fails that metric only; the rest of the similarity report
// is still produced.
type InsufficientDataError struct {
	Metric string
	Need   int
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need %d observations, got %d", e.Metric, e.Need, e.Got)
}

// Violation is one offending row found during final assembly.
type Violation struct {
	City      string
	StationID string
	Timestamp time.Time
	Field     string
	Reason    string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s/%s@%s %s: %s",
		v.City, v.StationID, v.Timestamp.UTC().Format(time.RFC3339), v.Field, v.Reason)
}

// CompletenessError reports missing values or duplicate keys in the
// assembled dataset. Always fatal: the combined dataset's entire value
// proposition is "zero missing values, validated".
type CompletenessError struct {
	Violations []Violation
}

func (e *CompletenessError) Error() string {
	const maxListed = 5
	var b strings.Builder
	fmt.Fprintf(&b, "completeness: %d violation(s)", len(e.Violations))
	for i, v := range e.Violations {
		if i == maxListed {
			fmt.Fprintf(&b, "; and %d more", len(e.Violations)-maxListed)
			break
		}
		b.WriteString("; ")
		b.WriteString(v.String())
	}
	return b.String()
}
