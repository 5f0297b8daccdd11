package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaErrorMessage(t *testing.T) {
	withLine := &SchemaError{Source: "medellin_pm25.csv", Field: "pm25", Line: 17, Reason: "empty value"}
	assert.Equal(t, `schema: medellin_pm25.csv line 17: field "pm25": empty value`, withLine.Error())

	noLine := &SchemaError{Source: "reanalysis/grid-mean", Field: "t2m", Reason: "missing value"}
	assert.NotContains(t, noLine.Error(), "line")
}

func TestFusionErrorMessage(t *testing.T) {
	err := &FusionError{
		City:      "medellin",
		StationID: "st-centro",
		Timestamp: time.Date(2019, 1, 5, 12, 0, 0, 0, time.UTC),
	}
	assert.Contains(t, err.Error(), "medellin/st-centro")
	assert.Contains(t, err.Error(), "2019-01-05T12:00:00Z")
}

func TestCompletenessErrorTruncatesViolations(t *testing.T) {
	var violations []Violation
	for i := 0; i < 8; i++ {
		violations = append(violations, Violation{
			City:      "medellin",
			StationID: fmt.Sprintf("st-%d", i),
			Timestamp: time.Date(2019, 1, 5, i, 0, 0, 0, time.UTC),
			Field:     "pm25",
			Reason:    "missing value",
		})
	}
	err := &CompletenessError{Violations: violations}

	msg := err.Error()
	assert.Contains(t, msg, "8 violation(s)")
	assert.Contains(t, msg, "st-4")
	assert.NotContains(t, msg, "st-5", "only the first five are listed")
	assert.Contains(t, msg, "and 3 more")
}

func TestCompletenessErrorShortList(t *testing.T) {
	err := &CompletenessError{Violations: []Violation{
		{City: "kandy", StationID: "reanalysis-kandy", Field: "wind_speed", Reason: "missing value"},
	}}
	assert.Contains(t, err.Error(), "1 violation(s)")
	assert.NotContains(t, err.Error(), "more")
}

func TestInsufficientDataErrorMessage(t *testing.T) {
	err := &InsufficientDataError{Metric: "distribution_tests", Need: 2, Got: 1}
	require.Equal(t, "insufficient data for distribution_tests: need 2 observations, got 1", err.Error())
}
