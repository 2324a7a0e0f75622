package validator

import (
	"fmt"
	"time"

	"github.com/septivank/water-softener-worker/internal/bwt"
	"github.com/septivank/water-softener-worker/tools/timeparser"
)

// ValidationResult holds validation outcome
type ValidationResult struct {
	IsValid bool
	Reason  string
}

// Validator checks snapshot plausibility before persistence, with a
// configurable tolerance on how far the reading date may drift from
// the poll time.
type Validator struct {
	dateToleranceDays int
}

// NewValidator creates a new validator with the specified tolerance
func NewValidator(dateToleranceDays int) *Validator {
	return &Validator{
		dateToleranceDays: dateToleranceDays,
	}
}

// ValidateSnapshot validates a normalized snapshot. It returns the
// parsed reading time so callers do not re-parse the date; a zero time
// means the date was unusable and the poll time should stand in.
func (v *Validator) ValidateSnapshot(s *bwt.DeviceSnapshot, polledAt time.Time) (time.Time, ValidationResult) {
	result := ValidationResult{IsValid: true}

	if s.Date == "" {
		result.IsValid = false
		result.Reason = "empty reading date"
		return time.Time{}, result
	}

	if s.WaterLiters < 0 {
		result.IsValid = false
		result.Reason = "negative water consumption"
		return time.Time{}, result
	}

	if s.RegenerationCount < 0 {
		result.IsValid = false
		result.Reason = "negative regeneration count"
		return time.Time{}, result
	}

	readingTime, err := timeparser.ParseDeviceDate(s.Date)
	if err != nil {
		result.IsValid = false
		result.Reason = fmt.Sprintf("invalid reading date: %v", err)
		return time.Time{}, result
	}

	if !timeparser.IsWithinTolerance(readingTime, polledAt, v.dateToleranceDays) {
		result.IsValid = false
		result.Reason = fmt.Sprintf("reading date outside tolerance window (±%d days)", v.dateToleranceDays)
		return readingTime, result
	}

	return readingTime, result
}
