package timeparser

import (
	"fmt"
	"time"
)

// ParseDeviceDate attempts to parse a vendor date string with the
// formats the chart endpoint has been observed to use
func ParseDeviceDate(dateStr string) (time.Time, error) {
	formats := []string{
		"2006-01-02",          // ISO date, history rows
		"2006-01-02 15:04:05", // ISO date-time
		"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss, lastSeenDateTime
		"02/01/2006",          // DD/MM/YYYY
		time.RFC3339,          // Standard RFC3339
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse device date '%s': %w", dateStr, lastErr)
}

// IsWithinTolerance checks if the reading date is within tolerance of the poll time
func IsWithinTolerance(readingTime, polledAt time.Time, toleranceDays int) bool {
	diff := readingTime.Sub(polledAt)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceDays)*24*time.Hour
}
