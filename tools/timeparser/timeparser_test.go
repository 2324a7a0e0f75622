package timeparser_test

import (
	"testing"
	"time"

	"github.com/septivank/water-softener-worker/tools/timeparser"
)

func TestParseDeviceDate_ISODate(t *testing.T) {
	result, err := timeparser.ParseDeviceDate("2024-01-02")
	if err != nil {
		t.Fatalf("Failed to parse date: %v", err)
	}

	expected := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseDeviceDate_ISODateTime(t *testing.T) {
	result, err := timeparser.ParseDeviceDate("2024-01-02 08:30:45")
	if err != nil {
		t.Fatalf("Failed to parse date-time: %v", err)
	}

	expected := time.Date(2024, 1, 2, 8, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseDeviceDate_SlashedDateTime(t *testing.T) {
	result, err := timeparser.ParseDeviceDate("02/01/2024 08:30:45")
	if err != nil {
		t.Fatalf("Failed to parse date-time: %v", err)
	}

	expected := time.Date(2024, 1, 2, 8, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseDeviceDate_RFC3339(t *testing.T) {
	result, err := timeparser.ParseDeviceDate("2024-01-02T08:30:45Z")
	if err != nil {
		t.Fatalf("Failed to parse RFC3339: %v", err)
	}

	expected := time.Date(2024, 1, 2, 8, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseDeviceDate_Invalid(t *testing.T) {
	if _, err := timeparser.ParseDeviceDate("yesterday"); err == nil {
		t.Error("Expected error for unparseable date")
	}
}

func TestIsWithinTolerance(t *testing.T) {
	polledAt := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	within := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if !timeparser.IsWithinTolerance(within, polledAt, 7) {
		t.Error("Expected date 5 days back to be within 7-day tolerance")
	}

	outside := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	if timeparser.IsWithinTolerance(outside, polledAt, 7) {
		t.Error("Expected date 40 days back to be outside 7-day tolerance")
	}

	future := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	if timeparser.IsWithinTolerance(future, polledAt, 7) {
		t.Error("Expected future date to be outside tolerance")
	}
}
