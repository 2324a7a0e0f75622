package anomaly

import (
	"fmt"
)

// Detector flags implausible movements of the softener's cumulative
// counters. Water use and regeneration count only grow between polls
// unless the device itself was reset, so a drop or a sudden jump is
// worth annotating.
type Detector struct {
	spikeThreshold            float64
	minDataPointsForDetection int
}

// NewDetector creates a new detector with the specified thresholds
func NewDetector(spikeThreshold float64, minDataPointsForDetection int) *Detector {
	return &Detector{
		spikeThreshold:            spikeThreshold,
		minDataPointsForDetection: minDataPointsForDetection,
	}
}

// DetectAnomaly checks a cumulative counter value against recent
// polls, newest first. Findings annotate the stored row and the
// published event; they never block a poll.
func (d *Detector) DetectAnomaly(value float64, recentValues []float64) (bool, string) {
	// Check for negative values
	if value < 0 {
		return true, "negative value"
	}

	// A cumulative counter going backwards means the device was reset
	// or the vendor served inconsistent data.
	if len(recentValues) > 0 && value < recentValues[0] {
		return true, fmt.Sprintf("counter reset detected: value %.2f below previous %.2f",
			value, recentValues[0])
	}

	// Need enough history for spike detection
	if len(recentValues) < d.minDataPointsForDetection {
		return false, ""
	}

	// Calculate rolling average
	sum := 0.0
	for _, v := range recentValues {
		sum += v
	}
	average := sum / float64(len(recentValues))

	// Detect sudden spike (>threshold x rolling average)
	if average > 0 && value > d.spikeThreshold*average {
		return true, fmt.Sprintf("sudden spike detected: value %.2f exceeds %.1fx rolling average %.2f",
			value, d.spikeThreshold, average)
	}

	return false, ""
}
