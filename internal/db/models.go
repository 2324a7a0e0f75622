package db

import (
	"time"

	"github.com/google/uuid"
)

// SoftenerSnapshot is the last-known state of one softener, one row
// per device key, replaced on every successful poll.
type SoftenerSnapshot struct {
	ID                uuid.UUID
	DeviceKey         string
	ReadingDate       time.Time
	WaterLiters       float64
	WaterCubicMeters  float64
	EstimatedCost     float64
	RegenerationCount int
	PowerOutage       bool
	SaltAlarm         bool
	Online            bool
	Connected         bool
	LastSeen          string
	ValidationStatus  string
	AnomalyReason     *string
	PolledAt          time.Time
}

// SoftenerHistoryRow mirrors one row of the vendor's returned history
// window. The window is replaced wholesale each poll; nothing is
// accumulated beyond what the API itself returns.
type SoftenerHistoryRow struct {
	DeviceKey         string
	Position          int // 0 = newest, vendor order preserved
	ReadingDate       string
	WaterLiters       float64
	RegenerationCount int
	PowerOutage       bool
	SaltAlarm         bool
	PolledAt          time.Time
}
