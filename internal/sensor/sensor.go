// Package sensor derives the presentation values the host automation
// platform exposes for a softener snapshot. The sensor family is a
// data-driven table of definitions consumed by one generic Readings
// function; adding a sensor is adding a table row.
package sensor

import (
	"math"

	"github.com/septivank/water-softener-worker/internal/bwt"
)

// Definition describes one exposed sensor. Value is a pure function of
// the snapshot and the configured water price, so repeated evaluation
// of the same input yields identical readings.
type Definition struct {
	Key         string
	Name        string
	Unit        string
	DeviceClass string
	StateClass  string
	Icon        string
	Value       func(s *bwt.DeviceSnapshot, pricePerM3 float64) any
}

// Reading is one evaluated sensor value for a poll cycle.
type Reading struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Unit        string `json:"unit,omitempty"`
	DeviceClass string `json:"device_class,omitempty"`
	StateClass  string `json:"state_class,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Value       any    `json:"value"`
}

// Definitions is the full sensor table for one softener.
var Definitions = []Definition{
	{
		Key:         "water_consumption",
		Name:        "Water Consumption",
		Unit:        "L",
		DeviceClass: "water",
		StateClass:  "total_increasing",
		Icon:        "mdi:water",
		Value: func(s *bwt.DeviceSnapshot, _ float64) any {
			return s.WaterLiters
		},
	},
	{
		Key:        "water_consumption_m3",
		Name:       "Water Consumption (m³)",
		Unit:       "m³",
		StateClass: "total_increasing",
		Icon:       "mdi:water",
		Value: func(s *bwt.DeviceSnapshot, _ float64) any {
			return CubicMeters(s.WaterLiters)
		},
	},
	{
		Key:  "estimated_cost",
		Name: "Estimated Cost",
		Unit: "€",
		Icon: "mdi:currency-eur",
		Value: func(s *bwt.DeviceSnapshot, pricePerM3 float64) any {
			return Cost(s.WaterLiters, pricePerM3)
		},
	},
	{
		Key:        "regeneration_count",
		Name:       "Regeneration Count",
		StateClass: "total_increasing",
		Icon:       "mdi:refresh",
		Value: func(s *bwt.DeviceSnapshot, _ float64) any {
			return s.RegenerationCount
		},
	},
	{
		Key:  "salt_alarm",
		Name: "Salt Alarm",
		Icon: "mdi:alert",
		Value: func(s *bwt.DeviceSnapshot, _ float64) any {
			return s.SaltAlarm
		},
	},
	{
		Key:  "power_outage",
		Name: "Power Outage",
		Icon: "mdi:power-plug-off",
		Value: func(s *bwt.DeviceSnapshot, _ float64) any {
			return s.PowerOutage
		},
	},
}

// Readings evaluates the whole sensor table against a snapshot. A nil
// snapshot (no data this cycle) yields no readings; consumers mark the
// sensors unavailable rather than serving stale-looking values.
func Readings(s *bwt.DeviceSnapshot, pricePerM3 float64) []Reading {
	if s == nil {
		return nil
	}

	readings := make([]Reading, 0, len(Definitions))
	for _, def := range Definitions {
		readings = append(readings, Reading{
			Key:         def.Key,
			Name:        def.Name,
			Unit:        def.Unit,
			DeviceClass: def.DeviceClass,
			StateClass:  def.StateClass,
			Icon:        def.Icon,
			Value:       def.Value(s, pricePerM3),
		})
	}
	return readings
}

// CubicMeters converts a liter total to cubic meters, rounded to two
// decimal places.
func CubicMeters(liters float64) float64 {
	return round2(liters / 1000)
}

// Cost estimates the water cost from a liter total and a price per
// cubic meter, rounded to two decimal places. The cost is computed
// from the already-rounded cubic meter value so both sensors stay
// consistent with each other.
func Cost(liters, pricePerM3 float64) float64 {
	return round2(CubicMeters(liters) * pricePerM3)
}

// round2 rounds half away from zero to two decimals, matching
// math.Round semantics.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
