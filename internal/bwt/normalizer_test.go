package bwt_test

import (
	"reflect"
	"testing"

	"github.com/septivank/water-softener-worker/internal/bwt"
)

func TestNormalize_FullDataset(t *testing.T) {
	ds := &bwt.Dataset{
		Online:           true,
		Connected:        true,
		LastSeenDateTime: "2024-01-02 08:00:00",
		DeviceDataHistory: &bwt.DeviceDataHistory{
			Codes: []string{"date", "waterUse", "regenCount", "powerOutage", "saltAlarm"},
			Lines: [][]any{
				{"2024-01-02", float64(1500), float64(3), false, true},
				{"2024-01-01", float64(1400), float64(3), true, false},
			},
		},
	}

	snapshot := bwt.Normalize(ds)
	if snapshot == nil {
		t.Fatal("Expected snapshot, got nil")
	}

	if snapshot.Date != "2024-01-02" {
		t.Errorf("Expected date 2024-01-02, got %s", snapshot.Date)
	}
	if snapshot.WaterLiters != 1500 {
		t.Errorf("Expected 1500 liters, got %v", snapshot.WaterLiters)
	}
	if snapshot.RegenerationCount != 3 {
		t.Errorf("Expected regeneration count 3, got %d", snapshot.RegenerationCount)
	}
	if snapshot.PowerOutage {
		t.Error("Expected power outage false")
	}
	if !snapshot.SaltAlarm {
		t.Error("Expected salt alarm true")
	}
	if !snapshot.Online || !snapshot.Connected {
		t.Error("Expected online and connected from dataset fields")
	}
	if snapshot.LastSeen != "2024-01-02 08:00:00" {
		t.Errorf("Unexpected last seen: %s", snapshot.LastSeen)
	}

	if len(snapshot.History) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(snapshot.History))
	}
	if snapshot.History[0].Date != "2024-01-02" || snapshot.History[1].Date != "2024-01-01" {
		t.Error("History order should match vendor order, newest first")
	}
	if snapshot.History[1].WaterLiters != 1400 {
		t.Errorf("Expected 1400 liters in second row, got %v", snapshot.History[1].WaterLiters)
	}
	if !snapshot.History[1].PowerOutage {
		t.Error("Expected power outage true in second row")
	}
}

func TestNormalize_MissingColumnsDefault(t *testing.T) {
	ds := &bwt.Dataset{
		DeviceDataHistory: &bwt.DeviceDataHistory{
			Codes: []string{"date", "waterUse", "regenCount"},
			Lines: [][]any{
				{"2024-01-02", float64(1500), float64(3)},
				{"2024-01-01", float64(1400), float64(3)},
			},
		},
	}

	snapshot := bwt.Normalize(ds)
	if snapshot == nil {
		t.Fatal("Expected snapshot, got nil")
	}

	if snapshot.Date != "2024-01-02" {
		t.Errorf("Expected date 2024-01-02, got %s", snapshot.Date)
	}
	if snapshot.WaterLiters != 1500 {
		t.Errorf("Expected 1500 liters, got %v", snapshot.WaterLiters)
	}
	if snapshot.RegenerationCount != 3 {
		t.Errorf("Expected regeneration count 3, got %d", snapshot.RegenerationCount)
	}
	if snapshot.PowerOutage {
		t.Error("Missing powerOutage column should default to false")
	}
	if snapshot.SaltAlarm {
		t.Error("Missing saltAlarm column should default to false")
	}

	for i, entry := range snapshot.History {
		if entry.SaltAlarm {
			t.Errorf("Row %d: missing saltAlarm column should default to false", i)
		}
	}
}

func TestNormalize_EmptyLines(t *testing.T) {
	ds := &bwt.Dataset{
		DeviceDataHistory: &bwt.DeviceDataHistory{
			Codes: []string{"date", "waterUse"},
			Lines: [][]any{},
		},
	}

	if snapshot := bwt.Normalize(ds); snapshot != nil {
		t.Errorf("Expected nil snapshot for empty lines, got %+v", snapshot)
	}
}

func TestNormalize_MissingHistory(t *testing.T) {
	if snapshot := bwt.Normalize(&bwt.Dataset{Online: true}); snapshot != nil {
		t.Errorf("Expected nil snapshot without deviceDataHistory, got %+v", snapshot)
	}
	if snapshot := bwt.Normalize(nil); snapshot != nil {
		t.Errorf("Expected nil snapshot for nil dataset, got %+v", snapshot)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	ds := &bwt.Dataset{
		Online: true,
		DeviceDataHistory: &bwt.DeviceDataHistory{
			Codes: []string{"date", "waterUse", "regenCount", "powerOutage", "saltAlarm"},
			Lines: [][]any{
				{"2024-01-02", float64(1500), float64(3), false, true},
				{"2024-01-01", float64(1400), float64(2), true, false},
			},
		},
	}

	first := bwt.Normalize(ds)
	second := bwt.Normalize(ds)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Normalize is not idempotent: %+v vs %+v", first, second)
	}
}

func TestNormalize_ShortRowsDefault(t *testing.T) {
	// A row shorter than the codes array must not panic; missing cells
	// take the type default.
	ds := &bwt.Dataset{
		DeviceDataHistory: &bwt.DeviceDataHistory{
			Codes: []string{"date", "waterUse", "regenCount", "powerOutage", "saltAlarm"},
			Lines: [][]any{
				{"2024-01-02", float64(1500)},
			},
		},
	}

	snapshot := bwt.Normalize(ds)
	if snapshot == nil {
		t.Fatal("Expected snapshot, got nil")
	}
	if snapshot.WaterLiters != 1500 {
		t.Errorf("Expected 1500 liters, got %v", snapshot.WaterLiters)
	}
	if snapshot.RegenerationCount != 0 {
		t.Errorf("Expected regeneration count default 0, got %d", snapshot.RegenerationCount)
	}
	if snapshot.PowerOutage || snapshot.SaltAlarm {
		t.Error("Missing cells should default to false")
	}
}

func TestNormalize_NumericFlagCoercion(t *testing.T) {
	// Some responses encode the flag columns as 0/1 instead of booleans.
	ds := &bwt.Dataset{
		DeviceDataHistory: &bwt.DeviceDataHistory{
			Codes: []string{"date", "waterUse", "powerOutage", "saltAlarm"},
			Lines: [][]any{
				{"2024-01-02", float64(1500), float64(1), float64(0)},
			},
		},
	}

	snapshot := bwt.Normalize(ds)
	if snapshot == nil {
		t.Fatal("Expected snapshot, got nil")
	}
	if !snapshot.PowerOutage {
		t.Error("Expected numeric 1 to coerce to true")
	}
	if snapshot.SaltAlarm {
		t.Error("Expected numeric 0 to coerce to false")
	}
}
