package bwt

// Column identifiers the vendor uses in the codes array.
const (
	codeWaterUse    = "waterUse"
	codeRegenCount  = "regenCount"
	codePowerOutage = "powerOutage"
	codeSaltAlarm   = "saltAlarm"
)

// absentIndex marks a column that is missing from the codes array.
// Extraction substitutes the type default (0/false) for it.
const absentIndex = -1

// Normalize converts the vendor's columnar dataset into a keyed
// snapshot plus the history window, rows in input order (newest
// first per vendor convention, lines[0] is the current state).
//
// Normalize is total: it never fails for any JSON-shaped dataset. A
// missing or empty history yields a nil snapshot, not an error — the
// device may simply have no data yet.
func Normalize(ds *Dataset) *DeviceSnapshot {
	if ds == nil || ds.DeviceDataHistory == nil || len(ds.DeviceDataHistory.Lines) == 0 {
		return nil
	}

	history := ds.DeviceDataHistory
	waterIdx := columnIndex(history.Codes, codeWaterUse)
	regenIdx := columnIndex(history.Codes, codeRegenCount)
	outageIdx := columnIndex(history.Codes, codePowerOutage)
	saltIdx := columnIndex(history.Codes, codeSaltAlarm)

	entries := make([]HistoryEntry, 0, len(history.Lines))
	for _, line := range history.Lines {
		entries = append(entries, HistoryEntry{
			Date:              stringCell(line, 0),
			WaterLiters:       floatCell(line, waterIdx),
			RegenerationCount: intCell(line, regenIdx),
			PowerOutage:       boolCell(line, outageIdx),
			SaltAlarm:         boolCell(line, saltIdx),
		})
	}

	latest := entries[0]
	return &DeviceSnapshot{
		Date:              latest.Date,
		WaterLiters:       latest.WaterLiters,
		RegenerationCount: latest.RegenerationCount,
		PowerOutage:       latest.PowerOutage,
		SaltAlarm:         latest.SaltAlarm,
		Online:            ds.Online,
		Connected:         ds.Connected,
		LastSeen:          ds.LastSeenDateTime,
		History:           entries,
	}
}

func columnIndex(codes []string, code string) int {
	for i, c := range codes {
		if c == code {
			return i
		}
	}
	return absentIndex
}

func cellAt(line []any, idx int) any {
	if idx == absentIndex || idx < 0 || idx >= len(line) {
		return nil
	}
	return line[idx]
}

func stringCell(line []any, idx int) string {
	if s, ok := cellAt(line, idx).(string); ok {
		return s
	}
	return ""
}

// floatCell treats numeric cells as float64 (the only number type
// encoding/json produces for untyped values).
func floatCell(line []any, idx int) float64 {
	switch v := cellAt(line, idx).(type) {
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func intCell(line []any, idx int) int {
	return int(floatCell(line, idx))
}

func boolCell(line []any, idx int) bool {
	switch v := cellAt(line, idx).(type) {
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return false
	}
}
