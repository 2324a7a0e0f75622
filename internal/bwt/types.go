package bwt

// Dataset is the device payload inside the vendor's chart response.
// Every field is optional on the wire; absent fields keep their zero
// value, which is the documented default for consumers.
type Dataset struct {
	Online            bool               `json:"online"`
	Connected         bool               `json:"connected"`
	LastSeenDateTime  string             `json:"lastSeenDateTime"`
	DeviceDataHistory *DeviceDataHistory `json:"deviceDataHistory"`
}

// DeviceDataHistory is the vendor's columnar time series: codes names
// each column, lines holds rows of cell values in that column order.
// Rows are newest-first.
type DeviceDataHistory struct {
	Codes []string `json:"codes"`
	Lines [][]any  `json:"lines"`
}

// DeviceSnapshot is the normalized current state of the softener,
// taken from the newest history row plus the device-level fields.
type DeviceSnapshot struct {
	Date              string         `json:"date"`
	WaterLiters       float64        `json:"water_consumption"`
	RegenerationCount int            `json:"regeneration_count"`
	PowerOutage       bool           `json:"power_outage"`
	SaltAlarm         bool           `json:"salt_alarm"`
	Online            bool           `json:"online"`
	Connected         bool           `json:"connected"`
	LastSeen          string         `json:"last_seen"`
	History           []HistoryEntry `json:"history"`
}

// HistoryEntry holds the measured fields of one history row, in the
// order the vendor returned them.
type HistoryEntry struct {
	Date              string  `json:"date"`
	WaterLiters       float64 `json:"water_consumption"`
	RegenerationCount int     `json:"regeneration_count"`
	PowerOutage       bool    `json:"power_outage"`
	SaltAlarm         bool    `json:"salt_alarm"`
}
