package models

import "time"

// UsageRecord is one metered call. Append-only; the daily counter is always
// recomputable from these rows.
type UsageRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Endpoint        string    `json:"endpoint"`
	Symbol          string    `json:"symbol"`
	EstimatedCost   float64   `json:"estimated_cost"`
	ServedFromCache bool      `json:"served_from_cache"`
}

// Reservation is proof that budget was committed before an expensive call.
type Reservation struct {
	Endpoint   string    `json:"endpoint"`
	Symbol     string    `json:"symbol"`
	Cost       float64   `json:"cost"`
	ReservedAt time.Time `json:"reserved_at"`
}

// UsageStats is the ledger snapshot exposed to callers.
type UsageStats struct {
	TodayCalls     int     `json:"today_calls"`
	RemainingCalls int     `json:"remaining_calls"`
	TodayCost      float64 `json:"today_cost"`
}
