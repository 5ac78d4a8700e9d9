package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Followup is the challenger's recommendation for an existing position.
type Followup string

const (
	FollowupHold    Followup = "HOLD"
	FollowupSell    Followup = "SELL"
	FollowupBuyMore Followup = "BUY_MORE"
)

// Position is a live holding as reported by a position data provider.
type Position struct {
	Symbol          string          `json:"symbol"`
	Quantity        decimal.Decimal `json:"quantity"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	UnrealizedPLPct float64         `json:"unrealized_pl_pct"`
}

// ThesisChallenge re-scores a past recommendation against realized movement.
// Rows are append-only: a superseding challenge is a new row, never an update.
type ThesisChallenge struct {
	ID                   int64            `json:"id"`
	Ticker               string           `json:"ticker"`
	OriginalResult       *ConsensusResult `json:"original_result"`
	OriginalPrice        decimal.Decimal  `json:"original_price"`
	CurrentPrice         decimal.Decimal  `json:"current_price"`
	RealizedPLPct        float64          `json:"realized_pl_pct"`
	AccuracyScore        float64          `json:"accuracy_score"`
	RecommendedFollowup  Followup         `json:"recommended_followup"`
	EvaluatedAt          time.Time        `json:"evaluated_at"`
}
