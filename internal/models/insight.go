package models

import "time"

// LearningInsight is a pattern mined from historical thesis challenges. The
// supporting evidence cites the challenge rows the pattern was derived from,
// so every insight stays inspectable.
type LearningInsight struct {
	ID           int64     `json:"id"`
	InsightType  string    `json:"insight_type"`
	Description  string    `json:"description"`
	EvidenceIDs  []int64   `json:"supporting_evidence"`
	Confidence   float64   `json:"confidence"`
	CreatedAt    time.Time `json:"created_at"`
}
