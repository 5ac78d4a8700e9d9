package models

import "time"

// Action is the directional call extracted from agent reasoning.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// AgentResponse is one backend's answer for a symbol. Immutable once created.
type AgentResponse struct {
	AgentID    string    `json:"agent_id"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	ProducedAt time.Time `json:"produced_at"`
}

// ConsensusResult aggregates the responses of at least two backends into one
// recommendation. AgentResponses keep response-arrival order.
type ConsensusResult struct {
	Symbol              string          `json:"symbol"`
	ContextHash         string          `json:"context_hash"`
	AgentResponses      []AgentResponse `json:"agent_responses"`
	AggregateConfidence float64         `json:"aggregate_confidence"`
	RecommendedAction   Action          `json:"recommended_action"`
	Disagreement        bool            `json:"disagreement"`
	ComputedAt          time.Time       `json:"computed_at"`
}

// CombinedReasoning joins all agent reasoning texts, used by the thesis
// challenger snapshot and the insight extractor's feature matching.
func (r *ConsensusResult) CombinedReasoning() string {
	out := ""
	for i, resp := range r.AgentResponses {
		if i > 0 {
			out += "\n\n"
		}
		out += resp.Reasoning
	}
	return out
}
