package consensus

import (
	"fmt"

	"github.com/yikai/QuorumGo/internal/models"
)

// Builder turns a set of agent responses into one recommendation. Every
// backend gets equal weight; none is privileged over another.
type Builder struct {
	classifier *Classifier
}

func NewBuilder() *Builder {
	return &Builder{classifier: NewClassifier()}
}

// Aggregate computes the equal-weight mean confidence, the majority action and
// the disagreement flag. At least two responses are required; callers enforce
// the minimum before aggregation, this is the last line of defense.
func (b *Builder) Aggregate(responses []models.AgentResponse) (float64, models.Action, bool, error) {
	if len(responses) < 2 {
		return 0, models.ActionHold, false, fmt.Errorf("aggregate requires at least 2 responses, got %d", len(responses))
	}

	var sum float64
	votes := map[models.Action]int{}
	var first models.Action
	unanimous := true

	for i, resp := range responses {
		sum += resp.Confidence
		action := b.classifier.Classify(resp.Reasoning)
		votes[action]++
		if i == 0 {
			first = action
		} else if action != first {
			unanimous = false
		}
	}

	return sum / float64(len(responses)), majority(votes), !unanimous, nil
}

// majority picks the winning action. Any tie involving the leaders resolves to
// HOLD: a split panel never forces a directional call.
func majority(votes map[models.Action]int) models.Action {
	best := models.ActionHold
	bestCount := -1
	tied := false

	for _, action := range []models.Action{models.ActionBuy, models.ActionSell, models.ActionHold} {
		count := votes[action]
		switch {
		case count > bestCount:
			best = action
			bestCount = count
			tied = false
		case count == bestCount:
			tied = true
		}
	}

	if tied {
		return models.ActionHold
	}
	return best
}
