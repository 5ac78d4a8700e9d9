package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yikai/QuorumGo/internal/models"
)

func resp(id string, confidence float64, reasoning string) models.AgentResponse {
	return models.AgentResponse{AgentID: id, Confidence: confidence, Reasoning: reasoning}
}

const (
	buyText  = "FINAL TRANSACTION PROPOSAL: **BUY**"
	sellText = "FINAL TRANSACTION PROPOSAL: **SELL**"
	holdText = "FINAL TRANSACTION PROPOSAL: **HOLD**"
)

func TestAggregateMajorityWithDisagreement(t *testing.T) {
	b := NewBuilder()

	conf, action, disagreement, err := b.Aggregate([]models.AgentResponse{
		resp("a", 0.8, buyText),
		resp("b", 0.7, buyText),
		resp("c", 0.6, sellText),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionBuy, action)
	assert.True(t, disagreement)
	assert.InDelta(t, 0.7, conf, 1e-9)
}

func TestAggregateTieResolvesToHold(t *testing.T) {
	b := NewBuilder()

	_, action, disagreement, err := b.Aggregate([]models.AgentResponse{
		resp("a", 0.9, buyText),
		resp("b", 0.9, sellText),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, action)
	assert.True(t, disagreement)
}

func TestAggregateUnanimousHold(t *testing.T) {
	b := NewBuilder()

	_, action, disagreement, err := b.Aggregate([]models.AgentResponse{
		resp("a", 0.5, holdText),
		resp("b", 0.6, holdText),
		resp("c", 0.4, holdText),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, action)
	assert.False(t, disagreement)
}

func TestAggregateMeanConfidence(t *testing.T) {
	b := NewBuilder()

	conf, _, _, err := b.Aggregate([]models.AgentResponse{
		resp("a", 0.8, buyText),
		resp("b", 0.6, buyText),
		resp("c", 0.9, buyText),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.7666666667, conf, 1e-6)
}

func TestAggregateRejectsSingleResponse(t *testing.T) {
	b := NewBuilder()

	_, _, _, err := b.Aggregate([]models.AgentResponse{resp("a", 0.8, buyText)})
	assert.Error(t, err)
}
