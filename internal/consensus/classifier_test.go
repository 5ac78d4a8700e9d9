package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yikai/QuorumGo/internal/models"
)

func TestClassifyExplicitProposalWins(t *testing.T) {
	c := NewClassifier()

	// The explicit proposal line overrides whatever the surrounding prose
	// scores as, even when the prose leans the other way.
	text := "Strong sell pressure, bearish momentum, downside risk everywhere.\n" +
		"FINAL TRANSACTION PROPOSAL: **BUY**"
	assert.Equal(t, models.ActionBuy, c.Classify(text))

	text = "Bullish breakout with accumulation.\nFINAL TRANSACTION PROPOSAL: **SELL**"
	assert.Equal(t, models.ActionSell, c.Classify(text))
}

func TestClassifyScoring(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		name string
		text string
		want models.Action
	}{
		{"bullish prose", "Strong buy signal: bullish breakout with heavy accumulation and upside momentum.", models.ActionBuy},
		{"bearish prose", "Clear sell: bearish breakdown, heavy distribution, downside risk dominates.", models.ActionSell},
		{"neutral prose", "Mixed picture, wait for confirmation. Neutral stance, stay sidelined.", models.ActionHold},
		{"ambiguous prose", "Earnings call scheduled next week. Volume unchanged.", models.ActionHold},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.text))
		})
	}
}

func TestClassifyTieNeverDirectional(t *testing.T) {
	c := NewClassifier()

	// Equal bull and bear pressure must fall back to HOLD.
	got := c.Classify("Bullish on fundamentals but bearish on technicals.")
	assert.Equal(t, models.ActionHold, got)
}
