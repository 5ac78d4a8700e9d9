package consensus

import (
	"regexp"
	"strings"

	"github.com/yikai/QuorumGo/internal/models"
)

// Classifier extracts the dominant directional signal from free-text agent
// reasoning. Classification lives here, not inline in aggregation, so it can
// be tested on its own.
type Classifier struct {
	buyPatterns  []*regexp.Regexp
	sellPatterns []*regexp.Regexp
	holdPatterns []*regexp.Regexp
}

// NewClassifier creates a classifier with predefined directional patterns.
func NewClassifier() *Classifier {
	return &Classifier{
		buyPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(buy|accumulate|long|bullish|upside|invest)\b`),
			regexp.MustCompile(`(?i)\b(strong buy|buy recommendation|recommended buy)\b`),
			regexp.MustCompile(`(?i)\b(undervalued|oversold|growth potential|breakout)\b`),
		},
		sellPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(sell|short|bearish|downside|divest|exit)\b`),
			regexp.MustCompile(`(?i)\b(strong sell|sell recommendation|avoid)\b`),
			regexp.MustCompile(`(?i)\b(overvalued|overbought|deteriorating|breakdown)\b`),
		},
		holdPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(hold|maintain|neutral|wait|sideways)\b`),
			regexp.MustCompile(`(?i)\b(no action|stay put|keep position)\b`),
		},
	}
}

// explicitProposal matches the structured proposal line agents are prompted
// to emit. When present it wins over pattern scoring.
var explicitProposal = regexp.MustCompile(`(?i)FINAL TRANSACTION PROPOSAL:\s*\**(BUY|SELL|HOLD)\**`)

// Classify maps reasoning text to its dominant action. Ambiguous or empty
// text falls back to HOLD, never to a directional call.
func (c *Classifier) Classify(text string) models.Action {
	if m := explicitProposal.FindStringSubmatch(text); len(m) > 1 {
		switch {
		case strings.EqualFold(m[1], "BUY"):
			return models.ActionBuy
		case strings.EqualFold(m[1], "SELL"):
			return models.ActionSell
		default:
			return models.ActionHold
		}
	}

	buyScore := 0
	sellScore := 0
	holdScore := 0

	for _, pattern := range c.buyPatterns {
		buyScore += len(pattern.FindAllString(text, -1))
	}
	for _, pattern := range c.sellPatterns {
		sellScore += len(pattern.FindAllString(text, -1))
	}
	for _, pattern := range c.holdPatterns {
		holdScore += len(pattern.FindAllString(text, -1))
	}

	if buyScore > sellScore && buyScore > holdScore {
		return models.ActionBuy
	}
	if sellScore > buyScore && sellScore > holdScore {
		return models.ActionSell
	}
	return models.ActionHold
}
