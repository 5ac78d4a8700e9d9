package positions

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/yikai/QuorumGo/internal/models"
)

// Provider reports live holdings. Implementations return
// models.ErrPositionNotFound when the ticker is not held; they never invent a
// position.
type Provider interface {
	Name() string
	GetPosition(ctx context.Context, symbol string) (*models.Position, error)
}

// unrealizedPLPct computes the percentage move from entry to current price.
func unrealizedPLPct(entry, current decimal.Decimal) float64 {
	if entry.IsZero() {
		return 0
	}
	pct, _ := current.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}
