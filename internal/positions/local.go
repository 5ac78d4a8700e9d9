package positions

import (
	"context"
	"fmt"

	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/yikai/QuorumGo/internal/backends"
	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

// LocalProvider prices manually tracked positions with a live Yahoo Finance
// quote. It backs the `position set` CLI workflow for accounts without a
// brokerage connection.
type LocalProvider struct {
	store   *sqlite.Store
	quoteFn func(symbol string) (decimal.Decimal, error)
	retry   *backends.RetryConfig
}

func NewLocalProvider(store *sqlite.Store) *LocalProvider {
	return &LocalProvider{
		store:   store,
		quoteFn: yahooLastPrice,
		retry:   backends.DefaultRetryConfig(),
	}
}

// SetQuoteFunc overrides the price source in tests.
func (p *LocalProvider) SetQuoteFunc(fn func(symbol string) (decimal.Decimal, error)) {
	p.quoteFn = fn
}

func yahooLastPrice(symbol string) (decimal.Decimal, error) {
	q, err := quote.Get(symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get quote for %s: %w", symbol, err)
	}
	if q == nil {
		return decimal.Zero, fmt.Errorf("no quote data for %s", symbol)
	}
	return decimal.NewFromFloat(q.RegularMarketPrice), nil
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	row, err := p.store.GetPortfolioPosition(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var current decimal.Decimal
	err = backends.WithRetry(ctx, p.retry, func() error {
		var qerr error
		current, qerr = p.quoteFn(symbol)
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("price local position %s: %w", symbol, err)
	}

	return &models.Position{
		Symbol:          symbol,
		Quantity:        row.Quantity,
		EntryPrice:      row.EntryPrice,
		CurrentPrice:    current,
		UnrealizedPLPct: unrealizedPLPct(row.EntryPrice, current),
	}, nil
}
