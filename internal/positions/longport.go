package positions

import (
	"context"
	"errors"
	"fmt"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/longportapp/openapi-go/trade"
	"github.com/shopspring/decimal"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/models"
)

// LongportProvider reads holdings from a Longport brokerage account. The
// trade context reports quantity and cost basis, the quote context prices the
// holding at last done.
type LongportProvider struct {
	tradeCtx *trade.TradeContext
	quoteCtx *quote.QuoteContext
}

func NewLongportProvider(cfg *config.Config) (*LongportProvider, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, err
	}
	tradeContext, err := trade.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}
	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}
	return &LongportProvider{tradeCtx: tradeContext, quoteCtx: quoteContext}, nil
}

func (p *LongportProvider) Name() string { return "longport" }

func (p *LongportProvider) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	stockPositions, err := p.tradeCtx.StockPositions(ctx, []string{symbol})
	if err != nil {
		return nil, fmt.Errorf("longport stock positions: %w", err)
	}

	var quantity, costPrice decimal.Decimal
	found := false
	for _, channel := range stockPositions {
		for _, pos := range channel.Positions {
			if pos.Symbol != symbol {
				continue
			}
			quantity, err = decimal.NewFromString(pos.Quantity)
			if err != nil {
				return nil, fmt.Errorf("parse longport quantity %q: %w", pos.Quantity, err)
			}
			if pos.CostPrice == nil {
				return nil, fmt.Errorf("longport returned no cost price for %s", symbol)
			}
			costPrice = *pos.CostPrice
			found = true
		}
	}
	if !found || quantity.IsZero() {
		return nil, models.ErrPositionNotFound
	}

	quotes, err := p.quoteCtx.Quote(ctx, []string{symbol})
	if err != nil {
		return nil, fmt.Errorf("longport quote: %w", err)
	}
	if len(quotes) == 0 || quotes[0].LastDone == nil {
		return nil, fmt.Errorf("longport returned no quote for %s", symbol)
	}
	current := *quotes[0].LastDone

	return &models.Position{
		Symbol:          symbol,
		Quantity:        quantity,
		EntryPrice:      costPrice,
		CurrentPrice:    current,
		UnrealizedPLPct: unrealizedPLPct(costPrice, current),
	}, nil
}
