package marketdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/piquette/finance-go/quote"

	"github.com/yikai/QuorumGo/internal/backends"
)

// Client renders a current market snapshot for a symbol as prompt text.
// Yahoo Finance is the source; quotes are delayed but free and keyless.
type Client struct {
	retry *backends.RetryConfig
}

func NewClient() *Client {
	return &Client{retry: backends.DefaultRetryConfig()}
}

// Snapshot fetches the latest quote and formats it for the analysis prompt.
// A symbol Yahoo does not know is an error, not an empty snapshot.
func (c *Client) Snapshot(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("empty symbol")
	}

	var q *financeQuote
	err := backends.WithRetry(ctx, c.retry, func() error {
		raw, err := quote.Get(symbol)
		if err != nil {
			return fmt.Errorf("get quote for %s: %w", symbol, err)
		}
		if raw == nil {
			return fmt.Errorf("no quote data for %s", symbol)
		}
		q = &financeQuote{
			price:         raw.RegularMarketPrice,
			open:          raw.RegularMarketOpen,
			dayHigh:       raw.RegularMarketDayHigh,
			dayLow:        raw.RegularMarketDayLow,
			previousClose: raw.RegularMarketPreviousClose,
			volume:        int64(raw.RegularMarketVolume),
			yearHigh:      raw.FiftyTwoWeekHigh,
			yearLow:       raw.FiftyTwoWeekLow,
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return q.render(symbol), nil
}

type financeQuote struct {
	price         float64
	open          float64
	dayHigh       float64
	dayLow        float64
	previousClose float64
	volume        int64
	yearHigh      float64
	yearLow       float64
}

func (q *financeQuote) render(symbol string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market snapshot for %s:\n", symbol)
	fmt.Fprintf(&b, "- Last price: %.2f (previous close %.2f)\n", q.price, q.previousClose)
	fmt.Fprintf(&b, "- Day range: %.2f - %.2f (open %.2f)\n", q.dayLow, q.dayHigh, q.open)
	fmt.Fprintf(&b, "- Volume: %d\n", q.volume)
	fmt.Fprintf(&b, "- 52-week range: %.2f - %.2f\n", q.yearLow, q.yearHigh)
	return b.String()
}
