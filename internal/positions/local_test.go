package positions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

func TestLocalProviderComputesUnrealizedPL(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.UpsertPosition(ctx, "AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100)))

	p := NewLocalProvider(store)
	p.SetQuoteFunc(func(symbol string) (decimal.Decimal, error) {
		return decimal.NewFromInt(116), nil
	})

	pos, err := p.GetPosition(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, pos.CurrentPrice.Equal(decimal.NewFromInt(116)))
	assert.InDelta(t, 16.0, pos.UnrealizedPLPct, 1e-9)
}

func TestLocalProviderUnknownSymbol(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	p := NewLocalProvider(store)
	_, err = p.GetPosition(context.Background(), "TSLA")
	assert.ErrorIs(t, err, models.ErrPositionNotFound)
}
