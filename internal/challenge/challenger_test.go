package challenge

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

type stubProvider struct {
	pos *models.Position
	err error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pos, nil
}

func position(entry, current int64) *models.Position {
	e := decimal.NewFromInt(entry)
	c := decimal.NewFromInt(current)
	pct, _ := c.Sub(e).Div(e).Mul(decimal.NewFromInt(100)).Float64()
	return &models.Position{
		Symbol:          "AAPL",
		Quantity:        decimal.NewFromInt(10),
		EntryPrice:      e,
		CurrentPrice:    c,
		UnrealizedPLPct: pct,
	}
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func saveThesis(t *testing.T, store *sqlite.Store, action models.Action, confidence float64) {
	t.Helper()
	err := store.SaveConsensus(context.Background(), &models.ConsensusResult{
		Symbol:      "AAPL",
		ContextHash: "abc123",
		AgentResponses: []models.AgentResponse{
			{AgentID: "a", Confidence: confidence, Reasoning: "r1"},
			{AgentID: "b", Confidence: confidence, Reasoning: "r2"},
		},
		AggregateConfidence: confidence,
		RecommendedAction:   action,
		ComputedAt:          time.Now().UTC().Add(-24 * time.Hour),
	})
	require.NoError(t, err)
}

func noReeval(t *testing.T) Reevaluate {
	return func(ctx context.Context, symbol string) (*models.ConsensusResult, error) {
		t.Fatalf("re-evaluation must not run for symbol %s", symbol)
		return nil, nil
	}
}

func TestChallengeAccurateThesisHolds(t *testing.T) {
	store := openStore(t)
	saveThesis(t, store, models.ActionBuy, 0.75) // implied move +15%

	cfg := config.DefaultConfigWithRoot(t.TempDir())
	c := New(cfg, store, &stubProvider{pos: position(100, 116)}, noReeval(t))

	tc, err := c.ChallengeThesis(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 0.95, tc.AccuracyScore, 1e-9)
	assert.Equal(t, models.FollowupHold, tc.RecommendedFollowup)
	assert.NotZero(t, tc.ID)

	// The challenge row is durable evidence.
	rows, err := store.ChallengesSince(context.Background(), time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AAPL", rows[0].Ticker)
}

func TestChallengeWrongDirectionSells(t *testing.T) {
	store := openStore(t)
	saveThesis(t, store, models.ActionBuy, 0.8)

	cfg := config.DefaultConfigWithRoot(t.TempDir())
	c := New(cfg, store, &stubProvider{pos: position(100, 92)}, noReeval(t))

	tc, err := c.ChallengeThesis(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Less(t, tc.AccuracyScore, cfg.SellAccuracyThreshold)
	assert.Equal(t, models.FollowupSell, tc.RecommendedFollowup)
}

func TestChallengeWrongDirectionSellsUnderLowThreshold(t *testing.T) {
	store := openStore(t)
	saveThesis(t, store, models.ActionBuy, 0.8)

	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.SellAccuracyThreshold = 0.2
	c := New(cfg, store, &stubProvider{pos: position(100, 99)}, noReeval(t))

	// Even the smallest adverse move must land below the exit threshold.
	tc, err := c.ChallengeThesis(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Less(t, tc.AccuracyScore, cfg.SellAccuracyThreshold)
	assert.Equal(t, models.FollowupSell, tc.RecommendedFollowup)
}

func TestChallengeMiddleBandReevaluates(t *testing.T) {
	store := openStore(t)
	saveThesis(t, store, models.ActionBuy, 0.75) // implied +15%, realized +5% -> accuracy 0.5

	cases := []struct {
		name   string
		fresh  models.Action
		want   models.Followup
	}{
		{"fresh buy maps to buy more", models.ActionBuy, models.FollowupBuyMore},
		{"fresh sell maps to sell", models.ActionSell, models.FollowupSell},
		{"fresh hold maps to hold", models.ActionHold, models.FollowupHold},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfigWithRoot(t.TempDir())
			c := New(cfg, store, &stubProvider{pos: position(100, 105)}, func(ctx context.Context, symbol string) (*models.ConsensusResult, error) {
				return &models.ConsensusResult{Symbol: symbol, RecommendedAction: tc.fresh}, nil
			})

			got, err := c.ChallengeThesis(context.Background(), "AAPL")
			require.NoError(t, err)
			assert.InDelta(t, 0.5, got.AccuracyScore, 1e-9)
			assert.Equal(t, tc.want, got.RecommendedFollowup)
		})
	}
}

func TestChallengeMiddleBandReevalFailureHolds(t *testing.T) {
	store := openStore(t)
	saveThesis(t, store, models.ActionBuy, 0.75)

	cfg := config.DefaultConfigWithRoot(t.TempDir())
	c := New(cfg, store, &stubProvider{pos: position(100, 105)}, func(ctx context.Context, symbol string) (*models.ConsensusResult, error) {
		return nil, errors.New("budget exhausted")
	})

	tc, err := c.ChallengeThesis(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, models.FollowupHold, tc.RecommendedFollowup)
}

func TestChallengeHoldThesisScoring(t *testing.T) {
	store := openStore(t)
	saveThesis(t, store, models.ActionHold, 0.6)

	cfg := config.DefaultConfigWithRoot(t.TempDir())
	c := New(cfg, store, &stubProvider{pos: position(100, 104)}, noReeval(t))

	tc, err := c.ChallengeThesis(context.Background(), "AAPL")
	require.NoError(t, err)
	// Inside the divergence band a HOLD call is fully vindicated.
	assert.Equal(t, 1.0, tc.AccuracyScore)
	assert.Equal(t, models.FollowupHold, tc.RecommendedFollowup)
}

func TestChallengeWithoutThesis(t *testing.T) {
	store := openStore(t)
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	c := New(cfg, store, &stubProvider{pos: position(100, 105)}, noReeval(t))

	_, err := c.ChallengeThesis(context.Background(), "AAPL")
	assert.ErrorIs(t, err, models.ErrNoThesis)
}

func TestChallengeWithoutPositionData(t *testing.T) {
	store := openStore(t)
	saveThesis(t, store, models.ActionBuy, 0.75)

	cfg := config.DefaultConfigWithRoot(t.TempDir())
	c := New(cfg, store, &stubProvider{err: models.ErrPositionNotFound}, noReeval(t))

	_, err := c.ChallengeThesis(context.Background(), "AAPL")
	assert.ErrorIs(t, err, models.ErrPositionNotFound)
}
