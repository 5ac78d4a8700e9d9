package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/backends"
	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/positions"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

type stubBackend struct {
	name string
	text string
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Reason(ctx context.Context, symbol, analysisContext string) (models.AgentResponse, error) {
	return models.AgentResponse{
		AgentID:    s.name,
		Confidence: 0.8,
		Reasoning:  s.text,
		ProducedAt: time.Now().UTC(),
	}, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bs := []backends.ReasoningBackend{
		&stubBackend{name: "a", text: "Momentum favors entry.\nFINAL TRANSACTION PROPOSAL: **BUY**\nCONFIDENCE: 0.8"},
		&stubBackend{name: "b", text: "Accumulation continues.\nFINAL TRANSACTION PROPOSAL: **BUY**\nCONFIDENCE: 0.8"},
	}
	eng, err := NewWithDeps(cfg, store, bs, positions.NewLocalProvider(store))
	require.NoError(t, err)

	eng.SetSnapshotFunc(func(ctx context.Context, symbol string) (string, error) {
		return "Market snapshot for " + symbol + ":\n- Last price: 100.00\n", nil
	})
	return eng
}

func TestEngineConsensusRoundTrip(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	res, fromCache, err := eng.GetConsensus(ctx, "aapl", "")
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, models.ActionBuy, res.RecommendedAction)

	_, fromCache, err = eng.GetConsensus(ctx, "AAPL", "")
	require.NoError(t, err)
	assert.True(t, fromCache)

	stats, err := eng.GetUsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TodayCalls)
	assert.Equal(t, eng.cfg.DailyCallCap-1, stats.RemainingCalls)
}

func TestEngineForceRefreshSpendsAgain(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, _, err := eng.GetConsensus(ctx, "AAPL", "")
	require.NoError(t, err)
	_, err = eng.ForceRefresh(ctx, "AAPL", "")
	require.NoError(t, err)

	stats, err := eng.GetUsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TodayCalls)
}

func TestEngineChallengeAgainstLocalPosition(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.SetPosition(ctx, "AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100)))
	lp, ok := eng.provider.(*positions.LocalProvider)
	require.True(t, ok)
	lp.SetQuoteFunc(func(symbol string) (decimal.Decimal, error) {
		return decimal.NewFromInt(116), nil
	})

	_, _, err := eng.GetConsensus(ctx, "AAPL", "")
	require.NoError(t, err)

	// Confidence 0.8 implies +16%; realized +16% vindicates the thesis.
	tc, err := eng.ChallengeThesis(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, models.FollowupHold, tc.RecommendedFollowup)
	assert.InDelta(t, 1.0, tc.AccuracyScore, 1e-9)
}

func TestEngineChallengeWithoutThesis(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.ChallengeThesis(context.Background(), "MSFT")
	assert.ErrorIs(t, err, models.ErrNoThesis)
}

func TestEngineInsightChangesAnalysisContext(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, _, err := eng.GetConsensus(ctx, "AAPL", "")
	require.NoError(t, err)

	// Seed enough poor low-float challenges to mint an insight.
	for i := 0; i < eng.cfg.InsightMinSamples; i++ {
		_, err := eng.store.AppendChallenge(ctx, &models.ThesisChallenge{
			Ticker: "AAPL",
			OriginalResult: &models.ConsensusResult{
				Symbol:         "AAPL",
				ContextHash:    "abc123",
				AgentResponses: []models.AgentResponse{{AgentID: "a", Reasoning: "Low-float squeeze thesis."}},
			},
			OriginalPrice:       decimal.NewFromInt(100),
			CurrentPrice:        decimal.NewFromInt(90),
			RealizedPLPct:       -10,
			AccuracyScore:       0.1,
			RecommendedFollowup: models.FollowupSell,
			EvaluatedAt:         time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	minted, err := eng.ExtractInsights(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, minted)

	// The injected insight changes the context hash, so the cached slot no
	// longer answers and a fresh run is metered.
	_, fromCache, err := eng.GetConsensus(ctx, "AAPL", "")
	require.NoError(t, err)
	assert.False(t, fromCache)
}

func TestEnginePortfolioListing(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.SetPosition(ctx, "AAPL", decimal.NewFromInt(10), decimal.NewFromFloat(123.45)))
	require.NoError(t, eng.SetPosition(ctx, "MSFT", decimal.NewFromInt(5), decimal.NewFromInt(300)))

	rows, err := eng.Portfolio(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	err = eng.SetPosition(ctx, "TSLA", decimal.NewFromInt(-1), decimal.NewFromInt(200))
	assert.Error(t, err)
}
