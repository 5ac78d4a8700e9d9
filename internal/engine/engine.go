package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/backends"
	"github.com/yikai/QuorumGo/internal/cache"
	"github.com/yikai/QuorumGo/internal/challenge"
	"github.com/yikai/QuorumGo/internal/insights"
	"github.com/yikai/QuorumGo/internal/ledger"
	"github.com/yikai/QuorumGo/internal/marketdata"
	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/orchestrator"
	"github.com/yikai/QuorumGo/internal/positions"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

// Engine is the single entry surface for consensus analysis, thesis
// challenges, usage accounting and learning extraction. The CLI talks only
// to this type.
type Engine struct {
	cfg        *config.Config
	store      *sqlite.Store
	ledger     *ledger.Ledger
	orch       *orchestrator.Orchestrator
	challenger *challenge.Challenger
	extractor  *insights.Extractor
	provider   positions.Provider

	snapshotFn func(ctx context.Context, symbol string) (string, error)
}

// New wires a production engine: every backend with credentials joins the
// panel, and positions come from Longport when configured, otherwise from
// the locally tracked portfolio.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	bs := resolveBackends(ctx, cfg)

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var provider positions.Provider
	if lp, err := positions.NewLongportProvider(cfg); err == nil {
		provider = lp
	} else {
		log.Printf("[Engine] longport unavailable (%v), using local portfolio", err)
		provider = positions.NewLocalProvider(store)
	}

	eng, err := NewWithDeps(cfg, store, bs, provider)
	if err != nil {
		store.Close()
		return nil, err
	}
	return eng, nil
}

// NewWithDeps wires an engine from explicit dependencies. Tests use it to
// substitute stub backends and providers; New delegates here.
func NewWithDeps(cfg *config.Config, store *sqlite.Store, bs []backends.ReasoningBackend, provider positions.Provider) (*Engine, error) {
	lg, err := ledger.New(store, cfg.DailyCallCap)
	if err != nil {
		return nil, fmt.Errorf("init usage ledger: %w", err)
	}
	ac, err := cache.New(context.Background(), store, cfg.CacheTTL())
	if err != nil {
		return nil, fmt.Errorf("init analysis cache: %w", err)
	}
	orch, err := orchestrator.New(cfg, bs, lg, ac, store)
	if err != nil {
		return nil, err
	}

	market := marketdata.NewClient()
	eng := &Engine{
		cfg:       cfg,
		store:     store,
		ledger:    lg,
		orch:      orch,
		extractor: insights.New(cfg, store),
		provider:  provider,
		snapshotFn: func(ctx context.Context, symbol string) (string, error) {
			return market.Snapshot(ctx, symbol)
		},
	}
	eng.challenger = challenge.New(cfg, store, provider, func(ctx context.Context, symbol string) (*models.ConsensusResult, error) {
		res, _, err := eng.analyze(ctx, symbol, "", true)
		return res, err
	})
	return eng, nil
}

func resolveBackends(ctx context.Context, cfg *config.Config) []backends.ReasoningBackend {
	var bs []backends.ReasoningBackend
	if b, err := backends.NewOpenAIBackend(ctx, cfg); err == nil {
		bs = append(bs, b)
	} else {
		log.Printf("[Engine] openai backend skipped: %v", err)
	}
	if b, err := backends.NewDeepSeekBackend(ctx, cfg); err == nil {
		bs = append(bs, b)
	} else {
		log.Printf("[Engine] deepseek backend skipped: %v", err)
	}
	if b, err := backends.NewRestBackend(cfg); err == nil {
		bs = append(bs, b)
	} else {
		log.Printf("[Engine] rest backend skipped: %v", err)
	}
	return bs
}

// SetSnapshotFunc overrides the market data source in tests.
func (e *Engine) SetSnapshotFunc(fn func(ctx context.Context, symbol string) (string, error)) {
	e.snapshotFn = fn
}

func (e *Engine) Close() error {
	return e.store.Close()
}

// buildContext assembles the full analysis input: live market snapshot, any
// caller-supplied framing, and the lessons mined from past challenges. All of
// it feeds the context hash, so a new insight or changed framing naturally
// retires stale cache slots.
func (e *Engine) buildContext(ctx context.Context, symbol, userContext string) (string, error) {
	snapshot, err := e.snapshotFn(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("market snapshot for %s: %w", symbol, err)
	}

	promptCtx, err := e.extractor.PromptContext(ctx)
	if err != nil {
		return "", err
	}

	parts := []string{snapshot}
	if userContext = strings.TrimSpace(userContext); userContext != "" {
		parts = append(parts, userContext)
	}
	if promptCtx != "" {
		parts = append(parts, promptCtx)
	}
	return strings.Join(parts, "\n"), nil
}

func (e *Engine) analyze(ctx context.Context, symbol, userContext string, forceRefresh bool) (*models.ConsensusResult, bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, false, fmt.Errorf("empty symbol")
	}
	analysisContext, err := e.buildContext(ctx, symbol, userContext)
	if err != nil {
		return nil, false, err
	}
	return e.orch.Analyze(ctx, symbol, analysisContext, forceRefresh)
}

// GetConsensus returns the current consensus for a symbol, served from cache
// when a fresh entry exists. userContext is optional caller framing that
// becomes part of the cache identity.
func (e *Engine) GetConsensus(ctx context.Context, symbol, userContext string) (*models.ConsensusResult, bool, error) {
	return e.analyze(ctx, symbol, userContext, false)
}

// ForceRefresh bypasses the cache read and replaces any live entry. The run
// is metered like any other analysis.
func (e *Engine) ForceRefresh(ctx context.Context, symbol, userContext string) (*models.ConsensusResult, error) {
	res, _, err := e.analyze(ctx, symbol, userContext, true)
	return res, err
}

// ChallengeThesis re-scores the latest recorded consensus for a held ticker.
func (e *Engine) ChallengeThesis(ctx context.Context, ticker string) (*models.ThesisChallenge, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("empty ticker")
	}
	return e.challenger.ChallengeThesis(ctx, ticker)
}

// GetUsageStats reports today's metered spend against the daily cap.
func (e *Engine) GetUsageStats(ctx context.Context) (*models.UsageStats, error) {
	return e.ledger.Stats(ctx)
}

// ExtractInsights mines the trailing challenge window for durable patterns.
// A non-positive window falls back to the configured default.
func (e *Engine) ExtractInsights(ctx context.Context, window time.Duration) ([]*models.LearningInsight, error) {
	return e.extractor.ExtractInsights(ctx, window)
}

// RecentInsights lists the insights currently injected into analysis prompts.
func (e *Engine) RecentInsights(ctx context.Context) ([]*models.LearningInsight, error) {
	return e.store.RecentInsights(ctx, e.cfg.InsightMaxInjected)
}

// SetPosition records or replaces a manually tracked holding.
func (e *Engine) SetPosition(ctx context.Context, symbol string, quantity, entryPrice decimal.Decimal) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("empty symbol")
	}
	if quantity.Sign() <= 0 || entryPrice.Sign() <= 0 {
		return fmt.Errorf("quantity and entry price must be positive")
	}
	return e.store.UpsertPosition(ctx, symbol, quantity, entryPrice)
}

// Portfolio lists the manually tracked holdings.
func (e *Engine) Portfolio(ctx context.Context) ([]sqlite.PortfolioRow, error) {
	return e.store.ListPortfolio(ctx)
}
