package orchestrator

import (
	"context"
	"crypto/md5"
	"fmt"
	"log"
	"time"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/backends"
	"github.com/yikai/QuorumGo/internal/cache"
	"github.com/yikai/QuorumGo/internal/consensus"
	"github.com/yikai/QuorumGo/internal/ledger"
	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

// Orchestrator fans one analysis request out to every configured backend and
// reduces the answers to a single consensus. Budget check, cache lookup and
// persistence all happen here so callers see one entry point.
type Orchestrator struct {
	cfg      *config.Config
	backends []backends.ReasoningBackend
	builder  *consensus.Builder
	ledger   *ledger.Ledger
	cache    *cache.AnalysisCache
	store    *sqlite.Store
	now      func() time.Time
}

func New(cfg *config.Config, bs []backends.ReasoningBackend, lg *ledger.Ledger, ac *cache.AnalysisCache, store *sqlite.Store) (*Orchestrator, error) {
	if len(bs) < cfg.MinAgentResponses {
		return nil, fmt.Errorf("need at least %d configured backends, have %d", cfg.MinAgentResponses, len(bs))
	}
	return &Orchestrator{
		cfg:      cfg,
		backends: bs,
		builder:  consensus.NewBuilder(),
		ledger:   lg,
		cache:    ac,
		store:    store,
		now:      time.Now,
	}, nil
}

// SetClock overrides the time source in tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// ContextHash fingerprints the full analysis input. Any change to the context
// (market data, injected insights) produces a different cache slot.
func ContextHash(symbol, analysisContext string) string {
	sum := md5.Sum([]byte(symbol + "\n" + analysisContext))
	return fmt.Sprintf("%x", sum)
}

type outcome struct {
	resp models.AgentResponse
	err  error
}

// Analyze returns the consensus for a symbol and whether it was served from
// cache. forceRefresh skips the cache read and replaces any live entry, but
// still pays for the backend calls.
func (o *Orchestrator) Analyze(ctx context.Context, symbol, analysisContext string, forceRefresh bool) (*models.ConsensusResult, bool, error) {
	hash := ContextHash(symbol, analysisContext)
	key := cache.Key(symbol, hash)

	if !forceRefresh {
		if res, ok := o.cache.Get(key); ok {
			o.ledger.RecordCacheHit(ctx, "analyze", symbol)
			return res, true, nil
		}
	}

	// Budget is committed before any backend is called. One analysis run is
	// one unit of spend regardless of how many backends answer.
	if _, err := o.ledger.TryReserve(ctx, "analyze", symbol, o.cfg.EstimatedCostUSD); err != nil {
		return nil, false, err
	}

	responses, err := o.fanOut(ctx, symbol, analysisContext)
	if err != nil {
		return nil, false, err
	}
	if len(responses) < o.cfg.MinAgentResponses {
		return nil, false, &models.InsufficientConsensusError{
			Symbol:    symbol,
			Succeeded: len(responses),
			Required:  o.cfg.MinAgentResponses,
		}
	}

	confidence, action, disagreement, err := o.builder.Aggregate(responses)
	if err != nil {
		return nil, false, err
	}
	result := &models.ConsensusResult{
		Symbol:              symbol,
		ContextHash:         hash,
		AgentResponses:      responses,
		AggregateConfidence: confidence,
		RecommendedAction:   action,
		Disagreement:        disagreement,
		ComputedAt:          o.now().UTC(),
	}

	if err := o.store.SaveConsensus(ctx, result); err != nil {
		return nil, false, fmt.Errorf("save consensus: %w", err)
	}
	if forceRefresh {
		o.cache.ForceInvalidate(ctx, key)
	}
	if !o.cache.Put(ctx, key, result) {
		log.Printf("[Orchestrator] cache slot for %s still live, result not cached", key)
	}
	return result, false, nil
}

// fanOut queries every backend concurrently and collects answers in arrival
// order. Individual failures are logged and absorbed; the outer deadline cuts
// collection short with whatever arrived.
func (o *Orchestrator) fanOut(parent context.Context, symbol, analysisContext string) ([]models.AgentResponse, error) {
	ctx, cancel := context.WithTimeout(parent, o.cfg.OverallTimeout())
	defer cancel()

	results := make(chan outcome, len(o.backends))
	for _, b := range o.backends {
		go func(b backends.ReasoningBackend) {
			callCtx, callCancel := context.WithTimeout(ctx, o.cfg.AgentTimeout())
			defer callCancel()
			resp, err := b.Reason(callCtx, symbol, analysisContext)
			if err != nil {
				results <- outcome{err: &models.AgentCallError{AgentID: b.Name(), Err: err}}
				return
			}
			results <- outcome{resp: resp}
		}(b)
	}

	var responses []models.AgentResponse
	for range o.backends {
		select {
		case out := <-results:
			if out.err != nil {
				log.Printf("[Orchestrator] %v", out.err)
				continue
			}
			responses = append(responses, out.resp)
		case <-ctx.Done():
			log.Printf("[Orchestrator] overall deadline hit for %s with %d responses", symbol, len(responses))
			return responses, nil
		}
	}
	return responses, nil
}
