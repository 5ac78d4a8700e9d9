package challenge

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/positions"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

// Reevaluate runs a fresh consensus analysis for a ticker. The challenger
// calls it only for middle-band accuracy, where the old thesis is neither
// vindicated nor broken.
type Reevaluate func(ctx context.Context, symbol string) (*models.ConsensusResult, error)

// Challenger re-scores a recorded thesis against the position's realized
// movement and recommends a follow-up. Every challenge is persisted as
// evidence for the learning extractor.
type Challenger struct {
	cfg      *config.Config
	store    *sqlite.Store
	provider positions.Provider
	reeval   Reevaluate
	now      func() time.Time
}

func New(cfg *config.Config, store *sqlite.Store, provider positions.Provider, reeval Reevaluate) *Challenger {
	return &Challenger{
		cfg:      cfg,
		store:    store,
		provider: provider,
		reeval:   reeval,
		now:      time.Now,
	}
}

// SetClock overrides the time source in tests.
func (c *Challenger) SetClock(now func() time.Time) {
	c.now = now
}

// ChallengeThesis evaluates the most recent consensus for a ticker against
// the live position. Missing thesis or missing position data is a hard
// failure: a challenge without real numbers is worthless.
func (c *Challenger) ChallengeThesis(ctx context.Context, ticker string) (*models.ThesisChallenge, error) {
	original, err := c.store.LatestConsensus(ctx, ticker)
	if err != nil {
		return nil, err
	}

	pos, err := c.provider.GetPosition(ctx, ticker)
	if err != nil {
		return nil, err
	}

	realized := pos.UnrealizedPLPct
	accuracy := c.accuracyScore(original.RecommendedAction, original.AggregateConfidence, realized)
	followup := c.followup(ctx, ticker, accuracy)

	tc := &models.ThesisChallenge{
		Ticker:              ticker,
		OriginalResult:      original,
		OriginalPrice:       pos.EntryPrice,
		CurrentPrice:        pos.CurrentPrice,
		RealizedPLPct:       realized,
		AccuracyScore:       accuracy,
		RecommendedFollowup: followup,
		EvaluatedAt:         c.now().UTC(),
	}

	id, err := c.store.AppendChallenge(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("persist challenge: %w", err)
	}
	tc.ID = id
	return tc, nil
}

// accuracyScore maps (call, confidence, realized move) to [0,1]. The
// confidence implies a move of confidence*ImpliedMoveScalePct percent in the
// called direction; accuracy decays with the distance between implied and
// realized. A wrong-direction call is capped below the sell threshold so it
// always triggers an exit recommendation.
func (c *Challenger) accuracyScore(action models.Action, confidence, realizedPct float64) float64 {
	scale := c.cfg.ImpliedMoveScalePct
	implied := confidence * scale

	switch action {
	case models.ActionBuy:
		if realizedPct < 0 {
			return c.wrongDirectionScore(realizedPct, scale)
		}
		return clamp(1-math.Abs(realizedPct-implied)/scale, 0, 1)
	case models.ActionSell:
		if realizedPct > 0 {
			return c.wrongDirectionScore(realizedPct, scale)
		}
		return clamp(1-math.Abs(math.Abs(realizedPct)-implied)/scale, 0, 1)
	default:
		divergence := math.Abs(realizedPct)
		if divergence <= c.cfg.HoldDivergencePct {
			return 1
		}
		return clamp(1-(divergence-c.cfg.HoldDivergencePct)/scale, 0, 1)
	}
}

// wrongDirectionScore scores a call whose direction the market contradicted.
// The score starts at 0.25 and decays with the size of the adverse move, but
// the ceiling shrinks when the sell threshold is configured at or below 0.25
// so a wrong call can never escape the exit band.
func (c *Challenger) wrongDirectionScore(realizedPct, scale float64) float64 {
	ceiling := 0.25
	if t := c.cfg.SellAccuracyThreshold; t <= ceiling {
		ceiling = t * 0.8
	}
	return clamp(ceiling-math.Abs(realizedPct)/(4*scale), 0, ceiling)
}

// followup applies the threshold policy. The middle band asks for a fresh
// analysis; if that analysis cannot complete the challenger degrades to HOLD
// rather than fabricating a directional call.
func (c *Challenger) followup(ctx context.Context, ticker string, accuracy float64) models.Followup {
	switch {
	case accuracy >= c.cfg.HoldAccuracyThreshold:
		return models.FollowupHold
	case accuracy < c.cfg.SellAccuracyThreshold:
		return models.FollowupSell
	}

	fresh, err := c.reeval(ctx, ticker)
	if err != nil {
		log.Printf("[Challenger] re-evaluation for %s failed, defaulting to HOLD: %v", ticker, err)
		return models.FollowupHold
	}
	switch fresh.RecommendedAction {
	case models.ActionBuy:
		return models.FollowupBuyMore
	case models.ActionSell:
		return models.FollowupSell
	default:
		return models.FollowupHold
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
