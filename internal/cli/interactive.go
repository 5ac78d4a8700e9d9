package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/engine"
	"github.com/yikai/QuorumGo/internal/models"
)

const (
	actionAnalyze   = "Analyze a symbol"
	actionChallenge = "Challenge a thesis"
	actionUsage     = "Show usage"
	actionInsights  = "Show insights"
	actionExtract   = "Extract new insights"
	actionPositions = "List tracked positions"
	actionQuit      = "Quit"
)

// pendingConfig hands reloaded configs from the watcher goroutine to the
// menu loop. The watcher only publishes; the loop applies between actions,
// so an in-flight analysis never observes a half-written config.
type pendingConfig struct {
	next atomic.Pointer[config.Config]
}

func (p *pendingConfig) publish(cfg config.Config) {
	p.next.Store(&cfg)
}

// apply copies the latest published config into dst. It must only be called
// from the goroutine that owns dst.
func (p *pendingConfig) apply(dst *config.Config) bool {
	next := p.next.Swap(nil)
	if next == nil {
		return false
	}
	*dst = *next
	return true
}

// runInteractiveMode drives a menu-based session. Config edits on disk are
// picked up live via the file watcher, so budget or threshold changes apply
// without restarting.
func runInteractiveMode(cfg *config.Config) error {
	DisplayWelcomeBanner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pending pendingConfig
	reloadedFrom := ""
	mgr, err := config.NewManager(config.WithInitialConfig(cfg))
	if err != nil {
		log.Printf("[CLI] config watcher unavailable: %v", err)
	} else {
		reloadedFrom = mgr.Path()
		if err := mgr.Watch(ctx, pending.publish); err != nil {
			log.Printf("[CLI] config watch failed: %v", err)
		}
	}

	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	for {
		if pending.apply(cfg) {
			fmt.Println(mutedStyle.Render("Configuration reloaded from " + reloadedFrom))
		}

		action, err := PromptForAction()
		if err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				return nil
			}
			return err
		}

		switch action {
		case actionAnalyze:
			err = interactiveAnalyze(ctx, eng)
		case actionChallenge:
			err = interactiveChallenge(ctx, eng)
		case actionUsage:
			var stats *models.UsageStats
			if stats, err = eng.GetUsageStats(ctx); err == nil {
				DisplayUsage(stats, cfg.DailyCallCap)
			}
		case actionInsights:
			var list []*models.LearningInsight
			if list, err = eng.RecentInsights(ctx); err == nil {
				DisplayInsights(list)
			}
		case actionExtract:
			var minted []*models.LearningInsight
			if minted, err = eng.ExtractInsights(ctx, 0); err == nil {
				if len(minted) == 0 {
					fmt.Println(mutedStyle.Render("No new patterns met the sample-size bar."))
				} else {
					DisplayInsights(minted)
				}
			}
		case actionPositions:
			rows, perr := eng.Portfolio(ctx)
			if perr == nil {
				DisplayPortfolio(rows)
			}
			err = perr
		case actionQuit:
			return nil
		}

		if err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				return nil
			}
			fmt.Printf("Error: %v\n\n", err)
		}
	}
}

func interactiveAnalyze(ctx context.Context, eng *engine.Engine) error {
	symbol, err := PromptForTicker()
	if err != nil {
		return err
	}
	refresh, err := PromptForRefresh()
	if err != nil {
		return err
	}
	return runAnalyze(ctx, eng, symbol, "", refresh)
}

func interactiveChallenge(ctx context.Context, eng *engine.Engine) error {
	ticker, err := PromptForTicker()
	if err != nil {
		return err
	}
	tc, err := eng.ChallengeThesis(ctx, ticker)
	if err != nil {
		if errors.Is(err, models.ErrNoThesis) {
			fmt.Println(mutedStyle.Render("No recorded thesis for " + ticker + ". Analyze it first."))
			return nil
		}
		if errors.Is(err, models.ErrPositionNotFound) {
			fmt.Println(mutedStyle.Render("No position data for " + ticker + ". Record one with `position set`."))
			return nil
		}
		return err
	}
	DisplayChallenge(tc)
	return nil
}
