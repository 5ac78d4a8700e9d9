package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(1, 2).
		Width(80)

	buyStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	sellStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	holdStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	mutedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	warnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B"))
)

// DisplayWelcomeBanner shows the interactive-mode banner.
func DisplayWelcomeBanner() {
	banner := titleStyle.Render("QuorumGo - Multi-Agent Stock Consensus")
	tagline := mutedStyle.Render("Several independent AI analysts, one budgeted recommendation")
	fmt.Println(banner)
	fmt.Println(tagline)
	fmt.Println()
}

func actionStyle(action models.Action) lipgloss.Style {
	switch action {
	case models.ActionBuy:
		return buyStyle
	case models.ActionSell:
		return sellStyle
	default:
		return holdStyle
	}
}

// DisplayConsensus renders a consensus result.
func DisplayConsensus(res *models.ConsensusResult, fromCache bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "Consensus for %s\n\n", res.Symbol)
	fmt.Fprintf(&b, "Recommendation:  %s\n", actionStyle(res.RecommendedAction).Render(string(res.RecommendedAction)))
	fmt.Fprintf(&b, "Confidence:      %.2f\n", res.AggregateConfidence)
	fmt.Fprintf(&b, "Backends heard:  %d\n", len(res.AgentResponses))
	if res.Disagreement {
		fmt.Fprintf(&b, "%s\n", warnStyle.Render("Backends disagreed on direction."))
	}
	fmt.Fprintf(&b, "Computed at:     %s\n", res.ComputedAt.Format("2006-01-02 15:04:05 MST"))
	if fromCache {
		fmt.Fprintf(&b, "%s\n", mutedStyle.Render("Served from cache (free)."))
	}

	for _, resp := range res.AgentResponses {
		fmt.Fprintf(&b, "\n--- %s (confidence %.2f) ---\n%s\n", resp.AgentID, resp.Confidence, resp.Reasoning)
	}
	fmt.Println(panelStyle.Render(b.String()))
}

// DisplayChallenge renders a thesis challenge outcome.
func DisplayChallenge(tc *models.ThesisChallenge) {
	var b strings.Builder
	fmt.Fprintf(&b, "Thesis challenge for %s\n\n", tc.Ticker)
	fmt.Fprintf(&b, "Original call:   %s (confidence %.2f)\n",
		tc.OriginalResult.RecommendedAction, tc.OriginalResult.AggregateConfidence)
	fmt.Fprintf(&b, "Entry price:     %s\n", tc.OriginalPrice)
	fmt.Fprintf(&b, "Current price:   %s\n", tc.CurrentPrice)
	fmt.Fprintf(&b, "Realized P&L:    %+.2f%%\n", tc.RealizedPLPct)
	fmt.Fprintf(&b, "Accuracy score:  %.2f\n", tc.AccuracyScore)

	followupStyle := holdStyle
	switch tc.RecommendedFollowup {
	case models.FollowupSell:
		followupStyle = sellStyle
	case models.FollowupBuyMore:
		followupStyle = buyStyle
	}
	fmt.Fprintf(&b, "Follow-up:       %s\n", followupStyle.Render(string(tc.RecommendedFollowup)))
	fmt.Println(panelStyle.Render(b.String()))
}

// DisplayUsage renders the daily budget snapshot.
func DisplayUsage(stats *models.UsageStats, dailyCap int) {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage today (UTC)\n\n")
	fmt.Fprintf(&b, "Metered calls:   %d / %d\n", stats.TodayCalls, dailyCap)
	fmt.Fprintf(&b, "Remaining:       %d\n", stats.RemainingCalls)
	fmt.Fprintf(&b, "Estimated cost:  $%.4f\n", stats.TodayCost)
	if stats.RemainingCalls == 0 {
		fmt.Fprintf(&b, "%s\n", warnStyle.Render("Budget exhausted; cache hits still answer for free."))
	}
	fmt.Println(panelStyle.Render(b.String()))
}

// DisplayInsights renders mined lessons.
func DisplayInsights(list []*models.LearningInsight) {
	if len(list) == 0 {
		fmt.Println(mutedStyle.Render("No insights yet. Challenge some theses first."))
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Learning insights\n")
	for _, in := range list {
		fmt.Fprintf(&b, "\n[%s] confidence %.2f, %d supporting challenges\n%s\n",
			in.InsightType, in.Confidence, len(in.EvidenceIDs), in.Description)
	}
	fmt.Println(panelStyle.Render(b.String()))
}

// DisplayPortfolio renders the locally tracked holdings.
func DisplayPortfolio(rows []sqlite.PortfolioRow) {
	if len(rows) == 0 {
		fmt.Println(mutedStyle.Render("No tracked positions. Use `quorumgo position set` to add one."))
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tracked positions\n\n")
	fmt.Fprintf(&b, "%-10s %12s %12s\n", "SYMBOL", "QUANTITY", "ENTRY")
	for _, row := range rows {
		fmt.Fprintf(&b, "%-10s %12s %12s\n", row.Symbol, row.Quantity, row.EntryPrice)
	}
	fmt.Println(panelStyle.Render(b.String()))
}
