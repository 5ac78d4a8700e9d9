package insights

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/yikai/QuorumGo/config"
	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

// feature is a recognizable trait in thesis reasoning. Grouping challenges by
// feature is what turns individual outcomes into reusable patterns.
type feature struct {
	key     string
	label   string
	pattern *regexp.Regexp
}

var features = []feature{
	{"low_float", "low-float setups", regexp.MustCompile(`(?i)\blow[- ]float\b`)},
	{"catalyst_driven", "catalyst-driven theses", regexp.MustCompile(`(?i)\bcatalyst([- ]driven)?\b`)},
	{"momentum", "momentum continuation calls", regexp.MustCompile(`(?i)\bmomentum\b`)},
	{"earnings", "earnings-based theses", regexp.MustCompile(`(?i)\bearnings\b`)},
	{"short_interest", "high short interest plays", regexp.MustCompile(`(?i)\bshort[- ]interest\b`)},
	{"macro", "macro-driven theses", regexp.MustCompile(`(?i)\bmacro\b`)},
}

// Extractor mines challenge history for patterns worth feeding back into
// future analysis prompts.
type Extractor struct {
	cfg   *config.Config
	store *sqlite.Store
	now   func() time.Time
}

func New(cfg *config.Config, store *sqlite.Store) *Extractor {
	return &Extractor{cfg: cfg, store: store, now: time.Now}
}

// SetClock overrides the time source in tests.
func (e *Extractor) SetClock(now func() time.Time) {
	e.now = now
}

// ExtractInsights groups the trailing window of thesis challenges by feature
// and persists an insight for every feature whose track record clearly leans
// one way. Features below the minimum sample size are skipped outright; a
// thin sample proves nothing. A non-positive window uses the configured
// default.
func (e *Extractor) ExtractInsights(ctx context.Context, window time.Duration) ([]*models.LearningInsight, error) {
	if window <= 0 {
		window = e.cfg.InsightWindow()
	}
	since := e.now().UTC().Add(-window)
	challenges, err := e.store.ChallengesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load challenge window: %w", err)
	}

	type group struct {
		ids   []int64
		total float64
	}
	groups := map[string]*group{}
	for _, tc := range challenges {
		if tc.OriginalResult == nil {
			continue
		}
		text := tc.OriginalResult.CombinedReasoning()
		for _, f := range features {
			if !f.pattern.MatchString(text) {
				continue
			}
			g := groups[f.key]
			if g == nil {
				g = &group{}
				groups[f.key] = g
			}
			g.ids = append(g.ids, tc.ID)
			g.total += tc.AccuracyScore
		}
	}

	var out []*models.LearningInsight
	for _, f := range features {
		g := groups[f.key]
		if g == nil || len(g.ids) < e.cfg.InsightMinSamples {
			continue
		}
		avg := g.total / float64(len(g.ids))

		var description string
		switch {
		case avg >= 0.6:
			description = fmt.Sprintf("%s held up well: average accuracy %.2f across %d challenged theses", f.label, avg, len(g.ids))
		case avg <= 0.4:
			description = fmt.Sprintf("%s underperformed: average accuracy %.2f across %d challenged theses", f.label, avg, len(g.ids))
		default:
			continue
		}

		insight := &models.LearningInsight{
			InsightType: f.key,
			Description: description,
			EvidenceIDs: g.ids,
			Confidence:  math.Abs(avg-0.5) * 2,
			CreatedAt:   e.now().UTC(),
		}
		id, err := e.store.SaveInsight(ctx, insight)
		if err != nil {
			log.Printf("[Insights] persist insight %s failed: %v", f.key, err)
			continue
		}
		insight.ID = id
		out = append(out, insight)
	}
	return out, nil
}

// PromptContext renders the most recent insights as prompt lines for the
// next analysis. An empty history yields an empty string, not filler.
func (e *Extractor) PromptContext(ctx context.Context) (string, error) {
	recent, err := e.store.RecentInsights(ctx, e.cfg.InsightMaxInjected)
	if err != nil {
		return "", fmt.Errorf("load recent insights: %w", err)
	}
	if len(recent) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Lessons from previously challenged theses:\n")
	for _, in := range recent {
		fmt.Fprintf(&b, "- %s\n", in.Description)
	}
	return b.String(), nil
}
