package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/yikai/QuorumGo/internal/models"
)

// Store is the durable source of truth for usage records, consensus history,
// cache entries, thesis challenges and learning insights. In-memory state
// elsewhere is disposable and rebuilt from here at startup.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS usage_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts DATETIME NOT NULL,
    endpoint TEXT NOT NULL,
    symbol TEXT NOT NULL DEFAULT '',
    estimated_cost REAL NOT NULL DEFAULT 0,
    served_from_cache INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_usage_ts ON usage_records(ts);

CREATE TABLE IF NOT EXISTS consensus_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol TEXT NOT NULL,
    context_hash TEXT NOT NULL,
    agent_responses_json TEXT NOT NULL,
    aggregate_confidence REAL NOT NULL,
    recommended_action TEXT NOT NULL,
    disagreement INTEGER NOT NULL,
    computed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_consensus_symbol_computed ON consensus_results(symbol, computed_at);

CREATE TABLE IF NOT EXISTS cache_entries (
    cache_key TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    context_hash TEXT NOT NULL,
    result_json TEXT NOT NULL,
    computed_at DATETIME NOT NULL,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS thesis_challenges (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker TEXT NOT NULL,
    original_result_json TEXT NOT NULL,
    original_price TEXT NOT NULL,
    current_price TEXT NOT NULL,
    realized_pl_pct REAL NOT NULL,
    accuracy_score REAL NOT NULL,
    recommended_followup TEXT NOT NULL,
    evaluated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_challenges_evaluated ON thesis_challenges(evaluated_at);

CREATE TABLE IF NOT EXISTS learning_insights (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    insight_type TEXT NOT NULL,
    description TEXT NOT NULL,
    evidence_json TEXT NOT NULL,
    confidence REAL NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    symbol TEXT PRIMARY KEY,
    quantity TEXT NOT NULL,
    entry_price TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// --- usage records ---

func (s *Store) AppendUsage(ctx context.Context, rec models.UsageRecord) error {
	if strings.TrimSpace(rec.Endpoint) == "" {
		return fmt.Errorf("usage record endpoint is required")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO usage_records (ts, endpoint, symbol, estimated_cost, served_from_cache)
VALUES (?, ?, ?, ?, ?)
`, rec.Timestamp.UTC(), rec.Endpoint, rec.Symbol, rec.EstimatedCost, rec.ServedFromCache)
	if err != nil {
		return fmt.Errorf("append usage record: %w", err)
	}
	return nil
}

// UsageSince derives the billable counter: served-from-cache rows are free and
// excluded from both the call count and the cost sum.
func (s *Store) UsageSince(ctx context.Context, since time.Time) (calls int, cost float64, err error) {
	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(estimated_cost), 0)
FROM usage_records
WHERE ts >= ? AND served_from_cache = 0
`, since.UTC())
	if err := row.Scan(&calls, &cost); err != nil {
		return 0, 0, fmt.Errorf("count usage: %w", err)
	}
	return calls, cost, nil
}

// --- consensus history ---

func (s *Store) SaveConsensus(ctx context.Context, res *models.ConsensusResult) error {
	if res == nil {
		return fmt.Errorf("consensus result is required")
	}
	responses, err := json.Marshal(res.AgentResponses)
	if err != nil {
		return fmt.Errorf("marshal agent responses: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO consensus_results
    (symbol, context_hash, agent_responses_json, aggregate_confidence, recommended_action, disagreement, computed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, res.Symbol, res.ContextHash, string(responses), res.AggregateConfidence,
		string(res.RecommendedAction), res.Disagreement, res.ComputedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert consensus result: %w", err)
	}
	return nil
}

// LatestConsensus returns the most recent recommendation for a symbol, or
// models.ErrNoThesis when none was ever recorded.
func (s *Store) LatestConsensus(ctx context.Context, symbol string) (*models.ConsensusResult, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT symbol, context_hash, agent_responses_json, aggregate_confidence, recommended_action, disagreement, computed_at
FROM consensus_results
WHERE symbol = ?
ORDER BY computed_at DESC, id DESC
LIMIT 1
`, symbol)

	var (
		res           models.ConsensusResult
		responsesJSON string
		action        string
	)
	if err := row.Scan(&res.Symbol, &res.ContextHash, &responsesJSON,
		&res.AggregateConfidence, &action, &res.Disagreement, &res.ComputedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNoThesis
		}
		return nil, fmt.Errorf("get latest consensus: %w", err)
	}
	res.RecommendedAction = models.Action(action)
	if err := json.Unmarshal([]byte(responsesJSON), &res.AgentResponses); err != nil {
		return nil, fmt.Errorf("unmarshal agent responses: %w", err)
	}
	return &res, nil
}

// --- cache entries ---

type CacheRow struct {
	Key       string
	Result    *models.ConsensusResult
	ExpiresAt time.Time
}

func (s *Store) UpsertCacheEntry(ctx context.Context, key string, res *models.ConsensusResult, expiresAt time.Time) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO cache_entries (cache_key, symbol, context_hash, result_json, computed_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(cache_key) DO UPDATE SET
    symbol=excluded.symbol,
    context_hash=excluded.context_hash,
    result_json=excluded.result_json,
    computed_at=excluded.computed_at,
    expires_at=excluded.expires_at
`, key, res.Symbol, res.ContextHash, string(payload), res.ComputedAt.UTC(), expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (s *Store) DeleteCacheEntry(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// LoadCacheEntries returns unexpired entries and prunes expired rows, so the
// in-memory index can be rebuilt after a restart.
func (s *Store) LoadCacheEntries(ctx context.Context, now time.Time) ([]CacheRow, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, now.UTC()); err != nil {
		return nil, fmt.Errorf("prune cache entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT cache_key, result_json, expires_at
FROM cache_entries
WHERE expires_at > ?
`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	defer rows.Close()

	var entries []CacheRow
	for rows.Next() {
		var (
			row     CacheRow
			payload string
		)
		if err := rows.Scan(&row.Key, &payload, &row.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		var res models.ConsensusResult
		if err := json.Unmarshal([]byte(payload), &res); err != nil {
			return nil, fmt.Errorf("unmarshal cache entry %s: %w", row.Key, err)
		}
		row.Result = &res
		entries = append(entries, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cache entries rows: %w", err)
	}
	return entries, nil
}

// --- thesis challenges ---

func (s *Store) AppendChallenge(ctx context.Context, tc *models.ThesisChallenge) (int64, error) {
	if tc == nil {
		return 0, fmt.Errorf("thesis challenge is required")
	}
	original, err := json.Marshal(tc.OriginalResult)
	if err != nil {
		return 0, fmt.Errorf("marshal original result: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO thesis_challenges
    (ticker, original_result_json, original_price, current_price, realized_pl_pct, accuracy_score, recommended_followup, evaluated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, tc.Ticker, string(original), tc.OriginalPrice.String(), tc.CurrentPrice.String(),
		tc.RealizedPLPct, tc.AccuracyScore, string(tc.RecommendedFollowup), tc.EvaluatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert thesis challenge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("challenge insert id: %w", err)
	}
	return id, nil
}

func (s *Store) ChallengesSince(ctx context.Context, since time.Time) ([]*models.ThesisChallenge, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ticker, original_result_json, original_price, current_price, realized_pl_pct, accuracy_score, recommended_followup, evaluated_at
FROM thesis_challenges
WHERE evaluated_at >= ?
ORDER BY evaluated_at ASC, id ASC
`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*models.ThesisChallenge
	for rows.Next() {
		var (
			tc            models.ThesisChallenge
			originalJSON  string
			originalPrice string
			currentPrice  string
			followup      string
		)
		if err := rows.Scan(&tc.ID, &tc.Ticker, &originalJSON, &originalPrice, &currentPrice,
			&tc.RealizedPLPct, &tc.AccuracyScore, &followup, &tc.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		if err := json.Unmarshal([]byte(originalJSON), &tc.OriginalResult); err != nil {
			return nil, fmt.Errorf("unmarshal challenge %d: %w", tc.ID, err)
		}
		if tc.OriginalPrice, err = decimal.NewFromString(originalPrice); err != nil {
			return nil, fmt.Errorf("parse original price: %w", err)
		}
		if tc.CurrentPrice, err = decimal.NewFromString(currentPrice); err != nil {
			return nil, fmt.Errorf("parse current price: %w", err)
		}
		tc.RecommendedFollowup = models.Followup(followup)
		challenges = append(challenges, &tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list challenges rows: %w", err)
	}
	return challenges, nil
}

// --- learning insights ---

func (s *Store) SaveInsight(ctx context.Context, in *models.LearningInsight) (int64, error) {
	if in == nil {
		return 0, fmt.Errorf("insight is required")
	}
	evidence, err := json.Marshal(in.EvidenceIDs)
	if err != nil {
		return 0, fmt.Errorf("marshal insight evidence: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO learning_insights (insight_type, description, evidence_json, confidence, created_at)
VALUES (?, ?, ?, ?, ?)
`, in.InsightType, in.Description, string(evidence), in.Confidence, in.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert insight: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insight insert id: %w", err)
	}
	return id, nil
}

func (s *Store) RecentInsights(ctx context.Context, limit int) ([]*models.LearningInsight, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, insight_type, description, evidence_json, confidence, created_at
FROM learning_insights
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var insights []*models.LearningInsight
	for rows.Next() {
		var (
			in           models.LearningInsight
			evidenceJSON string
		)
		if err := rows.Scan(&in.ID, &in.InsightType, &in.Description, &evidenceJSON, &in.Confidence, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		if err := json.Unmarshal([]byte(evidenceJSON), &in.EvidenceIDs); err != nil {
			return nil, fmt.Errorf("unmarshal insight evidence: %w", err)
		}
		insights = append(insights, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list insights rows: %w", err)
	}
	return insights, nil
}

// --- local portfolio ---

func (s *Store) UpsertPosition(ctx context.Context, symbol string, quantity, entryPrice decimal.Decimal) error {
	if strings.TrimSpace(symbol) == "" {
		return fmt.Errorf("position symbol is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO positions (symbol, quantity, entry_price, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(symbol) DO UPDATE SET
    quantity=excluded.quantity,
    entry_price=excluded.entry_price,
    updated_at=excluded.updated_at
`, symbol, quantity.String(), entryPrice.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

type PortfolioRow struct {
	Symbol     string
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
}

func (s *Store) GetPortfolioPosition(ctx context.Context, symbol string) (*PortfolioRow, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT symbol, quantity, entry_price FROM positions WHERE symbol = ?
`, symbol)

	var (
		rec        PortfolioRow
		quantity   string
		entryPrice string
	)
	if err := row.Scan(&rec.Symbol, &quantity, &entryPrice); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPositionNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	var err error
	if rec.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("parse position quantity: %w", err)
	}
	if rec.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return nil, fmt.Errorf("parse position entry price: %w", err)
	}
	return &rec, nil
}

func (s *Store) ListPortfolio(ctx context.Context) ([]PortfolioRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, quantity, entry_price FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list portfolio: %w", err)
	}
	defer rows.Close()

	var list []PortfolioRow
	for rows.Next() {
		var (
			rec        PortfolioRow
			quantity   string
			entryPrice string
		)
		if err := rows.Scan(&rec.Symbol, &quantity, &entryPrice); err != nil {
			return nil, fmt.Errorf("scan portfolio row: %w", err)
		}
		if rec.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("parse portfolio quantity: %w", err)
		}
		if rec.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
			return nil, fmt.Errorf("parse portfolio entry price: %w", err)
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list portfolio rows: %w", err)
	}
	return list, nil
}
