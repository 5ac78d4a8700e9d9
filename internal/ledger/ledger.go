package ledger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

// Ledger meters backend calls against a per-UTC-day cap. The counter is a
// rebuildable view over the append-only usage_records table; the store stays
// the source of truth across restarts.
type Ledger struct {
	store *sqlite.Store

	mu       sync.Mutex
	day      string // UTC date the counters belong to
	calls    int
	cost     float64
	dailyCap int

	now func() time.Time
}

func New(store *sqlite.Store, dailyCap int) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if dailyCap <= 0 {
		return nil, fmt.Errorf("daily cap must be positive, got %d", dailyCap)
	}

	l := &Ledger{
		store:    store,
		dailyCap: dailyCap,
		now:      time.Now,
	}
	if err := l.rebuild(context.Background()); err != nil {
		return nil, err
	}
	return l, nil
}

// SetClock overrides the time source. Test hook.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func utcMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// rebuild recomputes today's counters from persisted usage records.
func (l *Ledger) rebuild(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rebuildLocked(ctx)
}

func (l *Ledger) rebuildLocked(ctx context.Context) error {
	now := l.now()
	calls, cost, err := l.store.UsageSince(ctx, utcMidnight(now))
	if err != nil {
		return fmt.Errorf("rebuild usage counter: %w", err)
	}
	l.day = utcDay(now)
	l.calls = calls
	l.cost = cost
	return nil
}

// TryReserve atomically claims one call of budget and commits the usage record
// before the caller spends anything, so a crash mid-call cannot leak budget.
// Returns *models.RateLimitError once the daily cap is reached.
func (l *Ledger) TryReserve(ctx context.Context, endpoint, symbol string, estimatedCost float64) (*models.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if utcDay(now) != l.day {
		// UTC day rollover: counters reset, derived from persisted records.
		if err := l.rebuildLocked(ctx); err != nil {
			return nil, err
		}
	}

	if l.calls >= l.dailyCap {
		return nil, &models.RateLimitError{
			Remaining: 0,
			ResetsAt:  utcMidnight(now).Add(24 * time.Hour),
		}
	}

	rec := models.UsageRecord{
		Timestamp:       now.UTC(),
		Endpoint:        endpoint,
		Symbol:          symbol,
		EstimatedCost:   estimatedCost,
		ServedFromCache: false,
	}
	if err := l.store.AppendUsage(ctx, rec); err != nil {
		return nil, err
	}

	l.calls++
	l.cost += estimatedCost

	return &models.Reservation{
		Endpoint:   endpoint,
		Symbol:     symbol,
		Cost:       estimatedCost,
		ReservedAt: rec.Timestamp,
	}, nil
}

// RecordCacheHit appends a free usage record. Cache hits bypass reservation
// entirely and never move the daily counter.
func (l *Ledger) RecordCacheHit(ctx context.Context, endpoint, symbol string) {
	rec := models.UsageRecord{
		Timestamp:       l.nowUTC(),
		Endpoint:        endpoint,
		Symbol:          symbol,
		EstimatedCost:   0,
		ServedFromCache: true,
	}
	if err := l.store.AppendUsage(ctx, rec); err != nil {
		log.Printf("record cache hit for %s: %v", symbol, err)
	}
}

func (l *Ledger) nowUTC() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now().UTC()
}

// Stats returns today's usage snapshot.
func (l *Ledger) Stats(ctx context.Context) (*models.UsageStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if utcDay(l.now()) != l.day {
		if err := l.rebuildLocked(ctx); err != nil {
			return nil, err
		}
	}

	remaining := l.dailyCap - l.calls
	if remaining < 0 {
		remaining = 0
	}
	return &models.UsageStats{
		TodayCalls:     l.calls,
		RemainingCalls: remaining,
		TodayCost:      l.cost,
	}, nil
}
