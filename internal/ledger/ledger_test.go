package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "quorum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestTryReserveEnforcesDailyCap(t *testing.T) {
	store := newTestStore(t)
	l, err := New(store, 3)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := l.TryReserve(ctx, "consensus", "AAPL", 0.02)
		require.NoError(t, err)
	}

	_, err = l.TryReserve(ctx, "consensus", "AAPL", 0.02)
	var rle *models.RateLimitError
	require.True(t, errors.As(err, &rle))
	require.Equal(t, 0, rle.Remaining)
}

func TestTryReserveCommitsBeforeReturning(t *testing.T) {
	store := newTestStore(t)
	l, err := New(store, 10)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = l.TryReserve(ctx, "consensus", "NVDA", 0.05)
	require.NoError(t, err)

	// The record is durable: a fresh ledger over the same store sees it.
	l2, err := New(store, 10)
	require.NoError(t, err)
	stats, err := l2.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TodayCalls)
	require.InDelta(t, 0.05, stats.TodayCost, 1e-9)
}

func TestCacheHitsAreFree(t *testing.T) {
	store := newTestStore(t)
	l, err := New(store, 2)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		l.RecordCacheHit(ctx, "consensus", "AAPL")
	}

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.TodayCalls)
	require.Equal(t, 2, stats.RemainingCalls)
}

func TestCounterResetsAtUTCMidnight(t *testing.T) {
	store := newTestStore(t)
	l, err := New(store, 1)
	require.NoError(t, err)

	day1 := time.Date(2026, 8, 27, 23, 59, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return day1 })

	ctx := context.Background()
	_, err = l.TryReserve(ctx, "consensus", "AAPL", 0.02)
	require.NoError(t, err)

	_, err = l.TryReserve(ctx, "consensus", "AAPL", 0.02)
	var rle *models.RateLimitError
	require.True(t, errors.As(err, &rle))
	require.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), rle.ResetsAt)

	// One minute past midnight the budget is fresh.
	l.SetClock(func() time.Time { return day1.Add(2 * time.Minute) })
	_, err = l.TryReserve(ctx, "consensus", "AAPL", 0.02)
	require.NoError(t, err)
}

func TestTryReserveIsAtomicUnderConcurrency(t *testing.T) {
	store := newTestStore(t)
	const capLimit = 20
	l, err := New(store, capLimit)
	require.NoError(t, err)

	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.TryReserve(ctx, "consensus", "AAPL", 0.01); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, capLimit, granted)

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, capLimit, stats.TodayCalls)
	require.Equal(t, 0, stats.RemainingCalls)
}
