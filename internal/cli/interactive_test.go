package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yikai/QuorumGo/config"
)

func TestPendingConfigAppliesLatest(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	var pending pendingConfig

	assert.False(t, pending.apply(cfg), "nothing published yet")

	first := *cfg
	first.DailyCallCap = 10
	pending.publish(first)

	second := *cfg
	second.DailyCallCap = 25
	pending.publish(second)

	// Only the most recent publish wins, and a second apply is a no-op.
	require.True(t, pending.apply(cfg))
	assert.Equal(t, 25, cfg.DailyCallCap)
	assert.False(t, pending.apply(cfg))
}

func TestPendingConfigPublishDuringReads(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	base := *cfg
	var pending pendingConfig

	// The watcher goroutine keeps publishing while the menu goroutine reads
	// config fields and applies updates between "actions". The race detector
	// flags this path if publish and apply ever share unsynchronized memory.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			next := base
			next.DailyCallCap = i
			next.OpenAIAPIKey = "rotated-key"
			pending.publish(next)
		}
	}()

	sum := 0
	for i := 0; i < 1000; i++ {
		sum += cfg.DailyCallCap
		sum += len(cfg.OpenAIAPIKey)
		pending.apply(cfg)
	}
	<-done

	require.True(t, sum >= 0)
	pending.apply(cfg)
	assert.Equal(t, 999, cfg.DailyCallCap)
}
