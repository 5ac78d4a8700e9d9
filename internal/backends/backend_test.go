package backends

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfidence(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		want    float64
		wantErr bool
	}{
		{"plain", "Solid setup.\nCONFIDENCE: 0.75", 0.75, false},
		{"bold", "CONFIDENCE: **0.8**", 0.8, false},
		{"lowercase", "confidence: 0.4", 0.4, false},
		{"integer one", "CONFIDENCE: 1", 1.0, false},
		{"missing", "Looks strong, I would buy.", 0, true},
		{"out of range", "CONFIDENCE: 1.5", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseConfidence(tc.text)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewResponseRejectsEmptyCompletion(t *testing.T) {
	_, err := newResponse("test", "   \n")
	assert.Error(t, err)
}

func TestNewResponseKeepsFullReasoning(t *testing.T) {
	text := "Momentum favors entry.\nFINAL TRANSACTION PROPOSAL: **BUY**\nCONFIDENCE: 0.7"
	resp, err := newResponse("openai/gpt-4o-mini", text)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", resp.AgentID)
	assert.Equal(t, 0.7, resp.Confidence)
	assert.Equal(t, text, resp.Reasoning)
	assert.False(t, resp.ProducedAt.IsZero())
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	cfg := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0}

	err := WithRetry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	cfg := &RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0}
	err := WithRetry(ctx, cfg, func() error {
		attempts++
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
