package backends

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/yikai/QuorumGo/internal/models"
)

// ReasoningBackend is a single independent reasoning engine. Implementations
// must honor ctx cancellation; the orchestrator enforces the per-call
// deadline through it.
type ReasoningBackend interface {
	Name() string
	Reason(ctx context.Context, symbol, analysisContext string) (models.AgentResponse, error)
}

const systemTpl = `You are an independent stock analyst on a multi-analyst panel.
Analyze the company and commit to a recommendation. Other analysts work the
same question separately; do not hedge to please a committee.

End your response with exactly two lines:
FINAL TRANSACTION PROPOSAL: **BUY/HOLD/SELL**
CONFIDENCE: <a number between 0.0 and 1.0>

The company we want to look at is %s. The current date is %s.`

// buildMessages assembles the shared prompt every backend sends. The analysis
// context (market data, insights) rides in the user message so the system
// frame stays stable across backends.
func buildMessages(symbol, analysisContext string) []*schema.Message {
	system := fmt.Sprintf(systemTpl, symbol, time.Now().UTC().Format("2006-01-02"))
	return []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(analysisContext),
	}
}

var confidenceLine = regexp.MustCompile(`(?i)CONFIDENCE:\s*\**([01](?:\.\d+)?)\**`)

// parseConfidence extracts the self-reported confidence. A response without a
// parseable confidence is a failed call; the value is never defaulted.
func parseConfidence(text string) (float64, error) {
	m := confidenceLine.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, fmt.Errorf("response missing CONFIDENCE line")
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse confidence %q: %w", m[1], err)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("confidence %v out of [0,1]", v)
	}
	return v, nil
}

// newResponse validates the raw completion and wraps it. Empty reasoning is
// rejected for the same reason missing confidence is.
func newResponse(agentID, text string) (models.AgentResponse, error) {
	if strings.TrimSpace(text) == "" {
		return models.AgentResponse{}, fmt.Errorf("empty completion")
	}
	confidence, err := parseConfidence(text)
	if err != nil {
		return models.AgentResponse{}, err
	}
	return models.AgentResponse{
		AgentID:    agentID,
		Confidence: confidence,
		Reasoning:  text,
		ProducedAt: time.Now().UTC(),
	}, nil
}
