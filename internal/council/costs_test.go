package council

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCost(t *testing.T) {
	pricing := Pricing{GPTBlendedRate: 6.25, ClaudeBlendedRate: 9}

	tests := []struct {
		name         string
		gptTokens    int
		claudeTokens int
		expected     float64
	}{
		{name: "zero tokens", gptTokens: 0, claudeTokens: 0, expected: 0},
		{name: "one million gpt tokens", gptTokens: 1_000_000, claudeTokens: 0, expected: 6.25},
		{name: "one million claude tokens", gptTokens: 0, claudeTokens: 1_000_000, expected: 9},
		{name: "mixed usage", gptTokens: 100_000, claudeTokens: 200_000, expected: 2.425},
		{name: "small usage", gptTokens: 400, claudeTokens: 600, expected: 0.0079},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, pricing.CalculateCost(tt.gptTokens, tt.claudeTokens), 1e-9)
		})
	}
}

func TestCalculateCost_Monotonic(t *testing.T) {
	pricing := DefaultPricing
	prev := 0.0
	for tokens := 0; tokens <= 1_000_000; tokens += 100_000 {
		cost := pricing.CalculateCost(tokens, tokens)
		assert.GreaterOrEqual(t, cost, prev)
		prev = cost
	}
}

func TestFormatCost(t *testing.T) {
	tests := []struct {
		name     string
		cost     float64
		expected string
	}{
		{name: "sub-cent gets four decimals", cost: 0.005, expected: "$0.0050"},
		{name: "zero gets four decimals", cost: 0, expected: "$0.0000"},
		{name: "just under a cent", cost: 0.0099, expected: "$0.0099"},
		{name: "exactly a cent gets two decimals", cost: 0.01, expected: "$0.01"},
		{name: "dollar amounts get two decimals", cost: 1.2345, expected: "$1.23"},
		{name: "larger amount", cost: 12.5, expected: "$12.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatCost(tt.cost))
		})
	}
}
