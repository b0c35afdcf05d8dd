// internal/council/costs.go
package council

import "fmt"

// Pricing holds the blended USD rate per 1M tokens for each advisor.
// Merge and arbiter calls run on the Claude-hosted model, so their tokens
// accrue to the Claude total.
type Pricing struct {
	GPTBlendedRate    float64
	ClaudeBlendedRate float64
}

// DefaultPricing matches gpt-4o and claude-sonnet blended rates.
var DefaultPricing = Pricing{
	GPTBlendedRate:    6.25,
	ClaudeBlendedRate: 9,
}

// CalculateCost is a pure function of token counts. Negative counts are a
// caller bug, not a runtime condition to handle.
func (p Pricing) CalculateCost(gptTokens, claudeTokens int) float64 {
	gptCost := (float64(gptTokens) / 1_000_000) * p.GPTBlendedRate
	claudeCost := (float64(claudeTokens) / 1_000_000) * p.ClaudeBlendedRate
	return gptCost + claudeCost
}

// FormatCost renders a cost: 4 decimal places under one cent, otherwise 2.
func FormatCost(cost float64) string {
	if cost < 0.01 {
		return fmt.Sprintf("$%.4f", cost)
	}
	return fmt.Sprintf("$%.2f", cost)
}
