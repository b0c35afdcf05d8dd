// internal/council/types.go

// Package council implements the synthesis pipeline: blind concurrent
// advisor dispatch, merge synthesis into a validated structured artifact,
// optional arbiter review, degraded-mode policy, and cost accounting.
package council

// ConfidenceLevel is inferred from an advisor's linguistic hedging cues.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Recommended values inside a Delta.
const (
	RecommendGPT     = "gpt"
	RecommendClaude  = "claude"
	RecommendNeither = "neither"
)

// Delta is one recorded point of disagreement between the advisors.
type Delta struct {
	Topic              string          `json:"topic"`
	GPTPosition        string          `json:"gpt_position"`
	GPTConfidence      ConfidenceLevel `json:"gpt_confidence"`
	ClaudePosition     string          `json:"claude_position"`
	ClaudeConfidence   ConfidenceLevel `json:"claude_confidence"`
	Recommended        string          `json:"recommended"` // "gpt", "claude", or "neither"
	Reasoning          string          `json:"reasoning"`
	CalibrationWarning string          `json:"calibration_warning,omitempty"`
}

// ClaudeMdUpdate is the platform-context note, present only when the query
// concerns the platform itself.
type ClaudeMdUpdate struct {
	CurrentStatus string   `json:"current_status"`
	RecentChanges []string `json:"recent_changes"`
	PlannedNext   []string `json:"planned_next"`
}

// MergeResult is the validated structured decision artifact.
type MergeResult struct {
	Consensus               string          `json:"consensus"`
	Confidence              ConfidenceLevel `json:"confidence"`
	ConsensusStrength       float64         `json:"consensus_strength"` // 0-100
	GPTOverallConfidence    ConfidenceLevel `json:"gpt_overall_confidence"`
	ClaudeOverallConfidence ConfidenceLevel `json:"claude_overall_confidence"`
	ConfidenceReasoning     string          `json:"confidence_reasoning"`
	Deltas                  []Delta         `json:"deltas"`
	UnverifiedAssumptions   []string        `json:"unverified_assumptions"`
	NextSteps               []string        `json:"next_steps"`
	DecisionFilterNotes     string          `json:"decision_filter_notes"`
	ClaudeMdUpdate          *ClaudeMdUpdate `json:"claude_md_update,omitempty"`
}

// AdvisorResult is one advisor's outcome within a single request. A nil
// value means the advisor failed.
type AdvisorResult struct {
	Text       string
	TokensUsed int
}

// DispatchResult aggregates both advisors' outcomes from one blind fan-out.
type DispatchResult struct {
	GPT    *AdvisorResult
	Claude *AdvisorResult
}

// MergeOutput is a successful synthesis: the artifact plus the token cost of
// every attempt that produced it.
type MergeOutput struct {
	Result     *MergeResult
	TokensUsed int
}

// ArbiterOutput is a successful adversarial review.
type ArbiterOutput struct {
	Review     string
	TokensUsed int
}
