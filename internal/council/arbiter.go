// internal/council/arbiter.go
package council

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"llm-council/internal/common/logger"
	"llm-council/internal/models"
	"llm-council/internal/providers"
)

// Arbiter runs the optional adversarial review of a finished merge
// artifact. Its failure never blocks the response; the review is omitted.
type Arbiter struct {
	synth  providers.Client
	logger logger.Logger
}

func NewArbiter(synth providers.Client, log logger.Logger) *Arbiter {
	return &Arbiter{
		synth:  synth,
		logger: log.WithFields(map[string]interface{}{"stage": "arbiter"}),
	}
}

// Review critiques the artifact against both raw advisor texts. Output is
// free text required to end in a verdict token; no structural validation is
// applied beyond presence of text.
func (a *Arbiter) Review(ctx context.Context, userQuery, gptResponse, claudeResponse string, artifact *MergeResult) (*ArbiterOutput, error) {
	serialized, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize artifact: %w", err)
	}

	resp, err := a.synth.Invoke(ctx, ArbiterSystemPrompt, []models.HistoryMessage{
		{Role: "user", Content: BuildArbiterMessage(userQuery, gptResponse, claudeResponse, string(serialized))},
	})
	if err != nil {
		return nil, err
	}

	return &ArbiterOutput{
		Review:     resp.Text,
		TokensUsed: resp.TokensUsed,
	}, nil
}

// Verdict tokens the arbiter must end with.
const (
	VerdictProceed  = "PROCEED"
	VerdictRevise   = "REVISE"
	VerdictEscalate = "ESCALATE"
)

// ExtractVerdict finds the arbiter's verdict for display purposes: first
// case-insensitive literal match in the order PROCEED, REVISE, ESCALATE.
// A heuristic over natural-language output, not a correctness contract.
func ExtractVerdict(review string) string {
	upper := strings.ToUpper(review)
	for _, v := range []string{VerdictProceed, VerdictRevise, VerdictEscalate} {
		if strings.Contains(upper, v) {
			return v
		}
	}
	return ""
}
