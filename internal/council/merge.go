// internal/council/merge.go
package council

import (
	"context"
	"errors"
	"fmt"

	"llm-council/internal/common/logger"
	"llm-council/internal/common/metrics"
	"llm-council/internal/models"
	"llm-council/internal/providers"
)

var (
	ErrMergeTimeout = errors.New("MERGE_TIMEOUT")
	ErrMergeFailed  = errors.New("MERGE_CALL_FAILED")
	ErrMergeSchema  = errors.New("MERGE_SCHEMA_INVALID")
)

// Merger turns two raw advisor texts into a validated MergeResult using the
// synthesis model. On a malformed first attempt it issues exactly one retry
// with a stricter instruction; a second failure is terminal and callers fall
// back to raw-text presentation.
type Merger struct {
	synth  providers.Client
	logger logger.Logger
}

func NewMerger(synth providers.Client, log logger.Logger) *Merger {
	return &Merger{
		synth:  synth,
		logger: log.WithFields(map[string]interface{}{"stage": "merge"}),
	}
}

// Merge runs the synthesis. The returned MergeOutput sums the token cost of
// both attempts when a retry happened.
func (m *Merger) Merge(ctx context.Context, userQuery, gptResponse, claudeResponse string, history []models.HistoryMessage) (*MergeOutput, error) {
	mergeMessage := BuildMergeMessage(userQuery, gptResponse, claudeResponse, history)

	resp, err := m.synth.Invoke(ctx, MergeSystemPrompt, []models.HistoryMessage{
		{Role: "user", Content: mergeMessage},
	})
	if err != nil {
		metrics.MergeAttempts.WithLabelValues("first", "call_failed").Inc()
		if errors.Is(err, providers.ErrProviderTimeout) {
			return nil, ErrMergeTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrMergeFailed, err)
	}

	totalTokens := resp.TokensUsed

	outcome := ValidateMergeResult(ExtractJSON(resp.Text))
	if outcome.Valid {
		metrics.MergeAttempts.WithLabelValues("first", "valid").Inc()
		return &MergeOutput{Result: outcome.Result, TokensUsed: totalTokens}, nil
	}

	metrics.MergeAttempts.WithLabelValues("first", "invalid").Inc()
	m.logger.Warn("merge output invalid, retrying with schema reminder", map[string]interface{}{
		"errors": outcome.Errors,
	})

	resp, err = m.synth.Invoke(ctx, MergeSystemPrompt, []models.HistoryMessage{
		{Role: "user", Content: BuildMergeRetryMessage(mergeMessage)},
	})
	if err != nil {
		metrics.MergeAttempts.WithLabelValues("retry", "call_failed").Inc()
		if errors.Is(err, providers.ErrProviderTimeout) {
			return nil, ErrMergeTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrMergeFailed, err)
	}

	totalTokens += resp.TokensUsed

	outcome = ValidateMergeResult(ExtractJSON(resp.Text))
	if !outcome.Valid {
		metrics.MergeAttempts.WithLabelValues("retry", "invalid").Inc()
		m.logger.Error("merge output invalid after retry", map[string]interface{}{
			"errors": outcome.Errors,
		})
		// No further retries. Token cost of both attempts is still reported.
		return &MergeOutput{TokensUsed: totalTokens}, ErrMergeSchema
	}

	metrics.MergeAttempts.WithLabelValues("retry", "valid").Inc()
	return &MergeOutput{Result: outcome.Result, TokensUsed: totalTokens}, nil
}
