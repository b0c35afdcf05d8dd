// internal/council/dispatch.go
package council

import (
	"context"
	"errors"
	"sync"
	"time"

	"llm-council/internal/common/logger"
	"llm-council/internal/common/metrics"
	"llm-council/internal/models"
	"llm-council/internal/providers"
)

var (
	ErrBothAdvisorsFailed = errors.New("BOTH_PROVIDERS_UNAVAILABLE")
	ErrAdvisorFailed      = errors.New("PROVIDER_UNAVAILABLE")
	ErrDispatchTimeout    = errors.New("PIPELINE_TIMEOUT")
)

// Dispatcher invokes both advisors concurrently with identical
// user-visible history. Blind independence is structural: each call gets
// the shared advisor role prompt and the consensus-only history, never the
// other advisor's identity or output.
type Dispatcher struct {
	gpt    providers.Client
	claude providers.Client
	logger logger.Logger
}

func NewDispatcher(gpt, claude providers.Client, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		gpt:    gpt,
		claude: claude,
		logger: log.WithFields(map[string]interface{}{"stage": "dispatch"}),
	}
}

// DispatchCouncil fans out to both advisors and joins on both. Outcomes:
// both fail with a live context -> ErrBothAdvisorsFailed; the context
// deadline fired -> ErrDispatchTimeout (no partial degraded fallback on
// timeout); otherwise the caller inspects the result for a sole survivor.
func (d *Dispatcher) DispatchCouncil(ctx context.Context, history []models.HistoryMessage) (*DispatchResult, error) {
	var (
		wg        sync.WaitGroup
		gptResult *AdvisorResult
		gptErr    error
		clResult  *AdvisorResult
		clErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		gptResult, gptErr = d.invoke(ctx, d.gpt, history)
	}()
	go func() {
		defer wg.Done()
		clResult, clErr = d.invoke(ctx, d.claude, history)
	}()
	wg.Wait()

	if gptErr != nil && clErr != nil {
		if ctx.Err() != nil {
			return nil, ErrDispatchTimeout
		}
		return nil, ErrBothAdvisorsFailed
	}

	// Timeout fails the request wholesale even when one call finished first.
	if ctx.Err() != nil {
		return nil, ErrDispatchTimeout
	}

	if gptErr != nil {
		d.logger.Warn("advisor failed, continuing degraded", map[string]interface{}{
			"provider": d.gpt.Name(),
			"error":    gptErr.Error(),
		})
	}
	if clErr != nil {
		d.logger.Warn("advisor failed, continuing degraded", map[string]interface{}{
			"provider": d.claude.Name(),
			"error":    clErr.Error(),
		})
	}

	return &DispatchResult{GPT: gptResult, Claude: clResult}, nil
}

// DispatchSingle invokes only the requested advisor; its failure is
// terminal for the request.
func (d *Dispatcher) DispatchSingle(ctx context.Context, mode models.Mode, history []models.HistoryMessage) (*DispatchResult, error) {
	client := d.gpt
	if mode == models.ModeClaudeOnly {
		client = d.claude
	}

	result, err := d.invoke(ctx, client, history)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrDispatchTimeout
		}
		return nil, ErrAdvisorFailed
	}

	if mode == models.ModeClaudeOnly {
		return &DispatchResult{Claude: result}, nil
	}
	return &DispatchResult{GPT: result}, nil
}

func (d *Dispatcher) invoke(ctx context.Context, client providers.Client, history []models.HistoryMessage) (*AdvisorResult, error) {
	start := time.Now()
	resp, err := client.Invoke(ctx, AdvisorSystemPrompt, history)
	metrics.AdvisorCallDuration.WithLabelValues(client.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AdvisorCalls.WithLabelValues(client.Name(), "error").Inc()
		return nil, err
	}

	metrics.AdvisorCalls.WithLabelValues(client.Name(), "ok").Inc()
	metrics.TokensUsed.WithLabelValues(client.Name()).Add(float64(resp.TokensUsed))

	return &AdvisorResult{Text: resp.Text, TokensUsed: resp.TokensUsed}, nil
}
