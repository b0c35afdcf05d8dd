// internal/council/pipeline.go
package council

import (
	"context"
	"errors"
	"time"

	"llm-council/internal/common/logger"
	"llm-council/internal/common/metrics"
	"llm-council/internal/common/observability"
	"llm-council/internal/models"
)

// Request is the ephemeral input bundle for one pipeline run. History holds
// prior turns with assistant entries containing only previously published
// consensus text.
type Request struct {
	Query   string
	History []models.HistoryMessage
	Images  []models.ImageAttachment
	Mode    models.Mode
	Arbiter bool
}

// Envelope is the pipeline's output, constructed once per request and
// handed to persistence.
type Envelope struct {
	GPTResponse    *string
	ClaudeResponse *string
	MergeResult    *MergeResult
	ArbiterReview  *string
	Mode           models.Mode
	// Content is the published text: the consensus, or the surviving (or
	// fallback) advisor text when no artifact exists.
	Content       string
	TokensUsed    int
	EstimatedCost float64
	CostFormatted string
}

// Pipeline is the top-level degraded-mode controller. Mode is decided
// strictly by advisor outcomes, never by synthesis outcome.
type Pipeline struct {
	dispatcher *Dispatcher
	merger     *Merger
	arbiter    *Arbiter
	pricing    Pricing
	obs        *observability.Observability
	logger     logger.Logger
	timeout    time.Duration
}

func NewPipeline(dispatcher *Dispatcher, merger *Merger, arbiter *Arbiter, pricing Pricing, obs *observability.Observability, log logger.Logger, timeout time.Duration) *Pipeline {
	return &Pipeline{
		dispatcher: dispatcher,
		merger:     merger,
		arbiter:    arbiter,
		pricing:    pricing,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "pipeline"}),
		timeout:    timeout,
	}
}

// Run executes the full pipeline within one time budget. Terminal errors:
// ErrBothAdvisorsFailed, ErrAdvisorFailed (single mode), ErrDispatchTimeout.
// Synthesis and arbiter failures degrade gracefully inside a nil-error run.
func (p *Pipeline) Run(ctx context.Context, req *Request) (*Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	envelope, err := p.run(ctx, req)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PipelineDuration.WithLabelValues(string(req.Mode)).Observe(time.Since(start).Seconds())
	if envelope != nil {
		metrics.PipelineRequests.WithLabelValues(string(req.Mode), string(envelope.Mode)).Inc()
	} else {
		metrics.PipelineRequests.WithLabelValues(string(req.Mode), outcome).Inc()
	}

	return envelope, err
}

func (p *Pipeline) run(ctx context.Context, req *Request) (*Envelope, error) {
	current := models.HistoryMessage{Role: "user", Content: req.Query, Images: req.Images}
	history := append(append([]models.HistoryMessage{}, req.History...), current)

	if req.Mode != models.ModeCouncil {
		return p.runSingle(ctx, req, history)
	}
	return p.runCouncil(ctx, req, history)
}

func (p *Pipeline) runSingle(ctx context.Context, req *Request, history []models.HistoryMessage) (*Envelope, error) {
	stageStart := time.Now()
	result, err := p.dispatcher.DispatchSingle(ctx, req.Mode, history)
	p.recordStage(ctx, "dispatch", stageStart, err)
	if err != nil {
		return nil, err
	}

	envelope := &Envelope{Mode: req.Mode}
	var gptTokens, claudeTokens int

	if result.GPT != nil {
		envelope.GPTResponse = &result.GPT.Text
		envelope.Content = result.GPT.Text
		gptTokens = result.GPT.TokensUsed
	}
	if result.Claude != nil {
		envelope.ClaudeResponse = &result.Claude.Text
		envelope.Content = result.Claude.Text
		claudeTokens = result.Claude.TokensUsed
	}

	p.finalize(envelope, gptTokens, claudeTokens)
	return envelope, nil
}

func (p *Pipeline) runCouncil(ctx context.Context, req *Request, history []models.HistoryMessage) (*Envelope, error) {
	stageStart := time.Now()
	result, err := p.dispatcher.DispatchCouncil(ctx, history)
	p.recordStage(ctx, "dispatch", stageStart, err)
	if err != nil {
		return nil, err
	}

	envelope := &Envelope{Mode: models.ModeCouncil}
	var gptTokens, claudeTokens int

	if result.GPT != nil {
		envelope.GPTResponse = &result.GPT.Text
		gptTokens = result.GPT.TokensUsed
	}
	if result.Claude != nil {
		envelope.ClaudeResponse = &result.Claude.Text
		claudeTokens = result.Claude.TokensUsed
	}

	// Exactly one advisor failed: degraded mode, synthesis skipped, the
	// sole survivor's text passes through as the published answer.
	if result.GPT == nil || result.Claude == nil {
		envelope.Mode = models.ModeDegraded
		if result.GPT != nil {
			envelope.Content = result.GPT.Text
		} else {
			envelope.Content = result.Claude.Text
		}
		p.finalize(envelope, gptTokens, claudeTokens)
		return envelope, nil
	}

	stageStart = time.Now()
	mergeOutput, mergeErr := p.merger.Merge(ctx, req.Query, result.GPT.Text, result.Claude.Text, req.History)
	p.recordStage(ctx, "merge", stageStart, mergeErr)

	if mergeOutput != nil {
		// Failed attempts still consumed tokens; the synthesis model runs
		// on the Claude side.
		claudeTokens += mergeOutput.TokensUsed
	}

	if mergeErr != nil {
		// Mode stays "council": mode reflects advisor outcomes only.
		// Clients detect synthesis failure by the absent artifact.
		p.logger.Error("synthesis failed, falling back to raw advisor text", map[string]interface{}{
			"error": mergeErr.Error(),
		})
		envelope.Content = result.GPT.Text
		p.finalize(envelope, gptTokens, claudeTokens)
		return envelope, nil
	}

	envelope.MergeResult = mergeOutput.Result
	envelope.Content = mergeOutput.Result.Consensus

	if req.Arbiter {
		stageStart = time.Now()
		arbiterOutput, arbErr := p.arbiter.Review(ctx, req.Query, result.GPT.Text, result.Claude.Text, mergeOutput.Result)
		p.recordStage(ctx, "arbiter", stageStart, arbErr)
		if arbErr != nil {
			// Review is omitted; never blocks the rest of the response.
			p.logger.Warn("arbiter review failed, omitting", map[string]interface{}{
				"error": arbErr.Error(),
			})
		} else {
			envelope.ArbiterReview = &arbiterOutput.Review
			claudeTokens += arbiterOutput.TokensUsed
		}
	}

	p.finalize(envelope, gptTokens, claudeTokens)
	return envelope, nil
}

func (p *Pipeline) finalize(envelope *Envelope, gptTokens, claudeTokens int) {
	envelope.TokensUsed = gptTokens + claudeTokens
	envelope.EstimatedCost = p.pricing.CalculateCost(gptTokens, claudeTokens)
	envelope.CostFormatted = FormatCost(envelope.EstimatedCost)
}

func (p *Pipeline) recordStage(ctx context.Context, stage string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrDispatchTimeout) || errors.Is(err, ErrMergeTimeout) {
			status = "timeout"
		}
	}
	p.obs.RecordStage(ctx, stage, status)
	p.obs.RecordStageDuration(ctx, stage, time.Since(start), status)
}
