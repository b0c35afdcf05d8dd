package council

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-council/internal/common/logger"
	"llm-council/internal/models"
	"llm-council/internal/providers"
)

func testHistory() []models.HistoryMessage {
	return []models.HistoryMessage{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier consensus"},
		{Role: "user", Content: "which database?"},
	}
}

func TestDispatcher_Council_BothSucceed(t *testing.T) {
	gpt := newFakeClient("openai", fakeResponse{text: "gpt answer", tokens: 100})
	claude := newFakeClient("anthropic", fakeResponse{text: "claude answer", tokens: 200})
	d := NewDispatcher(gpt, claude, logger.NewTestLogger(t))

	result, err := d.DispatchCouncil(context.Background(), testHistory())
	require.NoError(t, err)
	require.NotNil(t, result.GPT)
	require.NotNil(t, result.Claude)
	assert.Equal(t, "gpt answer", result.GPT.Text)
	assert.Equal(t, 200, result.Claude.TokensUsed)
}

// Both advisors must receive the identical system prompt and history.
// Neither message may carry the other advisor's output or identity.
func TestDispatcher_Council_BlindIndependence(t *testing.T) {
	gpt := newFakeClient("openai", fakeResponse{text: "gpt answer", tokens: 1})
	claude := newFakeClient("anthropic", fakeResponse{text: "claude answer", tokens: 1})
	d := NewDispatcher(gpt, claude, logger.NewTestLogger(t))

	history := testHistory()
	_, err := d.DispatchCouncil(context.Background(), history)
	require.NoError(t, err)

	gptCall := gpt.call(0)
	claudeCall := claude.call(0)
	assert.Equal(t, AdvisorSystemPrompt, gptCall.systemPrompt)
	assert.Equal(t, AdvisorSystemPrompt, claudeCall.systemPrompt)
	assert.Equal(t, history, gptCall.history)
	assert.Equal(t, history, claudeCall.history)
}

func TestDispatcher_Council_OneFails(t *testing.T) {
	tests := []struct {
		name      string
		gptErr    error
		claudeErr error
		surviving string
	}{
		{name: "gpt fails", gptErr: providers.ErrProviderFailed, surviving: "claude"},
		{name: "claude fails", claudeErr: providers.ErrEmptyResponse, surviving: "gpt"},
		// A provider-side timeout with a live pipeline deadline is an
		// ordinary advisor failure, not a whole-request timeout.
		{name: "gpt times out upstream", gptErr: providers.ErrProviderTimeout, surviving: "claude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gpt := newFakeClient("openai", fakeResponse{text: "gpt answer", tokens: 10, err: tt.gptErr})
			claude := newFakeClient("anthropic", fakeResponse{text: "claude answer", tokens: 10, err: tt.claudeErr})
			d := NewDispatcher(gpt, claude, logger.NewTestLogger(t))

			result, err := d.DispatchCouncil(context.Background(), testHistory())
			require.NoError(t, err, "a single advisor failure is not terminal")

			if tt.surviving == "gpt" {
				assert.NotNil(t, result.GPT)
				assert.Nil(t, result.Claude)
			} else {
				assert.Nil(t, result.GPT)
				assert.NotNil(t, result.Claude)
			}
		})
	}
}

func TestDispatcher_Council_BothFail(t *testing.T) {
	gpt := newFakeClient("openai", fakeResponse{err: providers.ErrProviderFailed})
	claude := newFakeClient("anthropic", fakeResponse{err: providers.ErrProviderFailed})
	d := NewDispatcher(gpt, claude, logger.NewTestLogger(t))

	result, err := d.DispatchCouncil(context.Background(), testHistory())
	assert.ErrorIs(t, err, ErrBothAdvisorsFailed)
	assert.Nil(t, result)
}

func TestDispatcher_Council_Timeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Even with one advisor finished, an expired deadline fails the whole
	// request rather than degrading.
	gpt := newFakeClient("openai", fakeResponse{text: "gpt answer", tokens: 10})
	claude := newFakeClient("anthropic", fakeResponse{err: providers.ErrProviderTimeout})
	d := NewDispatcher(gpt, claude, logger.NewTestLogger(t))

	result, err := d.DispatchCouncil(ctx, testHistory())
	assert.ErrorIs(t, err, ErrDispatchTimeout)
	assert.Nil(t, result)
}

func TestDispatcher_Single(t *testing.T) {
	tests := []struct {
		name    string
		mode    models.Mode
		wantGPT bool
	}{
		{name: "gpt only", mode: models.ModeGPTOnly, wantGPT: true},
		{name: "claude only", mode: models.ModeClaudeOnly, wantGPT: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gpt := newFakeClient("openai", fakeResponse{text: "gpt answer", tokens: 10})
			claude := newFakeClient("anthropic", fakeResponse{text: "claude answer", tokens: 20})
			d := NewDispatcher(gpt, claude, logger.NewTestLogger(t))

			result, err := d.DispatchSingle(context.Background(), tt.mode, testHistory())
			require.NoError(t, err)

			if tt.wantGPT {
				assert.NotNil(t, result.GPT)
				assert.Nil(t, result.Claude)
				assert.Equal(t, 0, claude.callCount())
			} else {
				assert.Nil(t, result.GPT)
				assert.NotNil(t, result.Claude)
				assert.Equal(t, 0, gpt.callCount())
			}
		})
	}
}

func TestDispatcher_Single_FailureIsTerminal(t *testing.T) {
	gpt := newFakeClient("openai", fakeResponse{err: providers.ErrProviderFailed})
	claude := newFakeClient("anthropic", fakeResponse{text: "unused"})
	d := NewDispatcher(gpt, claude, logger.NewTestLogger(t))

	result, err := d.DispatchSingle(context.Background(), models.ModeGPTOnly, testHistory())
	assert.ErrorIs(t, err, ErrAdvisorFailed)
	assert.Nil(t, result)
}
