package council

import (
	"context"
	"sync"

	"llm-council/internal/models"
	"llm-council/internal/providers"
)

// fakeClient scripts provider responses in call order and records what it
// was invoked with.
type fakeClient struct {
	name string

	mu        sync.Mutex
	responses []fakeResponse
	calls     []fakeCall
}

type fakeResponse struct {
	text   string
	tokens int
	err    error
}

type fakeCall struct {
	systemPrompt string
	history      []models.HistoryMessage
}

func newFakeClient(name string, responses ...fakeResponse) *fakeClient {
	return &fakeClient{name: name, responses: responses}
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Invoke(ctx context.Context, systemPrompt string, history []models.HistoryMessage) (*providers.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, fakeCall{systemPrompt: systemPrompt, history: history})

	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &providers.Response{Text: r.text, TokensUsed: r.tokens}, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) call(i int) fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}
