package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "llm-council/internal/common/errors"
	"llm-council/internal/common/logger"
	"llm-council/internal/council"
	"llm-council/internal/models"
)

// ==========================
// Test Fakes
// ==========================

type fakePipeline struct {
	envelope *council.Envelope
	err      error
	lastReq  *council.Request
}

func (f *fakePipeline) Run(ctx context.Context, req *council.Request) (*council.Envelope, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.envelope, nil
}

type fakeStore struct {
	threads        map[string]*models.ThreadSummary
	messages       map[string][]models.StoredMessage
	shareTokens    map[string]string
	projectContext string
	nextID         int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		threads:     map[string]*models.ThreadSummary{},
		messages:    map[string][]models.StoredMessage{},
		shareTokens: map[string]string{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateThread(ctx context.Context, title string) (*models.ThreadSummary, error) {
	t := &models.ThreadSummary{ID: f.id("thread"), Title: title}
	f.threads[t.ID] = t
	return t, nil
}

func (f *fakeStore) ListThreads(ctx context.Context) ([]models.ThreadSummary, error) {
	out := []models.ThreadSummary{}
	for _, t := range f.threads {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeStore) GetThread(ctx context.Context, id string) (*models.ThreadSummary, error) {
	t, ok := f.threads[id]
	if !ok {
		return nil, commonerrors.NewThreadNotFoundError(id)
	}
	return t, nil
}

func (f *fakeStore) DeleteThread(ctx context.Context, id string) error {
	if _, ok := f.threads[id]; !ok {
		return commonerrors.NewThreadNotFoundError(id)
	}
	delete(f.threads, id)
	delete(f.messages, id)
	return nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, threadID string, msg *models.StoredMessage) (string, error) {
	m := *msg
	m.ID = f.id("msg")
	f.messages[threadID] = append(f.messages[threadID], m)
	return m.ID, nil
}

func (f *fakeStore) GetMessages(ctx context.Context, threadID string) ([]models.StoredMessage, error) {
	return f.messages[threadID], nil
}

func (f *fakeStore) GetThreadHistory(ctx context.Context, threadID string) ([]models.HistoryMessage, error) {
	history := []models.HistoryMessage{}
	for _, m := range f.messages[threadID] {
		history = append(history, models.HistoryMessage{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

func (f *fakeStore) CreateShareToken(ctx context.Context, threadID string) (string, error) {
	if _, ok := f.threads[threadID]; !ok {
		return "", commonerrors.NewThreadNotFoundError(threadID)
	}
	token := f.id("token")
	f.shareTokens[token] = threadID
	return token, nil
}

func (f *fakeStore) ResolveShareToken(ctx context.Context, token string) (string, error) {
	threadID, ok := f.shareTokens[token]
	if !ok {
		return "", commonerrors.NewShareTokenNotFoundError(token)
	}
	return threadID, nil
}

func (f *fakeStore) GetProjectContext(ctx context.Context) (string, error) {
	return f.projectContext, nil
}

func (f *fakeStore) SetProjectContext(ctx context.Context, value string) error {
	f.projectContext = value
	return nil
}

type fakeCache struct {
	entries     map[string][]models.HistoryMessage
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]models.HistoryMessage{}}
}

func (f *fakeCache) Get(ctx context.Context, threadID string) ([]models.HistoryMessage, bool) {
	h, ok := f.entries[threadID]
	return h, ok
}

func (f *fakeCache) Put(ctx context.Context, threadID string, history []models.HistoryMessage) {
	f.entries[threadID] = history
}

func (f *fakeCache) Invalidate(ctx context.Context, threadID string) {
	delete(f.entries, threadID)
	f.invalidated = append(f.invalidated, threadID)
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) Ping(ctx context.Context) error { return f.err }

func testEnvelope() *council.Envelope {
	gpt := "gpt answer"
	claude := "claude answer"
	return &council.Envelope{
		GPTResponse:    &gpt,
		ClaudeResponse: &claude,
		MergeResult:    &council.MergeResult{Consensus: "the consensus", Confidence: council.ConfidenceHigh},
		Mode:           models.ModeCouncil,
		Content:        "the consensus",
		TokensUsed:     3500,
		EstimatedCost:  0.024,
		CostFormatted:  "$0.02",
	}
}

type testHarness struct {
	server   *httptest.Server
	pipeline *fakePipeline
	store    *fakeStore
	cache    *fakeCache
	postgres *fakeHealth
	redis    *fakeHealth
}

func newTestHarness(t *testing.T) *testHarness {
	h := &testHarness{
		pipeline: &fakePipeline{envelope: testEnvelope()},
		store:    newFakeStore(),
		cache:    newFakeCache(),
		postgres: &fakeHealth{},
		redis:    &fakeHealth{},
	}
	srv := New(h.pipeline, h.store, h.cache, h.postgres, h.redis, logger.NewTestLogger(t))
	h.server = httptest.NewServer(srv.Routes())
	t.Cleanup(h.server.Close)
	return h
}

func (h *testHarness) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

// ==========================
// Chat Endpoint Tests
// ==========================

func TestHandleChat_NewThread(t *testing.T) {
	h := newTestHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/chat", models.ChatRequest{
		Message: "which database should we use?",
		Mode:    models.ModeCouncil,
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "council", body["mode"])
	assert.Equal(t, "gpt answer", body["gpt_response"])
	assert.Equal(t, "$0.02", body["estimated_cost"])
	assert.NotEmpty(t, body["thread_id"])

	mergeResult, ok := body["merge_result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "the consensus", mergeResult["consensus"])

	// Both turns were persisted and the history cache was invalidated.
	threadID := body["thread_id"].(string)
	assert.Len(t, h.store.messages[threadID], 2)
	assert.Equal(t, "user", h.store.messages[threadID][0].Role)
	assert.Equal(t, "assistant", h.store.messages[threadID][1].Role)
	assert.Contains(t, h.cache.invalidated, threadID)

	// Thread title comes from the first message.
	assert.Equal(t, "which database should we use?", h.store.threads[threadID].Title)
}

func TestHandleChat_ExistingThreadHistory(t *testing.T) {
	h := newTestHarness(t)
	thread, _ := h.store.CreateThread(context.Background(), "earlier")
	h.store.AppendMessage(context.Background(), thread.ID, &models.StoredMessage{Role: "user", Content: "earlier question"})
	h.store.AppendMessage(context.Background(), thread.ID, &models.StoredMessage{Role: "assistant", Content: "earlier consensus"})

	resp, _ := h.do(t, http.MethodPost, "/api/chat", models.ChatRequest{
		ThreadID: thread.ID,
		Message:  "follow-up",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, h.pipeline.lastReq)
	require.Len(t, h.pipeline.lastReq.History, 2)
	assert.Equal(t, "earlier consensus", h.pipeline.lastReq.History[1].Content)
	assert.Equal(t, "follow-up", h.pipeline.lastReq.Query)
}

func TestHandleChat_ProjectContextPrepended(t *testing.T) {
	h := newTestHarness(t)
	h.store.projectContext = "a Go chat service"

	resp, _ := h.do(t, http.MethodPost, "/api/chat", models.ChatRequest{Message: "which database?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Contains(t, h.pipeline.lastReq.Query, "PROJECT CONTEXT:\na Go chat service")
	assert.Contains(t, h.pipeline.lastReq.Query, "which database?")

	// The persisted user turn keeps the original message only.
	for _, msgs := range h.store.messages {
		assert.Equal(t, "which database?", msgs[0].Content)
	}
}

func TestHandleChat_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body models.ChatRequest
	}{
		{name: "empty message", body: models.ChatRequest{Mode: models.ModeCouncil}},
		{name: "whitespace message", body: models.ChatRequest{Message: "   "}},
		{name: "unknown mode", body: models.ChatRequest{Message: "q", Mode: "gemini-only"}},
		{name: "degraded is not requestable", body: models.ChatRequest{Message: "q", Mode: models.ModeDegraded}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t)
			resp, body := h.do(t, http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "REQUEST_INVALID", body["code"])
		})
	}
}

func TestHandleChat_UnknownThread(t *testing.T) {
	h := newTestHarness(t)
	resp, body := h.do(t, http.MethodPost, "/api/chat", models.ChatRequest{
		ThreadID: "nope",
		Message:  "q",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "THREAD_NOT_FOUND", body["code"])
}

func TestHandleChat_PipelineFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "both advisors down",
			err:        council.ErrBothAdvisorsFailed,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "BOTH_PROVIDERS_UNAVAILABLE",
		},
		{
			name:       "single advisor down",
			err:        council.ErrAdvisorFailed,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "PROVIDER_UNAVAILABLE",
		},
		{
			name:       "pipeline timeout",
			err:        council.ErrDispatchTimeout,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "PIPELINE_TIMEOUT",
		},
		{
			name:       "unexpected failure",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t)
			h.pipeline.err = tt.err

			resp, body := h.do(t, http.MethodPost, "/api/chat", models.ChatRequest{Message: "q"})
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

// A degraded or synthesis-fallback run still answers 200; the caller sees
// it in the mode and the null merge_result.
func TestHandleChat_DegradedStillSucceeds(t *testing.T) {
	h := newTestHarness(t)
	claude := "claude answer"
	h.pipeline.envelope = &council.Envelope{
		ClaudeResponse: &claude,
		Mode:           models.ModeDegraded,
		Content:        "claude answer",
		TokensUsed:     2000,
		EstimatedCost:  0.018,
		CostFormatted:  "$0.02",
	}

	resp, body := h.do(t, http.MethodPost, "/api/chat", models.ChatRequest{Message: "q"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "degraded", body["mode"])
	assert.Nil(t, body["gpt_response"])
	assert.Nil(t, body["merge_result"])
	assert.Equal(t, "claude answer", body["claude_response"])
}

// ==========================
// Thread Endpoint Tests
// ==========================

func TestThreadLifecycle(t *testing.T) {
	h := newTestHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/threads", map[string]string{"title": "storage design"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	threadID := body["id"].(string)

	resp, body = h.do(t, http.MethodGet, "/api/threads", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["threads"], 1)

	resp, body = h.do(t, http.MethodGet, "/api/threads/"+threadID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["thread"])

	resp, _ = h.do(t, http.MethodDelete, "/api/threads/"+threadID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/api/threads/"+threadID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "THREAD_NOT_FOUND", body["code"])
}

func TestShareEndpoints(t *testing.T) {
	h := newTestHarness(t)
	thread, _ := h.store.CreateThread(context.Background(), "shared thread")
	h.store.AppendMessage(context.Background(), thread.ID, &models.StoredMessage{Role: "user", Content: "q"})

	resp, body := h.do(t, http.MethodPost, "/api/threads/"+thread.ID+"/share", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token := body["token"].(string)
	require.NotEmpty(t, token)

	resp, body = h.do(t, http.MethodGet, "/api/share/"+token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["thread"])
	assert.Len(t, body["messages"], 1)

	resp, body = h.do(t, http.MethodGet, "/api/share/bogus", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SHARE_TOKEN_NOT_FOUND", body["code"])
}

func TestContextEndpoints(t *testing.T) {
	h := newTestHarness(t)

	resp, body := h.do(t, http.MethodGet, "/api/context", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", body["context"])

	resp, _ = h.do(t, http.MethodPut, "/api/context", map[string]string{"context": "a Go chat service"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/api/context", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a Go chat service", body["context"])
}

// ==========================
// Health Endpoint Tests
// ==========================

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name        string
		postgresErr error
		redisErr    error
		wantStatus  int
		wantState   string
	}{
		{name: "all healthy", wantStatus: http.StatusOK, wantState: "ok"},
		{
			name:       "redis down degrades",
			redisErr:   errors.New("connection refused"),
			wantStatus: http.StatusOK,
			wantState:  "degraded",
		},
		{
			name:        "postgres down is unhealthy",
			postgresErr: errors.New("connection refused"),
			wantStatus:  http.StatusServiceUnavailable,
			wantState:   "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t)
			h.postgres.err = tt.postgresErr
			h.redis.err = tt.redisErr

			resp, body := h.do(t, http.MethodGet, "/healthz", nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantState, body["status"])
		})
	}
}
