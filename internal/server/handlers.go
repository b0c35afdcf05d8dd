// internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	commonerrors "llm-council/internal/common/errors"
	"llm-council/internal/council"
	"llm-council/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// threadTitle derives a thread title from the first message.
func threadTitle(message string) string {
	title := strings.TrimSpace(message)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx]
	}
	runes := []rune(title)
	if len(runes) > 60 {
		title = string(runes[:60])
	}
	return title
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errors.WriteError(w, commonerrors.NewRequestInvalidError("malformed JSON body"))
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		s.errors.WriteError(w, commonerrors.NewRequestInvalidError("message must not be empty"))
		return
	}
	if req.Mode == "" {
		req.Mode = models.ModeCouncil
	}
	if !req.Mode.Valid() {
		s.errors.WriteError(w, commonerrors.NewRequestInvalidError("unknown mode: "+string(req.Mode)))
		return
	}

	ctx := r.Context()

	threadID := req.ThreadID
	if threadID == "" {
		thread, err := s.store.CreateThread(ctx, threadTitle(req.Message))
		if err != nil {
			s.errors.WriteError(w, err)
			return
		}
		threadID = thread.ID
	} else if _, err := s.store.GetThread(ctx, threadID); err != nil {
		s.errors.WriteError(w, err)
		return
	}

	history, found := s.cache.Get(ctx, threadID)
	if !found {
		var err error
		history, err = s.store.GetThreadHistory(ctx, threadID)
		if err != nil {
			s.errors.WriteError(w, err)
			return
		}
		s.cache.Put(ctx, threadID, history)
	}

	query := req.Message
	if projectContext, err := s.store.GetProjectContext(ctx); err == nil && projectContext != "" {
		query = "PROJECT CONTEXT:\n" + projectContext + "\n\n" + req.Message
	}

	envelope, err := s.pipeline.Run(ctx, &council.Request{
		Query:   query,
		History: history,
		Images:  req.Images,
		Mode:    req.Mode,
		Arbiter: req.Arbiter,
	})
	if err != nil {
		s.errors.WriteError(w, mapPipelineError(err, req.Mode))
		return
	}

	messageID := s.persistExchange(r, threadID, &req, envelope)
	s.cache.Invalidate(ctx, threadID)

	writeJSON(w, http.StatusOK, models.ChatResponse{
		ThreadID:       threadID,
		MessageID:      messageID,
		GPTResponse:    envelope.GPTResponse,
		ClaudeResponse: envelope.ClaudeResponse,
		MergeResult:    envelope.MergeResult,
		ArbiterReview:  envelope.ArbiterReview,
		Mode:           envelope.Mode,
		TokensUsed:     envelope.TokensUsed,
		EstimatedCost:  envelope.CostFormatted,
	})
}

// persistExchange stores the user turn and the assistant turn. The tokens
// are already spent at this point, so a persistence failure is logged and
// the response still goes out; the thread just loses the turn.
func (s *Server) persistExchange(r *http.Request, threadID string, req *models.ChatRequest, envelope *council.Envelope) string {
	ctx := r.Context()

	if _, err := s.store.AppendMessage(ctx, threadID, &models.StoredMessage{
		Role:    "user",
		Content: req.Message,
		Mode:    string(req.Mode),
	}); err != nil {
		s.logger.Error("failed to persist user message", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
		return ""
	}

	assistant := &models.StoredMessage{
		Role:           "assistant",
		Content:        envelope.Content,
		GPTResponse:    envelope.GPTResponse,
		ClaudeResponse: envelope.ClaudeResponse,
		ArbiterReview:  envelope.ArbiterReview,
		Mode:           string(envelope.Mode),
		TokensUsed:     envelope.TokensUsed,
		EstimatedCost:  envelope.EstimatedCost,
	}
	if envelope.MergeResult != nil {
		if raw, err := json.Marshal(envelope.MergeResult); err == nil {
			serialized := string(raw)
			assistant.MergeResult = &serialized
		}
	}

	messageID, err := s.store.AppendMessage(ctx, threadID, assistant)
	if err != nil {
		s.logger.Error("failed to persist assistant message", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
		return ""
	}
	return messageID
}

func mapPipelineError(err error, mode models.Mode) error {
	switch {
	case errors.Is(err, council.ErrBothAdvisorsFailed):
		return commonerrors.NewBothProvidersUnavailableError()
	case errors.Is(err, council.ErrAdvisorFailed):
		return commonerrors.NewProviderUnavailableError(string(mode), err)
	case errors.Is(err, council.ErrDispatchTimeout):
		return commonerrors.NewPipelineTimeoutError()
	default:
		return commonerrors.NewInternalError(err)
	}
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errors.WriteError(w, commonerrors.NewRequestInvalidError("malformed JSON body"))
		return
	}

	thread, err := s.store.CreateThread(r.Context(), strings.TrimSpace(req.Title))
	if err != nil {
		s.errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.store.ListThreads(r.Context())
	if err != nil {
		s.errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"threads": threads})
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	thread, err := s.store.GetThread(r.Context(), id)
	if err != nil {
		s.errors.WriteError(w, err)
		return
	}
	messages, err := s.store.GetMessages(r.Context(), id)
	if err != nil {
		s.errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"thread":   thread,
		"messages": messages,
	})
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.DeleteThread(r.Context(), id); err != nil {
		s.errors.WriteError(w, err)
		return
	}
	s.cache.Invalidate(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShareThread(w http.ResponseWriter, r *http.Request) {
	token, err := s.store.CreateShareToken(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (s *Server) handleGetShared(w http.ResponseWriter, r *http.Request) {
	threadID, err := s.store.ResolveShareToken(r.Context(), r.PathValue("token"))
	if err != nil {
		s.errors.WriteError(w, err)
		return
	}

	thread, err := s.store.GetThread(r.Context(), threadID)
	if err != nil {
		s.errors.WriteError(w, err)
		return
	}
	messages, err := s.store.GetMessages(r.Context(), threadID)
	if err != nil {
		s.errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"thread":   thread,
		"messages": messages,
	})
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	value, err := s.store.GetProjectContext(r.Context())
	if err != nil {
		s.errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"context": value})
}

func (s *Server) handlePutContext(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Context string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errors.WriteError(w, commonerrors.NewRequestInvalidError("malformed JSON body"))
		return
	}

	if err := s.store.SetProjectContext(r.Context(), req.Context); err != nil {
		s.errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"context": req.Context})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{"postgres": "ok", "redis": "ok"}
	status := http.StatusOK

	if err := s.postgres.Ping(r.Context()); err != nil {
		components["postgres"] = "down"
		status = http.StatusServiceUnavailable
	}
	// Redis is best-effort; its outage degrades caching, not the service.
	if err := s.redis.Ping(r.Context()); err != nil {
		components["redis"] = "down"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "unhealthy"
	} else if components["redis"] != "ok" {
		state = "degraded"
	}

	writeJSON(w, status, map[string]interface{}{
		"status":     state,
		"components": components,
	})
}
