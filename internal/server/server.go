// internal/server/server.go
package server

import (
	"context"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	commonerrors "llm-council/internal/common/errors"
	"llm-council/internal/common/logger"
	"llm-council/internal/council"
	"llm-council/internal/models"
)

// PipelineRunner is the synthesis entry point the HTTP layer drives.
type PipelineRunner interface {
	Run(ctx context.Context, req *council.Request) (*council.Envelope, error)
}

// ThreadStore is the persistence surface the handlers need.
type ThreadStore interface {
	CreateThread(ctx context.Context, title string) (*models.ThreadSummary, error)
	ListThreads(ctx context.Context) ([]models.ThreadSummary, error)
	GetThread(ctx context.Context, id string) (*models.ThreadSummary, error)
	DeleteThread(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, threadID string, msg *models.StoredMessage) (string, error)
	GetMessages(ctx context.Context, threadID string) ([]models.StoredMessage, error)
	GetThreadHistory(ctx context.Context, threadID string) ([]models.HistoryMessage, error)
	CreateShareToken(ctx context.Context, threadID string) (string, error)
	ResolveShareToken(ctx context.Context, token string) (string, error)
	GetProjectContext(ctx context.Context) (string, error)
	SetProjectContext(ctx context.Context, value string) error
}

// HistoryCache is the best-effort Redis layer in front of GetThreadHistory.
type HistoryCache interface {
	Get(ctx context.Context, threadID string) ([]models.HistoryMessage, bool)
	Put(ctx context.Context, threadID string, history []models.HistoryMessage)
	Invalidate(ctx context.Context, threadID string)
}

// HealthChecker reports the liveness of a backing dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	pipeline PipelineRunner
	store    ThreadStore
	cache    HistoryCache
	postgres HealthChecker
	redis    HealthChecker
	errors   *commonerrors.ErrorHandler
	logger   logger.Logger
}

func New(pipeline PipelineRunner, store ThreadStore, cache HistoryCache, postgres, redis HealthChecker, log logger.Logger) *Server {
	return &Server{
		pipeline: pipeline,
		store:    store,
		cache:    cache,
		postgres: postgres,
		redis:    redis,
		errors:   commonerrors.NewErrorHandler(log),
		logger:   log.WithFields(map[string]interface{}{"component": "server"}),
	}
}

// Routes builds the full mux, including metrics and pprof.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/threads", s.handleCreateThread)
	mux.HandleFunc("GET /api/threads", s.handleListThreads)
	mux.HandleFunc("GET /api/threads/{id}", s.handleGetThread)
	mux.HandleFunc("DELETE /api/threads/{id}", s.handleDeleteThread)
	mux.HandleFunc("POST /api/threads/{id}/share", s.handleShareThread)
	mux.HandleFunc("GET /api/share/{token}", s.handleGetShared)
	mux.HandleFunc("GET /api/context", s.handleGetContext)
	mux.HandleFunc("PUT /api/context", s.handlePutContext)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}
