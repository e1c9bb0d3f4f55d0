// Package api provides the HTTP and WebSocket transport for the Cityline
// assistant.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/cityline/internal/conversation"
	"github.com/ashureev/cityline/internal/intent"
	"github.com/ashureev/cityline/internal/store"
)

const (
	defaultMaxRequestBodySize = 64 * 1024
	defaultRateLimitRequests  = 30
	defaultRateLimitWindow    = time.Minute
	defaultActiveWindow       = time.Hour
	defaultHealthCheckTimeout = 5 * time.Second
)

// Conversation is the turn-handling contract served by the transport.
type Conversation interface {
	Handle(ctx context.Context, sessionID, text string) (*conversation.Reply, error)
	Reset(ctx context.Context, sessionID string) error
}

// Analytics aggregates stored sessions.
type Analytics interface {
	Summary(ctx context.Context, window time.Duration) (store.Summary, error)
}

// Pinger checks a dependency's reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the transport. Zero values select defaults.
type Options struct {
	MaxRequestBodySize int64
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	ActiveWindow       time.Duration
	HealthCheckTimeout time.Duration
	// AllowedOrigins are host patterns accepted for WebSocket upgrades.
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.MaxRequestBodySize <= 0 {
		o.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if o.RateLimitRequests <= 0 {
		o.RateLimitRequests = defaultRateLimitRequests
	}
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = defaultRateLimitWindow
	}
	if o.ActiveWindow <= 0 {
		o.ActiveWindow = defaultActiveWindow
	}
	if o.HealthCheckTimeout <= 0 {
		o.HealthCheckTimeout = defaultHealthCheckTimeout
	}
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"*"}
	}
	return o
}

// Handler serves the chat, health, analytics and audit endpoints.
type Handler struct {
	conv      Conversation
	analytics Analytics
	pinger    Pinger
	rules     []intent.Rule
	limiter   *RateLimiter
	opts      Options
	logger    *slog.Logger
}

// NewHandler creates a Handler. rules is the effective intent table
// served for audit.
func NewHandler(conv Conversation, analytics Analytics, pinger Pinger, rules []intent.Rule, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &Handler{
		conv:      conv,
		analytics: analytics,
		pinger:    pinger,
		rules:     rules,
		limiter:   NewRateLimiter(opts.RateLimitRequests, opts.RateLimitWindow),
		opts:      opts,
		logger:    logger,
	}
}

// RegisterRoutes registers every route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/analytics/summary", h.AnalyticsSummary)
	r.Get("/api/intents", h.Intents)

	r.Post("/chat", h.Chat)
	r.Post("/chat/{sessionID}/reset", h.ResetSession)
	r.Get("/ws/chat", h.ChatSocket)
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.limiter.Close()
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
