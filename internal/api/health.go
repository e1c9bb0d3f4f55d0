package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ashureev/cityline/internal/intent"
)

// Health returns the health status of the API and its session backend.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.HealthCheckTimeout)
	defer cancel()

	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    map[string]string{"api": "ok"},
	}
	statusCode := http.StatusOK

	if h.pinger != nil {
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Error("Health check failed", "error", err)
			status["status"] = "degraded"
			status["checks"].(map[string]string)["sessions"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			status["checks"].(map[string]string)["sessions"] = "ok"
		}
	}

	JSON(w, statusCode, status)
}

// AnalyticsSummary returns session counts and the intent distribution.
func (h *Handler) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary(r.Context(), h.opts.ActiveWindow)
	if err != nil {
		h.logger.Error("Failed to compute analytics summary", "error", err)
		Error(w, http.StatusInternalServerError, "analytics unavailable")
		return
	}
	JSON(w, http.StatusOK, summary)
}

type ruleView struct {
	Name       string   `json:"name"`
	Intent     string   `json:"intent"`
	Priority   int      `json:"priority"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords,omitempty"`
	Phrases    []string `json:"phrases,omitempty"`
	Custom     bool     `json:"custom_predicate,omitempty"`
}

// Intents returns the effective intent rule table in evaluation order.
func (h *Handler) Intents(w http.ResponseWriter, _ *http.Request) {
	out := make([]ruleView, 0, len(h.rules))
	for _, rule := range h.rules {
		out = append(out, viewRule(rule))
	}
	JSON(w, http.StatusOK, map[string]interface{}{"rules": out})
}

func viewRule(r intent.Rule) ruleView {
	return ruleView{
		Name:       r.Name,
		Intent:     string(r.Intent),
		Priority:   r.Priority,
		Confidence: r.Confidence,
		Keywords:   r.Keywords,
		Phrases:    r.Phrases,
		Custom:     r.Match != nil,
	}
}
