package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/cityline/internal/conversation"
	"github.com/ashureev/cityline/internal/sessionid"
)

// ChatRequest is one inbound turn. An empty SessionID starts a new
// session.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply to one turn. Nullable fields are null rather
// than omitted.
type ChatResponse struct {
	Reply               string   `json:"reply"`
	SessionID           string   `json:"session_id"`
	Intent              *string  `json:"intent"`
	NeedsEscalation     bool     `json:"needs_escalation"`
	Options             []string `json:"options"`
	AutoContinueDelayMs *int64   `json:"auto_continue_delay_ms"`
}

func toResponse(r *conversation.Reply) ChatResponse {
	resp := ChatResponse{
		Reply:           r.Text,
		SessionID:       r.SessionID,
		NeedsEscalation: r.NeedsEscalation,
		Options:         r.Options,
	}
	if r.Intent != "" {
		s := string(r.Intent)
		resp.Intent = &s
	}
	if r.AutoContinueDelay > 0 {
		ms := r.AutoContinueDelay.Milliseconds()
		if ms == 0 {
			ms = 1
		}
		resp.AutoContinueDelayMs = &ms
	}
	return resp
}

// errBadSession marks a malformed client-supplied session id.
var errBadSession = errors.New("invalid session id")

// turn validates req and runs it through the conversation.
func (h *Handler) turn(ctx context.Context, req ChatRequest) (*conversation.Reply, error) {
	sid := ""
	if req.SessionID != "" {
		var ok bool
		if sid, ok = sessionid.Sanitize(req.SessionID); !ok {
			return nil, errBadSession
		}
	}
	return h.conv.Handle(ctx, sid, req.Message)
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(sessionid.IPFromRequest(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxRequestBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.turn(r.Context(), req)
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "message is required")
		return
	case errors.Is(err, errBadSession):
		Error(w, http.StatusBadRequest, "invalid session_id")
		return
	case err != nil:
		h.logger.Warn("Chat turn aborted", "error", err, "request_id", chiMiddleware.GetReqID(r.Context()))
		Error(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}

	h.logger.Debug("Chat turn",
		"session_id", reply.SessionID,
		"intent", string(reply.Intent),
		"message_length", len(req.Message),
		"request_id", chiMiddleware.GetReqID(r.Context()),
	)
	JSON(w, http.StatusOK, toResponse(reply))
}

// ResetSession handles POST /chat/{sessionID}/reset.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionid.Sanitize(chi.URLParam(r, "sessionID"))
	if !ok {
		Error(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := h.conv.Reset(r.Context(), sid); err != nil {
		h.logger.Error("Failed to reset session", "session_id", sid, "error", err)
		Error(w, http.StatusInternalServerError, "failed to reset session")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "reset", "session_id": sid})
}
