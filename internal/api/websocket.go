package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"

	"github.com/ashureev/cityline/internal/conversation"
	"github.com/ashureev/cityline/internal/sessionid"
)

// wsError is sent in place of a ChatResponse when a frame is rejected.
type wsError struct {
	Error string `json:"error"`
}

// ChatSocket handles GET /ws/chat. Each text frame carries a ChatRequest
// and is answered with one ChatResponse. A frame without a session id
// continues the connection's session.
func (h *Handler) ChatSocket(w http.ResponseWriter, r *http.Request) {
	client := sessionid.IPFromRequest(r)
	current := sessionid.FromRequest(r)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.AllowedOrigins,
	})
	if err != nil {
		h.logger.Warn("Failed to accept WebSocket", "error", err, "ip", client)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "conversation ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()
	ws.SetReadLimit(h.opts.MaxRequestBodySize)

	ctx := r.Context()
	h.logger.Info("Chat socket connected", "ip", client, "session_id", current)

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("Chat socket closed by client", "session_id", current)
			} else {
				h.logger.Warn("Chat socket read error", "error", err, "session_id", current)
			}
			return
		}
		if typ != websocket.MessageText {
			if err := writeJSON(ctx, ws, wsError{Error: "text frames only"}); err != nil {
				return
			}
			continue
		}
		if !h.limiter.Allow(client) {
			if err := writeJSON(ctx, ws, wsError{Error: "rate limit exceeded"}); err != nil {
				return
			}
			continue
		}

		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if err := writeJSON(ctx, ws, wsError{Error: "invalid request body"}); err != nil {
				return
			}
			continue
		}
		if req.SessionID == "" {
			req.SessionID = current
		}

		reply, err := h.turn(ctx, req)
		switch {
		case errors.Is(err, conversation.ErrEmptyMessage):
			err = writeJSON(ctx, ws, wsError{Error: "message is required"})
		case errors.Is(err, errBadSession):
			err = writeJSON(ctx, ws, wsError{Error: "invalid session_id"})
		case err != nil:
			return
		default:
			current = reply.SessionID
			err = writeJSON(ctx, ws, toResponse(reply))
		}
		if err != nil {
			h.logger.Debug("Chat socket write failed", "error", err, "session_id", current)
			return
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
