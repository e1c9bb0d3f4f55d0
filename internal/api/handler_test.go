//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/cityline/internal/conversation"
	"github.com/ashureev/cityline/internal/flow"
	"github.com/ashureev/cityline/internal/intent"
	"github.com/ashureev/cityline/internal/records"
	"github.com/ashureev/cityline/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, "nope")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Expected JSON content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"error":"nope"`) {
		t.Fatalf("Unexpected body: %s", w.Body.String())
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func newTestRouter(t *testing.T, opts Options, pinger Pinger) (http.Handler, *store.Sessions) {
	t.Helper()
	tbl := records.NewTable(records.DefaultData())
	backend := store.NewMemory()
	sessions := store.NewSessions(backend)
	classifier := intent.New()
	orch, err := conversation.New(conversation.Config{
		Sessions:   sessions,
		Classifier: classifier,
		Flows: flow.All(flow.Deps{
			Lookup:            tbl,
			Registry:          tbl,
			AutoContinueDelay: 1500 * time.Millisecond,
		}),
	})
	if err != nil {
		t.Fatalf("conversation.New: %v", err)
	}
	if pinger == nil {
		pinger = backend
	}
	h := NewHandler(orch, sessions, pinger, classifier.Rules(), opts, nil)
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, sessions
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeChat(t *testing.T, w *httptest.ResponseRecorder) ChatResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestChatNewSessionAndContinuation(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, nil)

	resp := decodeChat(t, postChat(t, r, `{"message":"I want to pay my water bill"}`))
	if resp.SessionID == "" {
		t.Fatal("Expected a concrete session id")
	}
	if resp.Intent == nil || *resp.Intent != "pay_bill" {
		t.Fatalf("Expected intent pay_bill, got %v", resp.Intent)
	}

	body, _ := json.Marshal(ChatRequest{Message: "123 Main St", SessionID: resp.SessionID})
	resp = decodeChat(t, postChat(t, r, string(body)))
	if !strings.Contains(resp.Reply, "$82.35") {
		t.Fatalf("Expected bill amount in reply, got %q", resp.Reply)
	}

	body, _ = json.Marshal(ChatRequest{Message: "yes", SessionID: resp.SessionID})
	resp = decodeChat(t, postChat(t, r, string(body)))
	if resp.AutoContinueDelayMs == nil || *resp.AutoContinueDelayMs != 1500 {
		t.Fatalf("Expected auto_continue_delay_ms=1500, got %v", resp.AutoContinueDelayMs)
	}
}

func TestChatNullableFields(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, nil)

	w := postChat(t, r, `{"message":"goodbye"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	for _, key := range []string{"options", "auto_continue_delay_ms"} {
		if string(raw[key]) != "null" {
			t.Errorf("Expected %s to be null, got %s", key, raw[key])
		}
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	r, _ := newTestRouter(t, Options{MaxRequestBodySize: 64}, nil)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"empty message", `{"message":"   "}`, http.StatusBadRequest},
		{"invalid json", `{"message":`, http.StatusBadRequest},
		{"bad session id", `{"message":"hi","session_id":"../../x y"}`, http.StatusBadRequest},
		{"too large", `{"message":"` + strings.Repeat("a", 200) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := postChat(t, r, tc.body); w.Code != tc.code {
				t.Fatalf("Expected status %d, got %d: %s", tc.code, w.Code, w.Body.String())
			}
		})
	}
}

func TestChatRateLimited(t *testing.T) {
	r, _ := newTestRouter(t, Options{RateLimitRequests: 2, RateLimitWindow: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		if w := postChat(t, r, `{"message":"hi"}`); w.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i, w.Code)
		}
	}
	if w := postChat(t, r, `{"message":"hi"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
}

func TestResetSession(t *testing.T) {
	r, sessions := newTestRouter(t, Options{}, nil)

	resp := decodeChat(t, postChat(t, r, `{"message":"pay my bill","session_id":"tab-1"}`))
	if resp.SessionID != "tab-1" {
		t.Fatalf("Expected supplied session id, got %q", resp.SessionID)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat/tab-1/reset", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	s, err := sessions.GetOrCreate(context.Background(), "tab-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if s.InFlow() || len(s.Slots) != 0 {
		t.Fatalf("Expected cleared session, got %+v", s)
	}
	if len(s.History) != 2 {
		t.Fatalf("Expected history to survive reset, got %d turns", len(s.History))
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"healthy"`) {
		t.Fatalf("Unexpected body: %s", w.Body.String())
	}

	r, _ = newTestRouter(t, Options{}, failingPinger{})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}
}

func TestAnalyticsSummary(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, nil)
	postChat(t, r, `{"message":"pay my bill","session_id":"a"}`)
	postChat(t, r, `{"message":"hello","session_id":"b"}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analytics/summary", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var summary store.Summary
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if summary.TotalSessions != 2 || summary.ActiveSessions != 2 {
		t.Fatalf("Unexpected session counts: %+v", summary)
	}
	if summary.TotalInteractions != 4 {
		t.Fatalf("Expected 4 interactions, got %d", summary.TotalInteractions)
	}
	if summary.IntentDistribution["pay_bill"] != 1 {
		t.Fatalf("Expected one pay_bill session, got %v", summary.IntentDistribution)
	}
}

func TestIntents(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/intents", nil))

	var body struct {
		Rules []ruleView `json:"rules"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode rules: %v", err)
	}
	if len(body.Rules) != len(intent.DefaultRules()) {
		t.Fatalf("Expected %d rules, got %d", len(intent.DefaultRules()), len(body.Rules))
	}
	for i := 1; i < len(body.Rules); i++ {
		if body.Rules[i].Priority > body.Rules[i-1].Priority {
			t.Fatalf("Rules out of priority order at %d", i)
		}
	}
}

func TestChatSocket(t *testing.T) {
	r, _ := newTestRouter(t, Options{}, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?session_id=ws-1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	send := func(msg string) map[string]json.RawMessage {
		t.Helper()
		data, _ := json.Marshal(ChatRequest{Message: msg})
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		_, out, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		var got map[string]json.RawMessage
		if err := json.Unmarshal(out, &got); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		return got
	}

	got := send("pay a ticket")
	if string(got["session_id"]) != `"ws-1"` {
		t.Fatalf("Expected connection session id, got %s", got["session_id"])
	}
	if !bytes.Contains(got["intent"], []byte("pay_ticket")) {
		t.Fatalf("Expected pay_ticket, got %s", got["intent"])
	}

	send("TK999")
	got = send("TK999")
	if string(got["needs_escalation"]) != "true" {
		t.Fatalf("Expected escalation after two misses, got %s", got["needs_escalation"])
	}

	got = send("")
	if _, ok := got["error"]; !ok {
		t.Fatalf("Expected error frame for empty message, got %v", got)
	}
}
