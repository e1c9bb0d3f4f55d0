// Package conversation routes citizen messages through intent
// classification and the task flows, one serialized turn per session.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ashureev/cityline/internal/convlog"
	"github.com/ashureev/cityline/internal/domain"
	"github.com/ashureev/cityline/internal/flow"
	"github.com/ashureev/cityline/internal/intent"
	"github.com/ashureev/cityline/internal/sessionid"
	"github.com/ashureev/cityline/internal/store"
)

// AutoContinueMessage is submitted by callers after AutoContinueDelay has
// elapsed. It is never recorded in history.
const AutoContinueMessage = "__auto_continue__"

// DefaultReceiptBaseURL prefixes receipt download links.
const DefaultReceiptBaseURL = "https://city.example.gov/receipts"

// ChannelChat tags conversation log events from the chat transports.
const ChannelChat = "chat"

// classifierContextTurns bounds the history handed to the classifier.
const classifierContextTurns = 20

// maxConflictRetries bounds re-running a turn after a concurrent writer
// in another process updated the same session.
const maxConflictRetries = 3

// ErrEmptyMessage is returned for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// errNoChange aborts a session update without saving.
var errNoChange = errors.New("no state change")

// TurnLogger receives a transcript event for every message and reply.
type TurnLogger interface {
	Log(event convlog.Event)
}

// Reply is the outcome of one turn.
type Reply struct {
	SessionID         string
	Text              string
	Intent            domain.Intent
	Options           []string
	NeedsEscalation   bool
	AutoContinueDelay time.Duration
}

// Config wires an Orchestrator.
type Config struct {
	Sessions       *store.Sessions
	Classifier     *intent.Classifier
	Flows          map[domain.Intent]flow.Flow
	Logger         *slog.Logger
	TurnLogger     TurnLogger
	Clock          func() time.Time
	ReceiptBaseURL string
}

// Orchestrator owns the turn-handling contract.
type Orchestrator struct {
	sessions       *store.Sessions
	classifier     *intent.Classifier
	flows          map[domain.Intent]flow.Flow
	logger         *slog.Logger
	turns          TurnLogger
	now            func() time.Time
	receiptBaseURL string
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("conversation: sessions are required")
	}
	if len(cfg.Flows) == 0 {
		return nil, errors.New("conversation: at least one flow is required")
	}
	o := &Orchestrator{
		sessions:       cfg.Sessions,
		classifier:     cfg.Classifier,
		flows:          cfg.Flows,
		logger:         cfg.Logger,
		turns:          cfg.TurnLogger,
		now:            cfg.Clock,
		receiptBaseURL: strings.TrimRight(cfg.ReceiptBaseURL, "/"),
	}
	if o.classifier == nil {
		o.classifier = intent.New()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.turns == nil {
		o.turns = convlog.Noop{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.receiptBaseURL == "" {
		o.receiptBaseURL = DefaultReceiptBaseURL
	}
	return o, nil
}

// Classifier returns the intent classifier in use.
func (o *Orchestrator) Classifier() *intent.Classifier {
	return o.classifier
}

// Handle processes one message for sessionID. A blank sessionID starts a
// new session. Domain failures never surface as errors: they become reply
// text and flags.
func (o *Orchestrator) Handle(ctx context.Context, sessionID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = sessionid.New()
	}

	start := time.Now()
	auto := text == AutoContinueMessage
	var (
		reply *Reply
		step  domain.Step
		err   error
	)
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		now := o.now()
		_, err = o.sessions.Update(ctx, sessionID, func(s *domain.Session) error {
			reply = o.turn(ctx, s, text, auto, now)
			reply.SessionID = s.ID
			step = s.Step
			if auto && reply.Intent == domain.IntentNone {
				return errNoChange
			}
			return nil
		})
		if !errors.Is(err, store.ErrVersionConflict) {
			break
		}
		o.logger.Warn("Session version conflict, retrying turn", "session_id", sessionID, "attempt", attempt)
	}

	switch {
	case err == nil, errors.Is(err, errNoChange):
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		o.logger.Error("Failed to persist session turn", "session_id", sessionID, "error", err)
		reply = faultReply(sessionID)
	}

	o.record(sessionID, text, auto, step, reply)
	o.logger.Info("Turn handled",
		"session_id", sessionID,
		"intent", string(reply.Intent),
		"step", string(step),
		"needs_escalation", reply.NeedsEscalation,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}

// Reset clears the session's conversational state, keeping its id.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	_, err := o.sessions.Update(ctx, sessionID, func(s *domain.Session) error {
		s.Reset()
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset session %s: %w", sessionID, err)
	}
	o.turns.Log(convlog.Event{
		SessionID: sessionID,
		Channel:   ChannelChat,
		Direction: convlog.DirectionInbound,
		EventType: convlog.EventSessionReset,
	})
	return nil
}

// turn runs inside the session's exclusive section. A panic anywhere in
// classification or a flow resets the flow and escalates.
func (o *Orchestrator) turn(ctx context.Context, s *domain.Session, text string, auto bool, now time.Time) (reply *Reply) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("Recovered from panic while handling turn",
				"session_id", s.ID,
				"intent", string(s.ActiveIntent),
				"step", string(s.Step),
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()),
			)
			endFlow(s)
			reply = faultReply(s.ID)
			s.AppendTurn(domain.RoleAssistant, reply.Text, reply.Intent, now)
		}
	}()

	if auto {
		reply = o.autoContinue(ctx, s, now)
		if reply.Intent != domain.IntentNone {
			s.AppendTurn(domain.RoleAssistant, reply.Text, reply.Intent, now)
		}
		return reply
	}

	prior := s.RecentTurns(classifierContextTurns)
	s.AppendTurn(domain.RoleUser, text, domain.IntentNone, now)
	res := o.classifier.Classify(text, prior)

	var handled domain.Intent
	if s.InFlow() {
		reply, handled = o.inFlow(ctx, s, text, res, now)
	} else {
		reply, handled = o.atEntry(ctx, s, text, res, now)
	}
	if n := len(s.History); n > 0 && s.History[n-1].Role == domain.RoleUser {
		s.History[n-1].Intent = handled
	}
	s.AppendTurn(domain.RoleAssistant, reply.Text, reply.Intent, now)
	return reply
}

// inFlow delegates to the active flow. Only escalate and restart
// interrupt it.
func (o *Orchestrator) inFlow(ctx context.Context, s *domain.Session, text string, res intent.Result, now time.Time) (*Reply, domain.Intent) {
	switch res.Intent {
	case domain.IntentEscalate:
		endFlow(s)
		return escalationReply(), domain.IntentEscalate
	case domain.IntentRestart:
		return o.restart(s), domain.IntentRestart
	}

	f, ok := o.flows[s.ActiveIntent]
	if !ok {
		o.logger.Warn("Session references an unknown flow, resetting", "session_id", s.ID, "intent", string(s.ActiveIntent))
		endFlow(s)
		return o.atEntry(ctx, s, text, res, now)
	}
	active := s.ActiveIntent
	r := f.Advance(ctx, flow.Turn{
		Step:           s.Step,
		Slots:          s.Slots.Clone(),
		FailedAttempts: s.FailedAttempts,
		Input:          text,
		Entities:       res.Entities,
		Now:            now,
	})
	return apply(s, active, r), active
}

func (o *Orchestrator) atEntry(ctx context.Context, s *domain.Session, text string, res intent.Result, now time.Time) (*Reply, domain.Intent) {
	in := res.Intent
	switch {
	case in.Actionable():
		return o.start(ctx, s, in, text, res.Entities, now)
	case in == domain.IntentRepeatLast:
		if target := domain.Intent(res.Entities[intent.EntityRepeat]); target.Actionable() {
			return o.start(ctx, s, target, text, nil, now)
		}
		return clarificationReply(), domain.IntentOther
	case in == domain.IntentPayAnother:
		return o.start(ctx, s, domain.IntentPayBill, text, nil, now)
	case in == domain.IntentGreeting:
		return &Reply{Text: greetingText, Intent: in, Options: flow.MenuOptions}, in
	case in == domain.IntentMenuReturn:
		return &Reply{Text: menuText, Intent: in, Options: flow.MenuOptions}, in
	case in == domain.IntentFarewell:
		return &Reply{Text: farewellText, Intent: in}, in
	case in == domain.IntentDownloadReceipt:
		return o.receipt(s), in
	case in == domain.IntentEscalate:
		return escalationReply(), in
	case in == domain.IntentRestart:
		return o.restart(s), in
	default:
		return clarificationReply(), domain.IntentOther
	}
}

// start enters a flow with fresh slots and a zero miss counter.
func (o *Orchestrator) start(ctx context.Context, s *domain.Session, in domain.Intent, text string, entities map[string]string, now time.Time) (*Reply, domain.Intent) {
	f, ok := o.flows[in]
	if !ok {
		o.logger.Warn("No flow registered for intent", "intent", string(in))
		return clarificationReply(), domain.IntentOther
	}
	s.Slots = domain.Slots{}
	s.FailedAttempts = 0
	r := f.Start(ctx, flow.Turn{
		Step:     domain.StepEntry,
		Slots:    s.Slots.Clone(),
		Input:    text,
		Entities: entities,
		Now:      now,
	})
	return apply(s, in, r), in
}

// autoContinue routes the reserved message to a flow waiting on a timed
// step. Anywhere else it is answered without touching the session.
func (o *Orchestrator) autoContinue(ctx context.Context, s *domain.Session, now time.Time) *Reply {
	if s.InFlow() {
		if f, ok := o.flows[s.ActiveIntent]; ok {
			if c, ok := f.(flow.Continuer); ok && c.Continues(s.Step) {
				active := s.ActiveIntent
				r := f.Advance(ctx, flow.Turn{
					Step:           s.Step,
					Slots:          s.Slots.Clone(),
					FailedAttempts: s.FailedAttempts,
					Now:            now,
					AutoContinue:   true,
				})
				return apply(s, active, r)
			}
		}
	}
	return &Reply{Text: "There's nothing in progress right now. What can I help you with?", Options: flow.MenuOptions}
}

func (o *Orchestrator) restart(s *domain.Session) *Reply {
	s.Reset()
	return &Reply{
		Text:    "No problem, let's start over. What would you like to do?",
		Intent:  domain.IntentRestart,
		Options: flow.MenuOptions,
	}
}

func (o *Orchestrator) receipt(s *domain.Session) *Reply {
	id := s.Slots[domain.SlotReceiptID]
	if id == "" {
		return &Reply{
			Text:    "I don't see a completed payment in this conversation yet. Would you like to pay a bill or a ticket?",
			Intent:  domain.IntentDownloadReceipt,
			Options: flow.MenuOptions,
		}
	}
	return &Reply{
		Text: fmt.Sprintf("Here's your receipt %s. You can download it at %s/%s\n\nA copy has also been sent to your registered email. Anything else?",
			id, o.receiptBaseURL, id),
		Intent:  domain.IntentDownloadReceipt,
		Options: []string{"Pay another bill", "Check other services", "I'm all set"},
	}
}

func (o *Orchestrator) record(sessionID, text string, auto bool, step domain.Step, reply *Reply) {
	if !auto {
		o.turns.Log(convlog.Event{
			SessionID:  sessionID,
			Channel:    ChannelChat,
			Direction:  convlog.DirectionInbound,
			EventType:  convlog.EventUserMessage,
			Intent:     string(reply.Intent),
			ContentRaw: text,
		})
	}
	meta := map[string]any{}
	if len(reply.Options) > 0 {
		meta["options"] = reply.Options
	}
	if reply.AutoContinueDelay > 0 {
		meta["auto_continue_delay_ms"] = reply.AutoContinueDelay.Milliseconds()
	}
	if auto {
		meta["auto_continue"] = true
	}
	o.turns.Log(convlog.Event{
		SessionID:       sessionID,
		Channel:         ChannelChat,
		Direction:       convlog.DirectionOutbound,
		EventType:       convlog.EventAssistantMessage,
		Intent:          string(reply.Intent),
		Step:            string(step),
		ContentRaw:      reply.Text,
		NeedsEscalation: reply.NeedsEscalation,
		Meta:            meta,
	})
}

// apply copies a flow Result onto the session. A finished flow returns
// the session to the entry step but keeps its slots, so a follow-up like
// "download receipt" can still see them.
func apply(s *domain.Session, in domain.Intent, r flow.Result) *Reply {
	slots := r.Slots
	if slots == nil {
		slots = domain.Slots{}
	}
	s.Slots = slots
	if r.Done {
		s.ActiveIntent = domain.IntentNone
		s.Step = domain.StepEntry
		s.FailedAttempts = 0
	} else {
		s.ActiveIntent = in
		s.Step = r.Step
		s.FailedAttempts = r.FailedAttempts
	}
	return &Reply{
		Text:              r.Reply,
		Intent:            in,
		Options:           r.Options,
		NeedsEscalation:   r.Escalate,
		AutoContinueDelay: r.AutoContinueDelay,
	}
}

func endFlow(s *domain.Session) {
	s.ActiveIntent = domain.IntentNone
	s.Step = domain.StepEntry
	s.FailedAttempts = 0
}
