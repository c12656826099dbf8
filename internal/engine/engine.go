// Package engine implements the decision core: the progressive
// scam-confidence state machine, the persona lock, the deterministic stop
// rule and the per-turn orchestration around the generation capability.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fraudguard/honeytrap/internal/domain"
	"github.com/fraudguard/honeytrap/internal/intel"
	"github.com/fraudguard/honeytrap/internal/llm"
	"github.com/fraudguard/honeytrap/internal/notify"
	"github.com/fraudguard/honeytrap/internal/persona"
	"github.com/fraudguard/honeytrap/internal/store"
	"github.com/fraudguard/honeytrap/internal/transcript"
)

// Config holds the engine's policy constants. All of them are
// deployment-tunable; the defaults are the reference policy.
type Config struct {
	StopThreshold   int           // independent signals required to disengage
	MaxTurns        int           // hard turn-count ceiling
	MaxEngagement   time.Duration // hard elapsed-time ceiling
	GenerateTimeout time.Duration // deadline for one generation call
}

func (c Config) withDefaults() Config {
	if c.StopThreshold <= 0 {
		c.StopThreshold = 2
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = 15
	}
	if c.MaxEngagement <= 0 {
		c.MaxEngagement = 30 * time.Minute
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = 20 * time.Second
	}
	return c
}

// Inbound is one counterpart message to process.
type Inbound struct {
	SessionID string
	Message   domain.Message
	// History optionally reconstructs a session the store has never seen,
	// when the caller is the source of truth for the conversation.
	History []domain.Message
}

// Engine orchestrates one decision per inbound message.
type Engine struct {
	cfg        Config
	repo       store.Repository
	extractor  *intel.Extractor
	aggregator *intel.Aggregator
	personas   *persona.Selector
	generator  llm.Generator // nil means generation is unavailable
	dispatcher notify.Dispatcher
	transcript transcript.Logger
	log        *slog.Logger
	locks      keyedLocks
}

// New creates a decision engine. generator may be nil, in which case every
// turn uses the fallback policy.
func New(cfg Config, repo store.Repository, extractor *intel.Extractor, personas *persona.Selector,
	generator llm.Generator, dispatcher notify.Dispatcher, tlog transcript.Logger, log *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	if dispatcher == nil {
		dispatcher = notify.Noop{}
	}
	if tlog == nil {
		tlog = transcript.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:        cfg,
		repo:       repo,
		extractor:  extractor,
		aggregator: intel.NewAggregator(cfg.StopThreshold),
		personas:   personas,
		generator:  generator,
		dispatcher: dispatcher,
		transcript: tlog,
		log:        log,
		locks:      keyedLocks{entries: make(map[string]*lockEntry)},
	}
}

// Process runs the per-message protocol and returns the turn's decision.
// Requests for the same session identifier are serialized; state updates
// are all-or-nothing per turn.
func (e *Engine) Process(ctx context.Context, in Inbound) (*domain.Decision, error) {
	unlock := e.locks.lock(in.SessionID)
	defer unlock()

	now := in.Message.Timestamp
	if now.IsZero() {
		now = time.Now()
		in.Message.Timestamp = now
	}

	sess, err := e.loadOrCreate(ctx, in, now)
	if err != nil {
		return nil, err
	}

	if sess.Terminal {
		return e.replayFinal(sess, in)
	}

	// Work on a clone; the stored session is only replaced on commit.
	work := sess.Clone()
	turn := work.TurnCount + 1

	// Extraction is independent of the generator and always runs first.
	frag := e.extractor.Extract(in.Message.Text)

	if work.Persona == "" && work.Confidence == domain.ConfidenceNone {
		if pre := legitimacyPrecheck(in.Message.Text, frag, turn == 1); pre.Legit {
			return e.finishWithoutEngaging(ctx, work, in, now, turn, pre.Reason)
		}
	}

	p := e.personas.SelectOrGet(work)
	work.Messages = append(work.Messages, in.Message)
	work.TurnCount = turn
	work.LastSeenAt = now
	e.aggregator.Merge(work, frag, turn)
	work.RaiseConfidence(confidenceFor(work))

	finished, stopReason := e.enforcedStatus(work, turn, now)

	// The stop decision is already made; the generator only dresses it up.
	suggestion := e.tryGenerate(ctx, work, p, turn)
	if suggestion == nil && ctx.Err() != nil {
		// Caller aborted mid-turn: commit nothing.
		return nil, fmt.Errorf("request aborted: %w", ctx.Err())
	}

	reply := e.chooseReply(suggestion, p, turn, finished)

	scamDetected := work.Confidence >= domain.ConfidenceMedium
	if suggestion != nil && suggestion.ScamSuspected {
		scamDetected = true
	}

	status := domain.StatusContinue
	if finished {
		status = domain.StatusFinished
	}

	work.Messages = append(work.Messages, domain.Message{
		Sender:    domain.SenderAgent,
		Text:      reply,
		Timestamp: now,
	})

	decision := domain.Decision{
		ScamDetected: scamDetected,
		Status:       status,
		ReplyText:    reply,
		Intelligence: domain.IntelligenceFrom(work.Artifacts),
		AgentNotes:   e.buildNotes(work, p, stopReason, suggestion),
		Metrics:      metricsFor(work, now),
	}

	if finished {
		work.Terminal = true
		final, err := json.Marshal(decision)
		if err != nil {
			return nil, fmt.Errorf("encode final decision: %w", err)
		}
		work.FinalJSON = string(final)
	}

	if err := e.repo.UpsertSession(ctx, work); err != nil {
		return nil, fmt.Errorf("commit session %s: %w", work.ID, err)
	}

	e.logTurn(work.ID, in.Message, reply, status)

	if finished {
		// Fire-and-forget: delivery retries belong to the dispatcher.
		go e.dispatcher.Dispatch(notify.Report{
			SessionID:              work.ID,
			ScamDetected:           decision.ScamDetected,
			TotalMessagesExchanged: decision.Metrics.TotalMessagesExchanged,
			ExtractedIntelligence:  decision.Intelligence,
			AgentNotes:             decision.AgentNotes,
		})
		e.log.Info("session finished",
			"session_id", work.ID,
			"reason", stopReason,
			"turns", work.TurnCount,
			"confidence", work.Confidence.String(),
		)
	}

	return &decision, nil
}

// loadOrCreate fetches the stored session, or builds one seeded from the
// caller-supplied history when the store has never seen the identifier.
func (e *Engine) loadOrCreate(ctx context.Context, in Inbound, now time.Time) (*domain.Session, error) {
	sess, err := e.repo.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", in.SessionID, err)
	}
	if sess != nil {
		return sess, nil
	}

	sess = domain.NewSession(in.SessionID, now)
	if len(in.History) > 0 {
		if first := in.History[0].Timestamp; !first.IsZero() {
			sess.FirstSeenAt = first
		}
		for _, m := range in.History {
			sess.Messages = append(sess.Messages, m)
			if m.Sender != domain.SenderAgent {
				sess.TurnCount++
				e.aggregator.Merge(sess, e.extractor.Extract(m.Text), sess.TurnCount)
			}
		}
		sess.RaiseConfidence(confidenceFor(sess))
	}
	return sess, nil
}

// replayFinal answers a post-terminal message with the stored final
// decision, unchanged. The counterpart never learns the session ended and
// the callback is not re-fired.
func (e *Engine) replayFinal(sess *domain.Session, in Inbound) (*domain.Decision, error) {
	e.transcript.Log(transcript.Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sess.ID,
		Direction: "inbound",
		EventType: "post_terminal_message",
		Text:      in.Message.Text,
	})

	var decision domain.Decision
	if err := json.Unmarshal([]byte(sess.FinalJSON), &decision); err != nil {
		// Defensive rebuild; the stored payload should always decode.
		e.log.Error("stored final decision is unreadable", "session_id", sess.ID, "error", err)
		decision = domain.Decision{
			ScamDetected: sess.Confidence >= domain.ConfidenceMedium,
			Status:       domain.StatusFinished,
			Intelligence: domain.IntelligenceFrom(sess.Artifacts),
			AgentNotes:   "session already finished",
			Metrics:      metricsFor(sess, sess.LastSeenAt),
		}
	}
	return &decision, nil
}

// finishWithoutEngaging handles whitelisted legitimate messages: no
// persona lock, no artifact merge, silent reply, immediate terminal state.
func (e *Engine) finishWithoutEngaging(ctx context.Context, work *domain.Session, in Inbound, now time.Time, turn int, reason string) (*domain.Decision, error) {
	work.Messages = append(work.Messages, in.Message)
	work.TurnCount = turn
	work.LastSeenAt = now
	work.Terminal = true

	decision := domain.Decision{
		ScamDetected: false,
		Status:       domain.StatusFinished,
		ReplyText:    "",
		Intelligence: domain.IntelligenceFrom(work.Artifacts),
		AgentNotes:   "No engagement: " + reason + ". Silence enforced.",
		Metrics:      metricsFor(work, now),
	}

	final, err := json.Marshal(decision)
	if err != nil {
		return nil, fmt.Errorf("encode final decision: %w", err)
	}
	work.FinalJSON = string(final)

	if err := e.repo.UpsertSession(ctx, work); err != nil {
		return nil, fmt.Errorf("commit session %s: %w", work.ID, err)
	}

	e.logTurn(work.ID, in.Message, "", domain.StatusFinished)

	go e.dispatcher.Dispatch(notify.Report{
		SessionID:              work.ID,
		ScamDetected:           false,
		TotalMessagesExchanged: decision.Metrics.TotalMessagesExchanged,
		ExtractedIntelligence:  decision.Intelligence,
		AgentNotes:             decision.AgentNotes,
	})

	e.log.Info("message whitelisted", "session_id", work.ID, "reason", reason)
	return &decision, nil
}

// enforcedStatus computes termination from artifact sets and ceilings
// only. The generation capability has no say here.
func (e *Engine) enforcedStatus(work *domain.Session, turn int, now time.Time) (bool, string) {
	switch {
	case e.aggregator.MeetsStopThreshold(work):
		return true, "stop threshold met"
	case turn >= e.cfg.MaxTurns:
		return true, "turn ceiling reached"
	case now.Sub(work.FirstSeenAt) >= e.cfg.MaxEngagement:
		return true, "time ceiling reached"
	}
	return false, "engaging"
}

// tryGenerate asks the generation capability for a suggestion. Failures
// and timeouts return nil; the fallback policy covers the turn.
func (e *Engine) tryGenerate(ctx context.Context, work *domain.Session, p persona.Persona, turn int) *llm.Suggestion {
	if e.generator == nil {
		return nil
	}
	genCtx, cancel := context.WithTimeout(ctx, e.cfg.GenerateTimeout)
	defer cancel()

	suggestion, err := e.generator.Generate(genCtx, llm.GenerateRequest{
		SessionID: work.ID,
		Persona:   p,
		History:   work.Messages,
		Artifacts: domain.IntelligenceFrom(work.Artifacts),
		TurnCount: turn,
	})
	if err != nil {
		e.log.Warn("generation failed, using fallback reply",
			"session_id", work.ID,
			"turn", turn,
			"error", err,
		)
		return nil
	}
	return suggestion
}

func (e *Engine) chooseReply(suggestion *llm.Suggestion, p persona.Persona, turn int, finished bool) string {
	if suggestion != nil && strings.TrimSpace(suggestion.ReplyText) != "" {
		return suggestion.ReplyText
	}
	if finished {
		return disengageReply(p)
	}
	return stallReply(p, turn)
}

func (e *Engine) buildNotes(work *domain.Session, p persona.Persona, stopReason string, suggestion *llm.Suggestion) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Persona: %s. Confidence: %s. Independent signals: %d. %s.",
		p.Name, work.Confidence.String(), e.aggregator.IndependentSignals(work), stopReason)
	if suggestion == nil {
		sb.WriteString(" Generation unavailable; fallback reply used.")
	} else if suggestion.Notes != "" {
		sb.WriteString(" " + suggestion.Notes)
	}
	return sb.String()
}

func (e *Engine) logTurn(sessionID string, in domain.Message, reply string, status domain.Status) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	e.transcript.Log(transcript.Event{
		Timestamp: ts,
		SessionID: sessionID,
		Direction: "inbound",
		EventType: "counterpart_message",
		Text:      in.Text,
	})
	e.transcript.Log(transcript.Event{
		Timestamp: ts,
		SessionID: sessionID,
		Direction: "outbound",
		EventType: "agent_reply",
		Text:      reply,
		Meta:      map[string]any{"status": string(status)},
	})
}

// confidenceFor derives the confidence floor implied by the cumulative
// artifact sets. Strong structural evidence outweighs keywords, and
// keywords alone can never push past medium.
func confidenceFor(s *domain.Session) domain.Confidence {
	for _, cat := range domain.Categories {
		if cat.Strong() && len(s.Artifacts[cat]) > 0 {
			return domain.ConfidenceHigh
		}
	}
	if len(s.Artifacts[domain.CategoryKeyword]) >= 2 {
		return domain.ConfidenceMedium
	}
	if len(s.Artifacts[domain.CategoryKeyword]) >= 1 || len(s.Artifacts[domain.CategoryPhone]) >= 1 {
		return domain.ConfidenceLow
	}
	return domain.ConfidenceNone
}

func metricsFor(s *domain.Session, now time.Time) domain.Metrics {
	seconds := int64(now.Sub(s.FirstSeenAt).Seconds())
	if seconds < 0 {
		seconds = 0
	}
	return domain.Metrics{
		EngagementDurationSeconds: seconds,
		TotalMessagesExchanged:    len(s.Messages),
	}
}

// keyedLocks serializes turns per session identifier while letting
// distinct sessions proceed in parallel.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
