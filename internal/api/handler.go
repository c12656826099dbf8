// Package api provides HTTP handlers for the honeytrap API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fraudguard/honeytrap/internal/domain"
	"github.com/fraudguard/honeytrap/internal/engine"
)

// Handler provides common handler utilities.
type Handler struct {
	engine *engine.Engine
	log    *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(eng *engine.Engine, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: eng, log: log}
}

// RegisterRoutes mounts the detection endpoints on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/detect", h.Detect)
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

// detectRequest accepts both request shapes callers send: a nested message
// object or a flat top-level text field.
type detectRequest struct {
	SessionID string          `json:"sessionId"`
	Message   json.RawMessage `json:"message"`
	Text      string          `json:"text"`
	History   []wireMessage   `json:"conversationHistory"`
}

type wireMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Detect handles POST /api/v1/detect: one counterpart message in, one
// structured decision out. Processing errors surface as 500; malformed
// requests as 400; every processed message returns 200.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := req.normalizedMessage()
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	decision, err := h.engine.Process(r.Context(), engine.Inbound{
		SessionID: sessionID,
		Message:   msg,
		History:   req.normalizedHistory(),
	})
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nothing useful to write.
			return
		}
		h.log.Error("failed to process message", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	JSON(w, http.StatusOK, detectResponse{
		Status:    "success",
		SessionID: sessionID,
		Decision:  *decision,
	})
}

type detectResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
	domain.Decision
}

// normalizedMessage resolves the inbound text from whichever shape the
// caller used and rejects requests carrying neither.
func (r *detectRequest) normalizedMessage() (domain.Message, error) {
	msg := domain.Message{Sender: domain.SenderCounterpart}

	if len(r.Message) > 0 {
		switch r.Message[0] {
		case '"':
			var text string
			if err := json.Unmarshal(r.Message, &text); err != nil {
				return msg, errBadMessage
			}
			msg.Text = text
		case '{':
			var wm wireMessage
			if err := json.Unmarshal(r.Message, &wm); err != nil {
				return msg, errBadMessage
			}
			msg.Text = wm.Text
			msg.Sender = normalizeSender(wm.Sender)
			msg.Timestamp = parseTimestamp(wm.Timestamp)
		default:
			return msg, errBadMessage
		}
	}

	if msg.Text == "" {
		msg.Text = r.Text
	}
	if strings.TrimSpace(msg.Text) == "" {
		return msg, errNoText
	}
	return msg, nil
}

func (r *detectRequest) normalizedHistory() []domain.Message {
	if len(r.History) == 0 {
		return nil
	}
	history := make([]domain.Message, 0, len(r.History))
	for _, wm := range r.History {
		if strings.TrimSpace(wm.Text) == "" {
			continue
		}
		history = append(history, domain.Message{
			Sender:    normalizeSender(wm.Sender),
			Text:      wm.Text,
			Timestamp: parseTimestamp(wm.Timestamp),
		})
	}
	return history
}

var (
	errBadMessage = &requestError{"message must be a string or an object with a text field"}
	errNoText     = &requestError{"request contains no message text"}
)

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func normalizeSender(sender string) domain.Sender {
	switch strings.ToLower(strings.TrimSpace(sender)) {
	case "agent", "bot", "assistant":
		return domain.SenderAgent
	default:
		return domain.SenderCounterpart
	}
}

// parseTimestamp tolerates the formats seen in the field. A zero time
// tells the engine to stamp the message itself.
func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(n)
		}
		return time.Unix(n, 0)
	}
	return time.Time{}
}
