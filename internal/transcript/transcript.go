// Package transcript writes per-session NDJSON conversation logs. Logging
// is asynchronous and best-effort: a full queue drops events rather than
// stalling the decision path.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Event is one logged conversation entry.
type Event struct {
	Timestamp string         `json:"ts"`
	SessionID string         `json:"session_id"`
	Direction string         `json:"direction"` // inbound (counterpart) | outbound (agent)
	EventType string         `json:"event_type"`
	Text      string         `json:"text"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Logger records conversation events.
type Logger interface {
	Log(Event)
	Close() error
}

// Noop discards all events.
type Noop struct{}

func (Noop) Log(Event)    {}
func (Noop) Close() error { return nil }

// Config controls the NDJSON writer.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Writer is the file-backed Logger. One goroutine drains the queue and
// appends to <dir>/<session_id>.ndjson.
type Writer struct {
	dir   string
	queue chan Event
	done  chan struct{}
	once  sync.Once
	log   *slog.Logger
}

// New creates a transcript logger. When disabled it returns a Noop.
func New(cfg Config, log *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("transcript dir is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	w := &Writer{
		dir:   cfg.Dir,
		queue: make(chan Event, cfg.QueueSize),
		done:  make(chan struct{}),
		log:   log,
	}
	go w.drain()
	return w, nil
}

// Log enqueues an event without blocking. Events are dropped when the
// queue is full.
func (w *Writer) Log(ev Event) {
	select {
	case w.queue <- ev:
	default:
		w.log.Warn("transcript queue full, dropping event", "session_id", ev.SessionID)
	}
}

// Close stops the drain goroutine after flushing queued events.
func (w *Writer) Close() error {
	w.once.Do(func() {
		close(w.queue)
		<-w.done
	})
	return nil
}

func (w *Writer) drain() {
	defer close(w.done)
	for ev := range w.queue {
		if err := w.append(ev); err != nil {
			w.log.Warn("failed to write transcript event", "session_id", ev.SessionID, "error", err)
		}
	}
}

func (w *Writer) append(ev Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	path := filepath.Join(w.dir, sanitizeName(ev.SessionID)+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write transcript line: %w", err)
	}
	return nil
}

// sanitizeName keeps session-derived file names flat and safe.
func sanitizeName(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "session"
	}
	return string(out)
}
