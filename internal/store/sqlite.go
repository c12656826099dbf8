package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fraudguard/honeytrap/internal/domain"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // serializes session writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		persona TEXT,
		confidence INTEGER NOT NULL DEFAULT 0,
		turn_count INTEGER NOT NULL DEFAULT 0,
		terminal INTEGER NOT NULL DEFAULT 0,
		final_json TEXT,
		messages_json TEXT NOT NULL,
		artifacts_json TEXT NOT NULL,
		first_seen_at INTEGER NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSession retrieves a session by identifier.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	query := `
		SELECT session_id, persona, confidence, turn_count, terminal,
		       final_json, messages_json, artifacts_json,
		       first_seen_at, last_seen_at, created_at, updated_at
		FROM sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var (
		sess                                      domain.Session
		persona, finalJSON                        sql.NullString
		confidence, turnCount, terminal           int64
		messagesJSON, artifactsJSON               string
		firstSeen, lastSeen, createdAt, updatedAt int64
	)

	err := row.Scan(
		&sess.ID, &persona, &confidence, &turnCount, &terminal,
		&finalJSON, &messagesJSON, &artifactsJSON,
		&firstSeen, &lastSeen, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.Persona = persona.String
	sess.Confidence = domain.Confidence(confidence)
	sess.TurnCount = int(turnCount)
	sess.Terminal = terminal != 0
	sess.FinalJSON = finalJSON.String
	sess.FirstSeenAt = time.Unix(firstSeen, 0)
	sess.LastSeenAt = time.Unix(lastSeen, 0)
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)

	if err := json.Unmarshal([]byte(messagesJSON), &sess.Messages); err != nil {
		return nil, fmt.Errorf("decode session messages: %w", err)
	}
	sess.Artifacts = domain.NewArtifactSet()
	if err := json.Unmarshal([]byte(artifactsJSON), &sess.Artifacts); err != nil {
		return nil, fmt.Errorf("decode session artifacts: %w", err)
	}

	return &sess, nil
}

// UpsertSession creates or updates a session record.
func (s *SQLiteStore) UpsertSession(ctx context.Context, session *domain.Session) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	messagesJSON, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("encode session messages: %w", err)
	}
	artifactsJSON, err := json.Marshal(session.Artifacts)
	if err != nil {
		return fmt.Errorf("encode session artifacts: %w", err)
	}

	query := `
		INSERT INTO sessions (
			session_id, persona, confidence, turn_count, terminal,
			final_json, messages_json, artifacts_json,
			first_seen_at, last_seen_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			persona = excluded.persona,
			confidence = excluded.confidence,
			turn_count = excluded.turn_count,
			terminal = excluded.terminal,
			final_json = COALESCE(excluded.final_json, sessions.final_json),
			messages_json = excluded.messages_json,
			artifacts_json = excluded.artifacts_json,
			last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at`

	var persona interface{}
	if session.Persona != "" {
		persona = session.Persona
	}
	var finalJSON interface{}
	if session.FinalJSON != "" {
		finalJSON = session.FinalJSON
	}

	terminal := 0
	if session.Terminal {
		terminal = 1
	}

	_, err = s.db.ExecContext(ctx, query,
		session.ID, persona, int(session.Confidence), session.TurnCount, terminal,
		finalJSON, string(messagesJSON), string(artifactsJSON),
		session.FirstSeenAt.Unix(), session.LastSeenAt.Unix(),
		session.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes sessions idle longer than TTL.
func (s *SQLiteStore) CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
