// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/fraudguard/honeytrap/internal/domain"
)

// Repository defines the interface for persisting conversation sessions.
type Repository interface {
	// GetSession retrieves a session by identifier. Returns (nil, nil)
	// when the session does not exist.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// UpsertSession creates or updates a session record. The engine calls
	// this exactly once per processed turn.
	UpsertSession(ctx context.Context, session *domain.Session) error

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, sessionID string) error

	// CleanupExpiredSessions removes sessions idle longer than ttl and
	// returns the number deleted.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
