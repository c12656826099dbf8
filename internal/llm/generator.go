// Package llm defines the text-generation capability consumed by the
// decision engine, and its Gemini implementation. The engine treats the
// capability as untrusted advice: it may improve reply text but never
// decides termination.
package llm

import (
	"context"

	"github.com/fraudguard/honeytrap/internal/domain"
	"github.com/fraudguard/honeytrap/internal/persona"
)

// GenerateRequest carries everything the capability may see: the locked
// persona, full message history, cumulative artifacts and the turn count.
type GenerateRequest struct {
	SessionID string
	Persona   persona.Persona
	History   []domain.Message
	Artifacts domain.Intelligence
	TurnCount int
}

// Suggestion is the capability's proposal for one turn. The engine
// reconciles SuggestedStatus against its own enforced status.
type Suggestion struct {
	ReplyText       string
	SuggestedStatus domain.Status
	ScamSuspected   bool
	Notes           string
}

// Generator is the single-method, fallible, time-bounded capability
// interface. Implementations must respect the context deadline; callers
// treat any error (including timeout) as a generation failure and recover
// via the fallback policy.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Suggestion, error)
}
