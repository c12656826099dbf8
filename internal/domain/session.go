// Package domain defines the core entities shared across the service.
package domain

import (
	"time"
)

// Sender identifies who authored a message within a session.
type Sender string

const (
	// SenderAgent marks messages written by the honeypot agent.
	SenderAgent Sender = "agent"
	// SenderCounterpart marks messages written by the suspected scammer.
	SenderCounterpart Sender = "scammer"
)

// Message is an immutable entry in a session's exchange history.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Category names one artifact class tracked across a session.
type Category string

const (
	CategoryUPI     Category = "upi"
	CategoryBank    Category = "bank_account"
	CategoryLink    Category = "link"
	CategoryPhone   Category = "phone_number"
	CategoryKeyword Category = "keyword"
)

// Strong reports whether the category is decisive evidence on its own.
// Phone numbers and keywords are supporting evidence only.
func (c Category) Strong() bool {
	switch c {
	case CategoryUPI, CategoryBank, CategoryLink:
		return true
	}
	return false
}

// Categories lists every artifact category in priority order. Higher
// priority categories claim ambiguous matches first.
var Categories = []Category{CategoryUPI, CategoryBank, CategoryLink, CategoryPhone, CategoryKeyword}

// ArtifactSet maps normalized artifact values to the turn index on which
// each value was first seen. Entries are append-only.
type ArtifactSet map[Category]map[string]int

// NewArtifactSet returns an empty set with all categories initialized.
func NewArtifactSet() ArtifactSet {
	set := make(ArtifactSet, len(Categories))
	for _, c := range Categories {
		set[c] = make(map[string]int)
	}
	return set
}

// Values returns the unique values of a category ordered by first-seen turn,
// breaking ties lexicographically so output is stable.
func (a ArtifactSet) Values(c Category) []string {
	members := a[c]
	out := make([]string, 0, len(members))
	for v := range members {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			vi, vj := out[j], out[j-1]
			if members[vi] < members[vj] || (members[vi] == members[vj] && vi < vj) {
				out[j], out[j-1] = vj, vi
			} else {
				break
			}
		}
	}
	return out
}

// Confidence is the running scam-confidence level of a session. It only
// ever increases.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "none"
	}
}

// Session is the per-conversation state owned by the decision engine.
type Session struct {
	ID          string
	Persona     string // empty until locked on the first engaged turn
	Messages    []Message
	Artifacts   ArtifactSet
	Confidence  Confidence
	TurnCount   int // counterpart messages processed
	Terminal    bool
	FinalJSON   string // serialized final Decision, replayed after terminal
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewSession creates a fresh session for an unseen identifier.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:          id,
		Artifacts:   NewArtifactSet(),
		FirstSeenAt: now,
		LastSeenAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy. The engine mutates a clone per turn and
// commits it atomically, so a failed turn never leaves partial state.
func (s *Session) Clone() *Session {
	dup := *s
	dup.Messages = make([]Message, len(s.Messages))
	copy(dup.Messages, s.Messages)
	dup.Artifacts = NewArtifactSet()
	for cat, members := range s.Artifacts {
		dst := dup.Artifacts[cat]
		if dst == nil {
			dst = make(map[string]int, len(members))
			dup.Artifacts[cat] = dst
		}
		for v, turn := range members {
			dst[v] = turn
		}
	}
	return &dup
}

// RaiseConfidence applies the monotonicity rule: confidence never drops.
func (s *Session) RaiseConfidence(level Confidence) {
	if level > s.Confidence {
		s.Confidence = level
	}
}
