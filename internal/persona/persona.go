// Package persona holds the simulated-human catalog and the session
// persona lock. The selector reads only the session identifier, so message
// content can never influence which persona a session gets, or change it
// later.
package persona

import (
	"hash/fnv"

	"github.com/fraudguard/honeytrap/internal/domain"
)

// Persona describes one simulated human from the catalog.
type Persona struct {
	Name   string   `yaml:"name"`
	Traits string   `yaml:"traits"` // behavioral hint forwarded to the generator
	Stalls []string `yaml:"stalls"` // short non-revealing replies used when generation fails
}

// DefaultCatalog returns the built-in personas. Deployments can replace
// the catalog via the policy file; it is loaded once at startup and never
// mutated afterward.
func DefaultCatalog() []Persona {
	return []Persona{
		{
			Name:   "Confused Senior",
			Traits: "elderly, polite, easily confused by technology, asks things to be repeated",
			Stalls: []string{
				"Sorry beta, I did not understand. Can you say that again?",
				"My phone is acting up, what did you say?",
				"One minute, let me find my glasses.",
			},
		},
		{
			Name:   "Broke Student",
			Traits: "short on money, distracted, replies in short informal sentences",
			Stalls: []string{
				"wait what? say again",
				"hang on, in class rn",
				"sorry my net is bad, repeat?",
			},
		},
		{
			Name:   "Busy Professional",
			Traits: "impatient, formal, always in a meeting, wants things in writing",
			Stalls: []string{
				"I'm in a meeting, can you resend that?",
				"Sorry, can you repeat that? Bad reception here.",
				"Send me the details again, I didn't catch that.",
			},
		},
		{
			Name:   "Strict Lawyer",
			Traits: "skeptical, procedural, demands verification and documentation",
			Stalls: []string{
				"Could you repeat that for my records?",
				"I did not receive that clearly. State it again.",
			},
		},
		{
			Name:   "Angry Customer",
			Traits: "irritable, suspicious of being charged, complains about service",
			Stalls: []string{
				"What? I can't hear you, this network is useless.",
				"Say that again, and slowly this time.",
			},
		},
	}
}

// Selector picks and locks a persona per session.
type Selector struct {
	catalog []Persona
	byName  map[string]Persona
}

// NewSelector builds a selector over the given catalog. An empty catalog
// falls back to the defaults.
func NewSelector(catalog []Persona) *Selector {
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	byName := make(map[string]Persona, len(catalog))
	for _, p := range catalog {
		byName[p.Name] = p
	}
	return &Selector{catalog: catalog, byName: byName}
}

// SelectOrGet returns the session's locked persona, locking one first if
// the session has none. Selection hashes the session identifier over the
// catalog: spread across sessions, reproducible within one.
func (s *Selector) SelectOrGet(sess *domain.Session) Persona {
	if sess.Persona != "" {
		if p, ok := s.byName[sess.Persona]; ok {
			return p
		}
		// Locked name no longer in the catalog (catalog changed between
		// restarts). Honor the lock with a bare persona.
		return Persona{Name: sess.Persona}
	}
	h := fnv.New32a()
	h.Write([]byte(sess.ID))
	p := s.catalog[h.Sum32()%uint32(len(s.catalog))]
	sess.Persona = p.Name
	return p
}

// Get looks up a persona by name.
func (s *Selector) Get(name string) (Persona, bool) {
	p, ok := s.byName[name]
	return p, ok
}
