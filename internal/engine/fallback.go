package engine

import (
	"github.com/fraudguard/honeytrap/internal/persona"
)

// Fallback replies keep the response path alive when the generation
// capability is unavailable: short, generic, persona-consistent stalls
// that reveal nothing. The engine's availability must never depend on the
// generator's.

var genericStalls = []string{
	"Sorry, can you repeat that?",
	"I didn't get that, say it again?",
	"Hold on, I'll check and get back to you.",
}

// stallReply picks a stall for the persona, rotating by turn so repeated
// failures don't produce identical replies back to back.
func stallReply(p persona.Persona, turn int) string {
	stalls := p.Stalls
	if len(stalls) == 0 {
		stalls = genericStalls
	}
	if turn < 0 {
		turn = 0
	}
	return stalls[turn%len(stalls)]
}

// disengageReply is used when a turn is forced to FINISHED but no
// generated reply is available. It reads like a natural human exit.
func disengageReply(p persona.Persona) string {
	switch p.Name {
	case "Confused Senior":
		return "My grandson is here now, he will handle this. Goodbye."
	case "Broke Student":
		return "gtg, class started. later"
	case "Busy Professional":
		return "I have to join a call. I'll look into this later."
	case "Strict Lawyer":
		return "I will verify this through official channels. Do not contact me again."
	case "Angry Customer":
		return "I'm done with this call. I'll go to the branch myself."
	}
	return "I'm a bit busy right now. I'll check this later or visit the branch directly."
}
