// Package dialog generates the agent's side of a live phone conversation.
//
// A Generator produces one utterance at a time: the opening line spoken when
// the call connects, and a reply after each transcribed counterparty turn.
// The bundled Client works against any OpenAI-compatible chat-completions API.
package dialog

import "context"

// Role identifies who spoke a conversation turn.
type Role string

const (
	// RoleAgent is the automated agent on this side of the call.
	RoleAgent Role = "agent"

	// RoleCounterparty is the human answering the call.
	RoleCounterparty Role = "counterparty"
)

// Turn is one unit of the conversation. Turns are append-only and never
// edited after creation: the ordered list is the ground truth handed to the
// generator as context on every subsequent turn.
type Turn struct {
	Role Role
	Text string
}

// CallInfo describes what the agent is trying to accomplish on this call.
// It is a read-only snapshot of the parameters supplied when the media
// stream started and is immutable for the lifetime of the session.
type CallInfo struct {
	// ProviderName is the business being called.
	ProviderName string

	// Service is what the caller wants to book.
	Service string

	// UserName is the caller the agent speaks on behalf of.
	UserName string

	// Purpose is the booking intent (e.g. "new_appointment", "reschedule").
	Purpose string

	// Details is free-text context supplied by the caller.
	Details string

	// TimePreference is the caller's requested time window.
	TimePreference string
}

// FallbackLine is spoken when generation fails or returns nothing usable.
// Better a stalling phrase than dead air on a live call.
const FallbackLine = "Could you please repeat that?"

// Generator produces agent utterances.
type Generator interface {
	// OpeningLine generates the agent's first utterance, spoken proactively
	// when the call connects, before any counterparty audio arrives.
	OpeningLine(ctx context.Context, info CallInfo) (string, error)

	// Reply generates the agent's next utterance given the full ordered
	// turn history.
	Reply(ctx context.Context, info CallInfo, turns []Turn) (string, error)
}
