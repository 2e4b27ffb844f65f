// Package effect separates deciding a conversation turn from executing its
// side effects. The state machine emits an ordered effect list; the
// dispatcher executes it against a Runtime. This keeps transition logic pure
// and unit-testable without mocking the transport.
package effect

import (
	"context"

	"vozlocal/pkg/persistence"
)

// Effect is one executable side effect of a conversation turn.
type Effect interface {
	// Execute performs the effect using the runtime capabilities.
	Execute(ctx context.Context, runtime Runtime) error

	// Type returns a string identifier for logging.
	Type() string
}

// Runtime is the capability surface effects run against, composed of
// smaller capability interfaces.
type Runtime interface {
	Messaging
	Records
	Logging
}

// Messaging sends outbound messages on the chat channel.
type Messaging interface {
	SendText(ctx context.Context, canonicalAddress, body string) error
	SendAudio(ctx context.Context, canonicalAddress string, audio []byte) error
}

// Records appends interaction and proposal records.
type Records interface {
	InsertInteraction(in *persistence.Interaction) error
	InsertProposal(p *persistence.Proposal) error
}

// Logging provides structured logging to effects.
type Logging interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ExecuteAll runs effects in order, stopping at the first failure and
// returning it with the index of the failed effect. Effects after the
// failure are not run: a confirmation message queued behind a failed
// persist must never be sent.
func ExecuteAll(ctx context.Context, runtime Runtime, effects []Effect) (int, error) {
	for i, eff := range effects {
		if err := eff.Execute(ctx, runtime); err != nil {
			return i, err
		}
	}
	return len(effects), nil
}
