// Package proto defines the shared vocabulary of the pipeline: inbound and
// outbound chat events, conversation steps, semantic input tokens, and the
// closed theme taxonomy. Every other package speaks in these types.
package proto

import "time"

// InboundEvent is one message received from the chat transport.
// RawAddress may be a canonical phone-derived address or an opaque
// session-scoped alias; the identity resolver decides which.
type InboundEvent struct {
	ReceivedAt  time.Time `json:"received_at"`
	RawAddress  string    `json:"raw_address"`
	Text        string    `json:"text,omitempty"`
	AudioRef    string    `json:"audio_ref,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
}

// HasAudio reports whether the event carries a voice note instead of text.
func (e *InboundEvent) HasAudio() bool {
	return e.AudioRef != ""
}

// SessionStep identifies where a citizen is in the conversation flow.
type SessionStep string

const (
	StepIdle                  SessionStep = "IDLE"
	StepAwaitingQuestion      SessionStep = "AWAITING_QUESTION"
	StepAwaitingOpinion       SessionStep = "AWAITING_OPINION"
	StepAwaitingAreaSelection SessionStep = "AWAITING_AREA_SELECTION"
	StepAwaitingAudioChoice   SessionStep = "AWAITING_AUDIO_CHOICE"
)

// String implements fmt.Stringer.
func (s SessionStep) String() string {
	return string(s)
}

// AllSteps returns every conversation step, used to verify transition
// coverage in tests.
func AllSteps() []SessionStep {
	return []SessionStep{
		StepIdle,
		StepAwaitingQuestion,
		StepAwaitingOpinion,
		StepAwaitingAreaSelection,
		StepAwaitingAudioChoice,
	}
}

// CurationItem is one curated bill entry held in a session's pending batch.
type CurationItem struct {
	BillID  string `json:"bill_id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}
