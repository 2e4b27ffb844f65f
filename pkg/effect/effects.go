package effect

import (
	"context"
	"fmt"

	"vozlocal/pkg/persistence"
)

// SendText delivers one text message.
type SendText struct {
	To   string
	Body string
}

// Execute sends the message.
func (e *SendText) Execute(ctx context.Context, runtime Runtime) error {
	if err := runtime.SendText(ctx, e.To, e.Body); err != nil {
		return fmt.Errorf("send text to %s: %w", e.To, err)
	}
	return nil
}

// Type identifies the effect.
func (e *SendText) Type() string { return "send_text" }

// SendAudio delivers one synthesized voice note.
type SendAudio struct {
	To    string
	Audio []byte
}

// Execute sends the audio.
func (e *SendAudio) Execute(ctx context.Context, runtime Runtime) error {
	if err := runtime.SendAudio(ctx, e.To, e.Audio); err != nil {
		return fmt.Errorf("send audio to %s: %w", e.To, err)
	}
	return nil
}

// Type identifies the effect.
func (e *SendAudio) Type() string { return "send_audio" }

// RecordInteraction appends one interaction record.
type RecordInteraction struct {
	Interaction *persistence.Interaction
}

// Execute persists the interaction.
func (e *RecordInteraction) Execute(_ context.Context, runtime Runtime) error {
	return runtime.InsertInteraction(e.Interaction)
}

// Type identifies the effect.
func (e *RecordInteraction) Type() string { return "record_interaction" }

// RecordProposal appends one classified proposal record.
type RecordProposal struct {
	Proposal *persistence.Proposal
}

// Execute persists the proposal.
func (e *RecordProposal) Execute(_ context.Context, runtime Runtime) error {
	return runtime.InsertProposal(e.Proposal)
}

// Type identifies the effect.
func (e *RecordProposal) Type() string { return "record_proposal" }
