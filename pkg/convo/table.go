// Package convo implements the conversation state machine that drives the
// citizen chat flow.
//
// The machine is split in two layers. Decide is a pure transition table:
// given the current step, a normalized token, and guard bits, it returns the
// next step and the action the turn must perform. The Engine then executes
// the action, calling AI collaborators and assembling the ordered effect
// list for the dispatcher. Keeping Decide pure makes every transition
// enumerable and table-testable without mocks.
package convo

import "vozlocal/pkg/proto"

// Action is what a decided transition requires the engine to do.
type Action int

const (
	// ActionWelcome resets to Idle and sends the welcome menu.
	ActionWelcome Action = iota
	// ActionViewBill fetches and summarizes a bill, then offers audio.
	ActionViewBill
	// ActionSummaryAudio synthesizes the pending summary as a voice note.
	ActionSummaryAudio
	// ActionPromptQuestion asks the citizen to type their question.
	ActionPromptQuestion
	// ActionAnswerQuestion answers the question against the pending summary
	// and moves on to the opinion prompt.
	ActionAnswerQuestion
	// ActionNeedBillFirst tells the citizen to view a bill before asking.
	ActionNeedBillFirst
	// ActionOpinionFor records an in-favor opinion and resets.
	ActionOpinionFor
	// ActionOpinionAgainst records an against opinion and resets.
	ActionOpinionAgainst
	// ActionOpinionSkip records nothing and resets.
	ActionOpinionSkip
	// ActionAreaMenu sends (or resends) the curation area menu.
	ActionAreaMenu
	// ActionCuration fetches curated bills for the selected area.
	ActionCuration
	// ActionBatchNarration synthesizes the pending batch and resets.
	ActionBatchNarration
	// ActionBatchDecline acknowledges, clears the batch, and resets.
	ActionBatchDecline
	// ActionRepromptAudioChoice resends the audio-choice prompt.
	ActionRepromptAudioChoice
	// ActionSubmitProposal classifies and persists a one-shot proposal.
	ActionSubmitProposal
)

// Guards are the session facts the transition table may branch on. Each
// step only ever reads the guard it owns.
type Guards struct {
	HasSummary bool
	HasBatch   bool
}

// Decision is the outcome of the pure transition layer.
type Decision struct {
	Next      proto.SessionStep
	Action    Action
	AreaTheme proto.Theme // selected curation area, ActionCuration only
	AllAreas  bool        // curation across every area
}

// Decide maps (step, token, guards) to the next step and required action.
// Every step and token kind is covered; unmapped input never falls through
// undefined, it re-prompts.
func Decide(step proto.SessionStep, tok proto.Token, g Guards) Decision {
	// A greeting interrupts any flow and returns to the menu.
	if tok.Kind == proto.TokenGreeting {
		return Decision{Next: proto.StepIdle, Action: ActionWelcome}
	}

	switch step {
	case proto.StepIdle:
		return decideIdle(tok)
	case proto.StepAwaitingQuestion:
		return decideAwaitingQuestion(tok, g)
	case proto.StepAwaitingOpinion:
		return decideAwaitingOpinion(tok)
	case proto.StepAwaitingAreaSelection:
		return decideAwaitingAreaSelection(tok)
	case proto.StepAwaitingAudioChoice:
		return decideAwaitingAudioChoice(tok, g)
	}
	// Unknown step, treat as a fresh conversation.
	return Decision{Next: proto.StepIdle, Action: ActionWelcome}
}

func decideIdle(tok proto.Token) Decision {
	switch tok.Kind {
	case proto.TokenOption:
		switch tok.Option {
		case 1:
			return Decision{Next: proto.StepAwaitingQuestion, Action: ActionViewBill}
		case 4:
			return Decision{Next: proto.StepAwaitingAreaSelection, Action: ActionAreaMenu}
		}
	case proto.TokenProposal:
		return Decision{Next: proto.StepIdle, Action: ActionSubmitProposal}
	}
	return Decision{Next: proto.StepIdle, Action: ActionWelcome}
}

func decideAwaitingQuestion(tok proto.Token, g Guards) Decision {
	switch tok.Kind {
	case proto.TokenOption:
		if tok.Option == 1 && g.HasSummary {
			return Decision{Next: proto.StepAwaitingQuestion, Action: ActionSummaryAudio}
		}
		if tok.Option == 2 {
			return Decision{Next: proto.StepAwaitingQuestion, Action: ActionPromptQuestion}
		}
	case proto.TokenYes:
		if g.HasSummary {
			return Decision{Next: proto.StepAwaitingQuestion, Action: ActionSummaryAudio}
		}
	case proto.TokenNo:
		return Decision{Next: proto.StepAwaitingQuestion, Action: ActionPromptQuestion}
	}

	// Anything else is the citizen's question.
	if !g.HasSummary {
		return Decision{Next: proto.StepAwaitingQuestion, Action: ActionNeedBillFirst}
	}
	return Decision{Next: proto.StepAwaitingOpinion, Action: ActionAnswerQuestion}
}

func decideAwaitingOpinion(tok proto.Token) Decision {
	switch tok.Kind {
	case proto.TokenFor, proto.TokenYes:
		return Decision{Next: proto.StepIdle, Action: ActionOpinionFor}
	case proto.TokenAgainst, proto.TokenNo:
		return Decision{Next: proto.StepIdle, Action: ActionOpinionAgainst}
	case proto.TokenOption:
		switch tok.Option {
		case 1:
			return Decision{Next: proto.StepIdle, Action: ActionOpinionFor}
		case 2:
			return Decision{Next: proto.StepIdle, Action: ActionOpinionAgainst}
		}
	}
	return Decision{Next: proto.StepIdle, Action: ActionOpinionSkip}
}

func decideAwaitingAreaSelection(tok proto.Token) Decision {
	if tok.Kind == proto.TokenOption {
		areas := proto.CurationAreas()
		if tok.Option >= 1 && tok.Option <= len(areas) {
			return Decision{
				Next:      proto.StepAwaitingAudioChoice,
				Action:    ActionCuration,
				AreaTheme: areas[tok.Option-1],
			}
		}
		if tok.Option == len(areas)+1 {
			return Decision{Next: proto.StepAwaitingAudioChoice, Action: ActionCuration, AllAreas: true}
		}
	}
	return Decision{Next: proto.StepAwaitingAreaSelection, Action: ActionAreaMenu}
}

func decideAwaitingAudioChoice(tok proto.Token, g Guards) Decision {
	switch tok.Kind {
	case proto.TokenYes:
		if g.HasBatch {
			return Decision{Next: proto.StepIdle, Action: ActionBatchNarration}
		}
	case proto.TokenNo:
		return Decision{Next: proto.StepIdle, Action: ActionBatchDecline}
	case proto.TokenOption:
		switch tok.Option {
		case 1:
			if g.HasBatch {
				return Decision{Next: proto.StepIdle, Action: ActionBatchNarration}
			}
		case 2:
			return Decision{Next: proto.StepIdle, Action: ActionBatchDecline}
		}
	}
	return Decision{Next: proto.StepAwaitingAudioChoice, Action: ActionRepromptAudioChoice}
}
