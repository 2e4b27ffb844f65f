package convo

import (
	"context"
	"errors"
	"fmt"

	"vozlocal/pkg/classify"
	"vozlocal/pkg/effect"
	"vozlocal/pkg/logx"
	"vozlocal/pkg/persistence"
	"vozlocal/pkg/proto"
	"vozlocal/pkg/session"
	"vozlocal/pkg/textbudget"
)

// AI is the collaborator surface the engine needs for a turn.
type AI interface {
	Summarize(ctx context.Context, text string) (string, error)
	Answer(ctx context.Context, question, billContext string) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Classifier tags proposal text with themes. It degrades instead of
// failing; the Result is always usable.
type Classifier interface {
	Classify(ctx context.Context, text string) (classify.Result, error)
}

// Bills is the read surface over stored legislative bills.
type Bills interface {
	RandomBillInTramitation() (*persistence.Bill, error)
	BillsByTheme(theme proto.Theme, limit int) ([]*persistence.Bill, error)
}

// Turn is one resolved inbound event ready for the state machine. Identity
// is resolved exactly once before the turn starts; everything downstream
// uses these fields, never the raw address.
type Turn struct {
	UserKey          string
	CanonicalAddress string
	CitizenID        string
	CitizenCity      string
	CitizenGroup     string
	DisplayName      string
	Token            proto.Token
	ContentKind      proto.ContentKind
}

// Engine executes decided transitions: it mutates the session, calls AI
// collaborators, and assembles the ordered effect list for the turn.
type Engine struct {
	ai         AI
	classifier Classifier
	bills      Bills
	logger     *logx.Logger

	narrationBudget int
	batchSize       int
}

// NewEngine assembles a conversation engine.
func NewEngine(aiSvc AI, classifier Classifier, bills Bills, narrationBudget, batchSize int) *Engine {
	return &Engine{
		ai:              aiSvc,
		classifier:      classifier,
		bills:           bills,
		logger:          logx.NewLogger("convo"),
		narrationBudget: narrationBudget,
		batchSize:       batchSize,
	}
}

// Apply runs one turn against the session. The session is mutated to its
// post-turn state and the ordered effects are returned; the caller executes
// them and rolls the session back if the turn fails.
func (e *Engine) Apply(ctx context.Context, turn *Turn, sess *session.Session) ([]effect.Effect, error) {
	guards := Guards{
		HasSummary: sess.PendingSummary != "",
		HasBatch:   len(sess.PendingBatch) > 0,
	}
	d := Decide(sess.Step, turn.Token, guards)

	switch d.Action {
	case ActionWelcome:
		sess.Reset()
		return []effect.Effect{text(turn, welcomeMessage(turn.DisplayName))}, nil

	case ActionViewBill:
		return e.viewBill(ctx, turn, sess)

	case ActionSummaryAudio:
		audio, err := e.ai.Synthesize(ctx, textbudget.TruncateChars(sess.PendingSummary, e.narrationBudget))
		if err != nil {
			return nil, fmt.Errorf("synthesize summary: %w", err)
		}
		sess.Step = d.Next
		return []effect.Effect{
			&effect.SendAudio{To: turn.CanonicalAddress, Audio: audio},
			text(turn, msgAskQuestion),
		}, nil

	case ActionPromptQuestion:
		sess.Step = d.Next
		return []effect.Effect{text(turn, msgAskQuestion)}, nil

	case ActionAnswerQuestion:
		answer, err := e.ai.Answer(ctx, turn.Token.Text, sess.PendingSummary)
		if err != nil {
			return nil, fmt.Errorf("answer question: %w", err)
		}
		sess.Step = d.Next
		return []effect.Effect{
			text(turn, answer),
			text(turn, msgOpinionPrompt),
		}, nil

	case ActionNeedBillFirst:
		sess.Step = d.Next
		return []effect.Effect{text(turn, msgNeedBillFirst)}, nil

	case ActionOpinionFor:
		return e.recordOpinion(turn, sess, proto.OpinionFor, msgOpinionForAck), nil

	case ActionOpinionAgainst:
		return e.recordOpinion(turn, sess, proto.OpinionAgainst, msgOpinionAgainstAck), nil

	case ActionOpinionSkip:
		sess.Reset()
		return []effect.Effect{text(turn, welcomeMessage(turn.DisplayName))}, nil

	case ActionAreaMenu:
		sess.Step = d.Next
		return []effect.Effect{text(turn, areaMenuMessage())}, nil

	case ActionCuration:
		return e.curate(turn, sess, d)

	case ActionBatchNarration:
		narration := textbudget.TruncateChars(batchNarration(sess.PendingBatch), e.narrationBudget)
		audio, err := e.ai.Synthesize(ctx, narration)
		if err != nil {
			return nil, fmt.Errorf("synthesize narration: %w", err)
		}
		sess.Reset()
		return []effect.Effect{&effect.SendAudio{To: turn.CanonicalAddress, Audio: audio}}, nil

	case ActionBatchDecline:
		sess.Reset()
		return []effect.Effect{text(turn, msgBatchDeclineAck)}, nil

	case ActionRepromptAudioChoice:
		sess.Step = d.Next
		return []effect.Effect{text(turn, msgAudioChoicePrompt)}, nil

	case ActionSubmitProposal:
		return e.submitProposal(ctx, turn, sess)
	}

	return nil, fmt.Errorf("unhandled action %d for step %s", d.Action, sess.Step)
}

// viewBill picks a random in-tramitation bill, summarizes it, and offers
// the summary as audio.
func (e *Engine) viewBill(ctx context.Context, turn *Turn, sess *session.Session) ([]effect.Effect, error) {
	bill, err := e.bills.RandomBillInTramitation()
	if errors.Is(err, persistence.ErrNotFound) {
		sess.Reset()
		return []effect.Effect{text(turn, msgNoBills)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch bill: %w", err)
	}

	source := bill.Title
	if bill.Summary != "" {
		source = bill.Title + "\n\n" + bill.Summary
	}
	summary, err := e.ai.Summarize(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("summarize bill %s: %w", bill.ID, err)
	}

	sess.Step = proto.StepAwaitingQuestion
	sess.PendingSummary = summary
	sess.PendingBillID = bill.ID

	return []effect.Effect{
		&effect.RecordInteraction{Interaction: &persistence.Interaction{
			CitizenID: turn.CitizenID,
			BillID:    bill.ID,
			Kind:      proto.InteractionView,
		}},
		text(turn, summary),
		text(turn, msgAudioChoicePrompt),
	}, nil
}

// recordOpinion persists the opinion before any confirmation is sent; a
// failed persist aborts the effect list so nothing false is confirmed.
func (e *Engine) recordOpinion(turn *Turn, sess *session.Session, value proto.OpinionValue, ack string) []effect.Effect {
	billID := sess.PendingBillID
	sess.Reset()
	return []effect.Effect{
		&effect.RecordInteraction{Interaction: &persistence.Interaction{
			CitizenID: turn.CitizenID,
			BillID:    billID,
			Kind:      proto.InteractionOpinion,
			Opinion:   value,
		}},
		text(turn, ack),
		text(turn, welcomeMessage(turn.DisplayName)),
	}
}

// curate fetches the batch for the selected area. An empty result goes back
// to Idle instead of waiting on an audio choice that has nothing to narrate.
func (e *Engine) curate(turn *Turn, sess *session.Session, d Decision) ([]effect.Effect, error) {
	theme := d.AreaTheme
	if d.AllAreas {
		theme = ""
	}
	bills, err := e.bills.BillsByTheme(theme, e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch curated bills: %w", err)
	}
	if len(bills) == 0 {
		sess.Reset()
		return []effect.Effect{text(turn, msgNothingFound)}, nil
	}

	items := make([]proto.CurationItem, 0, len(bills))
	for _, b := range bills {
		items = append(items, proto.CurationItem{BillID: b.ID, Title: b.Title, Summary: b.Summary})
	}
	sess.Step = d.Next
	sess.PendingBatch = items

	return []effect.Effect{
		text(turn, batchListMessage(items)),
		text(turn, msgAudioChoicePrompt),
	}, nil
}

// submitProposal is the one-shot flow: classify, persist, confirm, and stay
// in Idle. Classification failures degrade inside the classifier; they
// never block persistence.
func (e *Engine) submitProposal(ctx context.Context, turn *Turn, sess *session.Session) ([]effect.Effect, error) {
	result, err := e.classifier.Classify(ctx, turn.Token.Text)
	if err != nil {
		e.logger.Warn("classification degraded for citizen %s: %v", turn.CitizenID, err)
	}

	contentKind := turn.ContentKind
	if contentKind == "" {
		contentKind = proto.ContentText
	}

	sess.Step = proto.StepIdle
	return []effect.Effect{
		&effect.RecordProposal{Proposal: &persistence.Proposal{
			CitizenID:       turn.CitizenID,
			Content:         turn.Token.Text,
			ContentKind:     contentKind,
			City:            turn.CitizenCity,
			InclusionGroup:  turn.CitizenGroup,
			PrimaryTheme:    result.Primary,
			SecondaryThemes: result.Secondary,
			Confidence:      result.Confidence,
			NeedsReview:     result.NeedsReview,
		}},
		text(turn, msgProposalThanks),
	}, nil
}

func text(turn *Turn, body string) effect.Effect {
	return &effect.SendText{To: turn.CanonicalAddress, Body: body}
}
