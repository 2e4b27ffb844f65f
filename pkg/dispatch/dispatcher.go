// Package dispatch routes inbound chat events into conversation turns.
//
// Events for the same user key run strictly in order on a per-key worker;
// events for different keys run concurrently. Identity failures drop the
// event silently (fail-closed); AI failures apologize and keep the session
// where it was; persistence failures abort the turn before any confirmation
// is sent.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vozlocal/pkg/convo"
	"vozlocal/pkg/effect"
	"vozlocal/pkg/eventlog"
	"vozlocal/pkg/identity"
	"vozlocal/pkg/logx"
	"vozlocal/pkg/metrics"
	"vozlocal/pkg/persistence"
	"vozlocal/pkg/proto"
	"vozlocal/pkg/session"
	"vozlocal/pkg/transport"
)

const msgTurnFailure = "Desculpe, tive um problema para processar sua mensagem. Pode tentar de novo?"

// Drop reasons for the events-dropped counter.
const (
	dropGroupAddress   = "group_address"
	dropUnresolved     = "unresolved_alias"
	dropInvalidAddress = "invalid_address"
	dropQueueFull      = "queue_full"
)

// Transcriber converts a voice note to text before normalization.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Citizens is the identity persistence surface of a turn.
type Citizens interface {
	GetOrCreateCitizen(userKeyHash, displayName, city, inclusionGroup string) (*persistence.Citizen, error)
}

// Dispatcher owns the event loop and the per-key workers.
type Dispatcher struct {
	transport   transport.Transport
	media       transport.MediaFetcher // nil when the transport has no media
	resolver    *identity.Resolver
	sessions    *session.Store
	engine      *convo.Engine
	transcriber Transcriber
	citizens    Citizens
	records     effect.Records
	events      *eventlog.Writer // optional
	recorder    *metrics.Recorder
	logger      *logx.Logger

	queueSize int

	mu      sync.Mutex
	workers map[string]chan proto.InboundEvent
	wg      sync.WaitGroup
}

// Config carries the dispatcher's collaborators.
type Config struct {
	Transport   transport.Transport
	Resolver    *identity.Resolver
	Sessions    *session.Store
	Engine      *convo.Engine
	Transcriber Transcriber
	Citizens    Citizens
	Records     effect.Records
	Events      *eventlog.Writer
	Recorder    *metrics.Recorder
	QueueSize   int
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	media, _ := cfg.Transport.(transport.MediaFetcher)
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Dispatcher{
		transport:   cfg.Transport,
		media:       media,
		resolver:    cfg.Resolver,
		sessions:    cfg.Sessions,
		engine:      cfg.Engine,
		transcriber: cfg.Transcriber,
		citizens:    cfg.Citizens,
		records:     cfg.Records,
		events:      cfg.Events,
		recorder:    cfg.Recorder,
		logger:      logx.NewLogger("dispatch"),
		queueSize:   queueSize,
		workers:     make(map[string]chan proto.InboundEvent),
	}
}

// Run consumes inbound events until the stream closes or ctx is canceled,
// then drains all per-key workers before returning.
func (d *Dispatcher) Run(ctx context.Context, receiver transport.Receiver) error {
	defer d.drain()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-receiver.Events():
			if !ok {
				return nil
			}
			d.route(ctx, ev)
		}
	}
}

// route resolves identity once and hands the event to the key's worker.
func (d *Dispatcher) route(ctx context.Context, ev proto.InboundEvent) {
	d.recorder.EventReceived(ev.HasAudio())

	resolveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	id, err := d.resolver.Resolve(resolveCtx, ev.RawAddress)
	cancel()
	if err != nil {
		d.recorder.EventDropped(dropReason(err))
		d.logger.Debug("dropping event from %s: %v", ev.RawAddress, err)
		return
	}

	queue := d.workerFor(ctx, id)
	select {
	case queue <- ev:
	default:
		// Backpressure: a citizen flooding their own queue loses the
		// overflow rather than stalling everyone else.
		d.recorder.EventDropped(dropQueueFull)
		d.logger.Warn("queue full for user %s, dropping event", identity.HashKey(id.UserKey)[:8])
	}
}

func (d *Dispatcher) workerFor(ctx context.Context, id identity.Identity) chan proto.InboundEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	queue, ok := d.workers[id.UserKey]
	if !ok {
		queue = make(chan proto.InboundEvent, d.queueSize)
		d.workers[id.UserKey] = queue
		d.wg.Add(1)
		go d.workerLoop(ctx, id, queue)
	}
	return queue
}

// workerLoop processes one user's events strictly in order.
func (d *Dispatcher) workerLoop(ctx context.Context, id identity.Identity, queue chan proto.InboundEvent) {
	defer d.wg.Done()
	for ev := range queue {
		d.processTurn(ctx, id, &ev)
		d.recorder.SetActiveSessions(d.sessions.Len())
	}
}

func (d *Dispatcher) drain() {
	d.mu.Lock()
	for _, queue := range d.workers {
		close(queue)
	}
	d.workers = make(map[string]chan proto.InboundEvent)
	d.mu.Unlock()
	d.wg.Wait()
}

// processTurn runs one conversation turn end to end.
func (d *Dispatcher) processTurn(ctx context.Context, id identity.Identity, ev *proto.InboundEvent) {
	keyHash := identity.HashKey(id.UserKey)

	text := ev.Text
	contentKind := proto.ContentText
	if ev.HasAudio() {
		transcribed, err := d.transcribeEvent(ctx, ev)
		if err != nil {
			d.logger.Warn("transcription failed for %s: %v", keyHash[:8], err)
			d.apologize(ctx, id)
			d.recorder.TurnProcessed(d.currentStep(id.UserKey), false)
			return
		}
		text = transcribed
		contentKind = proto.ContentTranscribedAudio
	}

	citizen, err := d.citizens.GetOrCreateCitizen(keyHash, ev.DisplayName, "", "")
	if err != nil {
		d.logger.Error("get-or-create citizen %s: %v", keyHash[:8], err)
		d.apologize(ctx, id)
		d.recorder.TurnProcessed(d.currentStep(id.UserKey), false)
		return
	}

	var fromStep, toStep proto.SessionStep
	var tokenKind proto.TokenKind
	var outbound int

	turnErr := d.sessions.Do(id.UserKey, func(sess *session.Session) error {
		fromStep = sess.Step

		tok := proto.Normalize(text)
		// A transcribed voice note with no menu meaning is the citizen
		// telling their idea: treat it as a proposal submission.
		if contentKind == proto.ContentTranscribedAudio && sess.Step == proto.StepIdle && tok.Kind == proto.TokenFreeText {
			tok = proto.Token{Kind: proto.TokenProposal, Text: tok.Text}
		}
		tokenKind = tok.Kind

		turn := &convo.Turn{
			UserKey:          id.UserKey,
			CanonicalAddress: id.Canonical,
			CitizenID:        citizen.ID,
			CitizenCity:      citizen.City,
			CitizenGroup:     citizen.InclusionGroup,
			DisplayName:      citizen.DisplayName,
			Token:            tok,
			ContentKind:      contentKind,
		}

		effects, err := d.engine.Apply(ctx, turn, sess)
		if err != nil {
			return err
		}

		runtime := &turnRuntime{dispatcher: d}
		executed, err := effect.ExecuteAll(ctx, runtime, effects)
		outbound = executed
		if err != nil {
			return err
		}
		toStep = sess.Step
		return nil
	})

	if turnErr != nil {
		d.logger.Warn("turn failed for %s at step %s: %v", keyHash[:8], fromStep, turnErr)
		d.apologize(ctx, id)
		toStep = fromStep
	}
	d.recorder.TurnProcessed(toStep, turnErr == nil)
	d.logTurn(keyHash, fromStep, toStep, tokenKind, outbound, turnErr)
}

func (d *Dispatcher) transcribeEvent(ctx context.Context, ev *proto.InboundEvent) (string, error) {
	if d.media == nil {
		return "", fmt.Errorf("transport cannot fetch media")
	}
	if d.transcriber == nil {
		return "", fmt.Errorf("no transcription backend configured")
	}
	audio, err := d.media.FetchAudio(ctx, ev.AudioRef)
	if err != nil {
		return "", fmt.Errorf("fetch audio %s: %w", ev.AudioRef, err)
	}
	return d.transcriber.Transcribe(ctx, audio)
}

// apologize tells the citizen the turn failed. Best effort; the session was
// already rolled back.
func (d *Dispatcher) apologize(ctx context.Context, id identity.Identity) {
	if err := d.transport.SendText(ctx, id.Canonical, msgTurnFailure); err != nil {
		d.logger.Error("send apology to %s: %v", id.Canonical, err)
		return
	}
	d.recorder.OutboundSent(false)
}

func (d *Dispatcher) currentStep(userKey string) proto.SessionStep {
	if sess, ok := d.sessions.Snapshot(userKey); ok {
		return sess.Step
	}
	return proto.StepIdle
}

func (d *Dispatcher) logTurn(keyHash string, from, to proto.SessionStep, kind proto.TokenKind, outbound int, turnErr error) {
	if d.events == nil {
		return
	}
	ev := &proto.TurnEvent{
		Timestamp:   time.Now().UTC(),
		UserKeyHash: keyHash,
		FromStep:    from,
		ToStep:      to,
		TokenKind:   kind,
		Outbound:    outbound,
	}
	if turnErr != nil {
		ev.Err = turnErr.Error()
	}
	if err := d.events.WriteTurn(ev); err != nil {
		d.logger.Warn("write turn event: %v", err)
	}
}

// turnRuntime adapts the dispatcher's collaborators to the effect runtime.
type turnRuntime struct {
	dispatcher *Dispatcher
}

func (r *turnRuntime) SendText(ctx context.Context, to, body string) error {
	if err := r.dispatcher.transport.SendText(ctx, to, body); err != nil {
		return err
	}
	r.dispatcher.recorder.OutboundSent(false)
	return nil
}

func (r *turnRuntime) SendAudio(ctx context.Context, to string, audio []byte) error {
	if err := r.dispatcher.transport.SendAudio(ctx, to, audio); err != nil {
		return err
	}
	r.dispatcher.recorder.OutboundSent(true)
	return nil
}

func (r *turnRuntime) InsertInteraction(in *persistence.Interaction) error {
	return r.dispatcher.records.InsertInteraction(in)
}

func (r *turnRuntime) InsertProposal(p *persistence.Proposal) error {
	if err := r.dispatcher.records.InsertProposal(p); err != nil {
		return err
	}
	r.dispatcher.recorder.ProposalRecorded(p.PrimaryTheme)
	if p.NeedsReview {
		r.dispatcher.recorder.ClassificationFallback()
	}
	return nil
}

func (r *turnRuntime) Info(msg string, args ...any)  { r.dispatcher.logger.Info(msg, args...) }
func (r *turnRuntime) Error(msg string, args ...any) { r.dispatcher.logger.Error(msg, args...) }
func (r *turnRuntime) Debug(msg string, args ...any) { r.dispatcher.logger.Debug(msg, args...) }

func dropReason(err error) string {
	switch {
	case errors.Is(err, identity.ErrGroupAddress):
		return dropGroupAddress
	case errors.Is(err, identity.ErrUnresolved):
		return dropUnresolved
	default:
		return dropInvalidAddress
	}
}
