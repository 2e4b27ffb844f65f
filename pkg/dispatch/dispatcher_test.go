package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vozlocal/pkg/classify"
	"vozlocal/pkg/convo"
	"vozlocal/pkg/identity"
	"vozlocal/pkg/metrics"
	"vozlocal/pkg/persistence"
	"vozlocal/pkg/proto"
	"vozlocal/pkg/session"
	"vozlocal/pkg/transport"
)

// The recorder registers with the default Prometheus registry; a second
// registration panics, so every test shares this one.
var testRecorder = metrics.NewRecorder()

const (
	canonicalA = "5511999999999@s.whatsapp.net"
	canonicalB = "5511888888888@s.whatsapp.net"
)

type fakeAI struct {
	summarizeErr error
}

func (f *fakeAI) Summarize(context.Context, string) (string, error) {
	if f.summarizeErr != nil {
		return "", f.summarizeErr
	}
	return "resumo do projeto", nil
}

func (f *fakeAI) Answer(context.Context, string, string) (string, error) {
	return "resposta sobre o projeto", nil
}

func (f *fakeAI) Synthesize(context.Context, string) ([]byte, error) {
	return []byte("ogg-bytes"), nil
}

type fakeClassifier struct{}

func (fakeClassifier) Classify(context.Context, string) (classify.Result, error) {
	return classify.Result{Primary: proto.ThemeTransport, Confidence: 0.9}, nil
}

type fakeBills struct{}

func (fakeBills) RandomBillInTramitation() (*persistence.Bill, error) {
	return &persistence.Bill{ID: "bill-1", Title: "PL 42", Summary: "Texto original.", Status: proto.BillInTramitation}, nil
}

func (fakeBills) BillsByTheme(proto.Theme, int) ([]*persistence.Bill, error) {
	return []*persistence.Bill{{ID: "bill-1", Title: "PL 42"}}, nil
}

type memCitizens struct {
	mu       sync.Mutex
	citizens map[string]*persistence.Citizen
}

func (m *memCitizens) GetOrCreateCitizen(hash, displayName, city, group string) (*persistence.Citizen, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.citizens == nil {
		m.citizens = make(map[string]*persistence.Citizen)
	}
	if c, ok := m.citizens[hash]; ok {
		return c, nil
	}
	c := &persistence.Citizen{ID: "citizen-" + hash[:8], UserKeyHash: hash, DisplayName: displayName, City: city, InclusionGroup: group}
	m.citizens[hash] = c
	return c, nil
}

func (m *memCitizens) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.citizens)
}

type memRecords struct {
	mu           sync.Mutex
	interactions []*persistence.Interaction
	proposals    []*persistence.Proposal
	insertErr    error
}

func (m *memRecords) InsertInteraction(in *persistence.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.interactions = append(m.interactions, in)
	return nil
}

func (m *memRecords) InsertProposal(p *persistence.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.proposals = append(m.proposals, p)
	return nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return f.text, f.err
}

type harness struct {
	fake     *transport.Fake
	sessions *session.Store
	citizens *memCitizens
	records  *memRecords
	ai       *fakeAI
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		fake:     transport.NewFake(),
		sessions: session.NewStore(),
		citizens: &memCitizens{},
		records:  &memRecords{},
		ai:       &fakeAI{},
	}
	return h
}

func (h *harness) dispatcher() *Dispatcher {
	engine := convo.NewEngine(h.ai, fakeClassifier{}, fakeBills{}, 1500, 5)
	return New(Config{
		Transport:   h.fake,
		Resolver:    identity.NewResolver(h.fake),
		Sessions:    h.sessions,
		Engine:      engine,
		Transcriber: &fakeTranscriber{text: "quero mais ciclovias na cidade"},
		Citizens:    h.citizens,
		Records:     h.records,
		Recorder:    testRecorder,
	})
}

// run injects the events, closes the stream, and waits for the dispatcher to
// drain every worker.
func (h *harness) run(t *testing.T, events ...proto.InboundEvent) {
	t.Helper()
	d := h.dispatcher()

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), h.fake) }()

	for _, ev := range events {
		h.fake.Inject(ev)
	}
	h.fake.CloseEvents()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not drain")
	}
}

func textEvent(addr, text string) proto.InboundEvent {
	return proto.InboundEvent{ReceivedAt: time.Now(), RawAddress: addr, Text: text}
}

func TestGreetingGetsWelcomeMenu(t *testing.T) {
	h := newHarness(t)
	h.run(t, textEvent(canonicalA, "oi"))

	sent := h.fake.SentTo(canonicalA)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "1 –")
	assert.Contains(t, sent[0], "4 –")

	sess, ok := h.sessions.Snapshot("5511999999999")
	require.True(t, ok)
	assert.Equal(t, proto.StepIdle, sess.Step)
}

func TestFullBillFlowPersistsOpinion(t *testing.T) {
	h := newHarness(t)
	h.run(t,
		textEvent(canonicalA, "oi"),
		textEvent(canonicalA, "1"),           // view a bill
		textEvent(canonicalA, "2"),           // no audio, ask instead
		textEvent(canonicalA, "o que muda?"), // question answered
		textEvent(canonicalA, "contra"),      // opinion
	)

	require.Len(t, h.records.interactions, 2)
	assert.Equal(t, proto.InteractionView, h.records.interactions[0].Kind)
	assert.Equal(t, "bill-1", h.records.interactions[0].BillID)
	assert.Equal(t, proto.InteractionOpinion, h.records.interactions[1].Kind)
	assert.Equal(t, proto.OpinionAgainst, h.records.interactions[1].Opinion)
	assert.Equal(t, "bill-1", h.records.interactions[1].BillID)

	sess, ok := h.sessions.Snapshot("5511999999999")
	require.True(t, ok)
	assert.Equal(t, proto.StepIdle, sess.Step)
	assert.Empty(t, sess.PendingSummary)
}

func TestGroupAddressIsDroppedSilently(t *testing.T) {
	h := newHarness(t)
	h.run(t, textEvent("120363041234567890@g.us", "oi"))

	assert.Empty(t, h.fake.Sent(), "group events must produce no reply")
	assert.Zero(t, h.citizens.count(), "no citizen may be created for a group")
	assert.Equal(t, 0, h.sessions.Len())
}

func TestUnresolvedAliasIsDropped(t *testing.T) {
	h := newHarness(t)
	h.run(t, textEvent("987654321@lid", "oi"))

	assert.Empty(t, h.fake.Sent())
	assert.Zero(t, h.citizens.count())
}

func TestResolvedAliasSharesSessionWithCanonical(t *testing.T) {
	h := newHarness(t)
	h.fake.AddAlias("987654321@lid", canonicalA)
	h.run(t,
		textEvent(canonicalA, "1"),
		textEvent("987654321@lid", "oi"),
	)

	// Both forms land on the same per-key worker and session.
	assert.Equal(t, 1, h.sessions.Len())
	assert.Equal(t, 1, h.citizens.count())
}

func TestIdleVoiceNoteBecomesProposal(t *testing.T) {
	h := newHarness(t)
	h.fake.AddAudio("audio-1", []byte("opus"))
	h.run(t, proto.InboundEvent{
		ReceivedAt: time.Now(),
		RawAddress: canonicalA,
		AudioRef:   "audio-1",
	})

	require.Len(t, h.records.proposals, 1)
	p := h.records.proposals[0]
	assert.Equal(t, "quero mais ciclovias na cidade", p.Content)
	assert.Equal(t, proto.ContentTranscribedAudio, p.ContentKind)
	assert.Equal(t, proto.ThemeTransport, p.PrimaryTheme)

	sent := h.fake.SentTo(canonicalA)
	require.NotEmpty(t, sent)
	assert.Contains(t, strings.ToLower(sent[len(sent)-1]), "obrigad")
}

func TestTranscriptionFailureApologizes(t *testing.T) {
	h := newHarness(t)
	// No AddAudio: the fetch fails and the turn never starts.
	h.run(t, proto.InboundEvent{
		ReceivedAt: time.Now(),
		RawAddress: canonicalA,
		AudioRef:   "missing-ref",
	})

	sent := h.fake.SentTo(canonicalA)
	require.Len(t, sent, 1)
	assert.Equal(t, msgTurnFailure, sent[0])
	assert.Empty(t, h.records.proposals)
}

func TestAIFailureKeepsSessionAndApologizes(t *testing.T) {
	h := newHarness(t)
	h.ai.summarizeErr = errors.New("model unavailable")
	h.run(t, textEvent(canonicalA, "1"))

	sent := h.fake.SentTo(canonicalA)
	require.Len(t, sent, 1)
	assert.Equal(t, msgTurnFailure, sent[0])

	// The failed turn rolled back; the citizen is still at the menu.
	sess, ok := h.sessions.Snapshot("5511999999999")
	require.True(t, ok)
	assert.Equal(t, proto.StepIdle, sess.Step)
	assert.Empty(t, h.records.interactions)
}

func TestPersistFailureSendsNoConfirmation(t *testing.T) {
	h := newHarness(t)
	h.records.insertErr = errors.New("disk full")
	h.run(t, textEvent(canonicalA, "1"))

	// The view interaction is the first effect; its failure aborts the
	// turn before the summary or any confirmation goes out.
	sent := h.fake.SentTo(canonicalA)
	require.Len(t, sent, 1)
	assert.Equal(t, msgTurnFailure, sent[0])

	sess, ok := h.sessions.Snapshot("5511999999999")
	require.True(t, ok)
	assert.Equal(t, proto.StepIdle, sess.Step)
	assert.Empty(t, sess.PendingSummary, "rolled-back turn must not keep the summary")
}

func TestConcurrentUsersKeepSeparateConversations(t *testing.T) {
	h := newHarness(t)
	h.run(t,
		textEvent(canonicalA, "1"),
		textEvent(canonicalB, "oi"),
		textEvent(canonicalB, "4"),
	)

	a, ok := h.sessions.Snapshot("5511999999999")
	require.True(t, ok)
	assert.Equal(t, proto.StepAwaitingQuestion, a.Step)

	b, ok := h.sessions.Snapshot("5511888888888")
	require.True(t, ok)
	assert.Equal(t, proto.StepAwaitingAreaSelection, b.Step)

	assert.Equal(t, 2, h.citizens.count())
}
