package transport

import (
	"context"
	"fmt"
	"sync"

	"vozlocal/pkg/proto"
)

// SentMessage records one outbound call on the fake transport, in send order.
type SentMessage struct {
	To    string
	Body  string // text sends
	Audio []byte // audio sends
}

// Fake is an in-memory transport for tests and local runs. Alias mappings
// are scripted with AddAlias; everything sent is recorded in order.
type Fake struct {
	mu      sync.Mutex
	sent    []SentMessage
	aliases map[string]string
	media   map[string][]byte
	events  chan proto.InboundEvent

	// SendErr, when set, is returned by every send call.
	SendErr error
}

// NewFake creates an empty fake transport.
func NewFake() *Fake {
	return &Fake{
		aliases: make(map[string]string),
		media:   make(map[string][]byte),
		events:  make(chan proto.InboundEvent, 64),
	}
}

// AddAudio scripts the payload behind an audio ref.
func (f *Fake) AddAudio(ref string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media[ref] = data
}

// FetchAudio returns the scripted payload for a ref.
func (f *Fake) FetchAudio(_ context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.media[ref]
	if !ok {
		return nil, fmt.Errorf("unknown audio ref %q", ref)
	}
	return data, nil
}

// SendText records a text send.
func (f *Fake) SendText(_ context.Context, to, body string) error {
	if f.SendErr != nil {
		return f.SendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, SentMessage{To: to, Body: body})
	return nil
}

// SendAudio records an audio send.
func (f *Fake) SendAudio(_ context.Context, to string, audio []byte) error {
	if f.SendErr != nil {
		return f.SendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, SentMessage{To: to, Audio: audio})
	return nil
}

// ResolveObfuscated returns the scripted mapping, or "" when unknown.
func (f *Fake) ResolveObfuscated(_ context.Context, raw string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aliases[raw], nil
}

// AddAlias scripts an alias -> canonical mapping.
func (f *Fake) AddAlias(alias, canonical string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliases[alias] = canonical
}

// Events returns the inbound event channel.
func (f *Fake) Events() <-chan proto.InboundEvent {
	return f.events
}

// Inject queues an inbound event as if it arrived from the channel.
func (f *Fake) Inject(ev proto.InboundEvent) {
	f.events <- ev
}

// CloseEvents closes the inbound stream, draining the dispatcher.
func (f *Fake) CloseEvents() {
	close(f.events)
}

// Sent returns a copy of everything sent so far, in order.
func (f *Fake) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.sent...)
}

// SentTo returns the bodies of text messages sent to one address, in order.
func (f *Fake) SentTo(addr string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for i := range f.sent {
		if f.sent[i].To == addr && f.sent[i].Audio == nil {
			out = append(out, f.sent[i].Body)
		}
	}
	return out
}
