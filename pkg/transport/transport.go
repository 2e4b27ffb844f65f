// Package transport defines the chat-channel boundary of the pipeline.
//
// The real channel (connect/reconnect, pairing, media download) lives
// outside this repository; the core only needs to send text or audio to a
// canonical address, reverse-map opaque aliases, and receive inbound events.
package transport

import (
	"context"

	"vozlocal/pkg/proto"
)

// Transport is the outbound and identity surface of the chat channel.
type Transport interface {
	// SendText delivers a text message to a canonical address.
	SendText(ctx context.Context, canonicalAddress, body string) error

	// SendAudio delivers a synthesized voice note to a canonical address.
	SendAudio(ctx context.Context, canonicalAddress string, audio []byte) error

	// ResolveObfuscated maps a session-scoped alias address to its canonical
	// form. Returns "" with a nil error when the alias is unknown.
	ResolveObfuscated(ctx context.Context, rawAddress string) (string, error)
}

// MediaFetcher is implemented by transports that can download the audio
// payload behind an inbound event's AudioRef.
type MediaFetcher interface {
	FetchAudio(ctx context.Context, audioRef string) ([]byte, error)
}

// Receiver is implemented by transports that deliver inbound events.
type Receiver interface {
	// Events returns the inbound event stream. The channel is closed when
	// the transport shuts down.
	Events() <-chan proto.InboundEvent
}
