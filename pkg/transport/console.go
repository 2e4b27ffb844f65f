package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"vozlocal/pkg/logx"
	"vozlocal/pkg/proto"
)

// Console is a line-based transport for local development: inbound lines of
// the form "<phone>: <message>" become events, outbound messages print to
// the writer. Audio sends print a placeholder with the payload size.
type Console struct {
	out    io.Writer
	logger *logx.Logger
	events chan proto.InboundEvent
}

// NewConsole creates a console transport reading from r and writing to w.
// Reading starts immediately and stops at EOF, closing the event stream.
func NewConsole(r io.Reader, w io.Writer) *Console {
	c := &Console{
		out:    w,
		logger: logx.NewLogger("console"),
		events: make(chan proto.InboundEvent, 16),
	}
	go c.readLoop(r)
	return c
}

func (c *Console) readLoop(r io.Reader) {
	defer close(c.events)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		addr, text, ok := strings.Cut(line, ":")
		if !ok {
			c.logger.Warn("ignoring malformed line (want \"<phone>: <message>\"): %s", line)
			continue
		}
		c.events <- proto.InboundEvent{
			RawAddress: strings.TrimSpace(addr) + "@s.whatsapp.net",
			Text:       strings.TrimSpace(text),
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.Error("console read failed: %v", err)
	}
}

// SendText prints the outbound message.
func (c *Console) SendText(_ context.Context, to, body string) error {
	_, err := fmt.Fprintf(c.out, "-> %s\n%s\n\n", to, body)
	return err
}

// SendAudio prints an audio placeholder.
func (c *Console) SendAudio(_ context.Context, to string, audio []byte) error {
	_, err := fmt.Fprintf(c.out, "-> %s [audio, %d bytes]\n\n", to, len(audio))
	return err
}

// ResolveObfuscated always reports unknown; console addresses are canonical.
func (c *Console) ResolveObfuscated(context.Context, string) (string, error) {
	return "", nil
}

// Events returns the inbound event stream.
func (c *Console) Events() <-chan proto.InboundEvent {
	return c.events
}
