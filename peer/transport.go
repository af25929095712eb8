package peer

import (
	"context"
	"sync"
)

// Transport is the duplex channel a Peer runs over. Send delivers one message
// to the remote peer. Listen registers the single delivery callback for inbound
// messages and returns a function that detaches it.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
	Listen(fn func(*Message)) (stop func())
}

var _ Transport = &CodecTransport{}

// CodecTransport adapts a Codec into a Transport. Serve must be running for
// inbound messages to be delivered.
type CodecTransport struct {
	Codec

	mu       sync.Mutex
	listener func(*Message)
}

// NewCodecTransport returns a Transport that reads and writes through codec.
func NewCodecTransport(codec Codec) *CodecTransport {
	return &CodecTransport{Codec: codec}
}

// Send writes msg to the codec.
func (t *CodecTransport) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.Codec.WriteMessage(msg)
}

// Listen sets the delivery callback, replacing any previous one.
func (t *CodecTransport) Listen(fn func(*Message)) func() {
	t.mu.Lock()
	t.listener = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		t.listener = nil
		t.mu.Unlock()
	}
}

// Serve reads messages until the codec fails, delivering each one to the
// listener in order. It returns the read error, such as io.EOF.
func (t *CodecTransport) Serve() error {
	for {
		msg, err := t.Codec.ReadMessage()
		if err != nil {
			return err
		}
		t.mu.Lock()
		listener := t.listener
		t.mu.Unlock()
		if listener == nil {
			logger.Printf("CodecTransport.Serve(): Dropping message without listener: %s", msg)
			continue
		}
		listener(msg)
	}
}
