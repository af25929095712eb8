package peer

import (
	"context"
	"io"
	"sync"
)

// Pipe returns two in-process transports connected to each other. Messages
// are delivered in order on a dedicated goroutine per end, and are held until
// a listener is attached. Messages are passed by reference, without encoding.
func Pipe() (*PipeTransport, *PipeTransport) {
	a, b := newPipeEnd(), newPipeEnd()
	a.remote, b.remote = b, a
	go a.deliver()
	go b.deliver()
	return a, b
}

var _ Transport = &PipeTransport{}

// PipeTransport is one end of a Pipe.
type PipeTransport struct {
	remote *PipeTransport

	mu       sync.Mutex
	queue    []*Message
	listener func(*Message)

	wake      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newPipeEnd() *PipeTransport {
	return &PipeTransport{
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Send queues msg for delivery on the remote end.
func (t *PipeTransport) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-t.closed:
		return io.ErrClosedPipe
	case <-t.remote.closed:
		return io.ErrClosedPipe
	default:
	}
	t.remote.enqueue(msg)
	return nil
}

// Listen sets the delivery callback, replacing any previous one.
func (t *PipeTransport) Listen(fn func(*Message)) func() {
	t.mu.Lock()
	t.listener = fn
	t.mu.Unlock()
	t.signal()
	return func() {
		t.mu.Lock()
		t.listener = nil
		t.mu.Unlock()
	}
}

// Close stops delivery on this end. Sends from either end fail afterwards.
func (t *PipeTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
	return nil
}

func (t *PipeTransport) enqueue(msg *Message) {
	t.mu.Lock()
	t.queue = append(t.queue, msg)
	t.mu.Unlock()
	t.signal()
}

func (t *PipeTransport) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *PipeTransport) deliver() {
	for {
		select {
		case <-t.closed:
			return
		case <-t.wake:
		}
		for {
			t.mu.Lock()
			if len(t.queue) == 0 || t.listener == nil {
				t.mu.Unlock()
				break
			}
			msg := t.queue[0]
			t.queue = t.queue[1:]
			listener := t.listener
			t.mu.Unlock()
			listener(msg)
		}
	}
}
