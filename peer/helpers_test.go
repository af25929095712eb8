package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
)

type FruitService struct{}

func (f *FruitService) Apple() string {
	return "Apple"
}

func (f *FruitService) Banana() error {
	return nil
}

func (f *FruitService) Cherry() (string, error) {
	return "Cherry", nil
}

func (f *FruitService) Durian() error {
	return errors.New("durian failure")
}

// Eat is skipped by Register, callbacks can't be sent over the wire.
func (f *FruitService) Eat(fn func(string)) {
	fn("Apple")
}

type Pinger struct {
	PongService Service
}

func (f *Pinger) Ping() string {
	return "ping"
}

func (f *Pinger) PingPong() string {
	var pong string
	err := f.PongService.Call(context.Background(), &pong, "pong")
	if err != nil {
		return fmt.Sprintf("err: %s", err)
	}
	return "ping" + pong
}

type Ponger struct{}

func (b *Ponger) Pong() string {
	return "pong"
}

type Fib struct{}

func (f *Fib) Fibonacci(ctx context.Context, a int, b int, steps int) (int, error) {
	service, err := CtxService(ctx)
	if err != nil {
		return 0, err
	}
	a, b = b, a+b
	if steps <= 0 {
		return b, nil
	}
	if err := service.Call(ctx, &b, "fibonacci", a, b, steps-1); err != nil {
		return 0, err
	}
	return b, nil
}

// explode is a handler that always fails, its name shows up in remote stacks.
func explode(x int) (int, error) {
	return 0, errors.Errorf("explode failed on %d", x)
}

func assertEqualJSON(t *testing.T, a, b interface{}, format string, args ...interface{}) {
	t.Helper()

	aa, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	bb, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(aa, bb) {
		prefix := fmt.Sprintf(format, args...)
		t.Errorf(prefix+"\n   got: %q\n  want: %q", aa, bb)
	}
}

// pipePeers returns two peers connected by an in-process Pipe.
func pipePeers(t *testing.T) (*Peer, *Peer) {
	t.Helper()
	t1, t2 := Pipe()
	a, b := New(t1, WithID("a")), New(t2, WithID("b"))
	t.Cleanup(func() {
		a.Destroy()
		b.Destroy()
		t1.Close()
		t2.Close()
	})
	return a, b
}

// manualTransport captures sent messages and only delivers inbound messages
// when the test says so, which allows arbitrary reordering.
type manualTransport struct {
	sent chan *Message

	mu       sync.Mutex
	listener func(*Message)
}

func newManualTransport() *manualTransport {
	return &manualTransport{sent: make(chan *Message, 16)}
}

func (t *manualTransport) Send(ctx context.Context, msg *Message) error {
	t.sent <- msg
	return nil
}

func (t *manualTransport) Listen(fn func(*Message)) func() {
	t.mu.Lock()
	t.listener = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		t.listener = nil
		t.mu.Unlock()
	}
}

func (t *manualTransport) deliver(msg *Message) {
	t.mu.Lock()
	listener := t.listener
	t.mu.Unlock()
	if listener != nil {
		listener(msg)
	}
}
