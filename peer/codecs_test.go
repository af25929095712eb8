package peer

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestIOCodec(t *testing.T) {
	c1, c2 := net.Pipe()
	codec1, codec2 := IOCodec(c1), IOCodec(c2)
	defer codec1.Close()
	defer codec2.Close()

	req := &Message{
		Kind: KindRequest,
		ID:   "a:1",
		Fn:   "add",
		Args: []json.RawMessage{json.RawMessage(`10`), json.RawMessage(`2`)},
	}

	var g errgroup.Group
	g.Go(func() error {
		return codec1.WriteMessage(req)
	})
	got, err := codec2.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	assertEqualJSON(t, got, req, "request does not match")

	resp := &Message{
		Kind:  KindResponse,
		ID:    "a:1",
		Fn:    "add",
		Error: &ErrorEnvelope{Message: "nope", Stack: "here"},
	}
	g.Go(func() error {
		return codec2.WriteMessage(resp)
	})
	got, err = codec1.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	assertEqualJSON(t, got, resp, "response does not match")
}

func TestCodecTransportServe(t *testing.T) {
	c1, c2 := net.Pipe()
	t1 := NewCodecTransport(DebugCodec("t1", IOCodec(c1)))
	t2 := NewCodecTransport(IOCodec(c2))

	var g errgroup.Group
	g.Go(t1.Serve)
	g.Go(t2.Serve)

	a, b := New(t1), New(t2)
	if err := b.Handle("add", func(x, y int) int { return x + y }); err != nil {
		t.Fatal(err)
	}

	var got int
	if err := a.Call(context.Background(), &got, "add", 10, 2); err != nil {
		t.Fatal(err)
	}
	if got != 12 {
		t.Errorf("got: %d; want 12", got)
	}

	a.Destroy()
	b.Destroy()
	t1.Close()
	t2.Close()
	// Both read loops end once the pipe is closed.
	if err := g.Wait(); err != io.EOF && err != io.ErrClosedPipe {
		t.Errorf("unexpected serve error: %v", err)
	}
}
