package api

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vipnode/peerrpc/peer"
	"github.com/vipnode/peerrpc/pubsub"
)

// Typed call site over the string-keyed Caller.
type mathClient struct {
	Caller
}

func (c mathClient) Add(ctx context.Context, x, y int) (int, error) {
	var sum int
	err := c.Call(ctx, &sum, "add", x, y)
	return sum, err
}

func pipeEndpoints(t *testing.T) (*Endpoint, *Endpoint) {
	t.Helper()
	t1, t2 := peer.Pipe()
	a, b := New(t1), New(t2)
	t.Cleanup(func() {
		a.Destroy()
		b.Destroy()
		t1.Close()
		t2.Close()
	})
	return a, b
}

func TestEndpointCallAnswer(t *testing.T) {
	a, b := pipeEndpoints(t)

	if err := b.Answer().Handle("add", func(x, y int) int { return x + y }); err != nil {
		t.Fatal(err)
	}
	if err := a.Answer().Handle("double", func(x int) int { return x + x }); err != nil {
		t.Fatal(err)
	}

	sum, err := mathClient{a.Call()}.Add(context.Background(), 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	if sum != 12 {
		t.Errorf("got: %d; want 12", sum)
	}

	var double int
	if err := b.Call().Call(context.Background(), &double, "double", 10); err != nil {
		t.Fatal(err)
	}
	if double != 20 {
		t.Errorf("got: %d; want 20", double)
	}

	b.Answer().Remove("add")
	if _, err := (mathClient{a.Call()}).Add(context.Background(), 1, 1); err == nil || !strings.Contains(err.Error(), "add") {
		t.Errorf("expected missing answerer error, got: %v", err)
	}
}

func TestEndpointSubscribePublish(t *testing.T) {
	a, b := pipeEndpoints(t)

	err := b.Publish().Publish("ticks", func(n int, cb func(int)) pubsub.Teardown {
		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 1; i <= n; i++ {
				select {
				case <-stop:
					return
				default:
				}
				cb(i)
			}
		}()
		return func() {
			close(stop)
			<-done
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan int, 3)
	unsubscribe, err := a.Subscribe().Subscribe(context.Background(), "ticks", 3, func(i int) {
		got <- i
	})
	if err != nil {
		t.Fatal(err)
	}
	for want := 1; want <= 3; want++ {
		select {
		case i := <-got:
			if i != want {
				t.Errorf("got: %d; want %d", i, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for tick")
		}
	}
	if err := unsubscribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	b.Publish().Remove("ticks")
	if _, err := a.Subscribe().Subscribe(context.Background(), "ticks", 1, func(int) {}); err == nil {
		t.Error("expected error after removing publisher")
	}
	if a.PubSub().Peer() != a.Peer() {
		t.Error("endpoint engines do not match")
	}
}
