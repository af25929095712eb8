package pubsub

import (
	"context"
	"encoding/json"
	"testing"
)

func TestToSubscribeArgs(t *testing.T) {
	subArgs, callbacks, err := toSubscribeArgs([]interface{}{12, func(n int) {}, "x", func(ctx context.Context) error { return nil }})
	if err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(subArgs)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(raw), `{"args":[12,null,"x",null],"callbacks":[1,3]}`; got != want {
		t.Errorf("got: %s; want %s", got, want)
	}
	if len(callbacks) != 2 || callbacks[1] == nil || callbacks[3] == nil {
		t.Errorf("unexpected callbacks: %v", callbacks)
	}

	if _, _, err := toSubscribeArgs([]interface{}{func() (int, int) { return 1, 2 }}); err == nil {
		t.Error("expected error for unsupported callback")
	}
	if _, _, err := toSubscribeArgs([]interface{}{make(chan int)}); err == nil {
		t.Error("expected error for unencodable argument")
	}
}

func TestPublisherFuncSignatures(t *testing.T) {
	tests := []struct {
		name string
		fn   interface{}
		ok   bool
	}{
		{"teardown", func(n int, cb func(int)) Teardown { return nil }, true},
		{"plain func teardown", func(cb func(int)) func() { return nil }, true},
		{"teardown and error", func(ctx context.Context, cb func(int) error) (Teardown, error) { return nil, nil }, true},
		{"no arguments", func() Teardown { return nil }, true},
		{"no teardown", func(n int) {}, false},
		{"error only", func(n int) error { return nil }, false},
		{"callback with result", func(cb func() int) Teardown { return nil }, false},
		{"nested callback", func(cb func(func())) Teardown { return nil }, false},
		{"channel", func(ch chan int) Teardown { return nil }, false},
		{"variadic", func(n ...int) Teardown { return nil }, false},
		{"not a func", 42, false},
	}

	for _, tc := range tests {
		_, err := publisherFunc(tc.fn)
		if got := err == nil; got != tc.ok {
			t.Errorf("%s: got ok=%t; want %t (err: %v)", tc.name, got, tc.ok, err)
		}
	}
}

func TestPublisherFuncArguments(t *testing.T) {
	var gotN int
	var gotCtx context.Context
	fn, err := publisherFunc(func(ctx context.Context, n int, cb func(int)) Teardown {
		gotN, gotCtx = n, ctx
		return func() {}
	})
	if err != nil {
		t.Fatal(err)
	}

	noop := func(ctx context.Context, args ...interface{}) error { return nil }
	args := &Args{
		raw:       []json.RawMessage{json.RawMessage(`7`), json.RawMessage(`null`)},
		callbacks: map[int]Callback{1: noop},
	}
	ctx := context.Background()
	teardown, err := fn(ctx, args)
	if err != nil {
		t.Fatal(err)
	}
	if teardown == nil {
		t.Error("missing teardown")
	}
	if gotN != 7 || gotCtx != ctx {
		t.Errorf("got n=%d ctx=%v", gotN, gotCtx)
	}

	// Callback expected at position 1
	args.callbacks = map[int]Callback{}
	if _, err := fn(ctx, args); err == nil {
		t.Error("expected error for missing callback")
	}
	// Plain value expected at position 0
	args.callbacks = map[int]Callback{0: noop, 1: noop}
	if _, err := fn(ctx, args); err == nil {
		t.Error("expected error for unexpected callback")
	}
	args.raw = args.raw[:1]
	if _, err := fn(ctx, args); err == nil {
		t.Error("expected error for wrong number of arguments")
	}
}

func TestCallbackStub(t *testing.T) {
	var gotArgs []interface{}
	cb := func(ctx context.Context, args ...interface{}) error {
		gotArgs = args
		return nil
	}
	var stub func(ctx context.Context, s string, n int) error
	fn, err := publisherFunc(func(f func(ctx context.Context, s string, n int) error) Teardown {
		stub = f
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = fn(context.Background(), &Args{
		raw:       []json.RawMessage{json.RawMessage(`null`)},
		callbacks: map[int]Callback{0: cb},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := stub(context.Background(), "a", 1); err != nil {
		t.Fatal(err)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "a" || gotArgs[1] != 1 {
		t.Errorf("unexpected callback args: %v", gotArgs)
	}
}
