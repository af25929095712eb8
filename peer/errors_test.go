package peer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestSerializeError(t *testing.T) {
	if env := SerializeError(nil); env != nil {
		t.Errorf("expected nil envelope, got: %+v", env)
	}

	env := SerializeError(errors.New("bad thing"))
	if got, want := env.Message, "bad thing"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}
	if !strings.Contains(env.Stack, "TestSerializeError") {
		t.Errorf("stack is missing the raise site:\n%s", env.Stack)
	}

	// Errors without a stack get one captured on serialization.
	env = SerializeError(fmt.Errorf("plain"))
	if env.Stack == "" {
		t.Error("expected a stack for a plain error")
	}

	remote := &RemoteError{Message: "a > b", Stack: "one\ntwo"}
	env = SerializeError(remote)
	if env.Message != remote.Message || env.Stack != remote.Stack {
		t.Errorf("remote error was not preserved: %+v", env)
	}
}

func TestDeserializeError(t *testing.T) {
	if err := DeserializeError(nil); err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}

	err := DeserializeError(&ErrorEnvelope{Message: "oops", Stack: "somewhere"})
	if got, want := err.Error(), "oops"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}
	if got, want := fmt.Sprintf("%+v", err), "oops\nsomewhere"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}
	if got, want := fmt.Sprintf("%v", err), "oops"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}
}

func TestCombineError(t *testing.T) {
	local := errors.New("add")
	err := combineError(local, &ErrorEnvelope{Message: "x is not a number", Stack: "remote frames"})

	if got, want := err.Message, "add > x is not a number"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}
	if !strings.Contains(err.Stack, "TestCombineError") {
		t.Errorf("stack is missing the local call site:\n%s", err.Stack)
	}
	if !strings.HasSuffix(err.Stack, "\nremote frames") {
		t.Errorf("stack is missing the remote frames:\n%s", err.Stack)
	}
}

func TestErrorStrings(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&NoHandlerError{Name: "add"}, "no answerer for add"},
		{&UnmatchedResponseError{Fn: "add", ID: "a:3"}, "no responses for add:a:3"},
		{ErrDestroyed, "peer destroyed"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("got: %q; want %q", got, tc.want)
		}
	}
}
