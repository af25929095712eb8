package peer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrDestroyed is returned by calls that are issued on, or still waiting on, a
// destroyed peer.
var ErrDestroyed = errors.New("peer destroyed")

// NoHandlerError is produced by the answering peer when a request names a
// function that has no registered handler.
type NoHandlerError struct {
	Name string
}

func (err *NoHandlerError) Error() string {
	return fmt.Sprintf("no answerer for %s", err.Name)
}

// UnmatchedResponseError is raised locally when a response arrives for an ID
// that has no pending call, such as a duplicate or stale response.
type UnmatchedResponseError struct {
	Fn string
	ID string
}

func (err *UnmatchedResponseError) Error() string {
	return fmt.Sprintf("no responses for %s:%s", err.Fn, err.ID)
}

// RemoteError is a failure reconstructed from an ErrorEnvelope. When returned
// by Call, Message and Stack hold both the local call site and the remote
// failure, joined together.
type RemoteError struct {
	Message string
	Stack   string
}

func (err *RemoteError) Error() string {
	return err.Message
}

// Format supports %+v to include the combined stack.
func (err *RemoteError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s\n%s", err.Message, err.Stack)
		return
	}
	fmt.Fprint(s, err.Message)
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// SerializeError converts a failure into a transmissible envelope. Errors
// carrying a github.com/pkg/errors stack keep it, RemoteErrors keep their
// already-combined stack, anything else gets a stack captured here.
func SerializeError(err error) *ErrorEnvelope {
	if err == nil {
		return nil
	}
	env := &ErrorEnvelope{Message: err.Error()}
	var remote *RemoteError
	if errors.As(err, &remote) {
		env.Stack = remote.Stack
		return env
	}
	env.Stack = stackOf(err)
	return env
}

// DeserializeError reconstructs a failure from an envelope.
func DeserializeError(env *ErrorEnvelope) *RemoteError {
	if env == nil {
		return nil
	}
	return &RemoteError{
		Message: env.Message,
		Stack:   env.Stack,
	}
}

// combineError joins the local call site with the remote failure so that the
// result reads as two frames: where it was called from and where it failed.
func combineError(local error, remote *ErrorEnvelope) *RemoteError {
	return DeserializeError(&ErrorEnvelope{
		Message: strings.Join([]string{local.Error(), remote.Message}, " > "),
		Stack:   strings.Join([]string{stackOf(local), remote.Stack}, "\n"),
	})
}

func stackOf(err error) string {
	var st stackTracer
	if !errors.As(err, &st) {
		st = errors.WithStack(err).(stackTracer)
	}
	return strings.TrimPrefix(fmt.Sprintf("%+v", st.StackTrace()), "\n")
}
