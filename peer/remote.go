package peer

import (
	"context"
	"fmt"
	"io"
	"net"
)

// Service represents a remote service that can be called.
type Service interface {
	Call(ctx context.Context, result interface{}, method string, params ...interface{}) error
}

// ErrContextMissingValue is returned when a context is missing an expected value.
type ErrContextMissingValue struct {
	Key serviceContext
}

func (err ErrContextMissingValue) Error() string {
	return fmt.Sprintf("context missing value: %s", err.Key)
}

type serviceContext string

var ctxService serviceContext = "service"

// CtxService returns the Service associated with a request from the context
// passed to its handler. It calls back into the peer that sent the request,
// which is useful for initiating bidirectional calls.
func CtxService(ctx context.Context) (Service, error) {
	s, ok := ctx.Value(ctxService).(Service)
	if !ok {
		return nil, ErrContextMissingValue{ctxService}
	}
	return s, nil
}

// ServePipe sets up two symmetric peers speaking JSON over a net.Pipe() and
// starts both read loops in goroutines. Useful for testing. Handlers still
// need to be registered. Closing the returned Closer shuts down both ends.
func ServePipe() (*Peer, *Peer, io.Closer) {
	c1, c2 := net.Pipe()
	t1 := NewCodecTransport(IOCodec(c1))
	t2 := NewCodecTransport(IOCodec(c2))
	go t1.Serve()
	go t2.Serve()
	return New(t1), New(t2), pipeCloser{t1, t2}
}

type pipeCloser []io.Closer

func (p pipeCloser) Close() error {
	var firstErr error
	for _, c := range p {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
