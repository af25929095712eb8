package peer

import (
	"context"
	"sync"
)

// Deferred is a single-shot result whose completion is triggered externally.
// It is settled at most once; later Resolve or Reject calls are ignored.
type Deferred struct {
	once sync.Once
	done chan struct{}
	msg  *Message
	err  error
}

// NewDeferred returns an unsettled Deferred.
func NewDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// Resolve settles the deferred with a message. It returns false if the
// deferred was already settled.
func (d *Deferred) Resolve(msg *Message) bool {
	return d.settle(msg, nil)
}

// Reject settles the deferred with an error. It returns false if the deferred
// was already settled.
func (d *Deferred) Reject(err error) bool {
	return d.settle(nil, err)
}

func (d *Deferred) settle(msg *Message, err error) bool {
	settled := false
	d.once.Do(func() {
		d.msg, d.err = msg, err
		close(d.done)
		settled = true
	})
	return settled
}

// Done is closed once the deferred is settled.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the deferred is settled or ctx is done.
func (d *Deferred) Wait(ctx context.Context) (*Message, error) {
	select {
	case <-d.done:
		return d.msg, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
