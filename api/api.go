// Package api combines a peer.Peer and a pubsub.Manager into one endpoint with
// separate namespaces for calling, answering, subscribing and publishing.
package api

import (
	"context"

	"github.com/vipnode/peerrpc/peer"
	"github.com/vipnode/peerrpc/pubsub"
)

// Caller issues calls to the remote endpoint.
type Caller interface {
	Call(ctx context.Context, result interface{}, name string, args ...interface{}) error
}

// Answerer manages the functions exposed to the remote endpoint.
type Answerer interface {
	Handle(name string, fn interface{}) error
	Register(prefix string, receiver interface{}) error
	Remove(name string)
}

// Subscriber starts subscriptions to remote publishers.
type Subscriber interface {
	Subscribe(ctx context.Context, name string, args ...interface{}) (pubsub.Unsubscribe, error)
}

// Publisher manages the publishers exposed to the remote endpoint.
type Publisher interface {
	Publish(name string, fn interface{}) error
	Remove(name string)
}

// Endpoint is one side of a channel with both request/response and
// subscription support.
type Endpoint struct {
	peer   *peer.Peer
	pubsub *pubsub.Manager
}

// New creates an Endpoint listening on t.
func New(t peer.Transport, opts ...peer.Option) *Endpoint {
	p := peer.New(t, opts...)
	return &Endpoint{
		peer:   p,
		pubsub: pubsub.New(p),
	}
}

// Call returns the namespace for calling remote functions.
func (e *Endpoint) Call() Caller {
	return e.peer
}

// Answer returns the namespace for exposing local functions.
func (e *Endpoint) Answer() Answerer {
	return answerer{e.peer}
}

// Subscribe returns the namespace for subscribing to remote publishers.
func (e *Endpoint) Subscribe() Subscriber {
	return e.pubsub
}

// Publish returns the namespace for exposing local publishers.
func (e *Endpoint) Publish() Publisher {
	return publisher{e.pubsub}
}

// Peer returns the underlying request/response engine.
func (e *Endpoint) Peer() *peer.Peer {
	return e.peer
}

// PubSub returns the underlying subscription manager.
func (e *Endpoint) PubSub() *pubsub.Manager {
	return e.pubsub
}

// Destroy tears down publications and the engine.
func (e *Endpoint) Destroy() {
	e.pubsub.Destroy()
}

type answerer struct {
	*peer.Peer
}

func (a answerer) Remove(name string) {
	a.RemoveHandler(name)
}

type publisher struct {
	*pubsub.Manager
}

func (p publisher) Remove(name string) {
	p.RemovePublisher(name)
}
