// Package pubsub layers subscriptions with streamed callbacks on top of a
// peer.Peer, using a few reserved function names as its control channel.
//
// A publisher is registered by name on one side. The other side subscribes
// with a mix of plain values and callbacks; the publisher receives stubs in
// place of the callbacks, and invoking a stub replays the callback on the
// subscriber. The publisher returns a Teardown which runs when the subscriber
// unsubscribes or the manager is destroyed.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/vipnode/peerrpc/peer"
)

// Reserved function names used for subscription control messages.
const (
	SubscribeMethod   = "__subscribe"
	UnsubscribeMethod = "__unsubscribe"
	EmitMethod        = "__emit"
)

// Teardown stops a publication.
type Teardown func()

// abandonTimeout bounds the __unsubscribe sent for a subscription whose
// Subscribe call gave up before the publisher answered.
var abandonTimeout = 10 * time.Second

// Unsubscribe ends a subscription. Calling it again is a no-op on the
// publisher.
type Unsubscribe func(ctx context.Context) error

// PublishFunc starts producing values for one subscription and returns the
// Teardown that stops it.
type PublishFunc func(ctx context.Context, args *Args) (Teardown, error)

// publication is a publisher-side record. teardown is nil while the publisher
// is still starting.
type publication struct {
	teardown Teardown
}

type subscription struct {
	fn        string
	callbacks map[int]*peer.Method
	// closed is set atomically once unsubscribed, no callbacks run afterwards.
	closed int32
}

// Manager handles both sides of subscriptions over a single Peer.
type Manager struct {
	// seq is accessed atomically and kept first for alignment.
	seq uint64

	peer *peer.Peer

	mu            sync.Mutex
	publishers    map[string]PublishFunc
	publications  map[string]*publication
	subscriptions map[string]*subscription
	destroyed     bool
}

// New installs the subscription control handlers on p.
func New(p *peer.Peer) *Manager {
	m := &Manager{
		peer:          p,
		publishers:    map[string]PublishFunc{},
		publications:  map[string]*publication{},
		subscriptions: map[string]*subscription{},
	}
	p.HandleFunc(SubscribeMethod, m.handleSubscribe)
	p.HandleFunc(UnsubscribeMethod, m.handleUnsubscribe)
	p.HandleFunc(EmitMethod, m.handleEmit)
	return m
}

// Peer returns the underlying engine.
func (m *Manager) Peer() *peer.Peer {
	return m.peer
}

// Publish registers fn as the publisher for name. fn takes an optional leading
// context.Context followed by JSON-decodable values and callback functions,
// and returns (Teardown) or (Teardown, error). A callback parameter may return
// an error, which reports whether the subscriber ran it.
func (m *Manager) Publish(name string, fn interface{}) error {
	if f, ok := fn.(PublishFunc); ok {
		m.PublishFunc(name, f)
		return nil
	}
	if f, ok := fn.(func(context.Context, *Args) (Teardown, error)); ok {
		m.PublishFunc(name, f)
		return nil
	}
	f, err := publisherFunc(fn)
	if err != nil {
		return errors.Wrapf(err, "failed to publish %s", name)
	}
	m.PublishFunc(name, f)
	return nil
}

// PublishFunc registers a raw publisher for name.
func (m *Manager) PublishFunc(name string, fn PublishFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		logger.Printf("Manager.Publish(): Ignoring publisher for %s on destroyed manager", name)
		return
	}
	m.publishers[name] = fn
}

// RemovePublisher unregisters the publisher for name. Active publications keep
// running until they are unsubscribed.
func (m *Manager) RemovePublisher(name string) {
	m.mu.Lock()
	delete(m.publishers, name)
	m.mu.Unlock()
}

// Publications returns the number of active publications served by this side.
func (m *Manager) Publications() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.publications)
}

// Subscriptions returns the number of active subscriptions held by this side.
func (m *Manager) Subscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

// Subscribe starts a subscription to the remote publisher name. Function
// arguments are callbacks: they are replaced by stubs on the publisher, and
// run here whenever the publisher invokes them. Subscribe returns once the
// publisher is running.
//
// If ctx ends before the publisher answers, Subscribe returns ctx.Err() and the
// subscription is abandoned: should the publisher start anyway, it is
// unsubscribed as soon as its answer arrives.
func (m *Manager) Subscribe(ctx context.Context, name string, args ...interface{}) (Unsubscribe, error) {
	subArgs, callbacks, err := toSubscribeArgs(args)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to subscribe to %s", name)
	}
	id := fmt.Sprintf("subscribe-%s-%s:%d", name, m.peer.ID(), atomic.AddUint64(&m.seq, 1))
	sub := &subscription{
		fn:        name,
		callbacks: callbacks,
	}

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return nil, peer.ErrDestroyed
	}
	// Stored before the call, the publisher may emit before it returns.
	m.subscriptions[id] = sub
	m.mu.Unlock()

	// The call itself is not bound to ctx, its answer decides whether an
	// abandoned publication needs to be stopped.
	result := make(chan error, 1)
	go func() {
		result <- m.peer.Call(context.Background(), nil, SubscribeMethod, id, name, subArgs)
	}()
	select {
	case err := <-result:
		if err != nil {
			m.forget(id)
			return nil, err
		}
	case <-ctx.Done():
		m.forget(id)
		go m.abandon(id, result)
		return nil, ctx.Err()
	}

	return func(ctx context.Context) error {
		m.forget(id)
		return m.peer.Call(ctx, nil, UnsubscribeMethod, id)
	}, nil
}

// abandon waits for the answer to a subscribe call that was given up on, and
// unsubscribes if the publisher started.
func (m *Manager) abandon(id string, result <-chan error) {
	if err := <-result; err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), abandonTimeout)
	defer cancel()
	if err := m.peer.Call(ctx, nil, UnsubscribeMethod, id); err != nil {
		logger.Printf("Manager: Failed to unsubscribe abandoned subscription %s: %s", id, err)
		return
	}
	logger.Printf("Manager: Unsubscribed abandoned subscription %s", id)
}

// forget drops local bookkeeping for a subscription.
func (m *Manager) forget(id string) {
	m.mu.Lock()
	sub, ok := m.subscriptions[id]
	delete(m.subscriptions, id)
	m.mu.Unlock()
	if ok {
		atomic.StoreInt32(&sub.closed, 1)
	}
}

// emit invokes callback index of subscription id on the subscriber.
func (m *Manager) emit(ctx context.Context, id string, index int, args []interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	return m.peer.Call(ctx, nil, EmitMethod, id, index, args)
}

func (m *Manager) handleSubscribe(ctx context.Context, rawArgs []json.RawMessage) (interface{}, error) {
	var id, name string
	var subArgs SubscribeArgs
	if err := decodeArgs(rawArgs, &id, &name, &subArgs); err != nil {
		return nil, err
	}

	// The id is reserved before the publisher runs, so a concurrent
	// __subscribe with the same id can't start a second publication.
	pub := &publication{}
	m.mu.Lock()
	publisher, ok := m.publishers[name]
	_, exists := m.publications[id]
	switch {
	case m.destroyed:
		m.mu.Unlock()
		return nil, peer.ErrDestroyed
	case !ok:
		m.mu.Unlock()
		return nil, &NoPublisherError{Name: name}
	case exists:
		m.mu.Unlock()
		return nil, &DuplicateSubscriptionError{ID: id}
	}
	m.publications[id] = pub
	m.mu.Unlock()

	args := &Args{
		raw:       subArgs.Args,
		callbacks: make(map[int]Callback, len(subArgs.Callbacks)),
	}
	for _, index := range subArgs.Callbacks {
		if index < 0 || index >= len(subArgs.Args) {
			m.release(id, pub)
			return nil, fmt.Errorf("callback index %d out of range", index)
		}
		index := index
		args.callbacks[index] = func(ctx context.Context, callbackArgs ...interface{}) error {
			return m.emit(ctx, id, index, callbackArgs)
		}
	}

	teardown, err := publisher(ctx, args)
	if err != nil {
		m.release(id, pub)
		return nil, err
	}
	if teardown == nil {
		teardown = func() {}
	}

	m.mu.Lock()
	if m.publications[id] != pub {
		// Unsubscribed or destroyed while the publisher was starting.
		destroyed := m.destroyed
		m.mu.Unlock()
		teardown()
		if destroyed {
			return nil, peer.ErrDestroyed
		}
		return nil, nil
	}
	pub.teardown = teardown
	m.mu.Unlock()
	logger.Printf("Manager: Started publication %s", id)
	return nil, nil
}

func (m *Manager) handleUnsubscribe(ctx context.Context, rawArgs []json.RawMessage) (interface{}, error) {
	var id string
	if err := decodeArgs(rawArgs, &id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	var teardown Teardown
	pub, ok := m.publications[id]
	if ok {
		teardown = pub.teardown
		delete(m.publications, id)
	}
	m.mu.Unlock()
	if !ok {
		// Already unsubscribed
		return nil, nil
	}
	if teardown == nil {
		// Still starting, handleSubscribe tears it down once it returns.
		return nil, nil
	}
	teardown()
	logger.Printf("Manager: Stopped publication %s", id)
	return nil, nil
}

func (m *Manager) handleEmit(ctx context.Context, rawArgs []json.RawMessage) (interface{}, error) {
	var id string
	var index int
	var callbackArgs []json.RawMessage
	if err := decodeArgs(rawArgs, &id, &index, &callbackArgs); err != nil {
		return nil, err
	}

	m.mu.Lock()
	sub, ok := m.subscriptions[id]
	m.mu.Unlock()
	if !ok {
		return nil, &MissingSubscriptionError{ID: id}
	}
	callback, ok := sub.callbacks[index]
	if !ok {
		return nil, fmt.Errorf("subscription %s has no callback at %d", id, index)
	}
	if atomic.LoadInt32(&sub.closed) == 1 {
		return nil, &MissingSubscriptionError{ID: id}
	}
	return callback.CallJSON(ctx, callbackArgs)
}

// Destroy destroys the underlying peer, stops every publication served by this
// side and drops local subscriptions without notifying the remote publisher.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	teardowns := make(map[string]Teardown, len(m.publications))
	for id, pub := range m.publications {
		// Starting publications are torn down by handleSubscribe.
		if pub.teardown != nil {
			teardowns[id] = pub.teardown
		}
	}
	subscriptions := m.subscriptions
	m.publications = map[string]*publication{}
	m.subscriptions = map[string]*subscription{}
	m.publishers = map[string]PublishFunc{}
	m.mu.Unlock()

	for _, sub := range subscriptions {
		atomic.StoreInt32(&sub.closed, 1)
	}
	// Destroying the peer first fails emits that are still waiting, so
	// teardowns that wait on their producers can return.
	m.peer.Destroy()
	for id, teardown := range teardowns {
		teardown()
		logger.Printf("Manager.Destroy(): Stopped publication %s", id)
	}
}

// release drops a reservation made by handleSubscribe for a publication that
// never started.
func (m *Manager) release(id string, pub *publication) {
	m.mu.Lock()
	if m.publications[id] == pub {
		delete(m.publications, id)
	}
	m.mu.Unlock()
}

// decodeArgs unmarshals positional control arguments into dst.
func decodeArgs(rawArgs []json.RawMessage, dst ...interface{}) error {
	if len(rawArgs) != len(dst) {
		return fmt.Errorf("wrong number of arguments: expected %d, got %d", len(dst), len(rawArgs))
	}
	for i, raw := range rawArgs {
		if err := json.Unmarshal(raw, dst[i]); err != nil {
			return fmt.Errorf("invalid argument %d: %s", i, err)
		}
	}
	return nil
}
