package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Option configures a Peer.
type Option func(*Peer)

// WithID overrides the random instance identifier used to prefix correlation
// IDs. It must be unique among the peers that share a channel.
func WithID(id string) Option {
	return func(p *Peer) { p.id = id }
}

// WithOnError registers a callback for failures that have nobody waiting on
// them, such as unmatched responses or failed response sends. Such failures
// are always logged.
func WithOnError(fn func(error)) Option {
	return func(p *Peer) { p.onError = fn }
}

var _ Service = &Peer{}

// Peer is one endpoint of a duplex channel. It answers inbound requests with
// registered handlers and correlates responses to its own outbound calls.
type Peer struct {
	// seq is accessed atomically and kept first for alignment.
	seq uint64

	id        string
	transport Transport
	onError   func(error)

	mu            sync.Mutex
	handlers      map[string]Handler
	stopListening func()
	destroyed     bool

	pending pendingTable
}

// New creates a Peer and starts listening on the transport.
func New(t Transport, opts ...Option) *Peer {
	p := &Peer{
		transport: t,
		handlers:  map[string]Handler{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.id == "" {
		p.id = uuid.New().String()
	}
	stop := t.Listen(p.receive)
	p.mu.Lock()
	p.stopListening = stop
	p.mu.Unlock()
	return p
}

// ID returns the peer instance identifier.
func (p *Peer) ID() string {
	return p.id
}

func (p *Peer) nextID() string {
	return fmt.Sprintf("%s:%d", p.id, atomic.AddUint64(&p.seq, 1))
}

// Handle installs or replaces the handler for name. fn is either a Handler, a
// raw HandlerFunc, or any function accepted by NewMethod.
func (p *Peer) Handle(name string, fn interface{}) error {
	var h Handler
	switch f := fn.(type) {
	case Handler:
		h = f
	case func(context.Context, []json.RawMessage) (interface{}, error):
		h = HandlerFunc(f)
	default:
		m, err := NewMethod(fn)
		if err != nil {
			return errors.Wrapf(err, "failed to register %s", name)
		}
		h = m
	}
	p.setHandler(name, h)
	return nil
}

// HandleFunc installs or replaces a raw handler for name.
func (p *Peer) HandleFunc(name string, fn HandlerFunc) {
	p.setHandler(name, fn)
}

// Register adds valid methods from the receiver with the given prefix. Method
// names are lowercased: Register("kv_", svc) exposes svc.Get as "kv_get".
func (p *Peer) Register(prefix string, receiver interface{}) error {
	methods, err := Methods(receiver)
	if err != nil {
		return err
	}

	var buf strings.Builder
	for name, m := range methods {
		buf.WriteString(prefix)
		buf.WriteRune(unicode.ToLower(rune(name[0])))
		buf.WriteString(name[1:])
		p.setHandler(buf.String(), m)
		buf.Reset()
	}
	return nil
}

func (p *Peer) setHandler(name string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		logger.Printf("Peer.Handle(): Ignoring handler for %s on destroyed peer", name)
		return
	}
	p.handlers[name] = h
}

// RemoveHandler uninstalls the handler for name. Later requests for it fail
// with a NoHandlerError on the caller.
func (p *Peer) RemoveHandler(name string) {
	p.mu.Lock()
	delete(p.handlers, name)
	p.mu.Unlock()
}

func (p *Peer) handler(name string) (Handler, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handlers[name]
	return h, ok
}

// Call sends a request and waits for its response, decoding the response data
// into result (which may be nil). There is no built-in timeout: the wait is
// bounded only by ctx.
func (p *Peer) Call(ctx context.Context, result interface{}, name string, params ...interface{}) error {
	data, err := p.call(ctx, errors.New(name), name, params)
	if err != nil {
		return err
	}
	if result == nil || len(data) == 0 || string(data) == "null" {
		// No result
		return nil
	}
	return json.Unmarshal(data, result)
}

// CallRaw is like Call but returns the undecoded response data.
func (p *Peer) CallRaw(ctx context.Context, name string, params ...interface{}) (json.RawMessage, error) {
	return p.call(ctx, errors.New(name), name, params)
}

// call captures the call site in local, before any waiting happens.
func (p *Peer) call(ctx context.Context, local error, name string, params []interface{}) (json.RawMessage, error) {
	args, err := encodeArguments(params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", name)
	}
	req := &Message{
		Kind: KindRequest,
		ID:   p.nextID(),
		Fn:   name,
		Args: args,
	}

	deferred, err := p.pending.add(req.ID, name)
	if err != nil {
		return nil, err
	}
	if err := p.transport.Send(ctx, req); err != nil {
		p.pending.remove(req.ID)
		return nil, errors.Wrapf(err, "failed to send %s", name)
	}

	resp, err := deferred.Wait(ctx)
	if err != nil {
		p.pending.remove(req.ID)
		return nil, err
	}
	if resp.Error != nil {
		return nil, combineError(local, resp.Error)
	}
	return resp.Data, nil
}

// receive is the transport listener. Failures are isolated per message and
// never escape into the transport.
func (p *Peer) receive(msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(errors.Errorf("recovered while receiving %s: %v", msg, r))
		}
	}()
	if msg == nil {
		return
	}

	switch msg.Kind {
	case KindRequest:
		go p.handleRequest(msg)
	case KindResponse:
		if err := p.handleResponse(msg); err != nil {
			p.fail(err)
		}
	default:
		logger.Printf("Peer.receive(): Dropping invalid message: %s", msg)
	}
}

func (p *Peer) handleRequest(req *Message) {
	result, err := p.answer(req)
	resp := newReply(req, result, err)
	if err := p.transport.Send(context.Background(), resp); err != nil {
		p.fail(errors.Wrapf(err, "failed to send response for %s:%s", req.Fn, req.ID))
	}
}

func (p *Peer) answer(req *Message) (result interface{}, err error) {
	h, ok := p.handler(req.Fn)
	if !ok {
		return nil, &NoHandlerError{Name: req.Fn}
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.Errorf("panic in %s: %v", req.Fn, r)
		}
	}()
	ctx := context.WithValue(context.Background(), ctxService, p)
	return h.CallJSON(ctx, req.Args)
}

func (p *Peer) handleResponse(resp *Message) error {
	call, ok := p.pending.take(resp.ID)
	if !ok {
		return &UnmatchedResponseError{Fn: resp.Fn, ID: resp.ID}
	}
	call.deferred.Resolve(resp)
	return nil
}

func (p *Peer) fail(err error) {
	logger.Printf("Peer %s: %s", p.id, err)
	if p.onError != nil {
		p.onError(err)
	}
}

// Pending returns the number of outstanding calls.
func (p *Peer) Pending() int {
	return p.pending.len()
}

// Destroy clears all handlers, detaches from the transport and fails every
// outstanding call with ErrDestroyed. The transport itself is not closed.
func (p *Peer) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	p.handlers = map[string]Handler{}
	stop := p.stopListening
	p.stopListening = nil
	p.mu.Unlock()

	if stop != nil {
		stop()
	}
	for _, call := range p.pending.drain() {
		call.deferred.Reject(ErrDestroyed)
	}
}
