package kvstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vipnode/peerrpc/peer"
	"github.com/vipnode/peerrpc/pubsub"
)

const (
	// MethodPrefix is prepended to the Service method names when served.
	MethodPrefix = "kv_"
	// WatchMethod is the publisher name for change notifications.
	WatchMethod = MethodPrefix + "watch"
)

// watchQueueSize is the number of undelivered changes a watcher buffers
// before it starts dropping them.
const watchQueueSize = 64

// watchDeliverTimeout bounds the delivery of a single change.
var watchDeliverTimeout = 10 * time.Second

// Change describes a modification of a key. Item is nil when the key was
// deleted.
type Change struct {
	Key     string `json:"key"`
	Item    *Item  `json:"item,omitempty"`
	Deleted bool   `json:"deleted"`
}

// NewService returns a Service around store.
func NewService(store Store) *Service {
	return &Service{
		store:    store,
		watchers: map[*watcher]struct{}{},
	}
}

// Service exposes a Store to remote peers. Changes made through the service
// are streamed to watchers.
type Service struct {
	store Store

	mu       sync.Mutex
	watchers map[*watcher]struct{}
}

// Serve registers the methods of s on p, and its Watch publisher on m.
func Serve(s *Service, p *peer.Peer, m *pubsub.Manager) error {
	if err := p.Register(MethodPrefix, s); err != nil {
		return err
	}
	return m.Publish(WatchMethod, s.Watch)
}

// Get returns the item stored under key, or nil when there is none. A missing
// key is an answer rather than a failure, so remote callers don't have to parse
// error messages.
func (s *Service) Get(key string) (*Item, error) {
	item, err := s.store.Get(key)
	if err == ErrNotFound {
		return nil, nil
	}
	return item, err
}

// Set stores value under key and notifies watchers.
func (s *Service) Set(key string, value string) (*Item, error) {
	item, err := s.store.Set(key, value)
	if err != nil {
		return nil, err
	}
	s.notify(Change{Key: key, Item: item})
	return item, nil
}

// Delete removes key and notifies watchers. It reports whether key existed.
func (s *Service) Delete(key string) (bool, error) {
	if err := s.store.Delete(key); err == ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	s.notify(Change{Key: key, Deleted: true})
	return true, nil
}

// Keys returns the stored keys with the given prefix.
func (s *Service) Keys(prefix string) ([]string, error) {
	return s.store.Keys(prefix)
}

// Watch calls fn with every change to keys starting with prefix, in order,
// until the returned Teardown is called. Writers never wait on a watcher: when
// its queue is full, further changes are dropped and logged. Each delivery gets
// a context bounded by watchDeliverTimeout.
func (s *Service) Watch(prefix string, fn func(context.Context, Change) error) pubsub.Teardown {
	w := &watcher{
		prefix: prefix,
		fn:     fn,
		queue:  make(chan Change, watchQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.run()

	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, w)
		s.mu.Unlock()
		close(w.stop)
		<-w.done
	}
}

func (s *Service) watcherCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *Service) notify(change Change) {
	s.mu.Lock()
	watchers := make([]*watcher, 0, len(s.watchers))
	for w := range s.watchers {
		if strings.HasPrefix(change.Key, w.prefix) {
			watchers = append(watchers, w)
		}
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w.send(change)
	}
}

type watcher struct {
	prefix string
	fn     func(context.Context, Change) error
	queue  chan Change
	stop   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	dropped int
}

// send queues change without blocking.
func (w *watcher) send(change Change) {
	select {
	case <-w.stop:
		return
	default:
	}
	select {
	case w.queue <- change:
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		logger.Printf("watcher %q: queue full, dropped change for %q", w.prefix, change.Key)
	}
}

func (w *watcher) droppedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *watcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case change := <-w.queue:
			w.deliver(change)
		}
	}
}

func (w *watcher) deliver(change Change) {
	ctx, cancel := context.WithTimeout(context.Background(), watchDeliverTimeout)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := w.fn(ctx, change); err != nil {
		logger.Printf("watcher %q: failed to deliver change for %q: %s", w.prefix, change.Key, err)
	}
}
