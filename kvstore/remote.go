package kvstore

import (
	"context"

	"github.com/vipnode/peerrpc/peer"
	"github.com/vipnode/peerrpc/pubsub"
)

// Subscriber starts subscriptions to a remote publisher.
type Subscriber interface {
	Subscribe(ctx context.Context, name string, args ...interface{}) (pubsub.Unsubscribe, error)
}

// Remote returns a RemoteStore which proxies calls to a Service served by the
// other side of client.
func Remote(client peer.Service, sub Subscriber) *RemoteStore {
	return &RemoteStore{
		client: client,
		sub:    sub,
	}
}

// RemoteStore is a typed client for a remote Service.
type RemoteStore struct {
	client peer.Service
	sub    Subscriber
}

// Get returns the item stored under key, or ErrNotFound.
func (r *RemoteStore) Get(ctx context.Context, key string) (*Item, error) {
	var item *Item
	if err := r.client.Call(ctx, &item, MethodPrefix+"get", key); err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

// Set stores value under key.
func (r *RemoteStore) Set(ctx context.Context, key string, value string) (*Item, error) {
	var item Item
	if err := r.client.Call(ctx, &item, MethodPrefix+"set", key, value); err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes key, or returns ErrNotFound.
func (r *RemoteStore) Delete(ctx context.Context, key string) error {
	var deleted bool
	if err := r.client.Call(ctx, &deleted, MethodPrefix+"delete", key); err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// Keys returns the keys with the given prefix.
func (r *RemoteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	if err := r.client.Call(ctx, &keys, MethodPrefix+"keys", prefix); err != nil {
		return nil, err
	}
	return keys, nil
}

// Watch calls fn with every change under prefix until unsubscribed.
func (r *RemoteStore) Watch(ctx context.Context, prefix string, fn func(Change)) (pubsub.Unsubscribe, error) {
	return r.sub.Subscribe(ctx, WatchMethod, prefix, fn)
}
