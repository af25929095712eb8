// Package kvstore is a small key/value service that can be served to a remote
// peer, including change notifications over pubsub.
package kvstore

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("item not found")

// ErrEmptyKey is returned when an operation is given an empty key.
var ErrEmptyKey = errors.New("empty key")

// Item is a stored value with its metadata.
type Item struct {
	Key     string    `json:"key"`
	Value   string    `json:"value"`
	Version int64     `json:"version"`
	Updated time.Time `json:"updated"`
}

// Store is a persistence driver for items.
type Store interface {
	// Get returns the item for key, or ErrNotFound.
	Get(key string) (*Item, error)
	// Set stores value under key, incrementing the item version.
	Set(key string, value string) (*Item, error)
	// Delete removes key, or returns ErrNotFound.
	Delete(key string) error
	// Keys returns all keys with the given prefix, sorted.
	Keys(prefix string) ([]string, error)

	Close() error
}
