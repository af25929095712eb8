// Package badger implements a persistent kvstore.Store backed by BadgerDB.
package badger

import (
	"sort"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/vipnode/peerrpc/kvstore"
)

var itemPrefix = []byte("kv:item:")

func itemKey(key string) []byte {
	return append(append([]byte{}, itemPrefix...), key...)
}

// Open returns a kvstore.Store implementation using Badger as the storage
// driver, migrated to the latest version. The store should be .Close()'d after
// use.
func Open(opts badger.Options) (*badgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := MigrateLatest(db, opts.Dir); err != nil {
		db.Close()
		return nil, err
	}
	return &badgerStore{db: db}, nil
}

// OpenDir opens a persistent store in dir.
func OpenDir(dir string) (*badgerStore, error) {
	return Open(badger.DefaultOptions(dir).WithLogger(nil))
}

// OpenMemory opens a store that is never written to disk.
func OpenMemory() (*badgerStore, error) {
	return Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

var _ kvstore.Store = &badgerStore{}

type badgerStore struct {
	db *badger.DB
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

func (s *badgerStore) Get(key string) (*kvstore.Item, error) {
	var item kvstore.Item
	err := s.db.View(func(txn *badger.Txn) error {
		return getItem(txn, itemKey(key), &item)
	})
	if err == badger.ErrKeyNotFound {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *badgerStore) Set(key string, value string) (*kvstore.Item, error) {
	if key == "" {
		return nil, kvstore.ErrEmptyKey
	}
	var item kvstore.Item
	err := s.db.Update(func(txn *badger.Txn) error {
		k := itemKey(key)
		if err := getItem(txn, k, &item); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		item.Key = key
		item.Value = value
		item.Version++
		item.Updated = time.Now()
		return setItem(txn, k, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *badgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		k := itemKey(key)
		if !hasKey(txn, k) {
			return kvstore.ErrNotFound
		}
		return txn.Delete(k)
	})
}

func (s *badgerStore) Keys(prefix string) ([]string, error) {
	keys := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		var item kvstore.Item
		return loopItem(txn, itemKey(prefix), &item, func() error {
			keys = append(keys, item.Key)
			item = kvstore.Item{}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// Badger iterates in byte order already, this keeps it explicit.
	sort.Strings(keys)
	return keys, nil
}
