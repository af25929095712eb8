package badger

import (
	"bytes"

	"github.com/dgraph-io/badger/v2"
)

const dbVersion = 2

// legacyPrefix is the namespace of version 1 databases, where items were
// stored directly under kv:<key>. A user key named "version" collided with
// versionKey in that layout.
var legacyPrefix = []byte("kv:")

var migrations = []migrationStep{
	{
		from:  0,
		name:  "stamp",
		apply: func(txn *badger.Txn) error { return nil },
	},
	{
		from:  1,
		name:  "item namespace",
		apply: moveLegacyItems,
	},
}

// moveLegacyItems moves every version 1 item from kv:<key> to kv:item:<key>.
// Old and new keys share a prefix, so every value is read and every old key
// deleted before anything is written.
func moveLegacyItems(txn *badger.Txn) error {
	type entry struct {
		key []byte
		val []byte
	}
	var entries []entry
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	for it.Seek(legacyPrefix); it.ValidForPrefix(legacyPrefix); it.Next() {
		item := it.Item()
		if bytes.Equal(item.Key(), versionKey) {
			continue
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			it.Close()
			return err
		}
		entries = append(entries, entry{key: item.KeyCopy(nil), val: val})
	}
	it.Close()

	for _, e := range entries {
		if err := txn.Delete(e.key); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := txn.Set(itemKey(string(e.key[len(legacyPrefix):])), e.val); err != nil {
			return err
		}
	}
	return nil
}

// MigrateLatest brings db to the schema version written by this package. dir
// only labels errors.
func MigrateLatest(db *badger.DB, dir string) error {
	return migrate(db, dir, migrations, dbVersion)
}
