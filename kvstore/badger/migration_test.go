package badger

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/vipnode/peerrpc/kvstore"
)

func openRaw(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dbVersionOf(t *testing.T, db *badger.DB) int {
	t.Helper()
	var version int
	if err := db.View(func(txn *badger.Txn) error {
		var err error
		version, err = getVersion(txn)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	return version
}

func TestMigrationFresh(t *testing.T) {
	store, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if got := dbVersionOf(t, store.db); got != dbVersion {
		t.Errorf("incorrect version on fresh database: %d", got)
	}
	// Already latest
	if err := MigrateLatest(store.db, "memory"); err != nil {
		t.Errorf("unexpected error: %s", err)
	}
}

func TestMigrationItemNamespace(t *testing.T) {
	db := openRaw(t)

	legacy := map[string]kvstore.Item{
		"foo":    {Key: "foo", Value: "bar", Version: 3},
		"item:x": {Key: "item:x", Value: "y", Version: 1},
	}
	if err := db.Update(func(txn *badger.Txn) error {
		if err := setVersion(txn, 1); err != nil {
			return err
		}
		for key, item := range legacy {
			item := item
			if err := setItem(txn, append([]byte("kv:"), key...), &item); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := MigrateLatest(db, "memory"); err != nil {
		t.Fatal(err)
	}
	if got := dbVersionOf(t, db); got != dbVersion {
		t.Errorf("got version %d; want %d", got, dbVersion)
	}

	store := &badgerStore{db: db}
	for key, want := range legacy {
		item, err := store.Get(key)
		if err != nil {
			t.Fatalf("%q: %s", key, err)
		}
		if item.Value != want.Value || item.Version != want.Version {
			t.Errorf("got: %+v; want %+v", item, want)
		}
	}
	keys, err := store.Keys("")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"foo", "item:x"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("got: %v; want %v", keys, want)
	}
	if err := db.View(func(txn *badger.Txn) error {
		if hasKey(txn, []byte("kv:foo")) {
			t.Error("legacy key kv:foo was not removed")
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	// Item versions continue from the migrated value.
	item, err := store.Set("foo", "baz")
	if err != nil {
		t.Fatal(err)
	}
	if item.Version != 4 {
		t.Errorf("got version %d; want 4", item.Version)
	}
}

func TestMigrationErrors(t *testing.T) {
	db := openRaw(t)
	if err := db.Update(func(txn *badger.Txn) error {
		return setVersion(txn, dbVersion+1)
	}); err != nil {
		t.Fatal(err)
	}

	var migErr *MigrationError
	err := MigrateLatest(db, "memory")
	if !errors.As(err, &migErr) || migErr.From != dbVersion+1 {
		t.Errorf("expected migration error for newer database, got: %v", err)
	}

	boom := errors.New("boom")
	failing := []migrationStep{
		{from: dbVersion + 1, name: "explode", apply: func(txn *badger.Txn) error {
			if err := txn.Set([]byte("kv:item:partial"), []byte{}); err != nil {
				return err
			}
			return boom
		}},
	}
	err = migrate(db, "memory", failing, dbVersion+2)
	if !errors.As(err, &migErr) || migErr.Step != "explode" || !errors.Is(err, boom) {
		t.Errorf("expected migration error with cause, got: %v", err)
	}
	// The failed step was rolled back.
	if got := dbVersionOf(t, db); got != dbVersion+1 {
		t.Errorf("got version %d; want %d", got, dbVersion+1)
	}
	if err := db.View(func(txn *badger.Txn) error {
		if hasKey(txn, []byte("kv:item:partial")) {
			t.Error("failed migration step was committed")
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	err = migrate(db, "memory", nil, dbVersion+2)
	if !errors.As(err, &migErr) {
		t.Errorf("expected migration error for missing step, got: %v", err)
	}
}
