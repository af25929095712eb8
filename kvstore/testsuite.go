package kvstore

import (
	"reflect"
	"testing"
)

// TestSuite runs a suite of tests against a store implementation.
func TestSuite(t *testing.T, newStore func() Store) {
	t.Helper()
	t.Run("Item", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		if _, err := s.Get("foo"); err != ErrNotFound {
			t.Errorf("expected not found error, got: %v", err)
		}
		if _, err := s.Set("", "bar"); err != ErrEmptyKey {
			t.Errorf("expected empty key error, got: %v", err)
		}

		item, err := s.Set("foo", "bar")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if item.Key != "foo" || item.Value != "bar" || item.Version != 1 {
			t.Errorf("returned wrong item: %+v", item)
		}
		if item.Updated.IsZero() {
			t.Errorf("missing update time: %+v", item)
		}

		got, err := s.Get("foo")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if got.Value != "bar" || got.Version != 1 || !got.Updated.Equal(item.Updated) {
			t.Errorf("got: %+v; want %+v", got, item)
		}

		if item, err = s.Set("foo", "baz"); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if item.Value != "baz" || item.Version != 2 {
			t.Errorf("returned wrong item: %+v", item)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		if err := s.Delete("foo"); err != ErrNotFound {
			t.Errorf("expected not found error, got: %v", err)
		}
		if _, err := s.Set("foo", "bar"); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if err := s.Delete("foo"); err != nil {
			t.Errorf("unexpected error: %s", err)
		}
		if _, err := s.Get("foo"); err != ErrNotFound {
			t.Errorf("expected not found error, got: %v", err)
		}

		// Versions restart after a delete
		item, err := s.Set("foo", "again")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if item.Version != 1 {
			t.Errorf("got version %d; want 1", item.Version)
		}
	})

	t.Run("Keys", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		keys, err := s.Keys("")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if len(keys) != 0 {
			t.Errorf("expected no keys, got: %v", keys)
		}

		for _, key := range []string{"b/2", "a/1", "b/1", "c"} {
			if _, err := s.Set(key, "x"); err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
		}

		keys, err = s.Keys("b/")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if want := []string{"b/1", "b/2"}; !reflect.DeepEqual(keys, want) {
			t.Errorf("got: %v; want %v", keys, want)
		}

		keys, err = s.Keys("")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if want := []string{"a/1", "b/1", "b/2", "c"}; !reflect.DeepEqual(keys, want) {
			t.Errorf("got: %v; want %v", keys, want)
		}
	})
}
