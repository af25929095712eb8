package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
)

// versionKey holds the schema version of the database.
var versionKey = []byte("kv:version")

// migrationStep upgrades the schema from version from to from+1. It runs
// inside the same update transaction as every other step, so a failed step
// leaves the database untouched.
type migrationStep struct {
	from  int
	name  string
	apply func(txn *badger.Txn) error
}

// MigrationError is returned when a database can't be brought to the schema
// version this package writes.
type MigrationError struct {
	Dir   string
	From  int
	To    int
	Step  string
	Cause error
}

func (err *MigrationError) Error() string {
	if err.Step == "" {
		return fmt.Sprintf("kvstore database %q at version %d: %s", err.Dir, err.From, err.Cause)
	}
	return fmt.Sprintf("kvstore database %q: migration %q from version %d failed: %s", err.Dir, err.Step, err.From, err.Cause)
}

func (err *MigrationError) Unwrap() error {
	return err.Cause
}

// migrate runs every step from the stored version up to latest. Databases
// newer than latest are refused rather than guessed at.
func migrate(db *badger.DB, dir string, steps []migrationStep, latest int) error {
	return db.Update(func(txn *badger.Txn) error {
		version, err := getVersion(txn)
		if err != nil {
			return &MigrationError{Dir: dir, From: version, To: latest, Cause: err}
		}
		if version > latest {
			return &MigrationError{Dir: dir, From: version, To: latest, Cause: fmt.Errorf("unsupported version, newest known is %d", latest)}
		}
		for _, step := range steps {
			if step.from < version {
				continue
			}
			if step.from != version {
				return &MigrationError{Dir: dir, From: version, To: latest, Step: step.name, Cause: fmt.Errorf("missing migration from version %d", version)}
			}
			if version == latest {
				break
			}
			if err := step.apply(txn); err != nil {
				return &MigrationError{Dir: dir, From: version, To: latest, Step: step.name, Cause: err}
			}
			version++
			if err := setVersion(txn, version); err != nil {
				return &MigrationError{Dir: dir, From: version, To: latest, Step: step.name, Cause: err}
			}
		}
		if version != latest {
			return &MigrationError{Dir: dir, From: version, To: latest, Cause: fmt.Errorf("no migration to version %d", latest)}
		}
		return nil
	})
}

// getVersion returns 0 for a database that was never stamped.
func getVersion(txn *badger.Txn) (int, error) {
	var version int
	if err := getItem(txn, versionKey, &version); err != nil && err != badger.ErrKeyNotFound {
		return version, err
	}
	return version, nil
}

func setVersion(txn *badger.Txn, version int) error {
	return setItem(txn, versionKey, &version)
}
