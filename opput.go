package kvdoc

import (
	"bytes"
	"errors"
	"fmt"
)

var errReadOnly = errors.New("kvdoc: write in a read-only transaction")

// Put stores value at key and appends the new state to the key's history.
// Writing a value identical to the current one is a no-op.
func (tx *Tx) Put(key string, value []byte) error {
	if !tx.IsWritable() {
		return errReadOnly
	}
	if err := validateStorageKey(key); err != nil {
		return err
	}
	if len(value) == 0 {
		return fmt.Errorf("kvdoc: put %s: empty value", key)
	}
	keyRaw := []byte(key)
	dataBuck := tx.data()

	old := dataBuck.Get(keyRaw)
	if old != nil && bytes.Equal(old, value) {
		if tx.db.verbose {
			tx.db.logf("db: PUT.NOOP %s", key)
		}
		return nil
	}

	// Bolt requires value to stay intact until commit.
	value = bytes.Clone(value)
	if err := dataBuck.Put(keyRaw, value); err != nil {
		return fmt.Errorf("kvdoc: put %s: %w", key, err)
	}
	if err := tx.appendHistory(key, value, false); err != nil {
		return err
	}
	tx.markWritten()

	if tx.db.verbose {
		tx.db.logf("db: PUT %s => %d bytes", key, len(value))
	}
	tx.notify(Change{Key: key, Op: OpPut, TxID: tx.txID, Time: tx.time, Value: value})
	return nil
}

// Create is Put that refuses to overwrite an existing value.
func (tx *Tx) Create(key string, value []byte) error {
	if tx.Exists(key) {
		return &AlreadyExistsError{Key: key}
	}
	return tx.Put(key, value)
}

// Delete removes the value at key, recording a deletion in the key's
// history. Deleting an absent key fails with a NotFoundError.
func (tx *Tx) Delete(key string) error {
	if !tx.IsWritable() {
		return errReadOnly
	}
	if err := validateStorageKey(key); err != nil {
		return err
	}
	keyRaw := []byte(key)
	dataBuck := tx.data()
	if dataBuck.Get(keyRaw) == nil {
		if tx.db.verbose {
			tx.db.logf("db: DELETE.NOTFOUND %s", key)
		}
		return &NotFoundError{Key: key}
	}
	if err := dataBuck.Delete(keyRaw); err != nil {
		return fmt.Errorf("kvdoc: delete %s: %w", key, err)
	}
	if err := tx.appendHistory(key, nil, true); err != nil {
		return err
	}
	tx.markWritten()

	if tx.db.verbose {
		tx.db.logf("db: DELETE %s", key)
	}
	tx.notify(Change{Key: key, Op: OpDelete, TxID: tx.txID, Time: tx.time})
	return nil
}
