package kvdoc

import (
	"fmt"
)

// GetRaw returns the current value stored at key, or nil if there is none.
// The slice is valid until the transaction ends.
func (tx *Tx) GetRaw(key string) []byte {
	v := tx.data().Get([]byte(key))
	if tx.db.verbose {
		if v != nil {
			tx.db.logf("db: GET %s => %d bytes", key, len(v))
		} else {
			tx.db.logf("db: GET.NOTFOUND %s", key)
		}
	}
	return v
}

// Lookup returns a copy of the value stored at key. An absent or empty
// value is reported as a NotFoundError.
func (tx *Tx) Lookup(key string) ([]byte, error) {
	if err := validateStorageKey(key); err != nil {
		return nil, err
	}
	v := tx.GetRaw(key)
	if len(v) == 0 {
		return nil, &NotFoundError{Key: key}
	}
	return append([]byte(nil), v...), nil
}

// LookupRecord returns the record stored at key decoded as a JSON object.
func (tx *Tx) LookupRecord(key string) (map[string]any, error) {
	v, err := tx.Lookup(key)
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(v)
	if err != nil {
		return nil, dataErrf(v, 0, err, "decode %s", key)
	}
	return rec, nil
}

func (tx *Tx) Exists(key string) bool {
	found := len(tx.data().Get([]byte(key))) > 0
	if tx.db.verbose {
		tx.db.logf("db: EXISTS.%s %s", map[bool]string{false: "NO", true: "YES"}[found], key)
	}
	return found
}

// ReadDoc is a point lookup of docType+id in a fresh read transaction.
func (db *DB) ReadDoc(docType, id string) ([]byte, error) {
	var result []byte
	err := db.ReadErr(func(tx *Tx) error {
		var err error
		result, err = tx.Lookup(MakeKey(docType, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("kvdoc: read %s %s: %w", docType, id, err)
	}
	return result, nil
}
