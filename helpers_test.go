package kvdoc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

var testEpoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testOptions() Options {
	clock := testEpoch
	var n int
	return Options{
		IsTesting: true,
		Verbose:   true,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
		NewTxID: func() string {
			n++
			return fmt.Sprintf("tx%d", n)
		},
	}
}

func setup(t testing.TB) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kvdoc_test.db")
	t.Logf("DB: %s", path)
	db := must(Open(path, testOptions()))
	t.Cleanup(db.Close)
	return db
}

func setupMem(t testing.TB) *DB {
	t.Helper()
	db := OpenMem(testOptions())
	t.Cleanup(db.Close)
	return db
}

// eachBackend runs f against a Bolt database and an in-memory one.
func eachBackend(t *testing.T, f func(t *testing.T, db *DB)) {
	t.Run("bolt", func(t *testing.T) {
		f(t, setup(t))
	})
	t.Run("mem", func(t *testing.T) {
		f(t, setupMem(t))
	})
}

func deepEqual[T any](t testing.TB, a, e T) {
	if diff := cmp.Diff(e, a); diff != "" {
		t.Helper()
		t.Errorf("** mismatch (-wanted +got):\n%s", diff)
	}
}

func isempty[T any, S ~[]T](t testing.TB, a S) {
	if len(a) > 0 {
		t.Helper()
		t.Errorf("** got %v, wanted empty slice", a)
	}
}

func putJSON(t testing.TB, tx *Tx, key string, rec map[string]any) {
	t.Helper()
	if err := tx.Put(key, must(json.Marshal(rec))); err != nil {
		t.Fatalf("Put(%s) failed: %v", key, err)
	}
}

func putEntities(t testing.TB, db *DB) {
	t.Helper()
	db.Write(func(tx *Tx) {
		putJSON(t, tx, "entity001", map[string]any{"docType": "entity", "entityRegistrationNumber": "001", "entityName": "Alpha"})
		putJSON(t, tx, "entity002", map[string]any{"docType": "entity", "entityRegistrationNumber": "002", "entityName": "Beta"})
	})
}

func keysOf(entries []QueryResultEntry) []string {
	keys := []string{}
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys
}

// fakeIterator serves fixed entries and records how it was released.
type fakeIterator struct {
	keys   []string
	values [][]byte
	pos    int
	err    error
	closed int
}

func newFakeIterator(kvs ...string) *fakeIterator {
	it := &fakeIterator{pos: -1}
	for i := 0; i+1 < len(kvs); i += 2 {
		it.keys = append(it.keys, kvs[i])
		it.values = append(it.values, []byte(kvs[i+1]))
	}
	return it
}

func (it *fakeIterator) Next() bool {
	if it.closed > 0 {
		panic("Next after Close")
	}
	it.pos++
	return it.pos < len(it.keys)
}

func (it *fakeIterator) Key() string   { return it.keys[it.pos] }
func (it *fakeIterator) Value() []byte { return it.values[it.pos] }

func (it *fakeIterator) Err() error {
	if it.pos >= len(it.keys) {
		return it.err
	}
	return nil
}

func (it *fakeIterator) Close() error {
	it.closed++
	return nil
}
