package kvdoc

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type txStamp struct {
	id   string
	time time.Time
}

func writeStamped(db *DB, f func(tx *Tx)) txStamp {
	var st txStamp
	db.Write(func(tx *Tx) {
		st = txStamp{tx.ID(), tx.Time()}
		f(tx)
	})
	return st
}

func TestHistory_InsertUpdateDelete(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		s1 := writeStamped(db, func(tx *Tx) {
			putJSON(t, tx, "entity001", map[string]any{"docType": "entity", "entityName": "Alpha"})
		})
		s2 := writeStamped(db, func(tx *Tx) {
			putJSON(t, tx, "entity001", map[string]any{"docType": "entity", "entityName": "Alpha Prime"})
		})
		s3 := writeStamped(db, func(tx *Tx) {
			ensure(tx.Delete("entity001"))
		})

		db.Read(func(tx *Tx) {
			entries, err := tx.History("entity001")
			if err != nil {
				t.Fatalf("History failed: %v", err)
			}
			deepEqual(t, entries, []HistoryEntry{
				{TxID: s1.id, Timestamp: s1.time, Record: map[string]any{"docType": "entity", "entityName": "Alpha"}, Raw: []byte(`{"docType":"entity","entityName":"Alpha"}`)},
				{TxID: s2.id, Timestamp: s2.time, Record: map[string]any{"docType": "entity", "entityName": "Alpha Prime"}, Raw: []byte(`{"docType":"entity","entityName":"Alpha Prime"}`)},
				{TxID: s3.id, Timestamp: s3.time, IsDelete: true},
			})
			if _, err := tx.Lookup("entity001"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Lookup after delete err = %v, wanted ErrNotFound", err)
			}
		})
	})
}

func TestHistory_DistinctTransactions(t *testing.T) {
	db := setupMem(t)
	s1 := writeStamped(db, func(tx *Tx) {
		ensure(tx.Put("entity001", []byte(`{"v":1}`)))
		ensure(tx.Put("entity001", []byte(`{"v":2}`)))
	})
	s2 := writeStamped(db, func(tx *Tx) {
		ensure(tx.Put("entity001", []byte(`{"v":3}`)))
	})
	if s1.id == s2.id || !s2.time.After(s1.time) {
		t.Fatalf("transactions not distinguished: %v, %v", s1, s2)
	}
	db.Read(func(tx *Tx) {
		entries := must(tx.History("entity001"))
		var ids []string
		for _, e := range entries {
			ids = append(ids, e.TxID)
		}
		deepEqual(t, ids, []string{s1.id, s1.id, s2.id})
	})
}

func TestHistory_NoOpPutIsNotRecorded(t *testing.T) {
	db := setupMem(t)
	db.Write(func(tx *Tx) {
		ensure(tx.Put("entity001", []byte(`{"v":1}`)))
	})
	db.Write(func(tx *Tx) {
		ensure(tx.Put("entity001", []byte(`{"v":1}`)))
	})
	db.Read(func(tx *Tx) {
		deepEqual(t, len(must(tx.History("entity001"))), 1)
	})
}

func TestHistory_KeysDoNotBleed(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		db.Write(func(tx *Tx) {
			ensure(tx.Put("entity0", []byte(`{"k":"0"}`)))
			ensure(tx.Put("entity00", []byte(`{"k":"00"}`)))
			ensure(tx.Put("entity01", []byte(`{"k":"01"}`)))
		})
		db.Write(func(tx *Tx) {
			ensure(tx.Put("entity0", []byte(`{"k":"0'"}`)))
		})
		db.Read(func(tx *Tx) {
			entries := must(tx.History("entity0"))
			deepEqual(t, len(entries), 2)
			deepEqual(t, entries[1].Record, map[string]any{"k": "0'"})
			deepEqual(t, len(must(tx.History("entity00"))), 1)
		})
	})
}

func TestHistory_Unavailable(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		putEntities(t, db)
		db.Read(func(tx *Tx) {
			_, err := tx.History("entity999")
			if !errors.Is(err, ErrHistoryUnavailable) {
				t.Fatalf("History err = %v, wanted ErrHistoryUnavailable", err)
			}
			var hue *HistoryUnavailableError
			if !errors.As(err, &hue) || hue.Key != "entity999" {
				t.Fatalf("History err = %#v, wanted HistoryUnavailableError for entity999", err)
			}

			_, err = tx.HistoryJSON("bad\x00key")
			if !errors.Is(err, ErrHistoryUnavailable) || !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("HistoryJSON err = %v, wanted ErrHistoryUnavailable wrapping ErrInvalidKey", err)
			}
		})
	})
}

func TestHistory_RolledBackWritesLeaveNoTrace(t *testing.T) {
	db := setupMem(t)
	err := db.Tx(true, func(tx *Tx) error {
		ensure(tx.Put("entity001", []byte(`{}`)))
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("db.Tx err = nil, wanted boom")
	}
	db.Read(func(tx *Tx) {
		if _, err := tx.History("entity001"); !errors.Is(err, ErrHistoryUnavailable) {
			t.Fatalf("History err = %v, wanted ErrHistoryUnavailable", err)
		}
	})
}

func TestHistory_DecodeFallback(t *testing.T) {
	db := setupMem(t)
	db.Write(func(tx *Tx) {
		ensure(tx.Put("entity001", []byte("garbled")))
	})
	db.Read(func(tx *Tx) {
		entries := must(tx.History("entity001"))
		deepEqual(t, len(entries), 1)
		if entries[0].Record != nil {
			t.Fatalf("Record = %v, wanted nil", entries[0].Record)
		}
		deepEqual(t, entries[0].Raw, []byte("garbled"))
	})
}

func TestHistory_ChecksumMismatch(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		db.Write(func(tx *Tx) {
			ensure(tx.Put("entity001", []byte(`{"v":1}`)))
		})
		db.Write(func(tx *Tx) {
			buck := tx.history()
			k, v := buck.Cursor().First()
			rec := must(decodeHistoryRecord(v))
			rec.Value = []byte(`{"v":2}`)
			ensure(buck.Put(append([]byte(nil), k...), must(msgpack.Marshal(&rec))))
		})
		db.Read(func(tx *Tx) {
			_, err := tx.History("entity001")
			var de *DataError
			if !errors.As(err, &de) {
				t.Fatalf("History err = %v, wanted *DataError", err)
			}
		})
	})
}

func TestHistoryJSON(t *testing.T) {
	db := setupMem(t)
	s1 := writeStamped(db, func(tx *Tx) {
		ensure(tx.Put("entity001", []byte(`{"docType":"entity"}`)))
	})
	s2 := writeStamped(db, func(tx *Tx) {
		ensure(tx.Put("entity001", []byte(`oops`)))
	})
	s3 := writeStamped(db, func(tx *Tx) {
		ensure(tx.Delete("entity001"))
	})
	db.Read(func(tx *Tx) {
		out := must(tx.HistoryJSON("entity001"))
		deepEqual(t, string(out), fmt.Sprintf(`[`+
			`{"TxId":%q,"Timestamp":%q,"IsDelete":false,"Value":{"docType":"entity"}},`+
			`{"TxId":%q,"Timestamp":%q,"IsDelete":false,"Value":"oops"},`+
			`{"TxId":%q,"Timestamp":%q,"IsDelete":true,"Value":null}]`,
			s1.id, s1.time.Format(time.RFC3339Nano),
			s2.id, s2.time.Format(time.RFC3339Nano),
			s3.id, s3.time.Format(time.RFC3339Nano)))
	})
}

type fakeHistoryIterator struct {
	mods   []KeyModification
	pos    int
	closed int
}

func (it *fakeHistoryIterator) Next() bool {
	it.pos++
	return it.pos <= len(it.mods)
}
func (it *fakeHistoryIterator) Modification() KeyModification { return it.mods[it.pos-1] }
func (it *fakeHistoryIterator) Err() error                    { return nil }
func (it *fakeHistoryIterator) Close() error {
	it.closed++
	return nil
}

func TestReconstruct_ClosesOnce(t *testing.T) {
	mods := []KeyModification{
		{TxID: "a", Timestamp: testEpoch, Value: []byte(`{"v":1}`)},
		{TxID: "b", Timestamp: testEpoch.Add(time.Second), Value: []byte(`{"v":2}`)},
		{TxID: "c", Timestamp: testEpoch.Add(2 * time.Second), IsDelete: true},
	}

	it := &fakeHistoryIterator{mods: mods}
	seq := Reconstruct(it)
	entries := must(Collect(seq))
	deepEqual(t, len(entries), 3)
	deepEqual(t, []bool{entries[0].IsDelete, entries[1].IsDelete, entries[2].IsDelete}, []bool{false, false, true})
	deepEqual(t, it.closed, 1)

	if _, err := Collect(seq); !errors.Is(err, ErrIteratorConsumed) {
		t.Fatalf("second Collect err = %v, wanted ErrIteratorConsumed", err)
	}
	deepEqual(t, it.closed, 1)

	it = &fakeHistoryIterator{mods: mods}
	for range Reconstruct(it) {
		break
	}
	deepEqual(t, it.closed, 1)
}

func TestHistoryKeyLayout(t *testing.T) {
	hk := historyKey("entity001", 258)
	deepEqual(t, hk, append([]byte("entity001\x00"), 0, 0, 0, 0, 0, 0, 1, 2))
	key, seq, ok := splitHistoryKey(hk)
	if !ok || key != "entity001" || seq != 258 {
		t.Fatalf("splitHistoryKey = (%q, %d, %v), wanted (entity001, 258, true)", key, seq, ok)
	}
	if _, _, ok := splitHistoryKey([]byte("short")); ok {
		t.Fatalf("splitHistoryKey(short) = true, wanted false")
	}
}
