package kvdoc

import (
	"strings"
	"testing"
)

func TestStatsAndDump(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		putEntities(t, db)
		db.Write(func(tx *Tx) {
			ensure(tx.Put("entity003", []byte("garbled")))
			ensure(tx.Delete("entity002"))
		})

		db.Read(func(tx *Tx) {
			s := tx.Stats()
			deepEqual(t, s.Keys, 2)
			deepEqual(t, s.HistoryRecords, 4)
			if s.StoreSize <= 0 || s.TotalSize() != s.DataSize+s.HistorySize {
				t.Fatalf("unexpected sizes: %+v", s)
			}

			dump := tx.Dump(DumpAll)
			for _, want := range []string{
				"data (2 keys, 4 history records)",
				`entity001 = {"docType":"entity","entityName":"Alpha","entityRegistrationNumber":"001"}`,
				`entity003 = (raw) "garbled"`,
				"history entity002.",
				"DELETE",
			} {
				if !strings.Contains(dump, want) {
					t.Errorf("Dump does not contain %q:\n%s", want, dump)
				}
			}

			dump = tx.Dump(DumpRecords)
			if strings.Contains(dump, "history") {
				t.Errorf("Dump(DumpRecords) includes history:\n%s", dump)
			}
		})
	})
}

func TestDumpFlags_Contains(t *testing.T) {
	f := DumpHeaders | DumpStats
	if !f.Contains(DumpHeaders) || f.Contains(DumpHistory) || !DumpAll.Contains(f) {
		t.Fatalf("Contains returned unexpected values for %v", f)
	}
}
