package kvdoc

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpHeaders = DumpFlags(1 << iota)
	DumpRecords
	DumpStats
	DumpHistory

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the contents of the database as text, for debugging and tests.
func (tx *Tx) Dump(f DumpFlags) string {
	var w strings.Builder
	s := tx.Stats()

	if f.Contains(DumpHeaders) {
		fmt.Fprintln(&w, dumpSep1)
		fmt.Fprintf(&w, "%s (%d keys, %d history records)\n", dataBucketName, s.Keys, s.HistoryRecords)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(&w, "stats: data_size = %d, data_alloc = %d, history_size = %d, history_alloc = %d, total_alloc = %d\n", s.DataSize, s.DataAlloc, s.HistorySize, s.HistoryAlloc, s.TotalAlloc())
	}

	if f.Contains(DumpRecords) {
		if f.Contains(DumpStats) {
			fmt.Fprintln(&w, dumpSep2)
		}
		c := tx.data().Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			tx.dumpRecord(&w, k, v)
		}
	}

	if f.Contains(DumpHistory) {
		if hb := tx.history(); hb != nil {
			fmt.Fprintln(&w, dumpSep2)
			c := hb.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				tx.dumpHistoryRecord(&w, k, v)
			}
		}
	}
	return w.String()
}

func (tx *Tx) dumpRecord(w *strings.Builder, k, v []byte) {
	rec, err := decodeRecord(v)
	if err != nil {
		fmt.Fprintf(w, "%s = (raw) %q\n", k, v)
		return
	}
	fmt.Fprintf(w, "%s = %s\n", k, loggableRecord(rec))
}

func (tx *Tx) dumpHistoryRecord(w *strings.Builder, k, v []byte) {
	key, seq, ok := splitHistoryKey(k)
	if !ok {
		fmt.Fprintf(w, "history %s ** ERROR: malformed key\n", hexstr(k))
		return
	}
	rec, err := decodeHistoryRecord(v)
	if err != nil {
		fmt.Fprintf(w, "history %s.%d ** ERROR: %v\n", key, seq, err)
		return
	}
	mod := rec.modification()
	if mod.IsDelete {
		fmt.Fprintf(w, "history %s.%d = (tx %s) DELETE\n", key, seq, mod.TxID)
	} else {
		fmt.Fprintf(w, "history %s.%d = (tx %s) %s\n", key, seq, mod.TxID, mod.Value)
	}
}
