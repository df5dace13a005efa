package kvdoc

import (
	"encoding/json"
)

type Stats struct {
	Keys           int
	HistoryRecords int

	DataSize     int64
	DataAlloc    int64
	HistorySize  int64
	HistoryAlloc int64

	StoreSize int64
}

func (s *Stats) TotalSize() int64 {
	return s.DataSize + s.HistorySize
}

func (s *Stats) TotalAlloc() int64 {
	return s.DataAlloc + s.HistoryAlloc
}

func (tx *Tx) Stats() Stats {
	bs := tx.data().Stats()
	result := Stats{
		Keys:      bs.KeyN,
		DataSize:  bs.LeafInuse,
		DataAlloc: bs.TotalAlloc(),
		StoreSize: tx.stx.Size(),
	}
	if hb := tx.history(); hb != nil {
		bs = hb.Stats()
		result.HistoryRecords = bs.KeyN
		result.HistorySize = bs.LeafInuse
		result.HistoryAlloc = bs.TotalAlloc()
	}
	return result
}

func loggableRecord(rec map[string]any) string {
	if rec == nil {
		return "<none>"
	}
	return string(must(json.Marshal(rec)))
}
