package kvdoc

import (
	"encoding/json"
	"time"
)

// queryResultJSON and historyEntryJSON are the payload shapes returned to
// callers. Undecodable values are carried as JSON strings.
type queryResultJSON struct {
	Key    string `json:"Key"`
	Record any    `json:"Record"`
}

type historyEntryJSON struct {
	TxID      string `json:"TxId"`
	Timestamp string `json:"Timestamp"`
	IsDelete  bool   `json:"IsDelete"`
	Value     any    `json:"Value"`
}

// MarshalQueryResults serializes entries as a JSON array of {Key, Record}
// pairs in their original order. An empty result is [].
//
// An undecodable record becomes a JSON string of its raw bytes. Bytes that
// are not valid UTF-8 are replaced with U+FFFD, so such values do not
// round-trip; use Raw for the exact bytes.
func MarshalQueryResults(entries []QueryResultEntry) ([]byte, error) {
	out := make([]queryResultJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, queryResultJSON{
			Key:    e.Key,
			Record: payloadValue(e.Record, e.Raw),
		})
	}
	return json.Marshal(out)
}

// MarshalHistory serializes entries as a JSON array of audit entries. The
// Value of a deletion is null. Undecodable values are rendered as strings
// the same lossy way as in MarshalQueryResults.
func MarshalHistory(entries []HistoryEntry) ([]byte, error) {
	out := make([]historyEntryJSON, 0, len(entries))
	for _, e := range entries {
		v := historyEntryJSON{
			TxID:      e.TxID,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
			IsDelete:  e.IsDelete,
		}
		if !e.IsDelete || e.Raw != nil {
			v.Value = payloadValue(e.Record, e.Raw)
		}
		out = append(out, v)
	}
	return json.Marshal(out)
}

func payloadValue(rec map[string]any, raw []byte) any {
	if rec != nil {
		return rec
	}
	return string(raw)
}
