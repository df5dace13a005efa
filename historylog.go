package kvdoc

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// History bucket layout: key 0x00 seq:64be => msgpack(historyRecord).
// seq comes from the bucket sequence, so a key's records sort oldest first.
const historyKeySep = 0

type historyRecord struct {
	TxID   string `msgpack:"tx"`
	Time   int64  `msgpack:"tm"`
	Delete bool   `msgpack:"d,omitempty"`
	Value  []byte `msgpack:"v,omitempty"`
	Sum    uint64 `msgpack:"h"`
}

func historyKeyPrefix(key string) []byte {
	b := make([]byte, 0, len(key)+1+8)
	b = append(b, key...)
	return append(b, historyKeySep)
}

func historyKey(key string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(historyKeyPrefix(key), seq)
}

func splitHistoryKey(hk []byte) (string, uint64, bool) {
	n := len(hk) - 9
	if n < 1 || hk[n] != historyKeySep {
		return "", 0, false
	}
	return string(hk[:n]), binary.BigEndian.Uint64(hk[n+1:]), true
}

func (rec *historyRecord) checksum() uint64 {
	var hdr [9]byte
	binary.BigEndian.PutUint64(hdr[:8], uint64(rec.Time))
	if rec.Delete {
		hdr[8] = 1
	}
	d := xxhash.New()
	d.WriteString(rec.TxID)
	d.Write(hdr[:])
	d.Write(rec.Value)
	return d.Sum64()
}

func (rec *historyRecord) encode() ([]byte, error) {
	rec.Sum = rec.checksum()
	return msgpack.Marshal(rec)
}

func decodeHistoryRecord(raw []byte) (historyRecord, error) {
	var rec historyRecord
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		return historyRecord{}, dataErrf(raw, 0, err, "decode history record")
	}
	if sum := rec.checksum(); sum != rec.Sum {
		return historyRecord{}, dataErrf(raw, 0, nil, "history record checksum mismatch: stored %016x, computed %016x", rec.Sum, sum)
	}
	return rec, nil
}

func (rec *historyRecord) modification() KeyModification {
	return KeyModification{
		TxID:      rec.TxID,
		Timestamp: time.Unix(0, rec.Time).UTC(),
		IsDelete:  rec.Delete,
		Value:     rec.Value,
	}
}

// appendHistory records a mutation of key made by this transaction.
func (tx *Tx) appendHistory(key string, value []byte, isDelete bool) error {
	buck := tx.history()
	if buck == nil {
		return fmt.Errorf("kvdoc: missing %s bucket", historyBucketName)
	}
	seq, err := buck.NextSequence()
	if err != nil {
		return fmt.Errorf("kvdoc: history sequence: %w", err)
	}
	rec := historyRecord{
		TxID:   tx.txID,
		Time:   tx.time.UnixNano(),
		Delete: isDelete,
		Value:  value,
	}
	raw, err := rec.encode()
	if err != nil {
		return fmt.Errorf("kvdoc: encode history record: %w", err)
	}
	return buck.Put(historyKey(key, seq), raw)
}
