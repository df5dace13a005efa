package kvdoc

import (
	"bytes"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"
)

// KeyModification is one raw entry of a key's change log.
type KeyModification struct {
	TxID      string
	Timestamp time.Time
	IsDelete  bool
	Value     []byte
}

// HistoryEntry is one past state of a key. Record is nil for deletions and
// for values that are not JSON objects; Raw holds the stored value.
type HistoryEntry struct {
	TxID      string
	Timestamp time.Time
	IsDelete  bool
	Record    map[string]any
	Raw       []byte
}

// HistoryIterator is a single-pass iterator over a key's change log, oldest
// first. Close must be called exactly once by the consumer.
type HistoryIterator interface {
	Next() bool
	Modification() KeyModification
	Err() error
	Close() error
}

type HistoryCursor struct {
	key string
	rc  *RangeCursor
	mod KeyModification
	err error
}

var _ HistoryIterator = (*HistoryCursor)(nil)

func (c *HistoryCursor) Next() bool {
	if c.err != nil || !c.rc.Next() {
		return false
	}
	rec, err := decodeHistoryRecord(c.rc.Value())
	if err != nil {
		c.err = fmt.Errorf("kvdoc: history of %s: %w", c.key, err)
		return false
	}
	c.mod = rec.modification()
	return true
}

func (c *HistoryCursor) Modification() KeyModification { return c.mod }
func (c *HistoryCursor) Err() error                    { return c.err }

func (c *HistoryCursor) Close() error {
	c.mod = KeyModification{}
	return c.rc.Close()
}

// HistoryScan opens a cursor over the change log of key. It fails with
// a HistoryUnavailableError if key has never been written.
func (tx *Tx) HistoryScan(key string) (*HistoryCursor, error) {
	if err := validateStorageKey(key); err != nil {
		return nil, &HistoryUnavailableError{Key: key, Err: err}
	}
	buck := tx.history()
	if buck == nil {
		return nil, &HistoryUnavailableError{Key: key, Err: fmt.Errorf("missing %s bucket", historyBucketName)}
	}
	prefix := historyKeyPrefix(key)
	if k, _ := buck.Cursor().Seek(prefix); k == nil || !bytes.HasPrefix(k, prefix) {
		return nil, &HistoryUnavailableError{Key: key}
	}
	if tx.db.verbose {
		tx.db.logger.Debug("db: HISTORY", "key", key)
	}
	return &HistoryCursor{
		key: key,
		rc:  RawPrefix(prefix).newCursor(buck.Cursor(), tx.db.logger),
	}, nil
}

// Reconstruct lazily turns a change log into audit entries, preserving the
// log's order. Values that fail to decode are kept as raw bytes.
//
// The returned sequence is single-pass and closes it exactly once.
func Reconstruct(it HistoryIterator) iter.Seq2[HistoryEntry, error] {
	return reconstruct(it, slog.Default())
}

func reconstruct(it HistoryIterator, logger *slog.Logger) iter.Seq2[HistoryEntry, error] {
	var used bool
	return func(yield func(HistoryEntry, error) bool) {
		if used {
			yield(HistoryEntry{}, ErrIteratorConsumed)
			return
		}
		used = true
		defer func() {
			if err := it.Close(); err != nil {
				logger.Warn("kvdoc: closing history iterator", "err", err)
			}
		}()

		for it.Next() {
			mod := it.Modification()
			entry := HistoryEntry{
				TxID:      mod.TxID,
				Timestamp: mod.Timestamp,
				IsDelete:  mod.IsDelete,
			}
			if !mod.IsDelete || len(mod.Value) > 0 {
				entry.Raw = slices.Clone(mod.Value)
				rec, err := decodeRecord(entry.Raw)
				if err != nil {
					logger.Debug("kvdoc: keeping undecodable history value as raw bytes", "tx", mod.TxID, "err", err)
				} else {
					entry.Record = rec
				}
			}
			if !yield(entry, nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(HistoryEntry{}, err)
		}
	}
}

// History returns every recorded state of key, oldest first.
func (tx *Tx) History(key string) ([]HistoryEntry, error) {
	cur, err := tx.HistoryScan(key)
	if err != nil {
		return nil, err
	}
	return Collect(reconstruct(cur, tx.db.logger))
}

// HistoryJSON returns the history of key serialized as a JSON array.
func (tx *Tx) HistoryJSON(key string) ([]byte, error) {
	entries, err := tx.History(key)
	if err != nil {
		return nil, err
	}
	return MarshalHistory(entries)
}
