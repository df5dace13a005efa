package kvdoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"slices"
)

// QueryResultEntry pairs a storage key with its record. Record is nil when
// the stored bytes are not a JSON object; Raw always holds the stored bytes.
type QueryResultEntry struct {
	Key    string
	Record map[string]any
	Raw    []byte
}

func (e QueryResultEntry) Decoded() bool {
	return e.Record != nil
}

// queryStats counts what a single evaluation has seen.
type queryStats struct {
	Scanned         int
	Matched         int
	DecodeFallbacks int
}

// Evaluate lazily filters the entries of it by sel. Records are decoded as
// JSON objects; an entry that fails to decode is kept with its raw bytes
// and never aborts the scan, but it cannot satisfy equality constraints.
// A selector holding only docType keeps every entry.
//
// The returned sequence is single-pass. It closes it exactly once: when the
// entries run out, when the consumer stops early, or after yielding the
// iterator's error as the final element.
func Evaluate(it ResultsIterator, sel Selector) iter.Seq2[QueryResultEntry, error] {
	ev := &evaluator{sel: sel, logger: slog.Default()}
	return ev.run(it)
}

type evaluator struct {
	sel    Selector
	logger *slog.Logger
	stats  queryStats
}

func (ev *evaluator) run(it ResultsIterator) iter.Seq2[QueryResultEntry, error] {
	var used bool
	return func(yield func(QueryResultEntry, error) bool) {
		if used {
			yield(QueryResultEntry{}, ErrIteratorConsumed)
			return
		}
		used = true
		defer func() {
			if err := it.Close(); err != nil {
				ev.logger.Warn("kvdoc: closing scan iterator", "err", err)
			}
		}()

		filtered := len(ev.sel.Predicates()) > 0
		for it.Next() {
			ev.stats.Scanned++
			entry := QueryResultEntry{
				Key: it.Key(),
				Raw: slices.Clone(it.Value()),
			}
			rec, err := decodeRecord(entry.Raw)
			if err != nil {
				ev.stats.DecodeFallbacks++
				ev.logger.Debug("kvdoc: keeping undecodable record as raw bytes", "key", entry.Key, "err", dataErrf(entry.Raw, 0, err, "decode record"))
			} else {
				entry.Record = rec
			}
			if filtered && (rec == nil || !ev.sel.Matches(rec)) {
				continue
			}
			ev.stats.Matched++
			if !yield(entry, nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(QueryResultEntry{}, err)
		}
	}
}

// Collect drains seq, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	result := []T{}
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// Query returns every record of sel's docType satisfying sel, in key order.
func (tx *Tx) Query(sel Selector) ([]QueryResultEntry, error) {
	startKey, endKey, err := PlanRange(sel)
	if err != nil {
		return nil, err
	}
	ev := &evaluator{sel: sel, logger: tx.db.logger}
	entries, err := Collect(ev.run(tx.RangeScan(startKey, endKey)))
	if tx.db.verbose {
		tx.db.logger.Debug("db: QUERY", "start", startKey, "end", endKey, "predicates", ev.sel.Predicates(), "scanned", ev.stats.Scanned, "matched", ev.stats.Matched, "decode_fallbacks", ev.stats.DecodeFallbacks)
	}
	return entries, err
}

// QueryJSON parses a {"selector": {...}} query, runs it and serializes the
// matches as a JSON array of {Key, Record} pairs.
func (tx *Tx) QueryJSON(query []byte) ([]byte, error) {
	sel, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	entries, err := tx.Query(sel)
	if err != nil {
		return nil, err
	}
	return MarshalQueryResults(entries)
}

var errNotObject = errors.New("not a JSON object")

func decodeRecord(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errNotObject
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	return rec, nil
}
