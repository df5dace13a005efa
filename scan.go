package kvdoc

import (
	"bytes"
	"context"
	"log/slog"
)

const (
	debugLogRawScans = false
)

// RawRange defines a forward range of byte strings. The constructors use
// mnemonics: O means open, I means inclusive, E means exclusive; the first
// letter is for the lower bound, the second for the upper bound.
type RawRange struct {
	Prefix   []byte
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
}

func RawOO() RawRange         { return RawRange{} }
func RawIO(l []byte) RawRange { return RawRange{Lower: l, LowerInc: true} }
func RawIE(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: false}
}
func RawII(l, u []byte) RawRange { return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: true} }
func RawPrefix(p []byte) RawRange { return RawRange{Prefix: p} }

func (r *RawRange) start(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	var skipInitial bool
	lower := r.Lower
	if lower != nil {
		skipInitial = !r.LowerInc
		if r.Prefix != nil && !bytes.HasPrefix(lower, r.Prefix) {
			panic("lower bound does not match prefix")
		}
	} else if r.Prefix != nil {
		lower = r.Prefix
	}
	if lower != nil {
		k, v = bcur.Seek(lower)
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to lower", hexAttr("lower", lower), hexAttr("key", k))
		}
		if skipInitial && !bytes.Equal(k, lower) {
			skipInitial = false
		}
	} else {
		k, v = bcur.First()
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "FIRST", hexAttr("key", k))
		}
	}
	if k != nil && r.match(k, logger) {
		if skipInitial {
			return r.next(bcur, logger)
		}
		return k, v
	}
	return nil, nil
}

func (r *RawRange) next(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	k, v := bcur.Next()
	if debugLogRawScans {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "NEXT", hexAttr("key", k))
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

func (r *RawRange) match(k []byte, logger *slog.Logger) bool {
	if r.Prefix != nil && !bytes.HasPrefix(k, r.Prefix) {
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on prefix", hexAttr("prefix", r.Prefix), hexAttr("key", k))
		}
		return false
	}
	if upper := r.Upper; upper != nil {
		cmp := bytes.Compare(k, upper)
		if cmp == 1 || (cmp == 0 && !r.UpperInc) {
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on upper", hexAttr("upper", upper), hexAttr("key", k))
			}
			return false
		}
	}
	return true
}

// ResultsIterator is a single-pass iterator over (key, value) pairs in
// ascending key order. Close releases the iterator; it must be called
// exactly once by whoever consumes the iterator.
type ResultsIterator interface {
	Next() bool
	Key() string
	Value() []byte
	Err() error
	Close() error
}

// RangeCursor walks a RawRange of a bucket. Keys and values are valid until
// the enclosing transaction ends.
type RangeCursor struct {
	rang   RawRange
	bcur   storageCursor
	logger *slog.Logger
	k, v   []byte
	init   bool
	closed bool
}

var _ ResultsIterator = (*RangeCursor)(nil)

func (rang RawRange) newCursor(bcur storageCursor, logger *slog.Logger) *RangeCursor {
	return &RangeCursor{rang: rang, bcur: bcur, logger: logger}
}

func (c *RangeCursor) Next() bool {
	if c.closed {
		return false
	}
	if c.init {
		c.k, c.v = c.rang.next(c.bcur, c.logger)
	} else {
		c.init = true
		c.k, c.v = c.rang.start(c.bcur, c.logger)
	}
	return c.k != nil
}

func (c *RangeCursor) RawKey() []byte { return c.k }
func (c *RangeCursor) Key() string    { return string(c.k) }
func (c *RangeCursor) Value() []byte  { return c.v }
func (c *RangeCursor) Err() error     { return nil }

// Close releases the cursor. Subsequent calls to Next return false.
func (c *RangeCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.bcur = nil
	c.k, c.v = nil, nil
	return nil
}

// RangeScan iterates over current records with startKey <= key < endKey in
// ascending key order. An empty endKey leaves the range open-ended.
func (tx *Tx) RangeScan(startKey, endKey string) *RangeCursor {
	rang := RawIO([]byte(startKey))
	if endKey != "" {
		rang = RawIE([]byte(startKey), []byte(endKey))
	}
	if tx.db.verbose {
		tx.db.logger.Debug("db: SCAN", "start", startKey, "end", endKey)
	}
	return rang.newCursor(tx.data().Cursor(), tx.db.logger)
}
