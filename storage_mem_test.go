package kvdoc

import (
	"testing"
)

func TestMemStorage_SnapshotIsolation(t *testing.T) {
	s := newMemStorage()
	wtx := must(s.BeginTx(true))
	buck := must(wtx.CreateBucket("b"))
	ensure(buck.Put([]byte("k1"), []byte("v1")))
	ensure(wtx.Commit())

	rtx := must(s.BeginTx(false))
	defer rtx.Rollback()

	wtx = must(s.BeginTx(true))
	ensure(wtx.Bucket("b").Put([]byte("k2"), []byte("v2")))
	ensure(wtx.Bucket("b").Put([]byte("k1"), []byte("v1'")))

	deepEqual(t, rtx.Bucket("b").Get([]byte("k1")), []byte("v1"))
	if rtx.Bucket("b").Get([]byte("k2")) != nil {
		t.Fatalf("reader sees uncommitted k2")
	}
	ensure(wtx.Commit())
	if rtx.Bucket("b").Get([]byte("k2")) != nil {
		t.Fatalf("reader sees k2 committed after it started")
	}

	rtx2 := must(s.BeginTx(false))
	defer rtx2.Rollback()
	deepEqual(t, rtx2.Bucket("b").Get([]byte("k1")), []byte("v1'"))
	deepEqual(t, rtx2.Bucket("b").Stats().KeyN, 2)
	if rtx2.Bucket("missing") != nil {
		t.Fatalf("Bucket(missing) != nil")
	}
}

func TestMemStorage_NextSequence(t *testing.T) {
	s := newMemStorage()
	wtx := must(s.BeginTx(true))
	buck := must(wtx.CreateBucket("b"))
	deepEqual(t, must(buck.NextSequence()), uint64(1))
	deepEqual(t, must(buck.NextSequence()), uint64(2))
	ensure(wtx.Rollback())

	wtx = must(s.BeginTx(true))
	buck = must(wtx.CreateBucket("b"))
	deepEqual(t, must(buck.NextSequence()), uint64(1))
	ensure(wtx.Commit())

	rtx := must(s.BeginTx(false))
	defer rtx.Rollback()
	if _, err := rtx.Bucket("b").NextSequence(); err == nil {
		t.Fatalf("NextSequence in a read-only tx err = nil, wanted error")
	}
}

func TestMemCursor(t *testing.T) {
	s := newMemStorage()
	wtx := must(s.BeginTx(true))
	buck := must(wtx.CreateBucket("b"))
	for _, k := range []string{"b", "d", "a", "c"} {
		ensure(buck.Put([]byte(k), []byte(k)))
	}
	ensure(buck.Delete([]byte("c")))

	c := buck.Cursor()
	var keys []string
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, string(k))
	}
	deepEqual(t, keys, []string{"a", "b", "d"})

	k, _ := c.Seek([]byte("c"))
	deepEqual(t, string(k), "d")
	k, _ = c.Next()
	if k != nil {
		t.Fatalf("Next past the end = %q, wanted nil", k)
	}
	if k, _ := c.Seek([]byte("e")); k != nil {
		t.Fatalf("Seek past the end = %q, wanted nil", k)
	}
	ensure(wtx.Rollback())
}
