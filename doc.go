/*
Package kvdoc implements document queries and an audit history on top of an
ordered key-value store (Bolt, or an in-memory store for tests).

The store only offers point lookups by exact key and lexicographic range
scans. We build on those two primitives:

1. Point lookups of a record by its storage key.

2. Selector queries: all records of a docType, optionally narrowed by
equality constraints on top-level fields.

3. Per-key history: every state a key has gone through, with the
transaction that produced it.

# Technical Details

**Buckets.**
Current values live in the “data” bucket, one entry per storage key. The
“history” bucket holds the change log of every key.

**Storage keys.**
A storage key is the docType immediately followed by the record identifier,
e.g. “entity42”. There is no separator, so the docType must be made of
letters and identifiers of letters and digits (see ValidateID).

**Range planning.**
Without secondary indexes, a selector query scans every key of its docType.
The scan bounds are docType+"0" (inclusive) and docType+"z" (exclusive),
which cover every identifier ValidateID accepts. Equality constraints are
checked against each decoded record in a single pass.

DocTypes do not get disjoint namespaces. If one docType is a prefix of
another (“entity” and “entityType”), a query for the shorter one also sees
the longer one's records. Pick docTypes that are not prefixes of each
other, or check the docType field of the returned records.

**Decode fallback.**
Values that are not JSON objects are never fatal: they are returned as raw
bytes and never satisfy an equality constraint.

## History records

**Key**: storage key, 0x00, bucket sequence number (8 bytes, big endian).
A key's records therefore sort oldest first, and keys may not contain NUL.

**Value**: msgpack of the transaction id, timestamp (unix nanoseconds),
deletion flag, stored value and an xxhash checksum of all of those.
A checksum mismatch is reported as a DataError.
*/
package kvdoc
