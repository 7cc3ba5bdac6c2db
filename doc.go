/*
Package sidx maintains secondary indexes over a primary table stored in an
ordered key-value store (Bolt, Pebble, or memory).

We implement:

1. Tables, collections of records keyed by a primary key and marshaled with
msgpack (or JSON).

2. Indexes, derived from records by a getter function or a field name, that
allow looking records up by the computed value.

3. Storage backends, exposing buckets of sorted keys with atomic write
transactions.

# Technical Details

**Buckets.**
Every table and every index lives in its own bucket. Bolt supports them
natively; Pebble simulates them via key prefixes. Bucket names:

	t!<table>            records
	i!<table>!<index>    index entries
	_sidx                table states

Table and index names are percent-escaped ('%' and '!'), so no two pairs share
a bucket.

**Table states.**
We store a meta document per table, called “table state”. It records which
indexes exist, the key encoding each was built with, and whether each has been
filled from the records. An index added to a non-empty table is filled on Open.

## Binary encoding

**Primary keys** use the order-preserving encoding of package ordkey, so
integers sort numerically and strings lexicographically.

**Index entries** are keys only, with an empty value:

	keyenc(index value) ++ ordkey(primary key)

Both parts are self-delimiting. A lookup of v scans the keys strictly between
keyenc(v) and keyenc(v)+0xFF.

**Updates.**
Put reads the old record inside the write transaction, recomputes its index
values, and deletes the entries that changed, so an index never holds a stale
entry for a record it manages. Writers of the same key are serialized.
*/
package sidx
