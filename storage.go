package sidx

import "errors"

// ErrBucketNotFound is returned by StorageTx.DeleteBucket when the bucket doesn't exist.
var ErrBucketNotFound = errors.New("bucket not found")

// Storage represents an ordered key-value storage backend (Bolt, Pebble, in-memory).
//
// A writable transaction is the atomic batch: all puts and deletes made
// through it, across any number of buckets, become visible together on
// Commit, or not at all.
type Storage interface {
	// BeginTx starts a new transaction.
	BeginTx(writable bool) (StorageTx, error)
	// Close closes the storage.
	Close() error
}

// StorageTx represents a storage transaction.
type StorageTx interface {
	// Writable returns true if this is a writable transaction.
	Writable() bool

	// Bucket returns a named bucket, or nil if the bucket doesn't exist.
	Bucket(name string) Bucket

	// CreateBucket creates a bucket if it doesn't exist.
	CreateBucket(name string) (Bucket, error)

	// DeleteBucket deletes a bucket with all its keys.
	DeleteBucket(name string) error

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction. It should be safe to call multiple times,
	// including after Commit.
	Rollback() error
}

// Bucket represents a bucket (sorted key-value collection).
//
// Byte slices returned by Get and by cursors are only valid until the end of
// the transaction.
type Bucket interface {
	// Get retrieves a value by key. Returns nil if not found.
	Get(key []byte) ([]byte, error)

	// Put stores a key-value pair.
	Put(key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// Cursor returns a cursor for iteration. The caller must close it.
	Cursor() Cursor

	// KeyCount returns the number of keys in the bucket (best effort).
	KeyCount() (int, error)
}

// Cursor iterates over a sorted bucket. Positioning methods return a nil key
// when the cursor moves past either end.
type Cursor interface {
	// First moves to the first key-value pair.
	First() (key, value []byte)

	// Last moves to the last key-value pair.
	Last() (key, value []byte)

	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)

	// SeekLast moves to the last key that starts with the given prefix,
	// or to the last key before the prefix if none do.
	SeekLast(prefix []byte) (key, value []byte)

	// Next moves to the next key-value pair.
	Next() (key, value []byte)

	// Prev moves to the previous key-value pair.
	Prev() (key, value []byte)

	// Close releases the cursor and reports any iteration error.
	Close() error
}

// getMany fetches several keys from one bucket, preserving the order of keys.
// Missing keys yield nil entries.
func getMany(b Bucket, keys [][]byte) ([][]byte, error) {
	values := make([][]byte, len(keys))
	for i, k := range keys {
		v, err := b.Get(k)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func rollback(stx StorageTx) {
	_ = stx.Rollback()
}
