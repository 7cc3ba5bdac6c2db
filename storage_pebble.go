package sidx

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Pebble has a single flat keyspace, so buckets are simulated with key
// prefixes:
//
//	0x00 'b' name                 -> empty (bucket exists)
//	0x01 uvarint(len(name)) name key -> value
const (
	pebbleMetaPrefix = 0x00
	pebbleDataPrefix = 0x01
)

type PebbleOptions struct {
	IsTesting bool // keeps everything in memory
	Sync      bool // fsync on every commit
}

// OpenPebble opens (creating if needed) a Pebble database in dir and wraps it as a Storage.
func OpenPebble(dir string, opt PebbleOptions) (Storage, error) {
	popt := &pebble.Options{}
	if opt.IsTesting {
		popt.FS = vfs.NewMem()
	}
	pdb, err := pebble.Open(dir, popt)
	if err != nil {
		return nil, fmt.Errorf("sidx: pebble: %w", err)
	}
	s := NewPebbleStorage(pdb).(*pebbleStorage)
	if opt.Sync {
		s.wopt = pebble.Sync
	}
	return s, nil
}

type pebbleStorage struct {
	pdb  *pebble.DB
	wopt *pebble.WriteOptions
}

// NewPebbleStorage wraps an open Pebble database. Commits don't fsync; use
// OpenPebble with Sync for durable commits.
func NewPebbleStorage(pdb *pebble.DB) Storage {
	return &pebbleStorage{pdb: pdb, wopt: pebble.NoSync}
}

func (s *pebbleStorage) BeginTx(writable bool) (StorageTx, error) {
	if writable {
		batch := s.pdb.NewIndexedBatch()
		return &pebbleTx{s: s, batch: batch, r: batch}, nil
	}
	snap := s.pdb.NewSnapshot()
	return &pebbleTx{s: s, snap: snap, r: snap}, nil
}

func (s *pebbleStorage) Close() error {
	return s.pdb.Close()
}

type pebbleTx struct {
	s      *pebbleStorage
	batch  *pebble.Batch
	snap   *pebble.Snapshot
	r      pebble.Reader
	err    error
	closed bool
}

func (tx *pebbleTx) Writable() bool { return tx.batch != nil }

func pebbleBucketMetaKey(name string) []byte {
	return append([]byte{pebbleMetaPrefix, 'b'}, name...)
}

func pebbleBucketPrefix(name string) []byte {
	buf := make([]byte, 0, 1+binary.MaxVarintLen64+len(name))
	buf = append(buf, pebbleDataPrefix)
	buf = binary.AppendUvarint(buf, uint64(len(name)))
	return append(buf, name...)
}

func (tx *pebbleTx) Bucket(name string) Bucket {
	_, closer, err := tx.r.Get(pebbleBucketMetaKey(name))
	if err == pebble.ErrNotFound {
		return nil
	} else if err != nil {
		tx.err = err
		return nil
	}
	closer.Close()
	return tx.bucket(name)
}

func (tx *pebbleTx) bucket(name string) *pebbleBucket {
	prefix := pebbleBucketPrefix(name)
	end := append([]byte(nil), prefix...)
	if !inc(end) {
		panic("unreachable: bucket prefix starts with 0x01")
	}
	return &pebbleBucket{tx: tx, prefix: prefix, end: end}
}

func (tx *pebbleTx) CreateBucket(name string) (Bucket, error) {
	if tx.batch == nil {
		return nil, fmt.Errorf("tx not writable")
	}
	if err := tx.batch.Set(pebbleBucketMetaKey(name), nil, nil); err != nil {
		return nil, err
	}
	return tx.bucket(name), nil
}

func (tx *pebbleTx) DeleteBucket(name string) error {
	if tx.batch == nil {
		return fmt.Errorf("tx not writable")
	}
	if tx.Bucket(name) == nil {
		if tx.err != nil {
			return tx.err
		}
		return ErrBucketNotFound
	}
	b := tx.bucket(name)
	if err := tx.batch.DeleteRange(b.prefix, b.end, nil); err != nil {
		return err
	}
	return tx.batch.Delete(pebbleBucketMetaKey(name), nil)
}

func (tx *pebbleTx) Commit() error {
	if tx.closed {
		return nil
	}
	if tx.batch == nil {
		return fmt.Errorf("tx not writable")
	}
	if tx.err != nil {
		tx.Rollback()
		return tx.err
	}
	err := tx.batch.Commit(tx.s.wopt)
	return errors.Join(err, tx.Rollback())
}

func (tx *pebbleTx) Rollback() error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	if tx.batch != nil {
		return tx.batch.Close()
	}
	return tx.snap.Close()
}

type pebbleBucket struct {
	tx     *pebbleTx
	prefix []byte
	end    []byte
}

func (b *pebbleBucket) key(k []byte) []byte {
	buf := make([]byte, 0, len(b.prefix)+len(k))
	return append(append(buf, b.prefix...), k...)
}

func (b *pebbleBucket) Get(key []byte) ([]byte, error) {
	v, closer, err := b.tx.r.Get(b.key(key))
	if err == pebble.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte{}, v...), nil
}

func (b *pebbleBucket) Put(key, value []byte) error {
	if b.tx.batch == nil {
		return fmt.Errorf("tx not writable")
	}
	return b.tx.batch.Set(b.key(key), value, nil)
}

func (b *pebbleBucket) Delete(key []byte) error {
	if b.tx.batch == nil {
		return fmt.Errorf("tx not writable")
	}
	return b.tx.batch.Delete(b.key(key), nil)
}

func (b *pebbleBucket) Cursor() Cursor {
	it, err := b.tx.r.NewIter(&pebble.IterOptions{
		LowerBound: b.prefix,
		UpperBound: b.end,
	})
	return &pebbleCursor{b: b, it: it, err: err}
}

func (b *pebbleBucket) KeyCount() (int, error) {
	c := b.Cursor()
	var n int
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n, c.Close()
}

type pebbleCursor struct {
	b   *pebbleBucket
	it  *pebble.Iterator
	err error
}

func (c *pebbleCursor) current(valid bool) ([]byte, []byte) {
	if !valid {
		return nil, nil
	}
	return c.it.Key()[len(c.b.prefix):], c.it.Value()
}

func (c *pebbleCursor) First() ([]byte, []byte) {
	if c.it == nil {
		return nil, nil
	}
	return c.current(c.it.First())
}

func (c *pebbleCursor) Last() ([]byte, []byte) {
	if c.it == nil {
		return nil, nil
	}
	return c.current(c.it.Last())
}

func (c *pebbleCursor) Seek(seek []byte) ([]byte, []byte) {
	if c.it == nil {
		return nil, nil
	}
	return c.current(c.it.SeekGE(c.b.key(seek)))
}

func (c *pebbleCursor) SeekLast(prefix []byte) ([]byte, []byte) {
	if c.it == nil {
		return nil, nil
	}
	if len(prefix) == 0 {
		return c.Last()
	}
	limit := append([]byte(nil), prefix...)
	if !inc(limit) {
		// All-0xFF prefix: no key sorts after the keys that have it.
		return c.Last()
	}
	return c.current(c.it.SeekLT(c.b.key(limit)))
}

func (c *pebbleCursor) Next() ([]byte, []byte) {
	if c.it == nil {
		return nil, nil
	}
	return c.current(c.it.Next())
}

func (c *pebbleCursor) Prev() ([]byte, []byte) {
	if c.it == nil {
		return nil, nil
	}
	return c.current(c.it.Prev())
}

func (c *pebbleCursor) Close() error {
	if c.it == nil {
		return c.err
	}
	err := c.it.Close()
	c.it = nil
	return err
}
