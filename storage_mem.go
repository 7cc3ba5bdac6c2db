package sidx

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
)

// memStorage keeps each bucket as an immutable sorted slice. A write
// transaction copies a bucket on first modification and publishes its bucket
// map on commit; readers keep the map they started with.
type memStorage struct {
	mu      sync.Mutex
	buckets map[string]*memBucket
	closed  bool
	writer  chan struct{}
}

// NewMemStorage returns a transient in-memory Storage with snapshot isolation
// and a single writer at a time. Meant for tests and scratch tables.
func NewMemStorage() Storage {
	return &memStorage{
		buckets: make(map[string]*memBucket),
		writer:  make(chan struct{}, 1),
	}
}

var errMemClosed = fmt.Errorf("storage closed")

func (s *memStorage) BeginTx(writable bool) (StorageTx, error) {
	if writable {
		s.writer <- struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if writable {
			<-s.writer
		}
		return nil, errMemClosed
	}
	tx := &memTx{s: s, writable: writable, buckets: s.buckets}
	if writable {
		tx.buckets = make(map[string]*memBucket, len(s.buckets))
		for name, b := range s.buckets {
			tx.buckets[name] = b
		}
		tx.owned = make(map[*memBucket]bool)
	}
	return tx, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	return nil
}

type memTx struct {
	s        *memStorage
	writable bool
	buckets  map[string]*memBucket
	owned    map[*memBucket]bool // copied by this tx, safe to modify
	done     bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) live() {
	if tx.done {
		panic("tx is closed")
	}
}

func (tx *memTx) check(write bool) error {
	tx.live()
	if write && !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	return nil
}

func (tx *memTx) Bucket(name string) Bucket {
	tx.live()
	if tx.buckets[name] == nil {
		return nil
	}
	return &memBucketHandle{tx: tx, name: name}
}

func (tx *memTx) CreateBucket(name string) (Bucket, error) {
	if err := tx.check(true); err != nil {
		return nil, err
	}
	if tx.buckets[name] == nil {
		b := &memBucket{}
		tx.buckets[name] = b
		tx.owned[b] = true
	}
	return &memBucketHandle{tx: tx, name: name}, nil
}

func (tx *memTx) DeleteBucket(name string) error {
	if err := tx.check(true); err != nil {
		return err
	}
	if tx.buckets[name] == nil {
		return ErrBucketNotFound
	}
	delete(tx.buckets, name)
	return nil
}

// mutable returns a bucket this tx may modify in place.
func (tx *memTx) mutable(name string) *memBucket {
	b := tx.buckets[name]
	if !tx.owned[b] {
		b = &memBucket{items: slices.Clone(b.items)}
		tx.buckets[name] = b
		tx.owned[b] = true
	}
	return b
}

func (tx *memTx) Commit() error {
	if tx.done {
		return nil
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	tx.s.mu.Lock()
	closed := tx.s.closed
	if !closed {
		tx.s.buckets = tx.buckets
	}
	tx.s.mu.Unlock()
	tx.finish()
	if closed {
		return errMemClosed
	}
	return nil
}

func (tx *memTx) Rollback() error {
	if !tx.done {
		tx.finish()
	}
	return nil
}

func (tx *memTx) finish() {
	tx.done = true
	tx.owned = nil
	if tx.writable {
		<-tx.s.writer
	}
}

type memBucket struct {
	items []memKV // sorted by key
}

type memKV struct {
	key   []byte
	value []byte
}

func (b *memBucket) search(key []byte) (int, bool) {
	return slices.BinarySearchFunc(b.items, key, func(kv memKV, k []byte) int {
		return bytes.Compare(kv.key, k)
	})
}

func (b *memBucket) at(i int) ([]byte, []byte) {
	if i < 0 || i >= len(b.items) {
		return nil, nil
	}
	return b.items[i].key, b.items[i].value
}

type memBucketHandle struct {
	tx   *memTx
	name string
}

func (h *memBucketHandle) bucket() *memBucket {
	b := h.tx.buckets[h.name]
	if b == nil {
		return &memBucket{}
	}
	return b
}

func (h *memBucketHandle) Get(key []byte) ([]byte, error) {
	b := h.bucket()
	if i, found := b.search(key); found {
		return b.items[i].value, nil
	}
	return nil, nil
}

func (h *memBucketHandle) Put(key, value []byte) error {
	if err := h.tx.check(true); err != nil {
		return err
	}
	b := h.tx.mutable(h.name)
	kv := memKV{key: slices.Clone(key), value: slices.Clone(value)}
	if i, found := b.search(key); found {
		b.items[i] = kv
	} else {
		b.items = slices.Insert(b.items, i, kv)
	}
	return nil
}

func (h *memBucketHandle) Delete(key []byte) error {
	if err := h.tx.check(true); err != nil {
		return err
	}
	if _, found := h.bucket().search(key); !found {
		return nil
	}
	b := h.tx.mutable(h.name)
	i, _ := b.search(key)
	b.items = slices.Delete(b.items, i, i+1)
	return nil
}

func (h *memBucketHandle) Cursor() Cursor {
	return &memCursor{b: h.bucket(), pos: -1}
}

func (h *memBucketHandle) KeyCount() (int, error) {
	return len(h.bucket().items), nil
}

type memCursor struct {
	b   *memBucket
	pos int
}

func (c *memCursor) First() ([]byte, []byte) {
	c.pos = 0
	return c.b.at(c.pos)
}

func (c *memCursor) Last() ([]byte, []byte) {
	c.pos = len(c.b.items) - 1
	return c.b.at(c.pos)
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	c.pos, _ = c.b.search(seek)
	return c.b.at(c.pos)
}

func (c *memCursor) SeekLast(prefix []byte) ([]byte, []byte) {
	limit := slices.Clone(prefix)
	if len(limit) == 0 || !inc(limit) {
		return c.Last()
	}
	i, _ := c.b.search(limit)
	c.pos = i - 1
	return c.b.at(c.pos)
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.pos >= len(c.b.items) {
		return nil, nil
	}
	c.pos++
	return c.b.at(c.pos)
}

func (c *memCursor) Prev() ([]byte, []byte) {
	if c.pos < 0 {
		return nil, nil
	}
	c.pos--
	return c.b.at(c.pos)
}

func (c *memCursor) Close() error { return nil }
