package sidx

import (
	"errors"
	"testing"
)

func TestStorageBuckets(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Storage) {
		wtx := must(st.BeginTx(true))
		if !wtx.Writable() {
			t.Fatalf("** write tx not writable")
		}
		if wtx.Bucket("a") != nil {
			t.Fatalf("** bucket a exists before creation")
		}
		a := must(wtx.CreateBucket("a"))
		b := must(wtx.CreateBucket("b"))
		ensure(a.Put([]byte("k1"), []byte("v1")))
		ensure(a.Put([]byte("k2"), []byte("v2")))
		ensure(b.Put([]byte("k1"), []byte("other")))
		ensure(b.Put([]byte("e"), []byte{}))
		deepEqual(t, string(must(a.Get([]byte("k1")))), "v1")
		ensure(wtx.Commit())

		rtx := must(st.BeginTx(false))
		if rtx.Writable() {
			t.Errorf("** read tx writable")
		}
		a = rtx.Bucket("a")
		b = rtx.Bucket("b")
		deepEqual(t, string(must(a.Get([]byte("k1")))), "v1")
		deepEqual(t, string(must(b.Get([]byte("k1")))), "other")
		if v := must(a.Get([]byte("k3"))); v != nil {
			t.Errorf("** Get(k3) = %q, wanted nil", v)
		}
		if v := must(b.Get([]byte("e"))); len(v) != 0 {
			t.Errorf("** Get(e) = %#v, wanted empty", v)
		}
		deepEqual(t, must(a.KeyCount()), 2)
		deepEqual(t, must(b.KeyCount()), 2)
		ensure(rtx.Rollback())
		ensure(rtx.Rollback())

		wtx = must(st.BeginTx(true))
		ensure(wtx.DeleteBucket("a"))
		if err := wtx.DeleteBucket("a"); !errors.Is(err, ErrBucketNotFound) {
			t.Errorf("** second DeleteBucket err = %v, wanted ErrBucketNotFound", err)
		}
		a = must(wtx.CreateBucket("a"))
		deepEqual(t, must(a.KeyCount()), 0)
		ensure(wtx.Commit())
		ensure(wtx.Rollback())

		rtx = must(st.BeginTx(false))
		defer rollback(rtx)
		deepEqual(t, must(rtx.Bucket("a").KeyCount()), 0)
		deepEqual(t, must(rtx.Bucket("b").KeyCount()), 2)
	})
}

func TestStorageRollback(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Storage) {
		wtx := must(st.BeginTx(true))
		ensure(must(wtx.CreateBucket("a")).Put([]byte("k"), []byte("v")))
		ensure(wtx.Commit())

		wtx = must(st.BeginTx(true))
		a := wtx.Bucket("a")
		ensure(a.Put([]byte("k"), []byte("changed")))
		ensure(a.Put([]byte("k2"), []byte("new")))
		must(wtx.CreateBucket("b"))
		ensure(wtx.Rollback())

		rtx := must(st.BeginTx(false))
		defer rollback(rtx)
		a = rtx.Bucket("a")
		deepEqual(t, string(must(a.Get([]byte("k")))), "v")
		if v := must(a.Get([]byte("k2"))); v != nil {
			t.Errorf("** rolled back key visible: %q", v)
		}
		if rtx.Bucket("b") != nil {
			t.Errorf("** rolled back bucket visible")
		}
	})
}

func TestStorageIsolation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Storage) {
		wtx := must(st.BeginTx(true))
		ensure(must(wtx.CreateBucket("a")).Put([]byte("k"), []byte("v1")))
		ensure(wtx.Commit())

		rtx := must(st.BeginTx(false))
		defer rollback(rtx)

		wtx = must(st.BeginTx(true))
		ensure(wtx.Bucket("a").Put([]byte("k"), []byte("v2")))
		ensure(wtx.Commit())

		deepEqual(t, string(must(rtx.Bucket("a").Get([]byte("k")))), "v1")
	})
}

func TestStorageCursor(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Storage) {
		wtx := must(st.BeginTx(true))
		b := must(wtx.CreateBucket("b"))
		for _, k := range [][]byte{{0x10, 0x01}, {0x10, 0x02}, {0x11, 0x01}} {
			ensure(b.Put(k, k))
		}
		// Keys of a neighbouring bucket must stay invisible.
		ensure(must(wtx.CreateBucket("c")).Put([]byte{0x10, 0x00}, []byte("c")))
		ensure(wtx.Commit())

		rtx := must(st.BeginTx(false))
		defer rollback(rtx)
		c := rtx.Bucket("b").Cursor()
		defer c.Close()

		k, v := c.First()
		deepEqual(t, k, []byte{0x10, 0x01})
		deepEqual(t, v, []byte{0x10, 0x01})
		k, _ = c.Next()
		deepEqual(t, k, []byte{0x10, 0x02})
		k, _ = c.Next()
		deepEqual(t, k, []byte{0x11, 0x01})
		if k, _ = c.Next(); k != nil {
			t.Errorf("** Next past end = %x, wanted nil", k)
		}

		k, _ = c.Last()
		deepEqual(t, k, []byte{0x11, 0x01})
		k, _ = c.Prev()
		deepEqual(t, k, []byte{0x10, 0x02})

		k, _ = c.Seek([]byte{0x10, 0x01, 0x00})
		deepEqual(t, k, []byte{0x10, 0x02})
		if k, _ = c.Seek([]byte{0x12}); k != nil {
			t.Errorf("** Seek past end = %x, wanted nil", k)
		}

		k, _ = c.SeekLast([]byte{0x10})
		deepEqual(t, k, []byte{0x10, 0x02})
		k, _ = c.SeekLast([]byte{0x12})
		deepEqual(t, k, []byte{0x11, 0x01})
		if k, _ = c.SeekLast([]byte{0x0F}); k != nil {
			t.Errorf("** SeekLast before start = %x, wanted nil", k)
		}
		k, _ = c.SeekLast([]byte{0xFF})
		deepEqual(t, k, []byte{0x11, 0x01})
	})
}

func TestStorageMultiBucketCommit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Storage) {
		wtx := must(st.BeginTx(true))
		for _, name := range []string{"t!x", "i!x!a", "i!x!b"} {
			ensure(must(wtx.CreateBucket(name)).Put([]byte("k"), []byte(name)))
		}

		rtx := must(st.BeginTx(false))
		for _, name := range []string{"t!x", "i!x!a", "i!x!b"} {
			if rtx.Bucket(name) != nil {
				t.Errorf("** %s visible before commit", name)
			}
		}
		ensure(rtx.Rollback())

		ensure(wtx.Commit())

		rtx = must(st.BeginTx(false))
		defer rollback(rtx)
		for _, name := range []string{"t!x", "i!x!a", "i!x!b"} {
			deepEqual(t, string(must(rtx.Bucket(name).Get([]byte("k")))), name)
		}
	})
}

func TestGetMany(t *testing.T) {
	st := NewMemStorage()
	wtx := must(st.BeginTx(true))
	b := must(wtx.CreateBucket("b"))
	ensure(b.Put([]byte("a"), []byte("1")))
	ensure(b.Put([]byte("c"), []byte("3")))

	values := must(getMany(b, [][]byte{[]byte("c"), []byte("b"), []byte("a")}))
	deepEqual(t, values, [][]byte{[]byte("3"), nil, []byte("1")})
	ensure(wtx.Rollback())
}
