package sidx

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestRawScan(t *testing.T) {
	var (
		kb = x("10 12 14 40 44 47")
		k1 = x("10 12 14 40 44 48")
		k2 = x("10 12 14 40 44 49")
		k3 = x("10 12 14 40 44 50")
		k4 = x("10 12 14 40 44 51")
		ke = x("10 12 14 40 44 52")
		p  = x("10 12 14")
	)
	forEachBackend(t, func(t *testing.T, st Storage) {
		putKeys(st, "kv", x("0F FF"), k1, k2, k3, k4, x("10 12 15"))

		o := func(name string, rang RawRange, exp ...[]byte) {
			t.Helper()
			t.Run(name, func(t *testing.T) {
				rawScan(t, st, "kv", rang, exp...)
			})
		}

		o("prefix", RawRange{Prefix: p}, k1, k2, k3, k4)
		o("prefix reverse", RawRange{Prefix: p, Reverse: true}, k4, k3, k2, k1)

		o("prefix + lower inc", RawRange{Prefix: p, Lower: k2, LowerInc: true}, k2, k3, k4)
		o("prefix + lower exc", RawRange{Prefix: p, Lower: k2, LowerInc: false}, k3, k4)
		o("prefix + lower inc reverse", RawRange{Prefix: p, Lower: k2, LowerInc: true, Reverse: true}, k4, k3, k2)
		o("prefix + lower exc reverse", RawRange{Prefix: p, Lower: k2, LowerInc: false, Reverse: true}, k4, k3)
		o("prefix + upper inc", RawRange{Prefix: p, Upper: k3, UpperInc: true}, k1, k2, k3)
		o("prefix + upper exc", RawRange{Prefix: p, Upper: k3, UpperInc: false}, k1, k2)
		o("prefix + upper inc reverse", RawRange{Prefix: p, Upper: k3, UpperInc: true, Reverse: true}, k3, k2, k1)
		o("prefix + upper exc reverse", RawRange{Prefix: p, Upper: k3, UpperInc: false, Reverse: true}, k2, k1)

		o("lower inc", RawIO(k2), k2, k3, k4, x("10 12 15"))
		o("lower exc", RawEO(k2), k3, k4, x("10 12 15"))
		o("upper inc", RawOI(k3), x("0F FF"), k1, k2, k3)
		o("upper exc", RawOE(k3), x("0F FF"), k1, k2)
		o("upper inc reverse", RawOI(k3).Reversed(), k3, k2, k1, x("0F FF"))
		o("upper exc reverse", RawOE(k3).Reversed(), k2, k1, x("0F FF"))
		o("between", RawEE(k1, k4), k2, k3)
		o("between inc", RawII(k1, k4), k1, k2, k3, k4)
		o("between reverse", RawIE(k1, k4).Reversed(), k3, k2, k1)
		o("between exc inc", RawEI(k1, k4), k2, k3, k4)
		o("all reverse", RawOO().Reversed(), x("10 12 15"), k4, k3, k2, k1, x("0F FF"))

		o("first lower inc", RawRange{Prefix: p, Lower: kb, LowerInc: true}, k1, k2, k3, k4)
		o("first lower exc reverse", RawRange{Prefix: p, Lower: kb, LowerInc: false, Reverse: true}, k4, k3, k2, k1)
		o("last upper exc", RawRange{Prefix: p, Upper: ke, UpperInc: false}, k1, k2, k3, k4)
		o("last upper inc reverse", RawRange{Prefix: p, Upper: ke, UpperInc: true, Reverse: true}, k4, k3, k2, k1)
		o("empty prefix", RawPrefix(x("11")))
	})
}

// Keys that extend a bound sort after it, which is what lookups of
// (value, primary key) composites rely on.
func TestRawScanExtendedBounds(t *testing.T) {
	var (
		v    = x("41 61 00")
		a    = x("41 61 00 10 01")
		b    = x("41 61 00 10 02")
		next = x("41 61 62 00 10 01")
		zero = x("41 61 00 FF 00 10 01")
	)
	forEachBackend(t, func(t *testing.T, st Storage) {
		putKeys(st, "kv", a, b, next, zero)
		upper := append(append([]byte(nil), v...), 0xFF)
		rawScan(t, st, "kv", RawEE(v, upper), a, b)
		rawScan(t, st, "kv", RawEE(v, upper).Reversed(), b, a)
		rawScan(t, st, "kv", RawPrefix(v), a, b, zero)
	})
}

func TestRawRangeCursorPrefixMismatchPanics(t *testing.T) {
	st := NewMemStorage()
	putKeys(st, "kv", x("10"))

	rtx := must(st.BeginTx(false))
	defer rtx.Rollback()
	b := rtx.Bucket("kv")
	logger := slog.Default()

	assertPanics(t, func() {
		c := (&RawRange{Prefix: x("10"), Lower: x("11"), LowerInc: true}).newCursor(b, logger)
		c.Next()
	})
	assertPanics(t, func() {
		c := (&RawRange{Prefix: x("10"), Upper: x("11"), UpperInc: true, Reverse: true}).newCursor(b, logger)
		c.Next()
	})
}

func TestScanKeysCanceled(t *testing.T) {
	st := NewMemStorage()
	putKeys(st, "kv", x("10"), x("11"))

	rtx := must(st.BeginTx(false))
	defer rtx.Rollback()

	keys := must(scanKeys(context.Background(), rtx.Bucket("kv"), RawOO(), slog.Default()))
	deepEqual(t, len(keys), 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scanKeys(ctx, rtx.Bucket("kv"), RawOO(), slog.Default())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("** scanKeys err = %v, wanted context.Canceled", err)
	}
}

func putKeys(st Storage, bucket string, keys ...[]byte) {
	wtx := must(st.BeginTx(true))
	b := must(wtx.CreateBucket(bucket))
	for _, k := range keys {
		ensure(b.Put(k, []byte{}))
	}
	ensure(wtx.Commit())
}

func rawScan(t testing.TB, st Storage, bucket string, rang RawRange, exp ...[]byte) {
	t.Helper()
	rtx := must(st.BeginTx(false))
	defer rtx.Rollback()

	var out []string
	keys := must(scanKeys(context.Background(), rtx.Bucket(bucket), rang, slog.Default()))
	for _, k := range keys {
		out = append(out, hex.EncodeToString(k))
	}
	var expstr []string
	for _, k := range exp {
		expstr = append(expstr, hex.EncodeToString(k))
	}
	deepEqual(t, out, expstr)
}

func assertPanics(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("** expected panic")
		}
	}()
	fn()
}

func x(data string) []byte {
	data = strings.ReplaceAll(data, " ", "")
	return must(hex.DecodeString(data))
}
