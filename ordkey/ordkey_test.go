package ordkey

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

type age int

type pair struct {
	A int
	B string
	c int
}

func TestOrder(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	ordered := []any{
		nil,
		false,
		true,
		int64(math.MinInt64),
		-1000,
		-1,
		0,
		1,
		age(2),
		int8(3),
		uint16(255),
		int64(math.MaxInt64),
		uint64(math.MaxInt64) + 1,
		uint64(math.MaxUint64),
		math.Inf(-1),
		-1.5,
		-0.001,
		0.0,
		0.001,
		1.5,
		math.Inf(1),
		t0.Add(-time.Hour),
		t0,
		t0.Add(time.Nanosecond),
		[]byte{},
		[]byte{0},
		[]byte{0, 0},
		[]byte{1},
		"",
		"\x00",
		"a",
		"a\x00",
		"a\x00b",
		"ab",
		"b",
		Tuple{},
		Tuple{1},
		Tuple{1, "a"},
		Tuple{1, "b"},
		pair{2, "a", 0},
		[]int{3},
		High,
	}

	var prev []byte
	for i, v := range ordered {
		cur, err := Encode(v)
		if err != nil {
			t.Fatalf("Encode(%#v) failed: %v", v, err)
		}
		if i > 0 && bytes.Compare(prev, cur) >= 0 {
			t.Errorf("** Encode(%#v) = %x, not greater than Encode(%#v) = %x", v, cur, ordered[i-1], prev)
		}
		prev = cur
	}
}

func TestNegativeZero(t *testing.T) {
	if a, b := MustEncode(math.Copysign(0, -1)), MustEncode(0.0); !bytes.Equal(a, b) {
		t.Errorf("** -0 = %x, +0 = %x, wanted equal", a, b)
	}
}

func TestSameValueDifferentTypes(t *testing.T) {
	want := MustEncode(int64(42))
	for _, v := range []any{42, int32(42), uint8(42), uint64(42), age(42)} {
		if got := MustEncode(v); !bytes.Equal(got, want) {
			t.Errorf("** Encode(%T(42)) = %x, wanted %x", v, got, want)
		}
	}
	if got, want := MustEncode(&[]string{"x"}[0]), MustEncode("x"); !bytes.Equal(got, want) {
		t.Errorf("** pointer encoding = %x, wanted %x", got, want)
	}
	var np *string
	if got := MustEncode(np); !bytes.Equal(got, []byte{tagNil}) {
		t.Errorf("** nil pointer encoding = %x, wanted 01", got)
	}
}

func TestRoundTrip(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	tests := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{true, true},
		{false, false},
		{-7, int64(-7)},
		{uint64(math.MaxUint64), uint64(math.MaxUint64)},
		{2.25, 2.25},
		{-2.25, -2.25},
		{t0, t0},
		{[]byte{0, 1, 0}, []byte{0, 1, 0}},
		{"a\x00b", "a\x00b"},
		{Tuple{1, "x", Tuple{nil}}, Tuple{int64(1), "x", Tuple{nil}}},
		{pair{1, "y", 5}, Tuple{int64(1), "y"}},
	}
	for _, tt := range tests {
		enc := MustEncode(tt.in)
		got, rest, err := Decode(append(enc, 0xAA))
		if err != nil {
			t.Errorf("** Decode(%x) failed: %v", enc, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("** Decode(Encode(%#v)) = %#v, wanted %#v", tt.in, got, tt.want)
		}
		if !bytes.Equal(rest, []byte{0xAA}) {
			t.Errorf("** Decode(Encode(%#v)) rest = %x, wanted aa", tt.in, rest)
		}
	}
}

func TestAppendTuplePrefix(t *testing.T) {
	prefix := MustEncode(30)
	full, err := AppendTuple(nil, 30, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(full, prefix) {
		t.Fatalf("** tuple %x does not start with %x", full, prefix)
	}
	upper := append(append([]byte(nil), prefix...), tagHigh)
	if bytes.Compare(full, prefix) <= 0 || bytes.Compare(full, upper) >= 0 {
		t.Fatalf("** tuple %x outside (%x, %x)", full, prefix, upper)
	}

	n, err := Skip(full)
	if err != nil || n != len(prefix) {
		t.Fatalf("** Skip = %d, %v, wanted %d", n, err, len(prefix))
	}

	tup, err := DecodeTuple(full)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tup, Tuple{int64(30), "k1"}) {
		t.Fatalf("** DecodeTuple = %#v", tup)
	}
}

func TestErrors(t *testing.T) {
	if _, err := Encode(map[string]int{}); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("** Encode(map) err = %v, wanted ErrUnsupportedType", err)
	}
	if _, err := AppendTuple(nil, 1, make(chan int)); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("** AppendTuple(chan) err = %v, wanted ErrUnsupportedType", err)
	}
	for _, data := range [][]byte{nil, {0x99}, {tagInt, 1, 2}, {tagString, 'a'}, {tagTuple, tagNil}, {tagTime, 0, 0, 0, 0, 0, 0, 0, 0}} {
		if _, _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
			t.Errorf("** Decode(%x) err = %v, wanted ErrCorrupt", data, err)
		}
	}
}

func TestAssign(t *testing.T) {
	type inner struct {
		When time.Time
		Tag  *string
	}
	type key struct {
		Region string
		ID     age
		hidden int
		In     inner
		Raw    []byte
	}
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tag := "t"
	tests := []struct {
		in  any
		dst any
	}{
		{[4]byte{1, 2, 3, 200}, new([4]byte)},
		{[]int16{-1, 5}, new([]int16)},
		{key{Region: "eu", ID: 7, In: inner{t0, &tag}, Raw: []byte{0}}, new(key)},
		{key{Region: "us", Raw: []byte{}}, new(key)},
		{age(12), new(age)},
		{uint32(9), new(uint32)},
		{"x", new(string)},
		{3.5, new(float32)},
		{"y", new(any)},
	}
	for _, tt := range tests {
		v, _, err := Decode(MustEncode(tt.in))
		if err != nil {
			t.Fatalf("** Decode(%v) failed: %v", tt.in, err)
		}
		dst := reflect.ValueOf(tt.dst).Elem()
		if err := Assign(dst, v); err != nil {
			t.Errorf("** Assign(%T, %#v) failed: %v", tt.dst, v, err)
			continue
		}
		want := reflect.ValueOf(tt.in).Convert(dst.Type()).Interface()
		if !reflect.DeepEqual(dst.Interface(), want) {
			t.Errorf("** Assign(%T, %#v) = %#v, wanted %#v", tt.dst, v, dst.Interface(), want)
		}
	}

	bad := []struct {
		v   any
		dst any
	}{
		{int64(65), new(string)},
		{"a", new(int)},
		{Tuple{int64(1)}, new([2]int)},
		{Tuple{"eu"}, new(pair)},
		{Tuple{int64(1), "y", int64(3)}, new(pair)},
	}
	for _, tt := range bad {
		if err := Assign(reflect.ValueOf(tt.dst).Elem(), tt.v); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("** Assign(%T, %#v) err = %v, wanted ErrUnsupportedType", tt.dst, tt.v, err)
		}
	}
}
