package sidx

import (
	"encoding/binary"
	"math"
	"reflect"

	"github.com/cespare/xxhash/v2"

	"github.com/andreyvit/sidx/ordkey"
)

// KeyEncoding turns index values into the leading part of index keys.
//
// Encoded values must be prefix-free: no encoded value may be a proper prefix
// of another. The primary key is appended right after the encoded value, and
// lookups scan the keys strictly between enc(v) and enc(v)+0xFF.
type KeyEncoding interface {
	// Name identifies the encoding in persisted table state. Reopening an
	// index with a differently named encoding fails with ErrEncodingMismatch.
	Name() string

	// AppendKey appends the encoding of an index value to buf.
	AppendKey(buf []byte, v any) ([]byte, error)

	// Exact reports whether equal encodings imply equal values. Lookups
	// through inexact encodings recheck every candidate record.
	Exact() bool
}

var (
	// OrderedKeys is the default encoding; index entries sort by value.
	OrderedKeys KeyEncoding = orderedKeys{}

	// HashedKeys stores a fixed-size 64-bit hash of the value. Keeps index keys
	// short for long values, supports equality lookups only.
	HashedKeys KeyEncoding = hashedKeys{}
)

type orderedKeys struct{}

func (orderedKeys) Name() string { return "ordered" }

func (orderedKeys) AppendKey(buf []byte, v any) ([]byte, error) {
	return ordkey.Append(buf, v)
}

func (orderedKeys) Exact() bool { return true }

const hashedKeyTag = 'H'

type hashedKeys struct{}

func (hashedKeys) Name() string { return "xxhash64" }

func (hashedKeys) AppendKey(buf []byte, v any) ([]byte, error) {
	raw, err := ordkey.Encode(v)
	if err != nil {
		return nil, err
	}
	buf = append(buf, hashedKeyTag)
	return binary.BigEndian.AppendUint64(buf, xxhash.Sum64(raw)), nil
}

func (hashedKeys) Exact() bool { return false }

// keyValue folds integral floats into int64, so a number gets the same key
// whether it comes from the caller or from a decoded record. JSON decodes
// every number of a dynamic record as float64.
func keyValue(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f)
		}
	}
	return v
}
