/*
Package ordkey implements an order-preserving, self-delimiting binary encoding
for index and primary keys.

Comparing two encoded byte strings with bytes.Compare yields the same order as
comparing the original values. Every encoded value is self-delimiting, so a
tuple is simply the concatenation of its elements, and the encoding of a tuple
prefix is a byte prefix of the encoding of the full tuple.

# Format

Each value starts with a one-byte tag:

	0x01 nil
	0x02 false
	0x03 true
	0x10 signed integer (and unsigned integers up to MaxInt64): 8 bytes, big-endian, sign bit flipped
	0x11 unsigned integer above MaxInt64: 8 bytes, big-endian
	0x20 float: 8 bytes, IEEE 754 bits transformed to sort correctly
	0x30 time: 8 bytes of Unix seconds (sign bit flipped), 4 bytes of nanoseconds
	0x40 bytes: data with 0x00 escaped as 0x00 0xFF, terminated by 0x00
	0x41 string: same as bytes
	0x50 nested tuple: encoded elements, terminated by 0x00
	0xFF High, sorts after any other value

Values of different types order by tag. Integers and floats are not
interleaved: every integer sorts before every float.
*/
package ordkey

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"
)

const (
	tagNil    = 0x01
	tagFalse  = 0x02
	tagTrue   = 0x03
	tagInt    = 0x10
	tagUint   = 0x11
	tagFloat  = 0x20
	tagTime   = 0x30
	tagBytes  = 0x40
	tagString = 0x41
	tagTuple  = 0x50
	tagHigh   = 0xFF

	terminator = 0x00
	escaped    = 0xFF
)

var (
	ErrUnsupportedType = errors.New("ordkey: unsupported type")
	ErrCorrupt         = errors.New("ordkey: corrupted data")
)

// Tuple is a nested tuple value. Decode returns nested tuples as Tuple.
type Tuple []any

type high struct{}

func (high) String() string { return "<high>" }

// High encodes as a single 0xFF byte, greater than the encoding of any other
// value. Appending it to a prefix gives an exclusive upper bound for a scan
// over all keys that start with that prefix.
var High any = high{}

var timeType = reflect.TypeOf(time.Time{})
var bytesType = reflect.TypeOf([]byte(nil))

// Append appends the encoding of v to buf.
func Append(buf []byte, v any) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return append(buf, tagNil), nil
	case high:
		return append(buf, tagHigh), nil
	case string:
		return appendEscaped(append(buf, tagString), v), nil
	case []byte:
		return appendEscaped(append(buf, tagBytes), string(v)), nil
	case int:
		return appendInt(buf, int64(v)), nil
	case int64:
		return appendInt(buf, v), nil
	case uint64:
		return appendUint(buf, v), nil
	case bool:
		return appendBool(buf, v), nil
	case float64:
		return appendFloat(buf, v), nil
	case time.Time:
		return appendTime(buf, v), nil
	case Tuple:
		return appendTuple(buf, v)
	}
	return appendVal(buf, reflect.ValueOf(v))
}

// AppendTuple appends the concatenated encodings of vals to buf. Unlike a
// nested Tuple, the result carries no tuple tag or terminator, so it is
// suitable as a composite key whose prefixes are meaningful.
func AppendTuple(buf []byte, vals ...any) ([]byte, error) {
	var err error
	for i, v := range vals {
		buf, err = Append(buf, v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return buf, nil
}

// Encode returns the encoding of v.
func Encode(v any) ([]byte, error) {
	return Append(nil, v)
}

// MustEncode is like Encode but panics on error. Meant for tests and constants.
func MustEncode(v any) []byte {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}

func appendVal(buf []byte, val reflect.Value) ([]byte, error) {
	if !val.IsValid() {
		return append(buf, tagNil), nil
	}
	typ := val.Type()
	if typ == timeType {
		return appendTime(buf, val.Interface().(time.Time)), nil
	}
	switch val.Kind() {
	case reflect.Pointer, reflect.Interface:
		if val.IsNil() {
			return append(buf, tagNil), nil
		}
		return appendVal(buf, val.Elem())
	case reflect.Bool:
		return appendBool(buf, val.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return appendInt(buf, val.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return appendUint(buf, val.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return appendFloat(buf, val.Float()), nil
	case reflect.String:
		return appendEscaped(append(buf, tagString), val.String()), nil
	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 {
			return appendEscaped(append(buf, tagBytes), string(val.Bytes())), nil
		}
		fallthrough
	case reflect.Array:
		buf = append(buf, tagTuple)
		var err error
		for i, n := 0, val.Len(); i < n; i++ {
			buf, err = appendVal(buf, val.Index(i))
			if err != nil {
				return nil, err
			}
		}
		return append(buf, terminator), nil
	case reflect.Struct:
		buf = append(buf, tagTuple)
		var err error
		for i, n := 0, typ.NumField(); i < n; i++ {
			if !typ.Field(i).IsExported() {
				continue
			}
			buf, err = appendVal(buf, val.Field(i))
			if err != nil {
				return nil, err
			}
		}
		return append(buf, terminator), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, typ)
}

func appendTuple(buf []byte, tup Tuple) ([]byte, error) {
	buf = append(buf, tagTuple)
	var err error
	for _, el := range tup {
		buf, err = Append(buf, el)
		if err != nil {
			return nil, err
		}
	}
	return append(buf, terminator), nil
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, tagTrue)
	}
	return append(buf, tagFalse)
}

func appendInt(buf []byte, v int64) []byte {
	return appendUint64(append(buf, tagInt), uint64(v)^(1<<63))
}

func appendUint(buf []byte, v uint64) []byte {
	if v <= math.MaxInt64 {
		return appendInt(buf, int64(v))
	}
	return appendUint64(append(buf, tagUint), v)
}

func appendFloat(buf []byte, v float64) []byte {
	if v == 0 {
		v = 0 // folds -0 into +0
	}
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return appendUint64(append(buf, tagFloat), bits)
}

func appendTime(buf []byte, t time.Time) []byte {
	buf = appendUint64(append(buf, tagTime), uint64(t.Unix())^(1<<63))
	return appendUint32(buf, uint32(t.Nanosecond()))
}

func appendEscaped(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		b := s[i]
		buf = append(buf, b)
		if b == terminator {
			buf = append(buf, escaped)
		}
	}
	return append(buf, terminator)
}

func appendUint64(buf []byte, v uint64) []byte {
	return append(buf, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
