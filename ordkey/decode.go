package ordkey

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// Decode decodes the first value in data and returns it along with the
// remaining bytes.
//
// Integers decode as int64 (or uint64 above MaxInt64), floats as float64,
// times as UTC time.Time, nested tuples and arrays/slices/structs as Tuple.
func Decode(data []byte) (any, []byte, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: empty input", ErrCorrupt)
	}
	tag, rest := data[0], data[1:]
	switch tag {
	case tagNil:
		return nil, rest, nil
	case tagFalse:
		return false, rest, nil
	case tagTrue:
		return true, rest, nil
	case tagHigh:
		return High, rest, nil
	case tagInt:
		v, rest, err := decodeUint64(rest)
		return int64(v ^ (1 << 63)), rest, err
	case tagUint:
		return decodeUint64(rest)
	case tagFloat:
		bits, rest, err := decodeUint64(rest)
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		return math.Float64frombits(bits), rest, err
	case tagTime:
		sec, rest, err := decodeUint64(rest)
		if err != nil {
			return nil, nil, err
		}
		if len(rest) < 4 {
			return nil, nil, fmt.Errorf("%w: truncated time", ErrCorrupt)
		}
		nsec := binary.BigEndian.Uint32(rest)
		return time.Unix(int64(sec^(1<<63)), int64(nsec)).UTC(), rest[4:], nil
	case tagBytes:
		s, rest, err := decodeEscaped(rest)
		if err != nil {
			return nil, nil, err
		}
		return []byte(s), rest, nil
	case tagString:
		return decodeEscaped(rest)
	case tagTuple:
		tup := Tuple{}
		for {
			if len(rest) == 0 {
				return nil, nil, fmt.Errorf("%w: unterminated tuple", ErrCorrupt)
			}
			if rest[0] == terminator {
				return tup, rest[1:], nil
			}
			var el any
			var err error
			el, rest, err = Decode(rest)
			if err != nil {
				return nil, nil, err
			}
			tup = append(tup, el)
		}
	}
	return nil, nil, fmt.Errorf("%w: unknown tag %02x", ErrCorrupt, tag)
}

// DecodeTuple decodes every value in data, as produced by AppendTuple.
func DecodeTuple(data []byte) (Tuple, error) {
	var tup Tuple
	for len(data) > 0 {
		var el any
		var err error
		el, data, err = Decode(data)
		if err != nil {
			return nil, err
		}
		tup = append(tup, el)
	}
	return tup, nil
}

// Skip returns the encoded length of the first value in data.
func Skip(data []byte) (int, error) {
	_, rest, err := Decode(data)
	if err != nil {
		return 0, err
	}
	return len(data) - len(rest), nil
}

func decodeUint64(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("%w: truncated number", ErrCorrupt)
	}
	return binary.BigEndian.Uint64(data), data[8:], nil
}

func decodeEscaped(data []byte) (string, []byte, error) {
	var buf strings.Builder
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b != terminator {
			buf.WriteByte(b)
			continue
		}
		if i+1 < len(data) && data[i+1] == escaped {
			buf.WriteByte(terminator)
			i++
			continue
		}
		return buf.String(), data[i+1:], nil
	}
	return "", nil, fmt.Errorf("%w: unterminated string", ErrCorrupt)
}

// Assign stores a decoded value into dst. Numbers convert between Go numeric
// types, tuples rebuild arrays, slices and structs (exported fields in
// declaration order), pointers are allocated, and nil yields the zero value.
func Assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	typ := dst.Type()
	switch typ.Kind() {
	case reflect.Pointer:
		p := reflect.New(typ.Elem())
		if err := Assign(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	case reflect.Array, reflect.Slice, reflect.Struct:
		if tup, ok := v.(Tuple); ok {
			return assignTuple(dst, tup)
		}
	}
	val := reflect.ValueOf(v)
	if val.Type().AssignableTo(typ) {
		dst.Set(val)
		return nil
	}
	if kindClass(val.Kind()) != kindClass(typ.Kind()) || !val.Type().ConvertibleTo(typ) {
		return fmt.Errorf("%w: cannot assign %T to %v", ErrUnsupportedType, v, typ)
	}
	dst.Set(val.Convert(typ))
	return nil
}

func assignTuple(dst reflect.Value, tup Tuple) error {
	typ := dst.Type()
	switch typ.Kind() {
	case reflect.Array:
		if len(tup) != typ.Len() {
			return fmt.Errorf("%w: %d elements for %v", ErrUnsupportedType, len(tup), typ)
		}
		for i, el := range tup {
			if err := Assign(dst.Index(i), el); err != nil {
				return err
			}
		}
	case reflect.Slice:
		s := reflect.MakeSlice(typ, len(tup), len(tup))
		for i, el := range tup {
			if err := Assign(s.Index(i), el); err != nil {
				return err
			}
		}
		dst.Set(s)
	case reflect.Struct:
		j := 0
		for i, n := 0, typ.NumField(); i < n; i++ {
			if !typ.Field(i).IsExported() {
				continue
			}
			if j >= len(tup) {
				return fmt.Errorf("%w: too few elements for %v", ErrUnsupportedType, typ)
			}
			if err := Assign(dst.Field(i), tup[j]); err != nil {
				return fmt.Errorf("%v.%s: %w", typ, typ.Field(i).Name, err)
			}
			j++
		}
		if j != len(tup) {
			return fmt.Errorf("%w: %d elements for %v", ErrUnsupportedType, len(tup), typ)
		}
	}
	return nil
}

// kindClass groups kinds between which a decoded value may be converted.
func kindClass(k reflect.Kind) reflect.Kind {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return reflect.Float64
	default:
		return k
	}
}
