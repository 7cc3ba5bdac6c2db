package sidx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// ValueEncoding selects how records are serialized in the primary bucket.
type ValueEncoding int

const (
	MsgPack ValueEncoding = iota
	JSON

	defaultValueEncoding = MsgPack
)

func (enc ValueEncoding) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("ValueEncoding(%d)", int(enc))
	}
}

func (enc ValueEncoding) EncodeValue(buf []byte, objVal reflect.Value) ([]byte, error) {
	switch enc {
	case MsgPack:
		bb := bytes.NewBuffer(buf)
		menc := msgpack.GetEncoder()
		menc.Reset(bb)
		menc.SetSortMapKeys(true)
		err := menc.EncodeValue(objVal)
		msgpack.PutEncoder(menc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %v using MsgPack: %w", objVal.Type(), err)
		}
		return bb.Bytes(), nil
	case JSON:
		raw, err := json.Marshal(objVal.Interface())
		if err != nil {
			return nil, fmt.Errorf("failed to encode %v to JSON: %w", objVal.Type(), err)
		}
		return append(buf, raw...), nil
	default:
		panic("unsupported encoding")
	}
}

func (enc ValueEncoding) DecodeValue(buf []byte, objPtrVal reflect.Value) error {
	switch enc {
	case MsgPack:
		var r bytes.Reader
		r.Reset(buf)
		dec := msgpack.GetDecoder()
		dec.Reset(&r)
		err := dec.DecodeValue(objPtrVal)
		msgpack.PutDecoder(dec)
		if err != nil {
			return dataErrf(buf, 0, err, "failed to decode msgpack into %v", objPtrVal.Type())
		}
		return nil
	case JSON:
		err := json.Unmarshal(buf, objPtrVal.Interface())
		if err != nil {
			return dataErrf(buf, 0, err, "failed to decode JSON into %v", objPtrVal.Type())
		}
		return nil
	default:
		panic("unsupported encoding")
	}
}

func encodeRow[Row any](enc ValueEncoding, row Row) ([]byte, error) {
	return enc.EncodeValue(nil, reflect.ValueOf(&row).Elem())
}

func decodeRow[Row any](enc ValueEncoding, raw []byte) (Row, error) {
	var row Row
	err := enc.DecodeValue(raw, reflect.ValueOf(&row))
	return row, err
}
