package sidx

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDefinition is returned by Open when an index definition has no
	// way to compute a value, or names a field the record type doesn't have.
	ErrInvalidDefinition = errors.New("invalid index definition")

	// ErrUnknownIndex is returned by queries against an index that was not
	// defined when the table was opened.
	ErrUnknownIndex = errors.New("unknown index")

	// ErrEncodingMismatch is returned by Open when an index was previously
	// created with a different key encoding.
	ErrEncodingMismatch = errors.New("index key encoding mismatch")
)

// DataError reports stored bytes that could not be decoded: a record value,
// a primary key, or persisted table state.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: (%d) %s", msg, len(e.Data), abbrevHex(e.Data, 64, 32))
}

// abbrevHex renders data as hex, keeping only the first head and last tail
// bytes of long inputs.
func abbrevHex(data []byte, head, tail int) string {
	if len(data) <= head+tail {
		return hexstr(data)
	}
	return hexstr(data[:head]) + "..." + hexstr(data[len(data)-tail:])
}

// IndexError describes a failure concerning a table, optionally narrowed down
// to one of its indexes and a raw key.
type IndexError struct {
	Table string
	Index string
	Key   []byte
	Msg   string
	Err   error
}

func indexErrf(table, index string, key []byte, err error, format string, args ...any) error {
	return &IndexError{table, index, key, fmt.Sprintf(format, args...), err}
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

func (e *IndexError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	if e.Index != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Index)
	}
	if e.Key != nil {
		buf.WriteByte('/')
		buf.WriteString(hexstr(e.Key))
	}
	for _, part := range []string{e.Msg, errString(e.Err)} {
		if part != "" {
			buf.WriteString(": ")
			buf.WriteString(part)
		}
	}
	return buf.String()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
