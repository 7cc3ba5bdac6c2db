package sidx

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func inc(data []byte) bool {
	n := len(data)
	for i := n - 1; i >= 0; i-- {
		if data[i] != 0xFF {
			for j := i; j < n; j++ {
				data[j]++
			}
			return true
		}
	}
	return false
}

// escapeName percent-escapes '%' and '!' so that names can be joined with '!'
// without ambiguity.
func escapeName(s string) string {
	if !strings.ContainsAny(s, "%!") {
		return s
	}
	var buf strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '%':
			buf.WriteString("%25")
		case '!':
			buf.WriteString("%21")
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}

func hexstr(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	if len(b) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(b)
}

func hexAttr(key string, b []byte) slog.Attr {
	return slog.String(key, hexstr(b))
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

// safelyCall runs a caller-supplied getter, turning a panic into an error so
// that the enclosing transaction gets rolled back.
func safelyCall(fn func() (any, bool)) (v any, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	v, ok = fn()
	return v, ok, nil
}
