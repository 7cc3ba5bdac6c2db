package sidx

import (
	"bytes"
	"context"
	"log/slog"
)

// RawRange defines a range of byte strings. The constructors use mnemonics:
// O means open, I means inclusive, E means exclusive; the first letter is for
// the lower bound, the second for the upper bound.
type RawRange struct {
	Prefix   []byte
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
	Reverse  bool
}

func RawOO() RawRange            { return RawRange{} }
func RawIO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: true} }
func RawEO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: false} }
func RawOI(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: true} }
func RawOE(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: false} }
func RawII(l, u []byte) RawRange { return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: true} }
func RawIE(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: false}
}
func RawEI(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: false, UpperInc: true}
}
func RawEE(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: false, UpperInc: false}
}
func RawPrefix(p []byte) RawRange                { return RawRange{Prefix: p} }
func (rang RawRange) Prefixed(p []byte) RawRange { rang.Prefix = p; return rang }
func (rang RawRange) Reversed() RawRange         { rang.Reverse = true; return rang }

// levelTrace sits below Debug; scans report every stop at this level.
const levelTrace = slog.LevelDebug - 4

// Bounds compare as plain byte strings: an exclusive lower bound only skips a
// key equal to it, and keys that extend an upper bound sort after it.
func (r *RawRange) seek(bcur Cursor) ([]byte, []byte) {
	if r.Reverse {
		switch {
		case r.Upper != nil:
			r.mustHavePrefix(r.Upper, "upper")
			k, v := bcur.Seek(r.Upper)
			if k == nil {
				return bcur.Last()
			}
			if cmp := bytes.Compare(k, r.Upper); cmp > 0 || (cmp == 0 && !r.UpperInc) {
				return bcur.Prev()
			}
			return k, v
		case r.Prefix != nil:
			return bcur.SeekLast(r.Prefix)
		default:
			return bcur.Last()
		}
	}
	switch {
	case r.Lower != nil:
		r.mustHavePrefix(r.Lower, "lower")
		k, v := bcur.Seek(r.Lower)
		if k != nil && !r.LowerInc && bytes.Equal(k, r.Lower) {
			return bcur.Next()
		}
		return k, v
	case r.Prefix != nil:
		return bcur.Seek(r.Prefix)
	default:
		return bcur.First()
	}
}

func (r *RawRange) mustHavePrefix(bound []byte, which string) {
	if r.Prefix != nil && !bytes.HasPrefix(bound, r.Prefix) {
		panic(which + " bound does not match prefix")
	}
}

// outside names the limit that k violates, or returns "" when k is in range.
// Only the limit in the direction of travel is checked; seek handles the other.
func (r *RawRange) outside(k []byte) string {
	if r.Prefix != nil && !bytes.HasPrefix(k, r.Prefix) {
		return "prefix"
	}
	if r.Reverse {
		if r.Lower != nil {
			if cmp := bytes.Compare(k, r.Lower); cmp < 0 || (cmp == 0 && !r.LowerInc) {
				return "lower"
			}
		}
	} else if r.Upper != nil {
		if cmp := bytes.Compare(k, r.Upper); cmp > 0 || (cmp == 0 && !r.UpperInc) {
			return "upper"
		}
	}
	return ""
}

func (rang *RawRange) newCursor(b Bucket, logger *slog.Logger) *RawRangeCursor {
	return &RawRangeCursor{rang: *rang, bcur: b.Cursor(), logger: logger}
}

// RawRangeCursor walks the keys of a bucket that fall into a RawRange.
type RawRangeCursor struct {
	rang    RawRange
	bcur    Cursor
	logger  *slog.Logger
	k, v    []byte
	started bool
	done    bool
}

// Next moves to the following key in range and reports whether there is one.
// Once it returns false, it keeps returning false.
func (c *RawRangeCursor) Next() bool {
	if c.done {
		return false
	}
	var k, v []byte
	switch {
	case !c.started:
		c.started = true
		k, v = c.rang.seek(c.bcur)
	case c.rang.Reverse:
		k, v = c.bcur.Prev()
	default:
		k, v = c.bcur.Next()
	}
	if k == nil {
		c.trace("sidx: scan exhausted", nil)
	} else if limit := c.rang.outside(k); limit != "" {
		c.trace("sidx: scan stopped", k, slog.String("limit", limit))
		k, v = nil, nil
	}
	c.k, c.v = k, v
	c.done = k == nil
	return !c.done
}

func (c *RawRangeCursor) trace(msg string, k []byte, attrs ...slog.Attr) {
	ctx := context.Background()
	if c.logger == nil || !c.logger.Enabled(ctx, levelTrace) {
		return
	}
	attrs = append(attrs, hexAttr("key", k), slog.Bool("reverse", c.rang.Reverse))
	c.logger.LogAttrs(ctx, levelTrace, msg, attrs...)
}

func (c *RawRangeCursor) Key() []byte   { return c.k }
func (c *RawRangeCursor) Value() []byte { return c.v }

func (c *RawRangeCursor) Close() error { return c.bcur.Close() }

// scanKeys collects copies of all keys in rang, checking ctx between steps.
func scanKeys(ctx context.Context, b Bucket, rang RawRange, logger *slog.Logger) ([][]byte, error) {
	c := rang.newCursor(b, logger)
	var keys [][]byte
	for c.Next() {
		if err := ctx.Err(); err != nil {
			c.Close()
			return nil, err
		}
		keys = append(keys, bytes.Clone(c.Key()))
	}
	return keys, c.Close()
}
