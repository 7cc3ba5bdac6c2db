package sidx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"time"
)

// tableState is persisted per table in the metadata bucket. It remembers
// which indexes exist, which key encoding each one was built with, and
// whether it has been filled from the primary bucket.
type tableState struct {
	Indexes  map[string]*indexState `msgpack:"i"`
	LastSeen time.Time              `msgpack:"t"`
}

type indexState struct {
	Namespace string `msgpack:"ns"`
	Encoding  string `msgpack:"enc"`
	Built     bool   `msgpack:"f"`
}

const tableStateEncoding = MsgPack

func loadTableState(meta Bucket, table string) (*tableState, error) {
	ts := new(tableState)
	raw, err := meta.Get([]byte(table))
	if err != nil {
		return nil, err
	}
	if raw != nil {
		err := tableStateEncoding.DecodeValue(raw, reflect.ValueOf(ts))
		if err != nil {
			return nil, indexErrf(table, "", nil, err, "failed to decode table state")
		}
	}
	if ts.Indexes == nil {
		ts.Indexes = make(map[string]*indexState)
	}
	return ts, nil
}

func (ts *tableState) save(meta Bucket, table string) error {
	raw, err := tableStateEncoding.EncodeValue(nil, reflect.ValueOf(ts))
	if err != nil {
		return err
	}
	return meta.Put([]byte(table), raw)
}

// prepare creates the buckets of the table and reconciles the persisted table
// state with the current index definitions. Indexes that are new to a table
// already holding records get filled here.
func (t *Table[K, Row]) prepare(ctx context.Context, stx StorageTx, dropUndefined bool) error {
	if _, err := stx.CreateBucket(t.ns); err != nil {
		return fmt.Errorf("sidx: %s: %w", t.ns, err)
	}
	t.logger.LogAttrs(ctx, slog.LevelInfo, "sidx: opened namespace", slog.String("table", t.name), slog.String("ns", t.ns))
	for _, idx := range t.indexes {
		if _, err := stx.CreateBucket(idx.ns); err != nil {
			return fmt.Errorf("sidx: %s: %w", idx.ns, err)
		}
		t.logger.LogAttrs(ctx, slog.LevelInfo, "sidx: opened namespace", slog.String("table", t.name), slog.String("index", idx.name), slog.String("ns", idx.ns), slog.String("enc", idx.keyEnc.Name()))
	}

	meta, err := stx.CreateBucket(metaBucketName)
	if err != nil {
		return fmt.Errorf("sidx: %s: %w", metaBucketName, err)
	}
	ts, err := loadTableState(meta, t.name)
	if err != nil {
		return err
	}
	ts.LastSeen = time.Now()

	var pending []*index[Row]
	for _, idx := range t.indexes {
		is := ts.Indexes[idx.name]
		if is == nil {
			is = &indexState{Namespace: idx.ns, Encoding: idx.keyEnc.Name()}
			ts.Indexes[idx.name] = is
		} else if is.Encoding != idx.keyEnc.Name() {
			return indexErrf(t.name, idx.name, nil, ErrEncodingMismatch, "stored with %q, defined with %q", is.Encoding, idx.keyEnc.Name())
		}
		if !is.Built {
			pending = append(pending, idx)
		}
	}

	if dropUndefined {
		var names []string
		for name := range ts.Indexes {
			if t.byName[name] == nil {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			err := stx.DeleteBucket(ts.Indexes[name].Namespace)
			if err != nil && !errors.Is(err, ErrBucketNotFound) {
				return fmt.Errorf("sidx: dropping %s.%s: %w", t.name, name, err)
			}
			delete(ts.Indexes, name)
			t.logger.LogAttrs(ctx, slog.LevelInfo, "sidx: dropped undefined index", slog.String("table", t.name), slog.String("index", name))
		}
	}

	if len(pending) > 0 {
		start := time.Now()
		n, err := t.fill(ctx, stx, pending)
		if err != nil {
			return err
		}
		if n > 0 {
			t.logger.LogAttrs(ctx, slog.LevelInfo, "sidx: filled new indexes", slog.String("table", t.name), slog.Int("indexes", len(pending)), slog.Int("rows", n), slog.Duration("took", time.Since(start)))
		}
		for _, idx := range pending {
			ts.Indexes[idx.name].Built = true
		}
	}

	return ts.save(meta, t.name)
}

// fill adds the entries of every record in the primary bucket to the given
// (empty) indexes.
func (t *Table[K, Row]) fill(ctx context.Context, stx StorageTx, indexes []*index[Row]) (int, error) {
	pb := stx.Bucket(t.ns)
	if pb == nil {
		return 0, fmt.Errorf("sidx: %s: %w", t.ns, ErrBucketNotFound)
	}
	ibs := make([]Bucket, len(indexes))
	for i, idx := range indexes {
		ibs[i] = stx.Bucket(idx.ns)
		if ibs[i] == nil {
			return 0, fmt.Errorf("sidx: %s: %w", idx.ns, ErrBucketNotFound)
		}
	}

	rang := RawOO()
	c := rang.newCursor(pb, t.logger)
	var rows int
	var buf []byte
	for c.Next() {
		if err := ctx.Err(); err != nil {
			c.Close()
			return rows, err
		}
		keyRaw := c.Key()
		row, err := decodeRow[Row](t.valueEnc, c.Value())
		if err != nil {
			c.Close()
			return rows, indexErrf(t.name, "", keyRaw, err, "failed to decode record")
		}
		for i, idx := range indexes {
			var ok bool
			buf, ok, err = idx.appendEntryKey(buf[:0], row, keyRaw)
			if err != nil {
				c.Close()
				return rows, indexErrf(t.name, idx.name, keyRaw, err, "failed to compute index key")
			}
			if !ok {
				continue
			}
			if err := ibs[i].Put(buf, entryMarker); err != nil {
				c.Close()
				return rows, err
			}
		}
		rows++
	}
	return rows, c.Close()
}
