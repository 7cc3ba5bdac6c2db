package sidx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
)

// Put stores row under key, replacing any previous record, and brings every
// index in line with it. The record and all index changes commit together or
// not at all.
func (t *Table[K, Row]) Put(ctx context.Context, key K, row Row) (err error) {
	defer func() {
		WriteCount.WithLabelValues(t.name, "put", writeResult(err, false)).Inc()
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	keyRaw, err := t.encodeKey(key)
	if err != nil {
		return err
	}

	t.maint.RLock()
	defer t.maint.RUnlock()
	unlock := t.locks.lock(keyRaw)
	defer unlock()

	stx, err := t.st.BeginTx(true)
	if err != nil {
		return err
	}
	defer rollback(stx)

	err = t.put(ctx, stx, keyRaw, row)
	if err != nil {
		return err
	}
	err = stx.Commit()
	if err != nil {
		return err
	}
	if t.verbose {
		t.debugf(ctx, "sidx: PUT %s/%v => %s", t.name, key, loggableRow(row))
	}
	return nil
}

func (t *Table[K, Row]) put(ctx context.Context, stx StorageTx, keyRaw []byte, row Row) error {
	pb, err := t.bucket(stx, t.ns)
	if err != nil {
		return err
	}
	rowRaw, err := encodeRow(t.valueEnc, row)
	if err != nil {
		return indexErrf(t.name, "", keyRaw, err, "failed to encode record")
	}
	// Getters see the record as it reads back from storage, the same form
	// oldEntryKeys sees on the next update.
	stored, err := decodeRow[Row](t.valueEnc, rowRaw)
	if err != nil {
		return indexErrf(t.name, "", keyRaw, err, "failed to read back encoded record")
	}
	newKeys, err := t.entryKeys(stored, keyRaw)
	if err != nil {
		return err
	}

	var oldKeys [][]byte
	oldRaw, err := pb.Get(keyRaw)
	if err != nil {
		return err
	}
	if oldRaw != nil {
		oldKeys = t.oldEntryKeys(ctx, oldRaw, keyRaw)
	}

	for i, idx := range t.indexes {
		newK := newKeys[i]
		var oldK []byte
		if oldKeys != nil {
			oldK = oldKeys[i]
		}
		if oldK == nil && newK == nil {
			continue
		}
		ib, err := t.bucket(stx, idx.ns)
		if err != nil {
			return err
		}
		if oldK != nil && !bytes.Equal(oldK, newK) {
			if err := ib.Delete(oldK); err != nil {
				return err
			}
		}
		if newK != nil {
			if err := ib.Put(newK, entryMarker); err != nil {
				return err
			}
		}
	}

	return pb.Put(keyRaw, rowRaw)
}

// entryKeys computes the composite key of row in every index; absent values
// yield nil.
func (t *Table[K, Row]) entryKeys(row Row, keyRaw []byte) ([][]byte, error) {
	keys := make([][]byte, len(t.indexes))
	for i, idx := range t.indexes {
		k, ok, err := idx.appendEntryKey(nil, row, keyRaw)
		if err != nil {
			return nil, indexErrf(t.name, idx.name, keyRaw, err, "failed to compute index key")
		}
		if ok {
			keys[i] = k
		}
	}
	return keys, nil
}

// oldEntryKeys computes the entries of a stored record that is about to be
// replaced or deleted. A record that cannot be decoded, or an index whose
// getter fails on it, contributes no entries; whatever stays behind is
// filtered out by queries.
func (t *Table[K, Row]) oldEntryKeys(ctx context.Context, oldRaw, keyRaw []byte) [][]byte {
	keys := make([][]byte, len(t.indexes))
	old, err := decodeRow[Row](t.valueEnc, oldRaw)
	if err != nil {
		t.logger.LogAttrs(ctx, slog.LevelWarn, "sidx: cannot decode old record", slog.String("table", t.name), hexAttr("key", keyRaw), slog.Any("err", err))
		return keys
	}
	for i, idx := range t.indexes {
		k, ok, err := idx.appendEntryKey(nil, old, keyRaw)
		if err != nil {
			t.logger.LogAttrs(ctx, slog.LevelWarn, "sidx: cannot compute old index key", slog.String("table", t.name), slog.String("index", idx.name), hexAttr("key", keyRaw), slog.Any("err", err))
			continue
		}
		if ok {
			keys[i] = k
		}
	}
	return keys
}

func (t *Table[K, Row]) bucket(stx StorageTx, ns string) (Bucket, error) {
	b := stx.Bucket(ns)
	if b == nil {
		return nil, fmt.Errorf("sidx: %s: %w", ns, ErrBucketNotFound)
	}
	return b, nil
}
