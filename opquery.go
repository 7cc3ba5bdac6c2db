package sidx

import (
	"bytes"
	"context"

	"github.com/andreyvit/sidx/ordkey"
)

// highByte sorts after the first byte of every encoded value, so enc(v)+highByte
// is an upper bound for all composite keys starting with enc(v).
const highByte = 0xFF

// Query returns the records whose value in the named index equals value, in
// index order (which, for a single value, is primary key order).
func (t *Table[K, Row]) Query(ctx context.Context, indexName string, value any) ([]Row, error) {
	_, rows, err := t.query(ctx, indexName, value)
	return rows, err
}

// QueryKeys is like Query, but returns the primary keys of the matching records.
func (t *Table[K, Row]) QueryKeys(ctx context.Context, indexName string, value any) ([]K, error) {
	keysRaw, _, err := t.query(ctx, indexName, value)
	if err != nil {
		return nil, err
	}
	keys := make([]K, 0, len(keysRaw))
	for _, raw := range keysRaw {
		key, err := t.decodeKey(raw)
		if err != nil {
			return nil, indexErrf(t.name, indexName, raw, err, "failed to decode primary key")
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (t *Table[K, Row]) query(ctx context.Context, indexName string, value any) ([][]byte, []Row, error) {
	idx, err := t.lookupIndex(indexName)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	QueryCount.WithLabelValues(t.name, idx.name).Inc()

	lower, err := idx.appendValueKey(nil, value)
	if err != nil {
		return nil, nil, indexErrf(t.name, idx.name, nil, err, "cannot encode lookup value")
	}
	upper := append(bytes.Clone(lower), highByte)

	var want []byte
	if !idx.keyEnc.Exact() {
		want, err = ordkey.Encode(keyValue(value))
		if err != nil {
			return nil, nil, indexErrf(t.name, idx.name, nil, err, "cannot encode lookup value")
		}
	}

	stx, err := t.st.BeginTx(false)
	if err != nil {
		return nil, nil, err
	}
	defer rollback(stx)

	ib, err := t.bucket(stx, idx.ns)
	if err != nil {
		return nil, nil, err
	}
	entries, err := scanKeys(ctx, ib, RawEE(lower, upper), t.logger)
	if err != nil {
		return nil, nil, err
	}
	if len(entries) == 0 {
		QueryResultSize.WithLabelValues(t.name, idx.name).Observe(0)
		t.debugf(ctx, "sidx: QUERY.NOTFOUND %s.%s/%v", t.name, idx.name, value)
		return nil, nil, nil
	}

	keysRaw := make([][]byte, len(entries))
	for i, k := range entries {
		keysRaw[i] = k[len(lower):]
	}

	pb, err := t.bucket(stx, t.ns)
	if err != nil {
		return nil, nil, err
	}
	values, err := getMany(pb, keysRaw)
	if err != nil {
		return nil, nil, err
	}

	foundKeys := keysRaw[:0]
	rows := make([]Row, 0, len(values))
	for i, raw := range values {
		if raw == nil {
			StaleEntryCount.WithLabelValues(t.name, idx.name).Inc()
			t.debugf(ctx, "sidx: QUERY.STALE %s.%s/%x", t.name, idx.name, keysRaw[i])
			continue
		}
		row, err := decodeRow[Row](t.valueEnc, raw)
		if err != nil {
			return nil, nil, indexErrf(t.name, "", keysRaw[i], err, "failed to decode record")
		}
		if want != nil {
			ok, err := idx.matches(row, want)
			if err != nil {
				return nil, nil, indexErrf(t.name, idx.name, keysRaw[i], err, "failed to recheck record")
			}
			if !ok {
				continue
			}
		}
		foundKeys = append(foundKeys, keysRaw[i])
		rows = append(rows, row)
	}

	QueryResultSize.WithLabelValues(t.name, idx.name).Observe(float64(len(rows)))
	t.debugf(ctx, "sidx: QUERY %s.%s/%v => %d", t.name, idx.name, value, len(rows))
	return foundKeys, rows, nil
}

// matches recomputes the index value of row and compares its ordered
// encoding with want.
func (idx *index[Row]) matches(row Row, want []byte) (bool, error) {
	v, ok, err := idx.value(row)
	if err != nil || !ok {
		return false, err
	}
	have, err := ordkey.Encode(keyValue(v))
	if err != nil {
		return false, err
	}
	return bytes.Equal(have, want), nil
}
