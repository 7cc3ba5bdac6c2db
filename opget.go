package sidx

import (
	"context"
)

// Get returns the record stored under key. The boolean is false when there is
// none.
func (t *Table[K, Row]) Get(ctx context.Context, key K) (Row, bool, error) {
	var zero Row
	rows, err := t.GetMany(ctx, []K{key})
	if err != nil || len(rows) == 0 {
		return zero, false, err
	}
	return rows[0], true, nil
}

// GetMany fetches several records in one read transaction. Keys without a
// record are skipped; the remaining records keep the order of keys.
func (t *Table[K, Row]) GetMany(ctx context.Context, keys []K) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keysRaw := make([][]byte, len(keys))
	for i, key := range keys {
		raw, err := t.encodeKey(key)
		if err != nil {
			return nil, err
		}
		keysRaw[i] = raw
	}

	stx, err := t.st.BeginTx(false)
	if err != nil {
		return nil, err
	}
	defer rollback(stx)

	pb, err := t.bucket(stx, t.ns)
	if err != nil {
		return nil, err
	}
	values, err := getMany(pb, keysRaw)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(values))
	for i, raw := range values {
		if raw == nil {
			t.debugf(ctx, "sidx: GET.NOTFOUND %s/%v", t.name, keys[i])
			continue
		}
		row, err := decodeRow[Row](t.valueEnc, raw)
		if err != nil {
			return nil, indexErrf(t.name, "", keysRaw[i], err, "failed to decode record")
		}
		rows = append(rows, row)
	}
	return rows, nil
}
