package sidx

import (
	"context"
)

// Delete removes the record stored under key along with all of its index
// entries. Deleting a key that has no record does nothing and makes no
// storage mutations.
func (t *Table[K, Row]) Delete(ctx context.Context, key K) (err error) {
	var noop bool
	defer func() {
		WriteCount.WithLabelValues(t.name, "delete", writeResult(err, noop)).Inc()
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

	noop, err = t.delete(ctx, stx, keyRaw)
	if err != nil || noop {
		if noop {
			t.debugf(ctx, "sidx: DELETE.NOOP %s/%v", t.name, key)
		}
		return err
	}
	err = stx.Commit()
	if err != nil {
		return err
	}
	t.debugf(ctx, "sidx: DELETE %s/%v", t.name, key)
	return nil
}

func (t *Table[K, Row]) delete(ctx context.Context, stx StorageTx, keyRaw []byte) (bool, error) {
	pb, err := t.bucket(stx, t.ns)
	if err != nil {
		return false, err
	}
	oldRaw, err := pb.Get(keyRaw)
	if err != nil {
		return false, err
	}
	if oldRaw == nil {
		return true, nil
	}

	oldKeys := t.oldEntryKeys(ctx, oldRaw, keyRaw)
	for i, idx := range t.indexes {
		if oldKeys[i] == nil {
			continue
		}
		ib, err := t.bucket(stx, idx.ns)
		if err != nil {
			return false, err
		}
		if err := ib.Delete(oldKeys[i]); err != nil {
			return false, err
		}
	}
	return false, pb.Delete(keyRaw)
}
