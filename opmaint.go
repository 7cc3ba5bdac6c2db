package sidx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Reindex rebuilds the named index from the primary bucket, or every index
// when name is empty. Writers of this table wait until the rebuild commits.
func (t *Table[K, Row]) Reindex(ctx context.Context, name string) error {
	targets := t.indexes
	if name != "" {
		idx, err := t.lookupIndex(name)
		if err != nil {
			return err
		}
		targets = []*index[Row]{idx}
	}
	if len(targets) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.maint.Lock()
	defer t.maint.Unlock()

	start := time.Now()
	stx, err := t.st.BeginTx(true)
	if err != nil {
		return err
	}
	defer rollback(stx)

	for _, idx := range targets {
		err := stx.DeleteBucket(idx.ns)
		if err != nil && !errors.Is(err, ErrBucketNotFound) {
			return fmt.Errorf("sidx: %s: %w", idx.ns, err)
		}
		if _, err := stx.CreateBucket(idx.ns); err != nil {
			return fmt.Errorf("sidx: %s: %w", idx.ns, err)
		}
	}
	rows, err := t.fill(ctx, stx, targets)
	if err != nil {
		return err
	}

	meta, err := t.bucket(stx, metaBucketName)
	if err != nil {
		return err
	}
	ts, err := loadTableState(meta, t.name)
	if err != nil {
		return err
	}
	for _, idx := range targets {
		ts.Indexes[idx.name] = &indexState{Namespace: idx.ns, Encoding: idx.keyEnc.Name(), Built: true}
	}
	if err := ts.save(meta, t.name); err != nil {
		return err
	}
	if err := stx.Commit(); err != nil {
		return err
	}

	took := time.Since(start)
	for _, idx := range targets {
		ReindexDuration.WithLabelValues(t.name, idx.name).Observe(took.Seconds())
	}
	t.logger.LogAttrs(ctx, slog.LevelInfo, "sidx: reindexed", slog.String("table", t.name), slog.Int("indexes", len(targets)), slog.Int("rows", rows), slog.Duration("took", took))
	return nil
}
