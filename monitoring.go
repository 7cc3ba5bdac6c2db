package sidx

import (
	"context"
	"encoding/json"
)

type TableStats struct {
	Rows      int
	IndexRows int

	// Entries per index name.
	Indexes map[string]int
}

// Stats counts the records of the table and the entries of each index, all
// from one read transaction.
func (t *Table[K, Row]) Stats(ctx context.Context) (TableStats, error) {
	var result TableStats
	if err := ctx.Err(); err != nil {
		return result, err
	}
	stx, err := t.st.BeginTx(false)
	if err != nil {
		return result, err
	}
	defer rollback(stx)

	pb, err := t.bucket(stx, t.ns)
	if err != nil {
		return result, err
	}
	result.Rows, err = pb.KeyCount()
	if err != nil {
		return result, err
	}

	result.Indexes = make(map[string]int, len(t.indexes))
	for _, idx := range t.indexes {
		ib, err := t.bucket(stx, idx.ns)
		if err != nil {
			return result, err
		}
		n, err := ib.KeyCount()
		if err != nil {
			return result, err
		}
		result.Indexes[idx.name] = n
		result.IndexRows += n
	}
	return result, nil
}

func loggableRow(row any) string {
	raw, err := json.Marshal(row)
	if err != nil {
		return "<unloggable>"
	}
	return string(raw)
}
