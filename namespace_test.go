package sidx

import (
	"testing"
)

func TestNamespaceNames(t *testing.T) {
	deepEqual(t, primaryNamespaceName("people"), "t!people")
	deepEqual(t, indexNamespaceName("people", "age"), "i!people!age")

	pairs := [][2]string{
		{"a!b", "c"},
		{"a", "b!c"},
		{"a%21b", "c"},
		{"a", "b%21c"},
		{"a", "b"},
		{"ab", ""},
	}
	seen := make(map[string][2]string)
	for _, p := range pairs {
		ns := indexNamespaceName(p[0], p[1])
		if prev, ok := seen[ns]; ok {
			t.Errorf("** %v and %v share namespace %q", prev, p, ns)
		}
		seen[ns] = p
	}
}

func TestTableStatePersistence(t *testing.T) {
	st := NewMemStorage()
	wtx := must(st.BeginTx(true))
	meta := must(wtx.CreateBucket(metaBucketName))

	ts := must(loadTableState(meta, "people"))
	isempty(t, mapKeys(ts.Indexes))
	ts.Indexes["age"] = &indexState{Namespace: "i!people!age", Encoding: "ordered", Built: true}
	ensure(ts.save(meta, "people"))
	ensure(wtx.Commit())

	rtx := must(st.BeginTx(false))
	defer rtx.Rollback()
	ts = must(loadTableState(rtx.Bucket(metaBucketName), "people"))
	deepEqual(t, ts.Indexes, map[string]*indexState{
		"age": {Namespace: "i!people!age", Encoding: "ordered", Built: true},
	})
	other := must(loadTableState(rtx.Bucket(metaBucketName), "other"))
	isempty(t, mapKeys(other.Indexes))
}

func mapKeys[V any](m map[string]V) []string {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
