package sidx

// metaBucketName holds one table state record per primary namespace.
const metaBucketName = "_sidx"

// primaryNamespaceName returns the bucket holding the records of a table.
func primaryNamespaceName(primary string) string {
	return "t!" + escapeName(primary)
}

// indexNamespaceName returns the bucket holding the entries of one index.
// Distinct (primary, index) pairs always map to distinct names.
func indexNamespaceName(primary, index string) string {
	return "i!" + escapeName(primary) + "!" + escapeName(index)
}
