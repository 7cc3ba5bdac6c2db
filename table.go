package sidx

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/andreyvit/sidx/ordkey"
)

// entryMarker is the value stored under every index entry; the composite key
// carries all the information.
var entryMarker = []byte{}

type Options struct {
	// Logger receives construction logs, and per-operation debug logs when
	// Verbose is set. Nil discards everything.
	Logger  *slog.Logger
	Verbose bool

	// ValueEncoding is how records are stored in the primary bucket.
	ValueEncoding ValueEncoding

	// DropUndefinedIndexes removes indexes that were persisted by an earlier
	// Open but are no longer defined. By default they are left alone.
	DropUndefinedIndexes bool
}

// Table is a primary table of Row records keyed by K, together with the
// secondary indexes maintained over it. A Table is safe for concurrent use;
// its set of indexes is fixed at Open.
type Table[K comparable, Row any] struct {
	st       Storage
	name     string
	ns       string
	indexes  []*index[Row]
	byName   map[string]*index[Row]
	valueEnc ValueEncoding
	logger   *slog.Logger
	verbose  bool
	locks    keyLocks
	maint    sync.RWMutex // held exclusively while indexes are rebuilt
}

// Open resolves the index definitions and makes sure the primary and index
// namespaces exist in st. All index definitions are checked before storage is
// touched. Reopening a table with the same definitions is idempotent.
func Open[K comparable, Row any](st Storage, primary string, defs map[string]IndexDef[Row], opt Options) (*Table[K, Row], error) {
	return OpenContext[K, Row](context.Background(), st, primary, defs, opt)
}

// OpenContext is Open with a context, which matters when new indexes have to
// be filled from a large primary table.
func OpenContext[K comparable, Row any](ctx context.Context, st Storage, primary string, defs map[string]IndexDef[Row], opt Options) (*Table[K, Row], error) {
	if primary == "" {
		return nil, indexErrf(primary, "", nil, ErrInvalidDefinition, "empty table name")
	}
	indexes, err := resolveIndexes(primary, defs)
	if err != nil {
		return nil, err
	}

	logger := opt.Logger
	if logger == nil {
		logger = slog.New(discardHandler{})
	}

	t := &Table[K, Row]{
		st:       st,
		name:     primary,
		ns:       primaryNamespaceName(primary),
		indexes:  indexes,
		byName:   make(map[string]*index[Row], len(indexes)),
		valueEnc: opt.ValueEncoding,
		logger:   logger,
		verbose:  opt.Verbose,
	}
	for _, idx := range indexes {
		t.byName[idx.name] = idx
	}

	stx, err := st.BeginTx(true)
	if err != nil {
		return nil, err
	}
	defer rollback(stx)
	err = t.prepare(ctx, stx, opt.DropUndefinedIndexes)
	if err != nil {
		return nil, err
	}
	err = stx.Commit()
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table[K, Row]) Name() string { return t.name }

// IndexNames returns the names of the defined indexes in sorted order.
func (t *Table[K, Row]) IndexNames() []string {
	names := make([]string, len(t.indexes))
	for i, idx := range t.indexes {
		names[i] = idx.name
	}
	return names
}

func (t *Table[K, Row]) lookupIndex(name string) (*index[Row], error) {
	idx := t.byName[name]
	if idx == nil {
		return nil, indexErrf(t.name, name, nil, ErrUnknownIndex, "")
	}
	return idx, nil
}

func (t *Table[K, Row]) encodeKey(key K) ([]byte, error) {
	raw, err := ordkey.Append(nil, key)
	if err != nil {
		return nil, indexErrf(t.name, "", nil, err, "cannot encode primary key %v", key)
	}
	return raw, nil
}

func (t *Table[K, Row]) decodeKey(raw []byte) (K, error) {
	var key K
	v, rest, err := ordkey.Decode(raw)
	if err == nil && len(rest) != 0 {
		err = ordkey.ErrCorrupt
	}
	if err != nil {
		return key, dataErrf(raw, len(raw)-len(rest), err, "invalid primary key")
	}
	if k, ok := v.(K); ok {
		return k, nil
	}
	if err := ordkey.Assign(reflect.ValueOf(&key).Elem(), v); err != nil {
		return key, dataErrf(raw, 0, err, "cannot decode primary key into %v", reflect.TypeOf(&key).Elem())
	}
	return key, nil
}

func (t *Table[K, Row]) debugf(ctx context.Context, format string, args ...any) {
	if t.verbose {
		t.logger.Log(ctx, slog.LevelDebug, fmt.Sprintf(format, args...))
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
