package sidx

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Getter computes the index value of a record. Returning ok == false means
// the record has no value for this index and is left out of it. Getters are
// called with records decoded from storage, never with the value passed to Put.
type Getter[Row any] interface {
	IndexValue(row Row) (v any, ok bool)
}

// GetterFunc adapts a plain function to Getter.
type GetterFunc[Row any] func(row Row) (any, bool)

func (f GetterFunc[Row]) IndexValue(row Row) (any, bool) {
	return f(row)
}

// IndexDef defines one index. Either Getter or Field must be set; Getter wins
// when both are. Encoding defaults to OrderedKeys.
type IndexDef[Row any] struct {
	Getter   Getter[Row]
	Field    string
	Encoding KeyEncoding
}

// Func defines an index computed by f.
func Func[Row any](f func(row Row) (any, bool)) IndexDef[Row] {
	return IndexDef[Row]{Getter: GetterFunc[Row](f)}
}

// Field defines an index over a record field. For struct records, name is
// matched against Go field names first and msgpack tag names second. For map
// records, name is the map key. Nil pointers, nil interfaces and missing map
// keys leave the record out of the index.
func Field[Row any](name string) IndexDef[Row] {
	return IndexDef[Row]{Field: name}
}

// Encoded returns a copy of def using the given key encoding.
func (def IndexDef[Row]) Encoded(enc KeyEncoding) IndexDef[Row] {
	def.Encoding = enc
	return def
}

type index[Row any] struct {
	name   string
	ns     string
	getter Getter[Row]
	keyEnc KeyEncoding
}

func resolveIndexes[Row any](table string, defs map[string]IndexDef[Row]) ([]*index[Row], error) {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	indexes := make([]*index[Row], 0, len(names))
	for _, name := range names {
		idx, err := resolveIndex(table, name, defs[name])
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

func resolveIndex[Row any](table, name string, def IndexDef[Row]) (*index[Row], error) {
	if name == "" {
		return nil, indexErrf(table, name, nil, ErrInvalidDefinition, "empty index name")
	}
	idx := &index[Row]{
		name:   name,
		ns:     indexNamespaceName(table, name),
		keyEnc: def.Encoding,
	}
	if idx.keyEnc == nil {
		idx.keyEnc = OrderedKeys
	}

	switch {
	case def.Getter != nil:
		if f, ok := def.Getter.(GetterFunc[Row]); ok && f == nil {
			return nil, indexErrf(table, name, nil, ErrInvalidDefinition, "nil getter func")
		}
		idx.getter = def.Getter
	case def.Field != "":
		g, err := newFieldGetter[Row](def.Field)
		if err != nil {
			return nil, indexErrf(table, name, nil, ErrInvalidDefinition, "%s", err.Error())
		}
		idx.getter = g
	default:
		return nil, indexErrf(table, name, nil, ErrInvalidDefinition, "neither Getter nor Field given")
	}
	return idx, nil
}

// value evaluates the getter. A panicking getter becomes an error.
func (idx *index[Row]) value(row Row) (any, bool, error) {
	return safelyCall(func() (any, bool) {
		return idx.getter.IndexValue(row)
	})
}

// appendValueKey appends the encoded index value v, the leading part of every
// entry key that carries v.
func (idx *index[Row]) appendValueKey(buf []byte, v any) ([]byte, error) {
	return idx.keyEnc.AppendKey(buf, keyValue(v))
}

// appendEntryKey appends the composite key (index value, primary key) of row.
// It returns ok == false when the row has no value for this index.
func (idx *index[Row]) appendEntryKey(buf []byte, row Row, keyRaw []byte) ([]byte, bool, error) {
	v, ok, err := idx.value(row)
	if err != nil || !ok {
		return nil, false, err
	}
	buf, err = idx.appendValueKey(buf, v)
	if err != nil {
		return nil, false, err
	}
	return append(buf, keyRaw...), true, nil
}

type fieldGetter[Row any] struct {
	name    string
	path    []int        // struct field index, nil when resolved per record
	mapKey  reflect.Type // key type for map records
	dynamic bool
}

func newFieldGetter[Row any](name string) (*fieldGetter[Row], error) {
	g := &fieldGetter[Row]{name: name}
	typ := reflect.TypeOf((*Row)(nil)).Elem()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	switch typ.Kind() {
	case reflect.Struct:
		sf, ok := lookupStructField(typ, name)
		if !ok {
			return nil, fmt.Errorf("%v has no exported field %q", typ, name)
		}
		g.path = sf.Index
	case reflect.Map:
		if typ.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%v: field indexes need string map keys", typ)
		}
		g.mapKey = typ.Key()
	case reflect.Interface:
		g.dynamic = true
	default:
		return nil, fmt.Errorf("cannot project field %q out of %v", name, typ)
	}
	return g, nil
}

func (g *fieldGetter[Row]) IndexValue(row Row) (any, bool) {
	val, ok := deref(reflect.ValueOf(&row).Elem())
	if !ok {
		return nil, false
	}

	var fv reflect.Value
	switch {
	case g.path != nil:
		var err error
		fv, err = val.FieldByIndexErr(g.path)
		if err != nil {
			return nil, false
		}
	case g.mapKey != nil:
		fv = val.MapIndex(reflect.ValueOf(g.name).Convert(g.mapKey))
	case g.dynamic:
		fv = dynamicField(val, g.name)
	}
	if !fv.IsValid() {
		return nil, false
	}
	fv, ok = deref(fv)
	if !ok {
		return nil, false
	}
	return fv.Interface(), true
}

func dynamicField(val reflect.Value, name string) reflect.Value {
	switch val.Kind() {
	case reflect.Struct:
		if sf, ok := lookupStructField(val.Type(), name); ok {
			if fv, err := val.FieldByIndexErr(sf.Index); err == nil {
				return fv
			}
		}
	case reflect.Map:
		if val.Type().Key().Kind() == reflect.String {
			return val.MapIndex(reflect.ValueOf(name).Convert(val.Type().Key()))
		}
	}
	return reflect.Value{}
}

func lookupStructField(typ reflect.Type, name string) (reflect.StructField, bool) {
	if sf, ok := typ.FieldByName(name); ok && sf.IsExported() {
		return sf, true
	}
	for _, sf := range reflect.VisibleFields(typ) {
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("msgpack"), ",")
		if tag == name {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}

// deref unwraps pointers and interfaces, reporting false on nil.
func deref(val reflect.Value) (reflect.Value, bool) {
	for val.Kind() == reflect.Pointer || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return reflect.Value{}, false
		}
		val = val.Elem()
	}
	return val, val.IsValid()
}
