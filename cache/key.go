package cache

import (
	"bytes"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// SearchKey derives the cache key for a filtered search. The filters are
// written in canonical form (map keys sorted, values encoded
// deterministically) and digested, so semantically identical filter maps
// always produce the same key no matter the order their keys were inserted
// in. Returns ErrUnencodableKey when a filter value cannot be encoded
// deterministically.
func SearchKey(query string, filters map[string]any) (string, error) {
	return compositeKey("search", query, filters)
}

// ExportKey derives the cache key for a generated export, from its format
// ("csv", "json", ...) and the filters that shaped it. Same determinism
// contract as SearchKey.
func ExportKey(format string, filters map[string]any) (string, error) {
	return compositeKey("export", format, filters)
}

// compositeKey builds "<kind>:<principal>:<digest>". The readable prefix is
// for log and debugging ergonomics; uniqueness comes from the xxhash digest
// of the full canonical encoding.
func compositeKey(kind, principal string, filters map[string]any) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(kind)
	buf.WriteByte(0)
	buf.WriteString(principal)
	buf.WriteByte(0)
	if err := writeCanonical(&buf, filters); err != nil {
		return "", err
	}
	digest := xxhash.Sum64(buf.Bytes())
	return kind + ":" + principal + ":" + strconv.FormatUint(digest, 16), nil
}

// writeCanonical appends a deterministic encoding of v to buf. Map keys are
// sorted; struct fields follow declaration order, recursing per field so
// nested maps stay sorted. Functions, channels, complex numbers and maps
// without string keys have no canonical form and yield ErrUnencodableKey.
func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("~")
		return nil
	case bool:
		buf.WriteString(strconv.FormatBool(val))
		return nil
	case string:
		buf.WriteString(strconv.Quote(val))
		return nil
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
		return nil
	case float64:
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
		return nil
	case time.Time:
		buf.WriteString(val.UTC().Format(time.RFC3339Nano))
		return nil
	case time.Duration:
		buf.WriteString(val.String())
		return nil
	case map[string]any:
		return writeCanonicalStringMap(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case []string:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(item))
		}
		buf.WriteByte(']')
		return nil
	}
	return writeCanonicalReflect(buf, reflect.ValueOf(v))
}

func writeCanonicalStringMap(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		if err := writeCanonical(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeCanonicalReflect(buf *bytes.Buffer, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			buf.WriteString("~")
			return nil
		}
		return writeCanonical(buf, rv.Elem().Interface())
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(rv.Bool()))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
		return nil
	case reflect.Float32, reflect.Float64:
		buf.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
		return nil
	case reflect.String:
		buf.WriteString(strconv.Quote(rv.String()))
		return nil
	case reflect.Slice, reflect.Array:
		buf.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return errors.Wrapf(ErrUnencodableKey, "map keyed by %s", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return writeCanonicalStringMap(buf, m)
	case reflect.Struct:
		// Exported fields in declaration order, each value recursing through
		// writeCanonical so map-typed fields come out sorted too.
		rt := rv.Type()
		buf.WriteByte('{')
		first := true
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			buf.WriteString(strconv.Quote(field.Name))
			buf.WriteByte(':')
			if err := writeCanonical(buf, rv.Field(i).Interface()); err != nil {
				return errors.Wrapf(err, "struct %s field %s", rt, field.Name)
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return errors.Wrapf(ErrUnencodableKey, "value of kind %s", rv.Kind())
	}
}
