package cache

import (
	"encoding"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
)

// KeySeparator defines the delimiter between the resource and the params digest.
const KeySeparator = "::"

// ParamSeparator joins the name=value pairs of a digest.
const ParamSeparator = "&"

var defaultSerializer = &defaultKeySerializer{}

// defaultKeySerializer implements KeySerializer using reflection-based serialization.
// Parameter names are sorted and nil values dropped, so two logically equal
// parameter sets always produce the same digest.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return defaultSerializer
}

// SerializeKey builds a cache key from a resource name and its params.
func (s *defaultKeySerializer) SerializeKey(resource string, params Params) Key {
	return Key{Resource: resource, Digest: s.digest(params)}
}

func (s *defaultKeySerializer) digest(params Params) string {
	if len(params) == 0 {
		return ""
	}

	names := make([]string, 0, len(params))
	for name, value := range params {
		if isNil(value) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = url.QueryEscape(name) + "=" + url.QueryEscape(s.serializeValue(params[name]))
	}

	return strings.Join(pairs, ParamSeparator)
}

// serializeValue handles individual value serialization based on type.
func (s *defaultKeySerializer) serializeValue(v any) string {
	if isNil(v) {
		return "nil"
	}

	switch tv := v.(type) {
	case string:
		return tv
	case encoding.TextMarshaler:
		if text, err := tv.MarshalText(); err == nil {
			return string(text)
		}
	case fmt.Stringer:
		return tv.String()
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Ptr, reflect.Interface:
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		return s.serializeList(rv)
	case reflect.Map:
		return s.serializeMap(rv)
	case reflect.Struct:
		return s.serializeStruct(rv, rt)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// not stable across calls, only the type participates
		return "type:" + rt.String()
	}

	if s.isBasicType(rt.Kind()) {
		return fmt.Sprintf("%v", v)
	}

	return s.jsonFallback(v)
}

// serializeList handles slices and arrays in element order
func (s *defaultKeySerializer) serializeList(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		parts[i] = s.serializeValue(rv.Index(i).Interface())
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// serializeMap handles map serialization with sorted keys for determinism
func (s *defaultKeySerializer) serializeMap(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		value := iter.Value().Interface()
		if isNil(value) {
			continue
		}
		pairs = append(pairs, s.serializeValue(iter.Key().Interface())+":"+s.serializeValue(value))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

// serializeStruct handles struct serialization with exported field names
func (s *defaultKeySerializer) serializeStruct(rv reflect.Value, rt reflect.Type) string {
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		value := rv.Field(i).Interface()
		if isNil(value) {
			continue
		}
		parts = append(parts, field.Name+":"+s.serializeValue(value))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// isBasicType checks if a kind represents a basic Go type
func (s *defaultKeySerializer) isBasicType(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

// jsonFallback provides JSON serialization as a last resort
func (s *defaultKeySerializer) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + reflect.TypeOf(v).String()
	}
	return "json:" + string(data)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
