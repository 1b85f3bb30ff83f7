package routes

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Params maps query keys to values.
//
// Values may be strings, booleans, numbers, [fmt.Stringer] implementations, or slices of those.
// Nil values are skipped during serialization.
type Params map[string]any

// componentUnescaper restores the characters a URI component leaves alone
// but url.QueryEscape escapes.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeComponent percent-encodes s for use as a query key or value.
//
// Spaces become %20 rather than "+", and !'()* pass through unescaped.
func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

// scalar renders a single query value.
func scalar(v any) (string, bool) {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	}
	return "", false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// pairs renders one params entry as zero or more encoded key=value pairs.
func pairs(key string, v any) ([]string, error) {
	if isNil(v) {
		return nil, nil
	}
	if s, ok := scalar(v); ok {
		return []string{encodeComponent(key) + "=" + encodeComponent(s)}, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &InvalidParameterTypeError{Index: -1, Key: key, Value: v}
	}

	out := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		s, ok := scalar(item)
		if !ok {
			return nil, &InvalidParameterTypeError{Index: -1, Key: key, Value: item}
		}
		out = append(out, encodeComponent(key)+"="+encodeComponent(s))
	}
	return out, nil
}

// Query serializes params into a query string without the leading "?".
//
// Keys are emitted in sorted order; slice values expand to repeated pairs in slice order.
func Query(params Params) (string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		p, err := pairs(k, params[k])
		if err != nil {
			return "", err
		}
		parts = append(parts, p...)
	}
	return strings.Join(parts, "&"), nil
}

// WithQuery appends the serialized params to base. When nothing is emitted, base is returned unchanged.
func WithQuery(base string, params Params) (string, error) {
	q, err := Query(params)
	if err != nil {
		return "", err
	}
	if q == "" {
		return base, nil
	}
	return base + "?" + q, nil
}
