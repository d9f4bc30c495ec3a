package pagination

import (
	"reflect"
	"sort"
)

// cursorOf returns the continuation cursor carried by resp, if any.
// Only a non-empty string counts as a cursor.
func cursorOf(resp Response, field string) (string, bool) {
	v, ok := resp[field]
	if !ok {
		return "", false
	}
	cursor, ok := v.(string)
	if !ok || cursor == "" {
		return "", false
	}
	return cursor, true
}

// accumulableField returns the field whose items are concatenated across
// pages. Without an override it is the first slice-valued field in
// lexicographic order; which field wins when there are several is not part of
// the contract.
func accumulableField(resp Response, override string) string {
	if override != "" {
		return override
	}

	var fields []string
	for k, v := range resp {
		if _, ok := asSlice(v); ok {
			fields = append(fields, k)
		}
	}
	if len(fields) == 0 {
		return ""
	}
	sort.Strings(fields)
	return fields[0]
}

// asSlice converts any slice or array value into []any.
// Byte slices are treated as scalars.
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, false
	case []any:
		return s, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// mergePages returns next with its accumulable field replaced by the
// concatenation of prev's and next's items, and the number of items added.
func mergePages(prev, next Response, field string) (Response, int) {
	merged := next.Clone()
	if merged == nil {
		merged = Response{}
	}
	if field == "" {
		return merged, 0
	}

	prevItems, _ := asSlice(prev[field])
	nextItems, _ := asSlice(next[field])

	items := make([]any, 0, len(prevItems)+len(nextItems))
	items = append(items, prevItems...)
	items = append(items, nextItems...)
	merged[field] = items

	return merged, len(nextItems)
}

// itemCount returns the number of items in resp's accumulable field.
func itemCount(resp Response, field string) int {
	if field == "" {
		return 0
	}
	items, _ := asSlice(resp[field])
	return len(items)
}
