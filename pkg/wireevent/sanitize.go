package wireevent

import (
	"fmt"
	"reflect"
)

// Sanitize performs a depth copy of data, replacing a map, slice or pointer
// that is reached again while it is still being copied (a cycle) with the
// Circular sentinel. A node reached along two separate paths without a
// cycle is copied both times. The trace engine applies it to
// Data/Args/ReturnValue before an event is queued or written to a sink, so
// that cyclic structures built by producer code never reach JSON encoding.
func Sanitize(data any) any {
	return sanitizeValue(data, make(map[uintptr]bool))
}

func sanitizeValue(v any, seen map[uintptr]bool) any {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		ptr := rv.Pointer()
		if ptr != 0 {
			if seen[ptr] {
				return Circular
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key()
			out[keyString(key)] = sanitizeValue(iter.Value().Interface(), seen)
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			ptr := rv.Pointer()
			if ptr != 0 {
				if seen[ptr] {
					return Circular
				}
				seen[ptr] = true
				defer delete(seen, ptr)
			}
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = sanitizeValue(rv.Index(i).Interface(), seen)
		}
		return out
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if ptr != 0 {
			if seen[ptr] {
				return Circular
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		return sanitizeValue(rv.Elem().Interface(), seen)
	case reflect.Struct:
		out := make(map[string]any, rv.NumField())
		rt := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			out[field.Name] = sanitizeValue(rv.Field(i).Interface(), seen)
		}
		return out
	default:
		return v
	}
}

func keyString(key reflect.Value) string {
	if key.Kind() == reflect.String {
		return key.String()
	}
	if key.CanInterface() {
		return fmt.Sprintf("%v", key.Interface())
	}
	return fmt.Sprintf("%v", key)
}
