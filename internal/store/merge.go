package store

import "strings"

// setPath writes value at the dot path inside data, materializing intermediate
// maps as needed. An intermediate non-map value is replaced by a map; leaves
// outside the path are untouched.
func setPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := data
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// valueAtPath returns the value at the dot path, or (nil, false) when any
// segment is missing.
func valueAtPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur := data
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	v, ok := cur[parts[len(parts)-1]]
	return v, ok
}
