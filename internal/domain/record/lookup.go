package record

import (
	"strconv"
	"strings"
)

// Lookup returns the first present, non-null value among the dotted paths,
// tried in order. "extractedData.symptoms" walks nested objects.
func Lookup(raw Raw, paths ...string) (interface{}, bool) {
	for _, p := range paths {
		if v, ok := valueAt(raw, p); ok {
			return v, true
		}
	}
	return nil, false
}

func valueAt(raw Raw, path string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(raw)
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// listAt is Lookup restricted to list-shaped values. A present value of the
// wrong shape does not stop the search.
func listAt(raw Raw, paths ...string) []interface{} {
	for _, p := range paths {
		v, ok := valueAt(raw, p)
		if !ok {
			continue
		}
		if l, ok := asList(v); ok {
			return l
		}
	}
	return nil
}

func mapAt(raw Raw, paths ...string) map[string]interface{} {
	for _, p := range paths {
		v, ok := valueAt(raw, p)
		if !ok {
			continue
		}
		if m, ok := asMap(v); ok {
			return m
		}
	}
	return nil
}

// textAt returns the first non-empty textual value among the paths.
func textAt(raw Raw, paths ...string) string {
	for _, p := range paths {
		v, ok := valueAt(raw, p)
		if !ok {
			continue
		}
		if s, ok := textOf(v); ok {
			return s
		}
	}
	return ""
}

// firstText reads the first non-empty textual field of an object entry.
func firstText(m map[string]interface{}, fields ...string) string {
	for _, f := range fields {
		if s, ok := textOf(m[f]); ok {
			return s
		}
	}
	return ""
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Raw:
		return map[string]interface{}(m), true
	}
	return nil, false
}

func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []map[string]interface{}:
		out := make([]interface{}, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

// textOf renders scalars as text. Empty strings count as absent.
func textOf(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}
