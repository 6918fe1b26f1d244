package docstore

import "time"

// mergeMaps applies src onto dst in place. Nested maps merge recursively,
// DeleteField removes the key, anything else replaces.
func mergeMaps(dst, src map[string]interface{}) {
	for k, v := range src {
		if v == DeleteField {
			delete(dst, k)
			continue
		}
		if srcMap, ok := v.(map[string]interface{}); ok {
			dstMap, ok := dst[k].(map[string]interface{})
			if !ok {
				dstMap = map[string]interface{}{}
			}
			mergeMaps(dstMap, srcMap)
			dst[k] = dstMap
			continue
		}
		dst[k] = cloneValue(v)
	}
}

// stripDeletes returns a copy of data without DeleteField values, as Set
// treats them like absent fields.
func stripDeletes(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if v == DeleteField {
			continue
		}
		if m, ok := v.(map[string]interface{}); ok {
			out[k] = stripDeletes(m)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case time.Time:
		return t
	default:
		return v
	}
}

// matches reports whether every filter equals the document's field.
func matches(data map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if !equalValues(data[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b interface{}) bool {
	switch av := a.(type) {
	case int64:
		return toFloat(b) == float64(av)
	case int:
		return toFloat(b) == float64(av)
	case float64:
		return toFloat(b) == av
	}
	return a == b
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	}
	return -1 << 63
}
