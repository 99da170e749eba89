package repository

import "go.mongodb.org/mongo-driver/v2/bson"

// normalizeValue turns driver-native nested values (bson.D, bson.M, bson.A) into plain
// maps and slices so they encode as ordinary JSON objects and arrays.
func normalizeValue(v any) any {
	switch typed := v.(type) {
	case bson.D:
		out := make(map[string]any, len(typed))
		for _, e := range typed {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.M:
		return normalizeMap(typed)
	case map[string]any:
		return normalizeMap(typed)
	case bson.A:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}
