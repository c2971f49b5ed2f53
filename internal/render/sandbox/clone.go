package sandbox

// Clone deep-copies the JSON-shaped parts of bindings (maps and slices).
// Other values are shared.
func Clone(bindings map[string]interface{}) map[string]interface{} {
	if bindings == nil {
		return nil
	}
	out := make(map[string]interface{}, len(bindings))
	for k, v := range bindings {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return Clone(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
