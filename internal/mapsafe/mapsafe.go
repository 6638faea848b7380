// Package mapsafe reads typed values out of decoded JSON-like maps.
package mapsafe

// Get retrieves a typed value from a map[string]any.
// If the key is missing or the type cannot be converted, it returns the default value.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	if val, ok := m[key]; ok {
		switch any(defaultValue).(type) {
		case int:
			switch x := val.(type) {
			case int:
				return any(x).(T)
			case int64:
				return any(int(x)).(T)
			case float64:
				if x == float64(int(x)) {
					return any(int(x)).(T)
				}
			}
		case float64:
			switch x := val.(type) {
			case float64:
				return any(x).(T)
			case int:
				return any(float64(x)).(T)
			}
		case string:
			if s, ok := val.(string); ok {
				return any(s).(T)
			}
		case bool:
			if b, ok := val.(bool); ok {
				return any(b).(T)
			}
		default:
			if v2, ok := val.(T); ok {
				return v2
			}
		}
	}
	return defaultValue
}

// Float32s converts a numeric list to []float32. ok is false when the key is
// missing or any element is not a number.
func Float32s(m map[string]any, key string) (values []float32, ok bool) {
	raw, ok := m[key].([]any)
	if !ok {
		return nil, false
	}
	values = make([]float32, len(raw))
	for i, v := range raw {
		switch x := v.(type) {
		case float64:
			values[i] = float32(x)
		case float32:
			values[i] = x
		case int:
			values[i] = float32(x)
		default:
			return nil, false
		}
	}
	return values, true
}
