package authority

import (
	"encoding/json"
	"strconv"
)

// Merge overlays the received grants on DefaultMatrix. Pairs unknown to the
// schema are dropped and values are coerced to booleans, so the result always
// has exactly the default shape.
func Merge(received map[string]any) Matrix {
	m := DefaultMatrix()
	for module, raw := range received {
		actions, ok := m[module]
		if !ok {
			continue
		}
		switch grants := raw.(type) {
		case map[string]any:
			for action, v := range grants {
				if _, ok := actions[action]; ok {
					actions[action] = truthy(v)
				}
			}
		case map[string]bool:
			for action, v := range grants {
				if _, ok := actions[action]; ok {
					actions[action] = v
				}
			}
		}
	}
	return m
}

// MergeMatrix is Merge for an already typed matrix.
func MergeMatrix(received Matrix) Matrix {
	raw := make(map[string]any, len(received))
	for module, actions := range received {
		raw[module] = actions
	}
	return Merge(raw)
}

// truthy applies loose boolean coercion to a decoded JSON value.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		return err != nil || f != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}
