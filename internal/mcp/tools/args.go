package tools

import (
	"fmt"
	"math"

	"github.com/launchpal/launchpal/internal/mcp/protocol"
)

// args are the decoded tool arguments.
type args map[string]any

func (a args) optional(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", protocol.Errorf(protocol.InvalidParams, "%s must be a string", key)
	}
	return s, nil
}

func (a args) required(key string) (string, error) {
	s, err := a.optional(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", protocol.Errorf(protocol.InvalidParams, "missing required argument: %s", key)
	}
	return s, nil
}

// count reads an optional non-negative whole number; absent is 0.
func (a args) count(key string) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, nil
	}
	n, ok := v.(float64)
	if !ok || n < 0 || n != math.Trunc(n) {
		return 0, protocol.Errorf(protocol.InvalidParams, "%s must be a non-negative integer", key)
	}
	return int(n), nil
}

func (a args) flag(key string) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, protocol.Errorf(protocol.InvalidParams, "%s must be a boolean", key)
	}
	return b, nil
}

func (a args) stringList(key string) ([]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, protocol.Errorf(protocol.InvalidParams, "%s must be an array of strings", key)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, protocol.Errorf(protocol.InvalidParams, "%s must be an array of strings", key)
		}
		out[i] = s
	}
	return out, nil
}

// stringMap reads an object argument. Scalar values are stringified.
func (a args) stringMap(key string) (map[string]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, protocol.Errorf(protocol.InvalidParams, "%s must be an object", key)
	}
	out := make(map[string]string, len(obj))
	for k, val := range obj {
		switch val := val.(type) {
		case string:
			out[k] = val
		case map[string]any, []any:
			return nil, protocol.Errorf(protocol.InvalidParams, "%s.%s must be a scalar", key, k)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out, nil
}
