package common

import (
	"fmt"
	"math"
	"strings"
)

// ParseStringList accepts a comma-separated string or an array of strings and
// returns the trimmed, non-empty items.
func ParseStringList(param any, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	var result []string
	switch v := param.(type) {
	case string:
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				result = append(result, item)
			}
		}
	case []any:
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			if str = strings.TrimSpace(str); str != "" {
				result = append(result, str)
			}
		}
	case []string:
		for _, str := range v {
			if str = strings.TrimSpace(str); str != "" {
				result = append(result, str)
			}
		}
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%s cannot be empty", paramName)
	}
	return result, nil
}

// IntArg reads a whole-number argument. JSON numbers arrive as float64;
// numeric strings are accepted too. A missing argument yields def.
func IntArg(args map[string]any, name string, def int) (int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return def, nil
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		return v, nil
	case string:
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err != nil {
			return 0, fmt.Errorf("%s must be a number, got %q", name, v)
		}
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}

	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%s must be a whole number, got %v", name, f)
	}
	return int(f), nil
}
