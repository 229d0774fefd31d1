package mcp

import (
	"fmt"
	"sort"
	"strings"
)

func getStringArg(args map[string]interface{}, key string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// requireString returns the trimmed string argument or an error naming it.
func requireString(args map[string]interface{}, key string) (string, error) {
	v := getStringArg(args, key)
	if v == "" {
		return "", errMissing(key)
	}
	return v, nil
}

func errMissing(key string) error {
	return fmt.Errorf("%s is required", key)
}

// getStringSliceArg accepts a JSON array of strings, or a single string.
func getStringSliceArg(args map[string]interface{}, key string) []string {
	val, ok := args[key]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

func getIntArg(args map[string]interface{}, key string, fallback int) int {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func getMapArg(args map[string]interface{}, key string) map[string]interface{} {
	if m, ok := args[key].(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func argString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []string:
		if len(value) == 0 {
			return ""
		}
		return value[0]
	default:
		return fmt.Sprintf("%v", value)
	}
}

func unknownAction(tool, action string, allowed ...string) error {
	return fmt.Errorf("%s: unknown action %q (expected one of %s)", tool, action, strings.Join(allowed, ", "))
}

func sortedStrings(in []string) []string {
	sort.Strings(in)
	return in
}
