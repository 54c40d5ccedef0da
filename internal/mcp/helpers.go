package mcpserver

import "encoding/json"

// parseJSON parses a JSON string into the target type. Empty input leaves
// target untouched.
func parseJSON(data string, target any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), target)
}

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

func getInt(args map[string]any, key string, fallback int) int {
	return int(getFloat(args, key, float64(fallback)))
}

func boolPtr(v bool) *bool { return &v }

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
