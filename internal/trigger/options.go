// internal/trigger/options.go
package trigger

// Helpers for reading trigger options out of the opaque configuration
// mapping. Values may arrive from YAML (ints) or JSON (float64), so the
// numeric accessors handle both.

func stringOption(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intOption(cfg map[string]any, key string, fallback int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func stringSliceOption(cfg map[string]any, key string) []string {
	raw, ok := cfg[key].([]any)
	if !ok {
		if single, ok := cfg[key].(string); ok && single != "" {
			return []string{single}
		}
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
