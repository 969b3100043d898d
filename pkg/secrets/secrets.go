// Package secrets masks credential-shaped fields in configuration snapshots
// before they are returned to callers or written to logs.
package secrets

import "strings"

// Mask is the fixed placeholder that replaces secret values.
const Mask = "***"

// sensitiveKeySubstrings flags a field as secret when its lowercased name
// contains any of these fragments. Connection strings are included because
// they commonly embed passwords.
var sensitiveKeySubstrings = []string{
	"password",
	"secret",
	"token",
	"credential",
	"api_key",
	"apikey",
	"access_key",
	"private_key",
	"connection_string",
}

// Sanitize returns a deep copy of config with every credential-shaped field
// replaced by Mask. It recurses through nested maps and slices, never mutates
// its input, and is idempotent: sanitizing an already-sanitized config is a
// no-op.
func Sanitize(config map[string]interface{}) map[string]interface{} {
	if config == nil {
		return nil
	}

	out := make(map[string]interface{}, len(config))
	for key, value := range config {
		if IsSensitiveKey(key) {
			out[key] = Mask
			continue
		}
		out[key] = sanitizeValue(value)
	}
	return out
}

// IsSensitiveKey reports whether a configuration field name looks like it
// holds a credential.
func IsSensitiveKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, fragment := range sensitiveKeySubstrings {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}

func sanitizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return Sanitize(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = sanitizeValue(elem)
		}
		return out
	default:
		return value
	}
}
