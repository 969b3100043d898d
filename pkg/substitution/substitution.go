// Package substitution implements the configuration variable substitution
// engine used throughout the Verity runtime context.
//
// Configuration values may reference variables as ${name} or $(name). The
// engine rewrites those placeholders from a flat substitution map built by
// layering override sources, leaving unknown placeholders untouched so that
// callers can decide whether unresolved variables are an error. A dollar sign
// prefixed with the escape token is emitted literally and never starts a
// placeholder.
package substitution

import (
	"sort"
	"strings"

	"github.com/verityhq/verity/pkg/metrics"
)

// DefaultEscape is the escape token recognized in configuration strings. An
// occurrence of the token renders as a single literal dollar sign.
const DefaultEscape = `\$`

// Resolve walks value depth-first over maps, slices and string scalars and
// substitutes every placeholder whose name is present in substitutions. It
// returns a new structure and never mutates its input. Non-string scalars
// pass through unchanged, as do placeholders with no matching key.
func Resolve(value interface{}, substitutions map[string]string, escape string) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, elem := range v {
			out[key] = Resolve(elem, substitutions, escape)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = Resolve(elem, substitutions, escape)
		}
		return out
	case string:
		return ResolveString(v, substitutions, escape)
	default:
		return value
	}
}

// ResolveString substitutes placeholders in a single string. The escape token
// is consumed and replaced with a literal dollar sign; the dollar sign it
// produces never starts a placeholder.
func ResolveString(s string, substitutions map[string]string, escape string) string {
	if !strings.ContainsRune(s, '$') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if escape != "" && strings.HasPrefix(s[i:], escape) {
			b.WriteByte('$')
			i += len(escape)
			continue
		}
		if s[i] == '$' {
			if name, end, ok := scanPlaceholder(s, i); ok {
				if replacement, present := substitutions[name]; present {
					b.WriteString(replacement)
					metrics.SubstitutionsApplied.Inc()
				} else {
					b.WriteString(s[i:end])
				}
				i = end
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// Merge flattens the given overlays into a single substitution map. Later
// overlays take precedence over earlier ones; nil overlays are skipped.
func Merge(overlays ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, overlay := range overlays {
		for key, value := range overlay {
			merged[key] = value
		}
	}
	return merged
}

// Unresolved collects the names of all placeholders still present in value,
// sorted and deduplicated. Callers that require strict resolution can treat a
// non-empty result as an error.
func Unresolved(value interface{}) []string {
	seen := map[string]struct{}{}
	collectUnresolved(value, seen)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectUnresolved(value interface{}, seen map[string]struct{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		for _, elem := range v {
			collectUnresolved(elem, seen)
		}
	case []interface{}:
		for _, elem := range v {
			collectUnresolved(elem, seen)
		}
	case string:
		i := 0
		for i < len(v) {
			if strings.HasPrefix(v[i:], DefaultEscape) {
				i += len(DefaultEscape)
				continue
			}
			if v[i] == '$' {
				if name, end, ok := scanPlaceholder(v, i); ok {
					seen[name] = struct{}{}
					i = end
					continue
				}
			}
			i++
		}
	}
}

// scanPlaceholder reads a placeholder starting at the dollar sign at s[start].
// It returns the variable name, the index just past the closing delimiter and
// whether a well-formed placeholder was found. Names are plain identifiers:
// a letter or underscore followed by letters, digits or underscores.
func scanPlaceholder(s string, start int) (string, int, bool) {
	if start+1 >= len(s) {
		return "", 0, false
	}

	var closer byte
	switch s[start+1] {
	case '{':
		closer = '}'
	case '(':
		closer = ')'
	default:
		return "", 0, false
	}

	i := start + 2
	for i < len(s) && isIdentChar(s[i], i == start+2) {
		i++
	}
	if i == start+2 || i >= len(s) || s[i] != closer {
		return "", 0, false
	}
	return s[start+2 : i], i + 1, true
}

func isIdentChar(c byte, first bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	return !first && c >= '0' && c <= '9'
}
