package resolver

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SplitScopes splits a space-separated scope string as reported by an
// editor ("source.python string.quoted.double.python") into a scope stack.
func SplitScopes(scopes string) []string {
	return strings.Fields(scopes)
}

// scopeMatches reports whether scope is selected by entry: equal to it, or
// a dotted refinement of it ("comment" selects "comment.line.number-sign").
func scopeMatches(scope, entry string) bool {
	if entry == "" {
		return false
	}
	return scope == entry || strings.HasPrefix(scope, entry+".")
}

func anyScopeExcluded(stack, excluded []string) bool {
	for _, scope := range stack {
		for _, entry := range excluded {
			if scopeMatches(scope, entry) {
				return true
			}
		}
	}
	return false
}

// excludeFragments extracts the exclusion list for language from a
// codeintel_scan_exclude_dir value: either a list (inside an override) or
// a map keyed by language (the global form).
func excludeFragments(v any, language string) []string {
	switch val := v.(type) {
	case []any, []string:
		return stringList(val)
	case map[string]any:
		return stringList(val[language])
	default:
		return nil
	}
}

// exclusionList returns the fragments of v for language, or those of the
// global default when v is missing or has the wrong shape.
func exclusionList(language string, v, fallback any) []string {
	switch v.(type) {
	case []any, []string, map[string]any:
	default:
		v = fallback
	}
	return excludeFragments(v, language)
}

// matchesAnyFragment reports whether path contains one of fragments as a
// substring. Fragments with glob metacharacters are also matched as
// doublestar patterns. Empty fragments and invalid patterns match nothing.
func matchesAnyFragment(path string, fragments []string) bool {
	slashed := filepath.ToSlash(path)
	for _, frag := range fragments {
		if frag == "" {
			continue
		}
		if strings.Contains(path, frag) || strings.Contains(slashed, frag) {
			return true
		}
		if strings.ContainsAny(frag, "*?[{") && globMatches(frag, slashed) {
			return true
		}
	}
	return false
}

// globMatches reports whether pattern matches any run of whole segments
// of the slash-separated path, like a substring does for plain
// fragments: "*.min.js" matches "/app/x.min.js" and "/vendor/*" matches
// "/app/vendor/lib/y.js".
func globMatches(pattern, slashed string) bool {
	pattern = strings.Trim(pattern, "/")
	if pattern == "" {
		return false
	}
	path := strings.TrimPrefix(slashed, "/")
	for _, p := range []string{"**/" + pattern, "**/" + pattern + "/**"} {
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			return true
		}
	}
	return false
}

// stringList returns the string elements of a list value, skipping
// anything that is not a string.
func stringList(v any) []string {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
