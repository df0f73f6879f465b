package resolver

import (
	"sort"
	"strings"

	"github.com/prymatex/codeintel/internal/config/layer"
)

// EffectiveConfig is the read-only option set for one language: the
// global defaults with the language's override applied. Each call to
// Resolve returns a fresh value owned by the caller.
//
// Typed accessors never fail: when an override stores a value of the wrong
// shape, the accessor falls back to the global default.
type EffectiveConfig struct {
	language   string
	values     map[string]any
	defaults   map[string]any // snapshot defaults, shared and read-only
	overridden bool
	version    uint64
}

// Language returns the canonical language the configuration was resolved for.
func (c *EffectiveConfig) Language() string { return c.language }

// HasOverride reports whether a non-empty override block was applied.
func (c *EffectiveConfig) HasOverride() bool { return c.overridden }

// SnapshotVersion returns the version of the snapshot it was resolved from.
func (c *EffectiveConfig) SnapshotVersion() uint64 { return c.version }

// Value returns a copy of the raw value stored under key.
func (c *EffectiveConfig) Value(key string) (any, bool) {
	v, ok := c.values[key]
	return layer.CloneValue(v), ok
}

// Keys returns all option keys, sorted.
func (c *EffectiveConfig) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the full option set, extras included.
func (c *EffectiveConfig) Map() map[string]any {
	return layer.CloneMap(c.values)
}

// Extras returns a copy of the keys that only the override defines.
func (c *EffectiveConfig) Extras() map[string]any {
	out := make(map[string]any)
	for k, v := range c.values {
		if _, ok := c.defaults[k]; !ok {
			out[k] = layer.CloneValue(v)
		}
	}
	return out
}

// Enabled reports the master codeintel switch.
func (c *EffectiveConfig) Enabled() bool { return c.boolean(KeyEnabled) }

// NativeAutoComplete reports whether the editor's own autocomplete stays on.
func (c *EffectiveConfig) NativeAutoComplete() bool { return c.boolean(KeyNativeAutoComplete) }

// LiveCompletion reports whether completion pops up while typing.
func (c *EffectiveConfig) LiveCompletion() bool { return c.boolean(KeyLive) }

// Tooltips returns where calltips are shown: "popup", "panel" or "status".
func (c *EffectiveConfig) Tooltips() string {
	return c.enum(KeyTooltips, "popup", "panel", "status")
}

// Snippets reports whether function snippets are inserted.
func (c *EffectiveConfig) Snippets() bool { return c.boolean(KeySnippets) }

// WordCompletions returns the word completion mode: "buffer", "all" or "none".
func (c *EffectiveConfig) WordCompletions() string {
	return c.enum(KeyWordCompletions, "buffer", "all", "none")
}

// EnabledLanguages returns the enabled language list.
func (c *EffectiveConfig) EnabledLanguages() []string { return c.strings(KeyEnabledLanguages) }

// SyntaxMap returns the syntax alias map.
func (c *EffectiveConfig) SyntaxMap() map[string]string {
	m, ok := c.values[KeySyntaxMap].(map[string]any)
	if !ok {
		m, _ = c.defaults[KeySyntaxMap].(map[string]any)
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// MaxRecursiveDirDepth returns the maximum scan depth.
func (c *EffectiveConfig) MaxRecursiveDirDepth() int {
	if n, ok := c.values[KeyMaxDepth].(int); ok && n >= 0 {
		return n
	}
	n, _ := c.defaults[KeyMaxDepth].(int)
	return n
}

// ScanFilesInProject reports whether the project base directory is scanned.
func (c *EffectiveConfig) ScanFilesInProject() bool { return c.boolean(KeyScanFilesInProject) }

// ScanExcludeDirs returns the path fragments excluded from scanning for
// this language.
func (c *EffectiveConfig) ScanExcludeDirs() []string {
	return exclusionList(c.language, c.values[KeyScanExcludeDir], c.defaults[KeyScanExcludeDir])
}

// SelectedCatalogs returns the API catalogs used for completion.
func (c *EffectiveConfig) SelectedCatalogs() []string { return c.strings(KeySelectedCatalogs) }

// ExcludeScopes returns the scopes in which live completion never triggers.
func (c *EffectiveConfig) ExcludeScopes() []string { return c.strings(KeyExcludeScopes) }

// ScanExtraDirs returns additional directories to scan (override extra).
func (c *EffectiveConfig) ScanExtraDirs() []string { return stringList(c.values[KeyScanExtraDir]) }

// ToolPath returns the executable configured for the language's tool,
// stored under the lower-cased language name ("python3", "php"), or "".
func (c *EffectiveConfig) ToolPath() string {
	s, _ := c.values[strings.ToLower(c.language)].(string)
	return s
}

// ShouldExcludePath reports whether path contains one of the language's
// exclusion fragments. No filesystem access is performed.
func (c *EffectiveConfig) ShouldExcludePath(path string) bool {
	return matchesAnyFragment(path, c.ScanExcludeDirs())
}

// ShouldTriggerLiveCompletion reports whether live completion may trigger
// for scopeStack: live completion must be on and no scope excluded.
func (c *EffectiveConfig) ShouldTriggerLiveCompletion(scopeStack []string) bool {
	return c.LiveCompletion() && !anyScopeExcluded(scopeStack, c.ExcludeScopes())
}

func (c *EffectiveConfig) boolean(key string) bool {
	if b, ok := c.values[key].(bool); ok {
		return b
	}
	b, _ := c.defaults[key].(bool)
	return b
}

func (c *EffectiveConfig) enum(key string, allowed ...string) string {
	for _, src := range []map[string]any{c.values, c.defaults} {
		if s, ok := src[key].(string); ok {
			for _, a := range allowed {
				if s == a {
					return s
				}
			}
		}
	}
	return allowed[0]
}

func (c *EffectiveConfig) strings(key string) []string {
	switch c.values[key].(type) {
	case []any, []string:
		return stringList(c.values[key])
	default:
		return stringList(c.defaults[key])
	}
}
