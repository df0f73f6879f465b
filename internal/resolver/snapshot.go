package resolver

import (
	"slices"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/prymatex/codeintel/internal/config/layer"
)

// Option keys the resolver interprets.
const (
	KeyEnabled            = "codeintel"
	KeyNativeAutoComplete = "sublime_auto_complete"
	KeyLive               = "codeintel_live"
	KeyTooltips           = "codeintel_tooltips"
	KeySnippets           = "codeintel_snippets"
	KeyWordCompletions    = "codeintel_word_completions"
	KeyEnabledLanguages   = "codeintel_enabled_languages"
	KeySyntaxMap          = "codeintel_syntax_map"
	KeyScanExcludeDir     = "codeintel_scan_exclude_dir"
	KeyMaxDepth           = "codeintel_max_recursive_dir_depth"
	KeyScanFilesInProject = "codeintel_scan_files_in_project"
	KeySelectedCatalogs   = "codeintel_selected_catalogs"
	KeyExcludeScopes      = "codeintel_exclude_scopes_from_complete_triggers"
	KeyOverrides          = "codeintel_config"

	// KeyScanExtraDir is an override-only extra listing additional
	// directories to scan.
	KeyScanExtraDir = "codeintel_scan_extra_dir"
)

// Snapshot is an immutable view of the global defaults, the per-language
// override table and the derived lookup tables. It is never modified after
// NewSnapshot returns.
type Snapshot struct {
	id        string
	version   uint64
	createdAt time.Time

	defaults  map[string]any
	overrides map[string]map[string]any
	aliases   map[string]string
	enabled   map[string]struct{}
	languages []string
	master    bool

	// dropped lists override blocks ignored because they are not objects.
	dropped []string
}

// NewSnapshot builds a snapshot from a merged option table. Every key in
// required other than the override table must be present; a missing key
// returns an error wrapping ErrIncompleteDefaults. Malformed alias entries
// and non-object override blocks are skipped.
func NewSnapshot(table map[string]any, required []string) (*Snapshot, error) {
	var missing []string
	for _, key := range required {
		if key == KeyOverrides {
			continue
		}
		if _, ok := table[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.Wrapf(ErrIncompleteDefaults, "missing %v", missing)
	}

	s := &Snapshot{
		id:        uuid.NewString(),
		createdAt: time.Now(),
		defaults:  make(map[string]any, len(table)),
		overrides: make(map[string]map[string]any),
		aliases:   make(map[string]string),
		enabled:   make(map[string]struct{}),
	}

	for key, val := range table {
		if key == KeyOverrides {
			continue
		}
		s.defaults[key] = layer.CloneValue(layer.Normalize(val))
	}

	if blocks, ok := table[KeyOverrides].(map[string]any); ok {
		for lang, block := range blocks {
			m, ok := block.(map[string]any)
			if !ok {
				s.dropped = append(s.dropped, lang)
				continue
			}
			s.overrides[lang] = layer.NormalizeMap(m)
		}
		sort.Strings(s.dropped)
	}

	if aliases, ok := s.defaults[KeySyntaxMap].(map[string]any); ok {
		raw := make(map[string]string, len(aliases))
		for from, to := range aliases {
			if name, ok := to.(string); ok && name != "" {
				raw[from] = name
			}
		}
		s.aliases = flattenAliases(raw)
	}

	for _, lang := range stringList(s.defaults[KeyEnabledLanguages]) {
		if _, dup := s.enabled[lang]; dup {
			continue
		}
		s.enabled[lang] = struct{}{}
		s.languages = append(s.languages, lang)
	}

	s.master, _ = s.defaults[KeyEnabled].(bool)

	return s, nil
}

// ID returns the unique identifier of this snapshot.
func (s *Snapshot) ID() string { return s.id }

// Version returns the publication sequence number (0 until published).
func (s *Snapshot) Version() uint64 { return s.version }

// CreatedAt returns when the snapshot was built.
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Canonicalize maps a syntax name to its canonical language name through
// the syntax alias map. Unmapped names are returned unchanged. Chained
// aliases are followed to their final target, so Canonicalize is
// idempotent.
func (s *Snapshot) Canonicalize(syntaxName string) string {
	if name, ok := s.aliases[syntaxName]; ok {
		return name
	}
	return syntaxName
}

// IsLanguageEnabled reports whether language is in the enabled set.
// The comparison is exact and case-sensitive.
func (s *Snapshot) IsLanguageEnabled(language string) bool {
	_, ok := s.enabled[language]
	return ok
}

// Gate canonicalizes syntaxName and reports whether the engine may run
// for it: the master switch must be on and the language enabled.
func (s *Snapshot) Gate(syntaxName string) (language string, enabled bool) {
	language = s.Canonicalize(syntaxName)
	return language, s.master && s.IsLanguageEnabled(language)
}

// Resolve returns the effective configuration for language: a copy of the
// global defaults with every key of the language's override block
// replacing the default wholesale. Keys only present in the override are
// carried over. A language without an override gets the defaults.
func (s *Snapshot) Resolve(language string) *EffectiveConfig {
	values := layer.CloneMap(s.defaults)
	override := s.overrides[language]
	for key, val := range override {
		values[key] = layer.CloneValue(val)
	}
	return &EffectiveConfig{
		language:   language,
		values:     values,
		defaults:   s.defaults,
		overridden: len(override) > 0,
		version:    s.version,
	}
}

// ShouldExcludePath reports whether path is excluded from scanning for
// language. See EffectiveConfig.ShouldExcludePath.
func (s *Snapshot) ShouldExcludePath(language, path string) bool {
	fragments := exclusionList(language, s.overrides[language][KeyScanExcludeDir], s.defaults[KeyScanExcludeDir])
	return matchesAnyFragment(path, fragments)
}

// ShouldTriggerLiveCompletion reports whether live completion may trigger
// for the given scope stack under the global defaults.
func (s *Snapshot) ShouldTriggerLiveCompletion(scopeStack []string) bool {
	live, _ := s.defaults[KeyLive].(bool)
	return live && !anyScopeExcluded(scopeStack, stringList(s.defaults[KeyExcludeScopes]))
}

// Languages returns the enabled languages in configured order.
func (s *Snapshot) Languages() []string {
	return append([]string(nil), s.languages...)
}

// OverrideLanguages returns the languages that have an override block,
// sorted.
func (s *Snapshot) OverrideLanguages() []string {
	langs := make([]string, 0, len(s.overrides))
	for lang := range s.overrides {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// DroppedOverrides returns override entries that were ignored because
// they are not objects.
func (s *Snapshot) DroppedOverrides() []string {
	return append([]string(nil), s.dropped...)
}

// Aliases returns a copy of the syntax alias map.
func (s *Snapshot) Aliases() map[string]string {
	out := make(map[string]string, len(s.aliases))
	for k, v := range s.aliases {
		out[k] = v
	}
	return out
}

// Defaults returns a copy of the global defaults.
func (s *Snapshot) Defaults() map[string]any {
	return layer.CloneMap(s.defaults)
}

// Override returns a copy of the override block for language.
func (s *Snapshot) Override(language string) (map[string]any, bool) {
	o, ok := s.overrides[language]
	return layer.CloneMap(o), ok
}

// flattenAliases points every alias at the end of its chain. A cycle
// resolves to its lexically smallest member, which maps to itself.
func flattenAliases(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for from := range raw {
		var seen []string
		cur := from
		for {
			if i := slices.Index(seen, cur); i >= 0 {
				cur = slices.Min(seen[i:])
				break
			}
			next, ok := raw[cur]
			if !ok || next == cur {
				break
			}
			seen = append(seen, cur)
			cur = next
		}
		if cur != from {
			out[from] = cur
		}
	}
	return out
}
