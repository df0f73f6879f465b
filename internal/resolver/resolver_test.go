package resolver

import (
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prymatex/codeintel/internal/config/registry"
)

func builtinTable(t *testing.T) (map[string]any, []string) {
	t.Helper()
	reg, err := registry.NewWithDefaults()
	require.NoError(t, err)
	return reg.Defaults(), reg.Keys()
}

func builtinSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	table, required := builtinTable(t)
	s, err := NewSnapshot(table, required)
	require.NoError(t, err)
	return s
}

func TestNewSnapshot_IncompleteDefaults(t *testing.T) {
	table, required := builtinTable(t)
	delete(table, KeyMaxDepth)
	delete(table, KeyLive)

	_, err := NewSnapshot(table, required)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompleteDefaults))
	assert.Contains(t, err.Error(), KeyMaxDepth)
	assert.Contains(t, err.Error(), KeyLive)
}

func TestNewSnapshot_OverrideTableOptional(t *testing.T) {
	table, required := builtinTable(t)
	delete(table, KeyOverrides)

	s, err := NewSnapshot(table, required)
	require.NoError(t, err)
	assert.Empty(t, s.OverrideLanguages())
}

func TestCanonicalize(t *testing.T) {
	s := builtinSnapshot(t)

	assert.Equal(t, "Python", s.Canonicalize("Python Django"))
	assert.Equal(t, "Python", s.Canonicalize("Python"))
	assert.Equal(t, "Go", s.Canonicalize("Go"))

	for _, name := range []string{"Python Django", "Python", "Go", "JavaScript (Babel)", ""} {
		once := s.Canonicalize(name)
		assert.Equal(t, once, s.Canonicalize(once), "idempotent for %q", name)
	}
}

func TestCanonicalize_ChainedAliases(t *testing.T) {
	table, required := builtinTable(t)
	table[KeySyntaxMap] = map[string]any{
		"Python Django":   "Python (Legacy)",
		"Python (Legacy)": "Python",
		"Jinja":           "Django",
		"Django":          "Jinja",
		"Twig (HTML)":     "Django",
		"Self":            "Self",
	}
	s, err := NewSnapshot(table, required)
	require.NoError(t, err)

	tests := []struct {
		name string
		want string
	}{
		{"Python Django", "Python"},
		{"Python (Legacy)", "Python"},
		{"Python", "Python"},
		{"Jinja", "Django"},
		{"Django", "Django"},
		{"Twig (HTML)", "Django"},
		{"Self", "Self"},
	}
	for _, tt := range tests {
		once := s.Canonicalize(tt.name)
		assert.Equal(t, tt.want, once, tt.name)
		assert.Equal(t, once, s.Canonicalize(once), "idempotent for %q", tt.name)
	}

	lang, ok := s.Gate("Python Django")
	assert.Equal(t, "Python", lang)
	assert.True(t, ok)
}

func TestIsLanguageEnabled(t *testing.T) {
	s := builtinSnapshot(t)

	for _, lang := range []string{"JavaScript", "Python3", "Node.js", "PHP", "TemplateToolkit"} {
		assert.True(t, s.IsLanguageEnabled(lang), lang)
	}
	for _, lang := range []string{"", "javascript", "PYTHON", "php", "Go", "Python Django"} {
		assert.False(t, s.IsLanguageEnabled(lang), lang)
	}
}

func TestGate(t *testing.T) {
	table, required := builtinTable(t)
	table[KeySyntaxMap] = map[string]any{"Python Django": "Python", "JavaScript (Babel)": "JavaScript"}
	s, err := NewSnapshot(table, required)
	require.NoError(t, err)

	lang, ok := s.Gate("JavaScript (Babel)")
	assert.Equal(t, "JavaScript", lang)
	assert.True(t, ok)

	lang, ok = s.Gate("Go")
	assert.Equal(t, "Go", lang)
	assert.False(t, ok)

	table[KeyEnabled] = false
	off, err := NewSnapshot(table, required)
	require.NoError(t, err)
	_, ok = off.Gate("JavaScript")
	assert.False(t, ok, "master switch off disables every language")
	assert.True(t, off.IsLanguageEnabled("JavaScript"))
}

func TestResolve_NoOverrideEqualsDefaults(t *testing.T) {
	s := builtinSnapshot(t)
	defaults := s.Defaults()

	for _, lang := range []string{"Ruby", "Go", "", "python3"} {
		c := s.Resolve(lang)
		assert.Equal(t, defaults, c.Map(), lang)
		assert.False(t, c.HasOverride())
		assert.Empty(t, c.Extras())
	}
}

func TestResolve_OverrideReplacesWholeValue(t *testing.T) {
	s := builtinSnapshot(t)
	defaults := s.Defaults()

	for _, lang := range s.OverrideLanguages() {
		override, ok := s.Override(lang)
		require.True(t, ok)
		got := s.Resolve(lang).Map()

		for k, v := range override {
			assert.Equal(t, v, got[k], "%s: override key %s", lang, k)
		}
		for k, v := range defaults {
			if _, overridden := override[k]; !overridden {
				assert.Equal(t, v, got[k], "%s: default key %s", lang, k)
			}
		}
	}
}

func TestResolve_JavaScriptScenario(t *testing.T) {
	s := builtinSnapshot(t)
	c := s.Resolve("JavaScript")

	assert.False(t, c.ScanFilesInProject())
	assert.Equal(t, 2, c.MaxRecursiveDirDepth())
	assert.Equal(t, []string{"jQuery"}, c.SelectedCatalogs())
	assert.Equal(t, []string{"/build/", "/min/"}, c.ScanExcludeDirs())
	assert.True(t, c.HasOverride())

	assert.True(t, c.LiveCompletion())
	assert.Equal(t, "popup", c.Tooltips())
	assert.Equal(t, "buffer", c.WordCompletions())
	assert.Equal(t, []string{"comment"}, c.ExcludeScopes())
}

func TestResolve_ListOverrideIsNotAppended(t *testing.T) {
	table, required := builtinTable(t)
	table[KeyExcludeScopes] = []any{"comment", "string"}
	table[KeyOverrides] = map[string]any{
		"Ruby": map[string]any{KeyExcludeScopes: []any{"string.regexp"}},
	}
	s, err := NewSnapshot(table, required)
	require.NoError(t, err)

	assert.Equal(t, []string{"string.regexp"}, s.Resolve("Ruby").ExcludeScopes())
}

func TestResolve_ExtrasAndToolPath(t *testing.T) {
	s := builtinSnapshot(t)

	py := s.Resolve("Python3")
	assert.Equal(t, "/usr/local/bin/python3.3", py.ToolPath())
	assert.Len(t, py.ScanExtraDirs(), 3)
	assert.Contains(t, py.Extras(), "python3")
	assert.Contains(t, py.Extras(), KeyScanExtraDir)

	php := s.Resolve("PHP")
	assert.Equal(t, "/Applications/MAMP/bin/php/php5.5.3/bin/php", php.ToolPath())
	assert.Equal(t, 15, php.MaxRecursiveDirDepth())

	assert.Equal(t, "", s.Resolve("Ruby").ToolPath())
}

func TestResolve_ResultIsIndependent(t *testing.T) {
	s := builtinSnapshot(t)

	first := s.Resolve("JavaScript")
	m := first.Map()
	m[KeySelectedCatalogs] = []any{"mutated"}
	v, _ := first.Value(KeySelectedCatalogs)
	v.([]any)[0] = "mutated"

	assert.Equal(t, []string{"jQuery"}, s.Resolve("JavaScript").SelectedCatalogs())
	assert.Equal(t, []string{"jQuery"}, first.SelectedCatalogs())
}

func TestResolve_MalformedOverrideFallsBack(t *testing.T) {
	table, required := builtinTable(t)
	table[KeyOverrides] = map[string]any{
		"Ruby": map[string]any{
			KeyLive:             "yes",
			KeyMaxDepth:         -3,
			KeyTooltips:         "balloon",
			KeySelectedCatalogs: "Rails",
			KeyScanExcludeDir:   42,
			"ruby":              []any{"not", "a", "path"},
		},
		"Perl": "not an object",
	}
	s, err := NewSnapshot(table, required)
	require.NoError(t, err)

	c := s.Resolve("Ruby")
	assert.True(t, c.LiveCompletion())
	assert.Equal(t, 10, c.MaxRecursiveDirDepth())
	assert.Equal(t, "popup", c.Tooltips())
	assert.Empty(t, c.SelectedCatalogs())
	assert.Empty(t, c.ScanExcludeDirs())
	assert.Equal(t, "", c.ToolPath())

	assert.Equal(t, []string{"Perl"}, s.DroppedOverrides())
	assert.Equal(t, s.Defaults(), s.Resolve("Perl").Map())
}

func TestShouldExcludePath(t *testing.T) {
	table, required := builtinTable(t)
	table[KeyScanExcludeDir] = map[string]any{
		"Python": []any{"/venv/", "/srv/**/__pycache__/*"},
	}
	s, err := NewSnapshot(table, required)
	require.NoError(t, err)

	tests := []struct {
		lang string
		path string
		want bool
	}{
		{"JavaScript", "/project/build/app.js", true},
		{"JavaScript", "/project/src/min/x.js", true},
		{"JavaScript", "/project/src/app.js", false},
		{"PHP", "/Applications/MAMP/bin/php/php5.5.3/lib/x.php", true},
		{"Python", "/srv/app/venv/lib/site.py", true},
		{"Python", "/srv/app/pkg/__pycache__/mod.pyc", true},
		{"Python", "/srv/app/pkg/mod.py", false},
		{"Ruby", "/project/build/app.rb", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.ShouldExcludePath(tt.lang, tt.path), "%s %s", tt.lang, tt.path)
	}
}

func TestShouldExcludePath_EmptyAndBadFragments(t *testing.T) {
	table, required := builtinTable(t)
	table[KeyOverrides] = map[string]any{
		"Go": map[string]any{KeyScanExcludeDir: []any{"", "[", 7}},
	}
	s, err := NewSnapshot(table, required)
	require.NoError(t, err)

	assert.False(t, s.ShouldExcludePath("Go", "/src/main.go"))
	assert.True(t, s.ShouldExcludePath("Go", "/src/[x]/main.go"))
}

func TestShouldExcludePath_UnanchoredGlobs(t *testing.T) {
	table, required := builtinTable(t)
	table[KeyOverrides] = map[string]any{
		"JavaScript": map[string]any{KeyScanExcludeDir: []any{"*.min.js", "/vendor/*", "node_modules/**"}},
	}
	s, err := NewSnapshot(table, required)
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"/project/app.min.js", true},
		{"app.min.js", true},
		{"/project/app.js", false},
		{"/project/vendor/x/y.js", true},
		{"/project/vendor", false},
		{"/project/web/node_modules/lib/index.js", true},
		{"/project/src/vendors.js", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.ShouldExcludePath("JavaScript", tt.path), tt.path)
	}
}

func TestShouldExcludePath_MatchesEffectiveConfig(t *testing.T) {
	table, required := builtinTable(t)
	table[KeyScanExcludeDir] = map[string]any{"Perl": []any{"/blib/"}}
	table[KeyOverrides] = map[string]any{
		"JavaScript": map[string]any{KeyScanExcludeDir: []any{"/dist/"}},
		"Perl":       map[string]any{KeyScanExcludeDir: "not a list"},
	}
	s, err := NewSnapshot(table, required)
	require.NoError(t, err)

	paths := []string{"/p/dist/a.js", "/p/build/a.js", "/p/blib/x.pm", "/p/lib/x.pm"}
	for _, lang := range []string{"JavaScript", "Perl", "Go"} {
		eff := s.Resolve(lang)
		for _, path := range paths {
			assert.Equal(t, eff.ShouldExcludePath(path), s.ShouldExcludePath(lang, path), "%s %s", lang, path)
		}
	}
	assert.True(t, s.ShouldExcludePath("Perl", "/p/blib/x.pm"))
	assert.False(t, s.ShouldExcludePath("JavaScript", "/p/build/a.js"))
}

func TestShouldTriggerLiveCompletion(t *testing.T) {
	s := builtinSnapshot(t)

	assert.True(t, s.ShouldTriggerLiveCompletion(SplitScopes("source.python meta.function.python")))
	assert.False(t, s.ShouldTriggerLiveCompletion(SplitScopes("source.python comment.line.number-sign.python")))
	assert.False(t, s.ShouldTriggerLiveCompletion([]string{"source.js", "comment"}))
	assert.True(t, s.ShouldTriggerLiveCompletion([]string{"source.js", "commentary"}))
	assert.True(t, s.ShouldTriggerLiveCompletion(nil))

	table, required := builtinTable(t)
	table[KeyLive] = false
	off, err := NewSnapshot(table, required)
	require.NoError(t, err)
	assert.False(t, off.ShouldTriggerLiveCompletion([]string{"source.python"}))
}

func TestEffectiveConfig_ShouldTriggerLiveCompletion(t *testing.T) {
	table, required := builtinTable(t)
	table[KeyOverrides] = map[string]any{
		"PHP":  map[string]any{KeyExcludeScopes: []any{"string"}},
		"Ruby": map[string]any{KeyLive: false},
	}
	s, err := NewSnapshot(table, required)
	require.NoError(t, err)

	php := s.Resolve("PHP")
	assert.False(t, php.ShouldTriggerLiveCompletion([]string{"string.quoted.double.php"}))
	assert.True(t, php.ShouldTriggerLiveCompletion([]string{"comment.block.php"}))

	assert.False(t, s.Resolve("Ruby").ShouldTriggerLiveCompletion([]string{"source.ruby"}))
}

func TestResolver_EmptyBeforePublish(t *testing.T) {
	r := New()

	assert.Equal(t, "Python Django", r.Canonicalize("Python Django"))
	assert.False(t, r.IsLanguageEnabled("Python"))
	_, ok := r.Gate("Python")
	assert.False(t, ok)
	assert.Empty(t, r.Resolve("Python").Map())
	assert.False(t, r.ShouldExcludePath("Python", "/x"))
	assert.False(t, r.ShouldTriggerLiveCompletion(nil))
	assert.Zero(t, r.Snapshot().Version())
}

func TestResolver_PublishVersions(t *testing.T) {
	r := New()
	table, required := builtinTable(t)

	s1, err := r.Publish(table, required)
	require.NoError(t, err)
	s2, err := r.Publish(table, required)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), s1.Version())
	assert.Equal(t, uint64(2), s2.Version())
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Same(t, s2, r.Snapshot())
	assert.Equal(t, uint64(2), r.Resolve("PHP").SnapshotVersion())

	delete(table, KeyLive)
	_, err = r.Publish(table, required)
	require.Error(t, err)
	assert.Same(t, s2, r.Snapshot(), "failed publish keeps the current snapshot")
}

// markedTable returns a table in which every option the test inspects
// carries generation n, so a mixture of two snapshots is detectable.
func markedTable(t *testing.T, n int) (map[string]any, []string) {
	table, required := builtinTable(t)
	marker := fmt.Sprintf("gen-%d", n)
	table[KeyMaxDepth] = n
	table[KeySelectedCatalogs] = []any{marker}
	table[KeyExcludeScopes] = []any{marker}
	table[KeySyntaxMap] = map[string]any{"Alias": marker}
	table[KeyOverrides] = map[string]any{
		"JavaScript": map[string]any{
			KeyMaxDepth:         n,
			KeySelectedCatalogs: []any{marker},
			"node":              marker,
		},
	}
	return table, required
}

func TestResolver_NoTornReads(t *testing.T) {
	r := New()
	t1, required := markedTable(t, 1)
	t2, _ := markedTable(t, 2)
	_, err := r.Publish(t1, required)
	require.NoError(t, err)

	const readers = 8
	const iterations = 2000

	var wg sync.WaitGroup
	errs := make(chan string, readers)

	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			table := t1
			if i%2 == 0 {
				table = t2
			}
			if _, err := r.Publish(table, required); err != nil {
				errs <- err.Error()
				return
			}
		}
	}()

	var readersWG sync.WaitGroup
	for i := 0; i < readers; i++ {
		readersWG.Add(1)
		go func() {
			defer readersWG.Done()
			for j := 0; j < iterations; j++ {
				js := r.Resolve("JavaScript")
				n := js.MaxRecursiveDirDepth()
				marker := fmt.Sprintf("gen-%d", n)
				m := js.Map()
				if js.SelectedCatalogs()[0] != marker || js.ExcludeScopes()[0] != marker ||
					m["node"] != marker || js.SyntaxMap()["Alias"] != marker {
					errs <- fmt.Sprintf("torn read: depth %d with %v", n, m)
					return
				}

				ruby := r.Resolve("Ruby")
				if ruby.SelectedCatalogs()[0] != fmt.Sprintf("gen-%d", ruby.MaxRecursiveDirDepth()) {
					errs <- "torn read on defaults"
					return
				}
			}
		}()
	}

	readersWG.Wait()
	close(stop)
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}

func TestSplitScopes(t *testing.T) {
	assert.Equal(t, []string{"source.php", "string.quoted"}, SplitScopes("  source.php   string.quoted "))
	assert.Empty(t, SplitScopes(""))
}
