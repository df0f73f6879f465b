package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditSetting_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codeintel", "settings.json")

	require.NoError(t, EditSetting(path, "codeintel_live", false))
	require.NoError(t, EditSettingRaw(path, `codeintel_config.Node\.js.codeintel_max_recursive_dir_depth`, "3"))

	got, err := NewJSONCLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, false, got["codeintel_live"])
	assert.Equal(t, map[string]any{
		"Node.js": map[string]any{"codeintel_max_recursive_dir_depth": 3},
	}, got["codeintel_config"])
}

func TestEditSetting_ExistingWithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CodeIntel.sublime-settings")
	require.NoError(t, os.WriteFile(path, []byte(`{
	// keep snippets
	"codeintel_snippets": true,
	"codeintel_selected_catalogs": ["jQuery"],
}`), 0o644))

	require.NoError(t, EditSettingRaw(path, "codeintel_selected_catalogs", `["Dojo"]`))
	require.NoError(t, DeleteSetting(path, "codeintel_snippets"))

	got, err := NewJSONCLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"codeintel_selected_catalogs": []any{"Dojo"}}, got)
}

func TestEditSetting_Errors(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, EditSetting(filepath.Join(dir, "settings.toml"), "codeintel", true))
	assert.Error(t, EditSettingRaw(filepath.Join(dir, "settings.json"), "codeintel", "{not json"))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"a": `), 0o644))
	var perr *ParseError
	assert.ErrorAs(t, EditSetting(bad, "codeintel", true), &perr)
}
