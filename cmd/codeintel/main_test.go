package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, configDir string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--config-dir", configDir, "--no-color", "--project", ""}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestResolve_JSON(t *testing.T) {
	dir := t.TempDir()
	out, _, err := runCLI(t, dir, "resolve", "JavaScript", "--json")
	require.NoError(t, err)

	var res resolution
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "JavaScript", res.Language)
	assert.True(t, res.Enabled)
	assert.True(t, res.Override)
	assert.Equal(t, float64(2), res.Config["codeintel_max_recursive_dir_depth"])
	assert.Equal(t, []any{"jQuery"}, res.Config["codeintel_selected_catalogs"])
}

func TestResolve_AliasAndDisabled(t *testing.T) {
	dir := t.TempDir()

	out, _, err := runCLI(t, dir, "resolve", "Python Django")
	require.NoError(t, err)
	assert.Contains(t, out, "Python Django -> Python (enabled)")
	assert.Contains(t, out, "codeintel_live")

	out, _, err = runCLI(t, dir, "resolve", "Go")
	require.NoError(t, err)
	assert.Contains(t, out, "Go -> Go (disabled)")
	assert.NotContains(t, out, "codeintel_live")
}

func TestExclude(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), "exclude", "JavaScript", "/p/build/a.js", "/p/src/a.js")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "excluded\t/p/build/a.js", lines[0])
	assert.Equal(t, "scanned\t/p/src/a.js", lines[1])
}

func TestTrigger(t *testing.T) {
	dir := t.TempDir()

	out, _, err := runCLI(t, dir, "trigger", "Python", "source.python", "comment.line.number-sign.python")
	require.NoError(t, err)
	assert.Equal(t, "suppressed\n", out)

	out, _, err = runCLI(t, dir, "trigger", "Python", "source.python")
	require.NoError(t, err)
	assert.Equal(t, "trigger\n", out)
}

func TestLanguages(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), "languages")
	require.NoError(t, err)
	assert.Contains(t, out, "LANGUAGE")
	assert.Contains(t, out, "Node.js")
	assert.Contains(t, out, "Python Django")
}

func TestSetAndGet(t *testing.T) {
	dir := t.TempDir()

	_, _, err := runCLI(t, dir, "set", "codeintel_max_recursive_dir_depth", "4")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"codeintel_max_recursive_dir_depth": 4`)

	out, errOut, err := runCLI(t, dir, "get", "codeintel_max_recursive_dir_depth")
	require.NoError(t, err)
	assert.Equal(t, "4", strings.TrimSpace(out))
	assert.Contains(t, errOut, "user:settings.json")

	_, _, err = runCLI(t, dir, "set", "codeintel_config.Node\\.js.node", `"/usr/bin/node"`)
	require.NoError(t, err)
	out, _, err = runCLI(t, dir, "get", "codeintel_config.Node\\.js.node")
	require.NoError(t, err)
	assert.Equal(t, `"/usr/bin/node"`, strings.TrimSpace(out))
}

func TestSet_Rejected(t *testing.T) {
	dir := t.TempDir()

	_, _, err := runCLI(t, dir, "set", "codeintel_tooltips", `"balloon"`)
	assert.Error(t, err)

	_, _, err = runCLI(t, dir, "set", "codeintel_live", "not json")
	assert.Error(t, err)

	_, _, err = runCLI(t, dir, "set", "no_such_option", "1")
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "settings.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGet_Missing(t *testing.T) {
	_, _, err := runCLI(t, t.TempDir(), "get", "codeintel_nothing")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("codeintel_live: false\n"), 0o644))
	out, _, err := runCLI(t, dir, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"codeintel_word_completions": "some"}`), 0o644))
	_, _, err = runCLI(t, dir, "validate", bad)
	assert.Error(t, err)

	out, _, err = runCLI(t, dir, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "defaults")
}

func TestShortcuts(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), "shortcuts")
	require.NoError(t, err)
	assert.Contains(t, out, "CodeIntel.GoToPythonDefinition\tMeta+Alt+Ctrl+Up")
	assert.Contains(t, out, "CodeIntel.BackToPythonDefinition\tMeta+Alt+Ctrl+Left")
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := runCLI(t, t.TempDir(), "--log-level", "loud", "languages")
	assert.Error(t, err)
}
