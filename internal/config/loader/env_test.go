package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnvLoader(env ...string) *EnvLoader {
	l := NewEnvLoader(EnvPrefix, map[string]string{
		"CODEINTEL_ENABLED": "codeintel",
		"CODEINTEL_LIVE":    "codeintel_live",
	})
	l.environ = func() []string { return env }
	return l
}

func TestEnvLoader_Load(t *testing.T) {
	l := newTestEnvLoader(
		"CODEINTEL_ENABLED=false",
		"CODEINTEL_LIVE=on",
		"CODEINTEL_MAX_RECURSIVE_DIR_DEPTH=2",
		"CODEINTEL_TOOLTIPS=status",
		`CODEINTEL_SYNTAX_MAP={"Ruby on Rails": "Ruby"}`,
		"CODEINTEL_SELECTED_CATALOGS=jQuery, Dojo",
		"CODEINTEL_SNIPPETS=",
		"CODEINTEL_LOG_LEVEL=debug",
		"HOME=/home/dev",
	)
	l.ListKeys = map[string]bool{"codeintel_selected_catalogs": true}

	got, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"codeintel":                         false,
		"codeintel_live":                    true,
		"codeintel_max_recursive_dir_depth": 2,
		"codeintel_tooltips":                "status",
		"codeintel_syntax_map":              map[string]any{"Ruby on Rails": "Ruby"},
		"codeintel_selected_catalogs":       []any{"jQuery", "Dojo"},
	}, got)
}

func TestEnvLoader_AddMapping(t *testing.T) {
	l := newTestEnvLoader("CODEINTEL_PY=/usr/bin/python3")
	l.AddMapping("CODEINTEL_PY", "python_path")

	got, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/python3", got["python_path"])
}

func TestEnvLoader_ParseValue(t *testing.T) {
	l := newTestEnvLoader()
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"No", false},
		{"15", 15},
		{"1.5", "1.5"},
		{"[1, 2]", []any{1, 2}},
		{"[broken", "[broken"},
		{"popup", "popup"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.parseValue("k", tt.in), tt.in)
	}
}
