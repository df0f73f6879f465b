package registry

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewWithDefaults(t *testing.T) {
	r, err := NewWithDefaults()
	if err != nil {
		t.Fatalf("NewWithDefaults() error = %v", err)
	}

	tests := []struct {
		key      string
		typ      SettingType
		defaults any
	}{
		{"codeintel", TypeBool, true},
		{"codeintel_live", TypeBool, true},
		{"codeintel_tooltips", TypeEnum, "popup"},
		{"codeintel_word_completions", TypeEnum, "buffer"},
		{"codeintel_max_recursive_dir_depth", TypeInt, 10},
		{"codeintel_scan_files_in_project", TypeBool, true},
		{"codeintel_selected_catalogs", TypeArray, []any{}},
		{"codeintel_exclude_scopes_from_complete_triggers", TypeArray, []any{"comment"}},
		{"codeintel_syntax_map", TypeObject, map[string]any{"Python Django": "Python"}},
		{"codeintel_scan_exclude_dir", TypeMixed, map[string]any{}},
	}

	for _, tt := range tests {
		s := r.Get(tt.key)
		if s == nil {
			t.Errorf("%s not registered", tt.key)
			continue
		}
		if s.Type != tt.typ {
			t.Errorf("%s type = %v, want %v", tt.key, s.Type, tt.typ)
		}
		if !reflect.DeepEqual(s.Default, tt.defaults) {
			t.Errorf("%s default = %#v, want %#v", tt.key, s.Default, tt.defaults)
		}
	}
}

func TestRegistry_DefaultsAreCopies(t *testing.T) {
	r, err := NewWithDefaults()
	if err != nil {
		t.Fatal(err)
	}

	d1 := r.Defaults()
	d1["codeintel_exclude_scopes_from_complete_triggers"].([]any)[0] = "string"
	d1["codeintel_syntax_map"].(map[string]any)["Ruby on Rails"] = "Ruby"

	d2 := r.Defaults()
	if got := d2["codeintel_exclude_scopes_from_complete_triggers"].([]any)[0]; got != "comment" {
		t.Errorf("defaults mutated through copy: %v", got)
	}
	if _, ok := d2["codeintel_syntax_map"].(map[string]any)["Ruby on Rails"]; ok {
		t.Error("syntax map mutated through copy")
	}
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	r := New()
	if err := r.Register(Setting{Key: "a"}); err != nil {
		t.Fatal(err)
	}
	err := r.Register(Setting{Key: "a"})
	if !errors.Is(err, ErrSettingAlreadyRegistered) {
		t.Errorf("err = %v, want ErrSettingAlreadyRegistered", err)
	}
}

func TestRegistry_KeysOrder(t *testing.T) {
	r, err := NewWithDefaults()
	if err != nil {
		t.Fatal(err)
	}
	keys := r.Keys()
	if keys[0] != "codeintel" || keys[len(keys)-1] != "codeintel_config" {
		t.Errorf("unexpected order: %v", keys)
	}
	if !r.Has("codeintel_snippets") || r.Has("python3") {
		t.Error("Has() mismatch")
	}
}

func TestSetting_EnvName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"codeintel", "CODEINTEL_ENABLED"},
		{"codeintel_live", "CODEINTEL_LIVE"},
		{"codeintel_max_recursive_dir_depth", "CODEINTEL_MAX_RECURSIVE_DIR_DEPTH"},
		{"sublime_auto_complete", "CODEINTEL_SUBLIME_AUTO_COMPLETE"},
	}
	for _, tt := range tests {
		s := &Setting{Key: tt.key}
		if got := s.EnvName("CODEINTEL"); got != tt.want {
			t.Errorf("EnvName(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestSettingType_String(t *testing.T) {
	tests := []struct {
		typ  SettingType
		want string
	}{
		{TypeString, "string"},
		{TypeInt, "integer"},
		{TypeBool, "boolean"},
		{TypeArray, "array"},
		{TypeObject, "object"},
		{TypeEnum, "enum"},
		{TypeMixed, "mixed"},
		{SettingType(255), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("SettingType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
