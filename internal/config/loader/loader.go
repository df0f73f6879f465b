// Package loader reads codeintel settings files and environment variables.
//
// Every loader produces a normalized option table: integral numbers become
// int, arrays become []any and objects become map[string]any. A missing
// file yields nil, nil.
package loader

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/prymatex/codeintel/internal/config/layer"
)

// Loader is the interface for configuration loaders.
type Loader interface {
	// Load reads configuration from the source and returns a map.
	// Returns nil, nil if the source doesn't exist (not an error).
	Load() (map[string]any, error)
}

// FileLoader is the interface for loaders that read from files.
type FileLoader interface {
	Loader
	// LoadFrom reads configuration from a specific path.
	LoadFrom(path string) (map[string]any, error)
	// LoadFromReader reads configuration from a reader.
	LoadFromReader(r io.Reader) (map[string]any, error)
}

// FileSystem is an abstraction for file system operations.
type FileSystem interface {
	fs.FS
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// Open implements fs.FS.
func (OSFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// DefaultFS returns the default file system (OS).
func DefaultFS() FileSystem {
	return OSFS{}
}

// SettingsFileNames lists, in lookup order, the file names searched for in
// a settings directory. Only the first one present is loaded.
var SettingsFileNames = []string{
	"CodeIntel.sublime-settings",
	"settings.jsonc",
	"settings.json",
	"settings.toml",
	"settings.yaml",
	"settings.yml",
	"settings.lua",
}

// Format identifies a settings file format.
type Format string

// Supported formats.
const (
	FormatJSONC Format = "jsonc"
	FormatTOML  Format = "toml"
	FormatYAML  Format = "yaml"
	FormatLua   Format = "lua"
)

// FormatOf returns the format of a settings file from its extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc", ".sublime-settings":
		return FormatJSONC, true
	case ".toml":
		return FormatTOML, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".lua":
		return FormatLua, true
	default:
		return "", false
	}
}

// Options configure file loaders.
type Options struct {
	// FS is the file system to read from (default: OS).
	FS FileSystem
	// ListKeys names options whose values are lists. Lua cannot tell an
	// empty list from an empty table; empty tables under these keys load
	// as empty lists.
	ListKeys map[string]bool
}

// ForPath returns the loader matching the file extension of path.
func ForPath(path string, opts Options) (FileLoader, error) {
	if opts.FS == nil {
		opts.FS = DefaultFS()
	}
	format, ok := FormatOf(path)
	if !ok {
		return nil, errors.Newf("unsupported settings file %s", path)
	}
	switch format {
	case FormatTOML:
		return NewTOMLLoaderWithFS(opts.FS, path), nil
	case FormatYAML:
		return NewYAMLLoaderWithFS(opts.FS, path), nil
	case FormatLua:
		l := NewLuaLoaderWithFS(opts.FS, path)
		l.ListKeys = opts.ListKeys
		return l, nil
	default:
		return NewJSONCLoaderWithFS(opts.FS, path), nil
	}
}

// FindSettingsFile returns the first settings file present in dir, or ""
// when none exists.
func FindSettingsFile(fsys FileSystem, dir string) string {
	if fsys == nil {
		fsys = DefaultFS()
	}
	for _, name := range SettingsFileNames {
		path := filepath.Join(dir, name)
		if info, err := fsys.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// LoadFile loads a settings file with the loader matching its extension
// and resolves "@include" directives up to maxIncludeDepth levels.
func LoadFile(path string, opts Options) (map[string]any, error) {
	return loadWithIncludes(path, opts, maxIncludeDepth)
}

const maxIncludeDepth = 4

// loadWithIncludes loads a file and merges the files named by its
// "@include" key underneath it. Included files have lower priority than
// the including file.
func loadWithIncludes(path string, opts Options, depth int) (map[string]any, error) {
	if depth <= 0 {
		return nil, errors.Newf("include depth exceeded for %s", path)
	}

	l, err := ForPath(path, opts)
	if err != nil {
		return nil, err
	}
	config, err := l.LoadFrom(path)
	if err != nil || config == nil {
		return config, err
	}

	includes, ok := config["@include"]
	if !ok {
		return config, nil
	}
	delete(config, "@include")

	var list []string
	switch v := includes.(type) {
	case string:
		list = []string{v}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &ParseError{Path: path, Message: "@include must be a string or list of strings"}
			}
			list = append(list, s)
		}
	default:
		return nil, &ParseError{Path: path, Message: fmt.Sprintf("@include must be a string or list of strings, got %T", includes)}
	}

	merged := make(map[string]any)
	baseDir := filepath.Dir(path)
	for _, inc := range list {
		incPath := inc
		if !filepath.IsAbs(inc) {
			incPath = filepath.Join(baseDir, inc)
		}
		incConfig, err := loadWithIncludes(incPath, opts, depth-1)
		if err != nil {
			return nil, errors.Wrapf(err, "loading include %s", incPath)
		}
		merged = layer.DeepMerge(merged, incConfig)
	}

	return layer.DeepMerge(merged, config), nil
}

// readFile reads path, mapping a missing file to nil, nil.
func readFile(fsys FileSystem, path string) ([]byte, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading settings file %s", path)
	}
	return data, nil
}

// toTable normalizes a decoded document and checks that it is an object.
func toTable(source string, v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := layer.Normalize(v).(map[string]any)
	if !ok {
		return nil, &ParseError{Path: source, Message: fmt.Sprintf("top level must be an object, got %T", v)}
	}
	return m, nil
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
