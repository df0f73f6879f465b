package loader

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/jsonc"
)

// JSONCLoader loads JSON settings files that may contain comments and
// trailing commas (.json, .jsonc, .sublime-settings).
type JSONCLoader struct {
	fs   FileSystem
	path string
}

// NewJSONCLoader creates a new JSONC loader for the given path.
func NewJSONCLoader(path string) *JSONCLoader {
	return NewJSONCLoaderWithFS(DefaultFS(), path)
}

// NewJSONCLoaderWithFS creates a JSONC loader with a custom file system.
func NewJSONCLoaderWithFS(fs FileSystem, path string) *JSONCLoader {
	return &JSONCLoader{fs: fs, path: path}
}

// Load reads configuration from the configured path.
func (l *JSONCLoader) Load() (map[string]any, error) {
	return l.LoadFrom(l.path)
}

// LoadFrom reads configuration from a specific path.
func (l *JSONCLoader) LoadFrom(path string) (map[string]any, error) {
	data, err := readFile(l.fs, path)
	if err != nil || data == nil {
		return nil, err
	}
	return ParseJSONC(path, data)
}

// LoadFromReader reads configuration from an io.Reader.
func (l *JSONCLoader) LoadFromReader(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	return ParseJSONC("<reader>", data)
}

// ParseJSONC parses a JSON-with-comments document into an option table.
func ParseJSONC(source string, data []byte) (map[string]any, error) {
	clean := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(clean)) == 0 {
		return map[string]any{}, nil
	}

	var v any
	if err := json.Unmarshal(clean, &v); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			perr.Line, perr.Column = position(clean, syn.Offset)
		}
		return nil, perr
	}
	return toTable(source, v)
}

// position converts a syntax error offset into the 1-based line and column
// of the offending byte. jsonc.ToJSON keeps line breaks, so lines match the
// original file.
func position(data []byte, offset int64) (line, col int) {
	if offset > 0 {
		offset--
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col = 1, 1
	for _, c := range data[:offset] {
		if c == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
