// Package layer provides configuration layer management for codeintel.
//
// Settings come from several sources (built-in defaults, user files, project
// files, the host editor, the environment and the running session). Each
// source is a Layer; the Manager merges them so higher priority layers
// override lower ones.
package layer

import (
	"time"
)

// Layer represents a single configuration layer.
type Layer struct {
	// Name identifies the layer (e.g., "defaults", "user:settings.toml").
	Name string

	// Priority determines merge order (higher overrides lower).
	Priority int

	// Source indicates where this layer was loaded from.
	Source Source

	// Path is the file path (if loaded from file).
	Path string

	// Data holds the option table for this layer.
	Data map[string]any

	// ModTime is when the source was last modified.
	ModTime time.Time

	// ReadOnly prevents modifications to this layer.
	ReadOnly bool
}

// NewLayer creates a new empty configuration layer with the default
// priority for its source.
func NewLayer(name string, source Source) *Layer {
	return NewLayerWithData(name, source, nil)
}

// NewLayerWithData creates a new layer holding a normalized copy of data.
func NewLayerWithData(name string, source Source, data map[string]any) *Layer {
	if data == nil {
		data = make(map[string]any)
	}
	return &Layer{
		Name:     name,
		Source:   source,
		Priority: DefaultPriority(source),
		Data:     NormalizeMap(data),
		ModTime:  time.Now(),
	}
}

// Clone creates a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	c := *l
	c.Data = CloneMap(l.Data)
	return &c
}

// Source indicates where a configuration layer came from.
type Source uint8

const (
	// SourceBuiltin represents the defaults embedded in the settings schema.
	SourceBuiltin Source = iota
	// SourceUser represents user files ($XDG_CONFIG_HOME/codeintel/).
	SourceUser
	// SourceProject represents project files (.codeintel/).
	SourceProject
	// SourceHost represents the payload pushed by the host editor.
	SourceHost
	// SourceEnv represents CODEINTEL_* environment variables.
	SourceEnv
	// SourceSession represents in-memory session overrides.
	SourceSession
)

// String returns a human-readable name for the source.
func (s Source) String() string {
	switch s {
	case SourceBuiltin:
		return "builtin"
	case SourceUser:
		return "user"
	case SourceProject:
		return "project"
	case SourceHost:
		return "host"
	case SourceEnv:
		return "environment"
	case SourceSession:
		return "session"
	default:
		return "unknown"
	}
}
