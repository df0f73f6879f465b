// Package registry provides the catalog of codeintel options.
//
// The registry maintains a definition of every global option: its type,
// default value, allowed values and documentation. Definitions are derived
// from the embedded settings schema so the schema stays the single source
// of truth for defaults.
package registry

import (
	"fmt"
	"strings"
)

// Setting defines a configuration option with its metadata.
type Setting struct {
	// Key is the settings-store key (e.g., "codeintel_live").
	Key string

	// Type is the option's data type.
	Type SettingType

	// Default is the default value.
	Default any

	// Description is human-readable documentation.
	Description string

	// Enum lists allowed values for enum types.
	Enum []any

	// Minimum for numeric types (nil means no minimum).
	Minimum *float64

	// Order is the display position.
	Order int
}

// EnvName returns the environment variable that overrides this option,
// e.g. CODEINTEL_MAX_RECURSIVE_DIR_DEPTH for codeintel_max_recursive_dir_depth.
// The master switch "codeintel" maps to <prefix>_ENABLED.
func (s *Setting) EnvName(prefix string) string {
	name := strings.ToUpper(s.Key)
	if name == prefix {
		return prefix + "_ENABLED"
	}
	if strings.HasPrefix(name, prefix+"_") {
		return name
	}
	return prefix + "_" + name
}

// String returns a one-line summary of the setting.
func (s *Setting) String() string {
	return fmt.Sprintf("%s (%s)", s.Key, s.Type)
}

// SettingType represents the data type of a setting.
type SettingType uint8

const (
	// TypeString represents a string value.
	TypeString SettingType = iota
	// TypeInt represents an integer value.
	TypeInt
	// TypeBool represents a boolean value.
	TypeBool
	// TypeArray represents an array value.
	TypeArray
	// TypeObject represents an object/map value.
	TypeObject
	// TypeEnum represents a string from a fixed set.
	TypeEnum
	// TypeMixed represents an option accepting more than one shape.
	TypeMixed
)

// String returns the string representation of the type.
func (t SettingType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "integer"
	case TypeBool:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	case TypeEnum:
		return "enum"
	case TypeMixed:
		return "mixed"
	default:
		return "unknown"
	}
}
