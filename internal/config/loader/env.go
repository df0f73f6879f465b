package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/prymatex/codeintel/internal/config/layer"
)

// EnvPrefix is the prefix of codeintel environment variables.
const EnvPrefix = "CODEINTEL"

// reservedEnv are CODEINTEL_* variables read by the command line rather
// than mapped onto options.
var reservedEnv = map[string]bool{
	"CODEINTEL_CONFIG_DIR": true,
	"CODEINTEL_PROJECT":    true,
	"CODEINTEL_LOG_LEVEL":  true,
	"CODEINTEL_LOG_FORMAT": true,
	"CODEINTEL_NO_COLOR":   true,
	"CODEINTEL_PAYLOAD":    true,
}

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix without underscore (e.g., "CODEINTEL")
	mapping map[string]string // Env var -> option key

	// ListKeys names options whose plain values are comma-separated lists.
	ListKeys map[string]bool

	environ func() []string
}

// NewEnvLoader creates a loader for prefix with explicit variable
// mappings (see registry.EnvMapping). Unmapped prefixed variables map to
// the lower-cased variable name.
func NewEnvLoader(prefix string, mapping map[string]string) *EnvLoader {
	if mapping == nil {
		mapping = make(map[string]string)
	}
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		environ: os.Environ,
	}
}

// Load reads environment variables and returns an option table.
// Empty values are skipped.
func (l *EnvLoader) Load() (map[string]any, error) {
	return l.LoadFrom(l.environ())
}

// LoadFrom reads "NAME=value" pairs instead of the process environment.
func (l *EnvLoader) LoadFrom(environ []string) (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range environ {
		name, value, ok := strings.Cut(env, "=")
		if !ok || value == "" || !strings.HasPrefix(name, l.prefix+"_") || reservedEnv[name] {
			continue
		}

		key, mapped := l.mapping[name]
		if !mapped {
			key = strings.ToLower(name)
		}
		config[key] = l.parseValue(key, value)
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, key string) {
	l.mapping[envVar] = key
}

// parseValue converts a variable value to the most specific type: JSON
// lists and objects, booleans, integers, then strings.
func (l *EnvLoader) parseValue(key, s string) any {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return layer.Normalize(v)
		}
	}

	if l.ListKeys[key] {
		parts := strings.Split(trimmed, ",")
		list := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		return list
	}

	switch strings.ToLower(trimmed) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.Atoi(trimmed); err == nil {
		return i
	}

	return s
}
