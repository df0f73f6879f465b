package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prymatex/codeintel/internal/config/layer"
	"github.com/prymatex/codeintel/internal/config/schema"
)

// ErrSettingAlreadyRegistered indicates an attempt to register a duplicate setting.
var ErrSettingAlreadyRegistered = errors.New("setting already registered")

// Registry maintains all known option definitions.
type Registry struct {
	mu       sync.RWMutex
	settings map[string]*Setting
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		settings: make(map[string]*Setting),
	}
}

// FromSchema builds a registry from the top-level properties of a schema.
func FromSchema(s *schema.Schema) (*Registry, error) {
	r := New()
	for _, key := range s.PropertyNames() {
		prop := s.Properties[key]
		setting := Setting{
			Key:         key,
			Type:        settingType(prop),
			Default:     layer.CloneValue(layer.Normalize(prop.Default)),
			Description: prop.Description,
			Enum:        prop.Enum,
			Minimum:     prop.Minimum,
			Order:       prop.Order,
		}
		if err := r.Register(setting); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewWithDefaults creates a registry from the embedded settings schema.
func NewWithDefaults() (*Registry, error) {
	s, err := schema.LoadEmbedded()
	if err != nil {
		return nil, err
	}
	return FromSchema(s)
}

func settingType(prop *schema.Schema) SettingType {
	if len(prop.Type.Types) != 1 {
		return TypeMixed
	}
	switch prop.Type.Types[0] {
	case schema.TypeNameString:
		if len(prop.Enum) > 0 {
			return TypeEnum
		}
		return TypeString
	case schema.TypeNameInteger, schema.TypeNameNumber:
		return TypeInt
	case schema.TypeNameBoolean:
		return TypeBool
	case schema.TypeNameArray:
		return TypeArray
	case schema.TypeNameObject:
		return TypeObject
	default:
		return TypeMixed
	}
}

// Register adds a setting definition to the registry.
// Returns an error if a setting with the same key already exists.
func (r *Registry) Register(setting Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.settings[setting.Key]; exists {
		return fmt.Errorf("%w: %s", ErrSettingAlreadyRegistered, setting.Key)
	}

	s := setting
	r.settings[setting.Key] = &s
	return nil
}

// Get returns the setting definition for the given key, or nil.
func (r *Registry) Get(key string) *Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings[key]
}

// Has checks if a setting is registered.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.settings[key]
	return exists
}

// All returns all registered settings in display order.
func (r *Registry) All() []*Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Setting, 0, len(r.settings))
	for _, s := range r.settings {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// Keys returns all registered keys in display order.
func (r *Registry) Keys() []string {
	all := r.All()
	keys := make([]string, len(all))
	for i, s := range all {
		keys[i] = s.Key
	}
	return keys
}

// Defaults returns a fresh copy of every default value, keyed by option.
func (r *Registry) Defaults() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]any, len(r.settings))
	for key, s := range r.settings {
		result[key] = layer.CloneValue(s.Default)
	}
	return result
}

// EnvMapping returns environment variable name -> option key for every
// option, using the given prefix (e.g. "CODEINTEL").
func (r *Registry) EnvMapping(prefix string) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mapping := make(map[string]string, len(r.settings))
	for key, s := range r.settings {
		mapping[s.EnvName(prefix)] = key
	}
	return mapping
}
