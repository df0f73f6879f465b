package layer

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// Manager manages configuration layers and provides merged access.
type Manager struct {
	mu     sync.RWMutex
	layers []*Layer       // Sorted by priority (ascending), insertion order on ties
	merged map[string]any // Cached merged result
	dirty  bool
}

// NewManager creates a new layer manager.
func NewManager() *Manager {
	return &Manager{dirty: true}
}

// AddLayer adds a layer to the manager.
// Layers are automatically sorted by priority.
func (m *Manager) AddLayer(layer *Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.layers = append(m.layers, layer)
	m.sortLayers()
	m.dirty = true
}

// ReplaceLayer swaps the layer with the same name for layer, or adds it
// when no such layer exists.
func (m *Manager) ReplaceLayer(layer *Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.layers {
		if l.Name == layer.Name {
			m.layers[i] = layer
			m.sortLayers()
			m.dirty = true
			return
		}
	}
	m.layers = append(m.layers, layer)
	m.sortLayers()
	m.dirty = true
}

// RemoveLayer removes a layer by name.
// Returns true if the layer was found and removed.
func (m *Manager) RemoveLayer(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, layer := range m.layers {
		if layer.Name == name {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			m.dirty = true
			return true
		}
	}
	return false
}

// RemoveSource removes every layer loaded from source and returns how many
// were removed.
func (m *Manager) RemoveSource(source Source) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.layers[:0]
	removed := 0
	for _, layer := range m.layers {
		if layer.Source == source {
			removed++
			continue
		}
		kept = append(kept, layer)
	}
	m.layers = kept
	if removed > 0 {
		m.dirty = true
	}
	return removed
}

// GetLayer returns a layer by name.
func (m *Manager) GetLayer(name string) *Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLayer(name)
}

// Layers returns a copy of all layers sorted by priority.
func (m *Manager) Layers() []*Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Layer, len(m.layers))
	copy(result, m.layers)
	return result
}

// LayerCount returns the number of layers.
func (m *Manager) LayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.layers)
}

// Merge combines all layers into a single option table.
// Results are cached until a layer is added, removed, or updated.
func (m *Manager) Merge() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dirty || m.merged == nil {
		result := make(map[string]any)
		for _, layer := range m.layers {
			result = DeepMerge(result, layer.Data)
		}
		m.merged = result
		m.dirty = false
	}

	return CloneMap(m.merged)
}

// Get returns the effective value for a setting path.
// Returns the value, the layer it came from, and whether it was found.
// Nested maps merged from several layers report the highest layer that
// contributes to the path.
func (m *Manager) Get(path string) (any, *Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.layers) - 1; i >= 0; i-- {
		layer := m.layers[i]
		if val, ok := GetByPath(layer.Data, path); ok {
			return val, layer, true
		}
	}

	return nil, nil, false
}

// WhichLayer returns the name of the layer that provides a value.
func (m *Manager) WhichLayer(path string) string {
	_, layer, found := m.Get(path)
	if !found {
		return ""
	}
	return layer.Name
}

// SetInSession sets a value in the session layer.
// Creates the session layer if it doesn't exist.
func (m *Manager) SetInSession(path string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.findLayer(NameSession)
	if session == nil {
		session = NewLayer(NameSession, SourceSession)
		m.layers = append(m.layers, session)
		m.sortLayers()
	}

	SetByPath(session.Data, path, CloneValue(value))
	m.dirty = true
}

// Delete removes a value from a writable layer and reports whether the
// path existed.
func (m *Manager) Delete(layerName, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	layer := m.findLayer(layerName)
	if layer == nil {
		return false, errors.Newf("layer not found: %s", layerName)
	}
	if layer.ReadOnly {
		return false, errors.Newf("layer is read-only: %s", layerName)
	}

	if !DeleteByPath(layer.Data, path) {
		return false, nil
	}
	m.dirty = true
	return true, nil
}

// Clone returns a manager holding deep copies of every layer. Edits to the
// clone never reach m.
func (m *Manager) Clone() *Manager {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := &Manager{dirty: true, layers: make([]*Layer, len(m.layers))}
	for i, l := range m.layers {
		c.layers[i] = l.Clone()
	}
	return c
}

// sortLayers sorts layers by priority (ascending); ties keep insertion order.
func (m *Manager) sortLayers() {
	sort.SliceStable(m.layers, func(i, j int) bool {
		return m.layers[i].Priority < m.layers[j].Priority
	})
}

// findLayer finds a layer by name (must be called with lock held).
func (m *Manager) findLayer(name string) *Layer {
	for _, layer := range m.layers {
		if layer.Name == name {
			return layer
		}
	}
	return nil
}
