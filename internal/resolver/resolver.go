// Package resolver computes the effective code-intelligence options for a
// buffer's language.
//
// The process-wide settings live in an immutable Snapshot. A Resolver
// publishes snapshots through an atomic pointer: every operation loads the
// pointer once, so a call racing with a reload sees either the old or the
// new snapshot in full. Nothing here blocks or performs I/O, and a missing
// override or unknown syntax is never an error.
package resolver

import (
	"sync/atomic"
)

// Resolver answers configuration queries against the current snapshot.
// It is safe for concurrent use.
type Resolver struct {
	current atomic.Pointer[Snapshot]
	seq     atomic.Uint64
}

var emptySnapshot = &Snapshot{
	defaults:  map[string]any{},
	overrides: map[string]map[string]any{},
	aliases:   map[string]string{},
	enabled:   map[string]struct{}{},
}

// New creates a resolver. Until a snapshot is published every language is
// disabled and Resolve returns an empty configuration.
func New() *Resolver {
	return &Resolver{}
}

// Publish builds a snapshot from table and makes it current.
// On error the current snapshot is left untouched.
func (r *Resolver) Publish(table map[string]any, required []string) (*Snapshot, error) {
	s, err := NewSnapshot(table, required)
	if err != nil {
		return nil, err
	}
	r.Store(s)
	return s, nil
}

// Store makes s the current snapshot and stamps it with the next version.
// s must not have been published before.
func (r *Resolver) Store(s *Snapshot) {
	s.version = r.seq.Add(1)
	r.current.Store(s)
}

// Snapshot returns the current snapshot.
func (r *Resolver) Snapshot() *Snapshot {
	if s := r.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// Canonicalize maps a syntax name to its canonical language name.
func (r *Resolver) Canonicalize(syntaxName string) string {
	return r.Snapshot().Canonicalize(syntaxName)
}

// IsLanguageEnabled reports whether language is in the enabled set.
func (r *Resolver) IsLanguageEnabled(language string) bool {
	return r.Snapshot().IsLanguageEnabled(language)
}

// Gate canonicalizes syntaxName and reports whether the engine may run.
func (r *Resolver) Gate(syntaxName string) (string, bool) {
	return r.Snapshot().Gate(syntaxName)
}

// Resolve returns the effective configuration for language.
func (r *Resolver) Resolve(language string) *EffectiveConfig {
	return r.Snapshot().Resolve(language)
}

// ShouldExcludePath reports whether path is excluded from scanning for language.
func (r *Resolver) ShouldExcludePath(language, path string) bool {
	return r.Snapshot().ShouldExcludePath(language, path)
}

// ShouldTriggerLiveCompletion reports whether live completion may trigger
// for scopeStack under the global defaults.
func (r *Resolver) ShouldTriggerLiveCompletion(scopeStack []string) bool {
	return r.Snapshot().ShouldTriggerLiveCompletion(scopeStack)
}
