package addon

import (
	"context"

	"github.com/prymatex/codeintel/internal/config/notify"
	"github.com/prymatex/codeintel/internal/resolver"
)

// BufferID identifies an editor buffer.
type BufferID string

// BufferContext is what the host knows about a buffer.
type BufferContext struct {
	// SyntaxName is the host syntax name, e.g. "Python Django".
	SyntaxName string

	// Path is the file path, empty for unsaved buffers.
	Path string
}

// LanguageContextProvider is implemented by the host editor.
type LanguageContextProvider interface {
	// Buffer returns the context of a buffer, or false when the buffer is
	// unknown to the host.
	Buffer(id BufferID) (BufferContext, bool)

	// ScopeStack returns the scopes at the cursor, outermost first.
	ScopeStack(id BufferID) []string
}

// Decision is handed to the engine for every buffer the addon evaluates.
type Decision struct {
	Buffer   BufferID
	Path     string
	Language string

	// Enabled is the result of the enabled gate. Config is nil when false.
	Enabled bool
	Config  *resolver.EffectiveConfig

	// Version is the snapshot version the decision was made against.
	Version uint64
}

// EngineSink receives decisions. Implemented by the engine adapter.
// Decisions are delivered one at a time in snapshot order; Apply must not
// call the Addon's buffer event methods.
type EngineSink interface {
	Apply(ctx context.Context, d Decision) error
}

// BufferReleaser is optionally implemented by an EngineSink that keeps
// per-buffer state.
type BufferReleaser interface {
	Release(ctx context.Context, id BufferID) error
}

// Navigator performs definition navigation. Implemented by the engine.
type Navigator interface {
	GoToDefinition(ctx context.Context, id BufferID) error
	BackToDefinition(ctx context.Context, id BufferID) error
}

// CompletionModel is registered with the host completion mode.
type CompletionModel interface {
	Name() string

	// ShouldComplete reports whether completions should be offered for the
	// buffer. Explicit requests bypass the live-completion settings.
	ShouldComplete(id BufferID, explicit bool) bool
}

// CompletionRegistry is the host completion mode.
type CompletionRegistry interface {
	RegisterModel(model CompletionModel) error
	UnregisterModel(name string)
}

// ChangeSource delivers configuration changes; *config.Config implements it.
type ChangeSource interface {
	Subscribe(observer notify.Observer) *notify.Subscription
}
