// Package addon attaches the code-intelligence engine to the host editor.
//
// The addon tracks buffers the host activates, runs each through the
// resolver gate and hands the engine a Decision. When settings are
// republished every tracked buffer is decided again against the new
// snapshot.
package addon

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/prymatex/codeintel/internal/config/notify"
	"github.com/prymatex/codeintel/internal/logging"
	"github.com/prymatex/codeintel/internal/resolver"
)

// ModelName is the name the completion model registers under.
const ModelName = "CodeIntel"

// Errors returned by the addon.
var (
	ErrNotInitialized = errors.New("addon not initialized")
	ErrNoNavigator    = errors.New("no navigator configured")
)

type tracked struct {
	language string
	enabled  bool
	version  uint64

	// applied is false when the sink rejected the decision; the next event
	// for the buffer sends it again.
	applied bool
}

// Addon is the glue between host, resolver and engine.
type Addon struct {
	resolver    *resolver.Resolver
	provider    LanguageContextProvider
	sink        EngineSink
	navigator   Navigator
	completions CompletionRegistry
	log         *logging.Logger

	// decideMu orders snapshot reads and sink calls, so the engine never
	// receives an older snapshot after a newer one.
	decideMu sync.Mutex

	mu          sync.Mutex
	buffers     map[BufferID]tracked
	shortcuts   []Shortcut
	sub         *notify.Subscription
	initialized bool
}

// Option configures an Addon.
type Option func(*Addon)

// WithNavigator sets the definition navigator used by the shortcuts.
func WithNavigator(n Navigator) Option {
	return func(a *Addon) {
		a.navigator = n
	}
}

// WithCompletionRegistry sets the host completion mode the model is
// registered with.
func WithCompletionRegistry(r CompletionRegistry) Option {
	return func(a *Addon) {
		a.completions = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Addon) {
		a.log = l
	}
}

// New creates an addon. r, provider and sink are required.
func New(r *resolver.Resolver, provider LanguageContextProvider, sink EngineSink, opts ...Option) (*Addon, error) {
	if r == nil || provider == nil || sink == nil {
		return nil, errors.New("addon: resolver, provider and sink are required")
	}

	a := &Addon{
		resolver: r,
		provider: provider,
		sink:     sink,
		log:      logging.GetLogger(),
		buffers:  make(map[BufferID]tracked),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithComponent("addon")
	return a, nil
}

// Initialize parses the shortcuts, registers the completion model and,
// when src is not nil, refreshes tracked buffers on every reload.
func (a *Addon) Initialize(src ChangeSource) error {
	shortcuts, err := a.buildShortcuts()
	if err != nil {
		return err
	}

	if a.completions != nil {
		if err := a.completions.RegisterModel(a); err != nil {
			return errors.Wrap(err, "registering completion model")
		}
	}

	a.mu.Lock()
	a.shortcuts = shortcuts
	a.initialized = true
	a.mu.Unlock()

	if src != nil {
		sub := src.Subscribe(func(ch notify.Change) {
			if ch.Type != notify.ChangeReload {
				return
			}
			if err := a.Refresh(context.Background()); err != nil {
				a.log.Error("refreshing buffers failed", "version", ch.Version, "error", err)
			}
		})
		a.mu.Lock()
		a.sub = sub
		a.mu.Unlock()
	}

	a.log.Debug("addon initialized", "shortcuts", len(shortcuts))
	return nil
}

// Close unsubscribes from changes and unregisters the completion model.
func (a *Addon) Close() {
	a.mu.Lock()
	sub := a.sub
	a.sub = nil
	wasInit := a.initialized
	a.initialized = false
	a.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if wasInit && a.completions != nil {
		a.completions.UnregisterModel(ModelName)
	}
}

// OnBufferActivated decides the buffer and tracks it.
func (a *Addon) OnBufferActivated(ctx context.Context, id BufferID) error {
	return a.decide(ctx, id, true)
}

// OnSyntaxChanged decides the buffer again. The engine is only called
// when the outcome differs from the last decision.
func (a *Addon) OnSyntaxChanged(ctx context.Context, id BufferID) error {
	return a.decide(ctx, id, false)
}

// OnBufferClosed forgets the buffer.
func (a *Addon) OnBufferClosed(ctx context.Context, id BufferID) error {
	a.decideMu.Lock()
	defer a.decideMu.Unlock()

	a.mu.Lock()
	_, ok := a.buffers[id]
	delete(a.buffers, id)
	a.mu.Unlock()

	if !ok {
		return nil
	}
	if r, ok := a.sink.(BufferReleaser); ok {
		return r.Release(ctx, id)
	}
	return nil
}

// Refresh decides every tracked buffer against the current snapshot.
func (a *Addon) Refresh(ctx context.Context) error {
	var errs error
	for _, id := range a.Buffers() {
		if err := a.decide(ctx, id, false); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "buffer %s", id))
		}
	}
	return errs
}

// Buffers returns the tracked buffers, sorted.
func (a *Addon) Buffers() []BufferID {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]BufferID, 0, len(a.buffers))
	for id := range a.buffers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (a *Addon) decide(ctx context.Context, id BufferID, force bool) error {
	a.decideMu.Lock()
	defer a.decideMu.Unlock()

	bc, ok := a.provider.Buffer(id)
	if !ok {
		a.log.Debug("buffer unknown to host", "buffer", string(id))
		return nil
	}

	snap := a.resolver.Snapshot()
	lang, enabled := snap.Gate(bc.SyntaxName)
	next := tracked{language: lang, enabled: enabled, version: snap.Version(), applied: true}

	a.mu.Lock()
	prev, known := a.buffers[id]
	a.mu.Unlock()

	if known && !force && prev == next {
		return nil
	}

	d := Decision{
		Buffer:   id,
		Path:     bc.Path,
		Language: lang,
		Enabled:  enabled,
		Version:  next.version,
	}
	if enabled {
		d.Config = snap.Resolve(lang)
	} else {
		a.log.Debug("language not enabled", "buffer", string(id), "syntax", bc.SyntaxName, "language", lang)
	}

	err := a.sink.Apply(ctx, d)
	if err != nil {
		next.applied = false
	}

	a.mu.Lock()
	a.buffers[id] = next
	a.mu.Unlock()

	if err != nil {
		return errors.Wrapf(err, "applying %s decision", lang)
	}
	return nil
}

// Decision returns the last decision state for a buffer.
func (a *Addon) Decision(id BufferID) (language string, enabled bool, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.buffers[id]
	return t.language, t.enabled, ok
}

// Name implements CompletionModel.
func (a *Addon) Name() string { return ModelName }

// ShouldComplete implements CompletionModel.
func (a *Addon) ShouldComplete(id BufferID, explicit bool) bool {
	lang, enabled, ok := a.Decision(id)
	if !ok || !enabled {
		return false
	}
	if explicit {
		return true
	}
	return a.resolver.Resolve(lang).ShouldTriggerLiveCompletion(a.provider.ScopeStack(id))
}

// ShouldExcludePath reports whether path is excluded from scanning for the
// buffer's language.
func (a *Addon) ShouldExcludePath(id BufferID, path string) bool {
	lang, _, ok := a.Decision(id)
	if !ok {
		return false
	}
	return a.resolver.ShouldExcludePath(lang, path)
}
