// Package notify delivers configuration change notifications.
//
// Every successful load or reload publishes a new resolver snapshot. The
// Notifier tells observers about it twice over: one ChangeSet or
// ChangeDelete per option path that differs from the previous snapshot,
// followed by a single ChangeReload carrying the new snapshot version.
package notify

import (
	"sort"
	"strings"
	"sync"

	"github.com/prymatex/codeintel/internal/config/layer"
	"github.com/prymatex/codeintel/internal/logging"
)

// ChangeType represents the type of configuration change.
type ChangeType int

const (
	// ChangeSet indicates a value was added or updated.
	ChangeSet ChangeType = iota

	// ChangeDelete indicates a value was removed.
	ChangeDelete

	// ChangeReload indicates a new snapshot was published.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change represents a configuration change event.
type Change struct {
	// Path is the escaped dot path of the changed option
	// (e.g. "codeintel_config.JavaScript.codeintel_selected_catalogs").
	// Empty for reload events.
	Path string

	// Type is the type of change.
	Type ChangeType

	// OldValue is the previous value (nil when added).
	OldValue any

	// NewValue is the new value (nil for deletes).
	NewValue any

	// Source names what triggered the change ("load", "reload", "host",
	// "session", or a settings file path).
	Source string

	// Version is the version of the snapshot that carries the change.
	Version uint64

	// SnapshotID identifies that snapshot.
	SnapshotID string
}

// Observer is called when configuration changes occur.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

type entry struct {
	id       uint64
	path     string // empty for global observers
	observer Observer
}

// Notifier manages configuration change subscriptions.
type Notifier struct {
	mu      sync.RWMutex
	entries []entry
	nextID  uint64
	log     *logging.Logger

	async  bool
	buffer chan Change
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAsync enables asynchronous notification delivery.
// Changes are still delivered in order on a single goroutine.
func WithAsync(bufferSize int) Option {
	return func(n *Notifier) {
		if bufferSize > 0 {
			n.async = true
			n.buffer = make(chan Change, bufferSize)
		}
	}
}

// WithLogger sets the logger used to report panicking observers.
func WithLogger(l *logging.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.log = l
		}
	}
}

// New creates a new Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		done: make(chan struct{}),
		log:  logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.WithComponent("notify")

	if n.async {
		n.wg.Add(1)
		go n.processAsync()
	}
	return n
}

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.add("", observer)
}

// SubscribePath registers an observer for changes at path or below it,
// plus every reload. Subscribing to "codeintel_config" receives changes
// to "codeintel_config.PHP.php".
func (n *Notifier) SubscribePath(path string, observer Observer) *Subscription {
	return n.add(path, observer)
}

func (n *Notifier) add(path string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.entries = append(n.entries, entry{id: id, path: path, observer: observer})
	return &Subscription{id: id, notifier: n}
}

// Len returns the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.entries)
}

// Notify sends a change notification to all relevant observers.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	closed := n.closed
	n.mu.RUnlock()
	if closed {
		return
	}

	if n.async {
		select {
		case n.buffer <- change:
		case <-n.done:
		}
		return
	}
	n.deliver(change)
}

// NotifyReload announces a newly published snapshot.
func (n *Notifier) NotifyReload(source string, version uint64, snapshotID string) {
	n.Notify(Change{
		Type:       ChangeReload,
		Source:     source,
		Version:    version,
		SnapshotID: snapshotID,
	})
}

// Close shuts down the notifier, draining pending async changes.
// It is safe to call Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, e := range n.entries {
		if e.id == id {
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			return
		}
	}
}

// deliver calls matching observers in subscription order, outside the lock.
func (n *Notifier) deliver(change Change) {
	n.mu.RLock()
	var observers []Observer
	for _, e := range n.entries {
		if e.path == "" || change.Type == ChangeReload || matchesPath(e.path, change.Path) {
			observers = append(observers, e.observer)
		}
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		n.call(obs, change)
	}
}

func (n *Notifier) call(obs Observer, change Change) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("change observer panicked", "path", change.Path, "type", change.Type.String(), "panic", r)
		}
	}()
	obs(change)
}

func (n *Notifier) processAsync() {
	defer n.wg.Done()

	for {
		select {
		case change := <-n.buffer:
			n.deliver(change)
		case <-n.done:
			for {
				select {
				case change := <-n.buffer:
					n.deliver(change)
				default:
					return
				}
			}
		}
	}
}

// matchesPath reports whether a change at path concerns a subscription to
// sub: the same path, a path below it, or a path above it (a whole block
// replaced).
func matchesPath(sub, path string) bool {
	return sub == path || isParentPath(sub, path) || isParentPath(path, sub)
}

// isParentPath checks if parent is a parent path of child.
func isParentPath(parent, child string) bool {
	return len(child) > len(parent) && strings.HasPrefix(child, parent) && child[len(parent)] == '.'
}

// Diff computes the per-path changes between two merged option tables.
// Changes are sorted by path.
func Diff(old, new map[string]any, source string) []Change {
	added, modified, removed := layer.DiffMaps(old, new)

	changes := make([]Change, 0, len(added)+len(modified)+len(removed))
	for _, path := range append(added, modified...) {
		oldVal, _ := layer.GetByPath(old, path)
		newVal, _ := layer.GetByPath(new, path)
		changes = append(changes, Change{Path: path, Type: ChangeSet, OldValue: oldVal, NewValue: newVal, Source: source})
	}
	for _, path := range removed {
		oldVal, _ := layer.GetByPath(old, path)
		changes = append(changes, Change{Path: path, Type: ChangeDelete, OldValue: oldVal, Source: source})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// Batch collects changes for one snapshot and delivers them together.
type Batch struct {
	notifier *Notifier
	mu       sync.Mutex
	changes  []Change
}

// NewBatch creates a new batch for collecting changes.
func (n *Notifier) NewBatch() *Batch {
	return &Batch{notifier: n}
}

// Add adds changes to the batch.
func (b *Batch) Add(changes ...Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = append(b.changes, changes...)
}

// Commit stamps every batched change with the snapshot version and id,
// sends them, then sends the closing reload event.
func (b *Batch) Commit(source string, version uint64, snapshotID string) {
	b.mu.Lock()
	changes := b.changes
	b.changes = nil
	b.mu.Unlock()

	for _, change := range changes {
		change.Version = version
		change.SnapshotID = snapshotID
		b.notifier.Notify(change)
	}
	b.notifier.NotifyReload(source, version, snapshotID)
}

// Discard clears the batch without sending notifications.
func (b *Batch) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = nil
}

// Len returns the number of pending changes.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.changes)
}
