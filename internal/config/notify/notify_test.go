package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeType_String(t *testing.T) {
	assert.Equal(t, "set", ChangeSet.String())
	assert.Equal(t, "delete", ChangeDelete.String())
	assert.Equal(t, "reload", ChangeReload.String())
	assert.Equal(t, "unknown", ChangeType(42).String())
}

func TestNotifier_SubscribeOrder(t *testing.T) {
	n := New()
	var got []int
	n.Subscribe(func(Change) { got = append(got, 1) })
	n.Subscribe(func(Change) { got = append(got, 2) })
	n.Subscribe(func(Change) { got = append(got, 3) })

	n.Notify(Change{Path: "codeintel_live", Type: ChangeSet})
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestNotifier_SubscribePath(t *testing.T) {
	n := New()
	var got []string
	n.SubscribePath("codeintel_config.PHP", func(c Change) { got = append(got, c.Type.String()+":"+c.Path) })

	n.Notify(Change{Path: "codeintel_config.PHP.php", Type: ChangeSet})
	n.Notify(Change{Path: "codeintel_config", Type: ChangeDelete})
	n.Notify(Change{Path: "codeintel_config.PHPUnit", Type: ChangeSet})
	n.Notify(Change{Path: "codeintel_live", Type: ChangeSet})
	n.NotifyReload("reload", 2, "id")

	assert.Equal(t, []string{
		"set:codeintel_config.PHP.php",
		"delete:codeintel_config",
		"reload:",
	}, got)
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := New()
	calls := 0
	sub := n.Subscribe(func(Change) { calls++ })
	require.Equal(t, 1, n.Len())

	sub.Unsubscribe()
	sub.Unsubscribe()
	n.Notify(Change{Path: "codeintel"})

	assert.Zero(t, calls)
	assert.Zero(t, n.Len())
}

func TestNotifier_PanickingObserver(t *testing.T) {
	n := New()
	reached := false
	n.Subscribe(func(Change) { panic("boom") })
	n.Subscribe(func(Change) { reached = true })

	assert.NotPanics(t, func() { n.Notify(Change{Path: "codeintel"}) })
	assert.True(t, reached)
}

func TestNotifier_AsyncDrainsOnClose(t *testing.T) {
	n := New(WithAsync(16))
	var (
		mu  sync.Mutex
		got []uint64
	)
	n.Subscribe(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c.Version)
	})

	for v := uint64(1); v <= 5; v++ {
		n.NotifyReload("reload", v, "")
	}
	n.Close()
	n.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, got)

	n.Notify(Change{Path: "after-close"})
}

func TestDiff(t *testing.T) {
	old := map[string]any{
		"codeintel_live": true,
		"codeintel_config": map[string]any{
			"JavaScript": map[string]any{"codeintel_selected_catalogs": []any{"jQuery"}},
		},
		"codeintel_snippets": true,
	}
	new := map[string]any{
		"codeintel_live": false,
		"codeintel_config": map[string]any{
			"JavaScript": map[string]any{"codeintel_selected_catalogs": []any{"jQuery"}},
			"Node.js":    map[string]any{"node": "/usr/bin/node"},
		},
	}

	changes := Diff(old, new, "reload")
	require.Len(t, changes, 3)

	assert.Equal(t, Change{Path: `codeintel_config.Node\.js.node`, Type: ChangeSet, NewValue: "/usr/bin/node", Source: "reload"}, changes[0])
	assert.Equal(t, Change{Path: "codeintel_live", Type: ChangeSet, OldValue: true, NewValue: false, Source: "reload"}, changes[1])
	assert.Equal(t, Change{Path: "codeintel_snippets", Type: ChangeDelete, OldValue: true, Source: "reload"}, changes[2])
}

func TestBatch_Commit(t *testing.T) {
	n := New()
	var got []Change
	n.Subscribe(func(c Change) { got = append(got, c) })

	b := n.NewBatch()
	b.Add(Change{Path: "codeintel_live", Type: ChangeSet})
	b.Add(Change{Path: "codeintel_tooltips", Type: ChangeSet})
	require.Equal(t, 2, b.Len())

	b.Commit("reload", 7, "snap-7")

	require.Len(t, got, 3)
	for _, c := range got {
		assert.Equal(t, uint64(7), c.Version)
		assert.Equal(t, "snap-7", c.SnapshotID)
	}
	assert.Equal(t, ChangeReload, got[2].Type)
	assert.Zero(t, b.Len())

	b.Add(Change{Path: "x"})
	b.Discard()
	assert.Zero(t, b.Len())
}
