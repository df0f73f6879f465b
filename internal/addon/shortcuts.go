package addon

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/gdamore/tcell/v2"
)

// ShortcutGroup groups the addon's shortcuts in the host keymap.
const ShortcutGroup = "CodeIntel"

// Shortcut names.
const (
	GoToPythonDefinition   = "GoToPythonDefinition"
	BackToPythonDefinition = "BackToPythonDefinition"
)

// ErrInvalidKeySpec is returned for unparsable key sequences.
var ErrInvalidKeySpec = errors.New("invalid key specification")

// Shortcut is a key binding contributed to the host.
type Shortcut struct {
	Group    string
	Name     string
	Sequence string
	Event    *tcell.EventKey

	run func(ctx context.Context, id BufferID) error
}

// Matches reports whether ev triggers the shortcut.
func (s Shortcut) Matches(ev *tcell.EventKey) bool {
	return keysEqual(s.Event, ev)
}

// DefaultShortcuts maps shortcut names to their key sequences.
var DefaultShortcuts = []struct{ Name, Sequence string }{
	{GoToPythonDefinition, "Meta+Alt+Ctrl+Up"},
	{BackToPythonDefinition, "Meta+Alt+Ctrl+Left"},
}

func (a *Addon) buildShortcuts() ([]Shortcut, error) {
	actions := map[string]func(context.Context, BufferID) error{
		GoToPythonDefinition: func(ctx context.Context, id BufferID) error {
			if a.navigator == nil {
				return ErrNoNavigator
			}
			return a.navigator.GoToDefinition(ctx, id)
		},
		BackToPythonDefinition: func(ctx context.Context, id BufferID) error {
			if a.navigator == nil {
				return ErrNoNavigator
			}
			return a.navigator.BackToDefinition(ctx, id)
		},
	}

	out := make([]Shortcut, 0, len(DefaultShortcuts))
	for _, def := range DefaultShortcuts {
		ev, err := ParseKey(def.Sequence)
		if err != nil {
			return nil, errors.Wrapf(err, "shortcut %s", def.Name)
		}
		out = append(out, Shortcut{
			Group:    ShortcutGroup,
			Name:     def.Name,
			Sequence: def.Sequence,
			Event:    ev,
			run:      actions[def.Name],
		})
	}
	return out, nil
}

// Shortcuts returns the contributed shortcuts. Empty before Initialize.
func (a *Addon) Shortcuts() []Shortcut {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Shortcut(nil), a.shortcuts...)
}

// HandleKey runs the shortcut bound to ev, if any. It reports whether the
// key was consumed.
func (a *Addon) HandleKey(ctx context.Context, id BufferID, ev *tcell.EventKey) (bool, error) {
	a.mu.Lock()
	if !a.initialized {
		a.mu.Unlock()
		return false, ErrNotInitialized
	}
	shortcuts := a.shortcuts
	a.mu.Unlock()

	for _, s := range shortcuts {
		if !s.Matches(ev) {
			continue
		}
		a.log.Debug("shortcut activated", "shortcut", s.Name, "buffer", string(id))
		if err := s.run(ctx, id); err != nil {
			return true, errors.Wrapf(err, "%s", s.Name)
		}
		return true, nil
	}
	return false, nil
}

// ParseKey parses a "Mod+Mod+Key" sequence such as "Meta+Alt+Ctrl+Up"
// into a tcell key event.
func ParseKey(spec string) (*tcell.EventKey, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.Wrap(ErrInvalidKeySpec, "empty")
	}

	parts := strings.Split(spec, "+")
	// "Ctrl++" binds the plus key
	if strings.HasSuffix(spec, "++") {
		parts = append(parts[:len(parts)-2], "+")
	}

	var mods tcell.ModMask
	for _, p := range parts[:len(parts)-1] {
		mod, ok := modifierNames[strings.ToLower(strings.TrimSpace(p))]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidKeySpec, "unknown modifier %q in %q", p, spec)
		}
		mods |= mod
	}

	keyPart := strings.TrimSpace(parts[len(parts)-1])
	if keyPart == "" {
		return nil, errors.Wrapf(ErrInvalidKeySpec, "missing key in %q", spec)
	}

	if k, ok := keyNames[strings.ToLower(keyPart)]; ok {
		if k == tcell.KeyRune {
			return tcell.NewEventKey(tcell.KeyRune, ' ', mods), nil
		}
		return tcell.NewEventKey(k, 0, mods), nil
	}

	runes := []rune(keyPart)
	if len(runes) != 1 {
		return nil, errors.Wrapf(ErrInvalidKeySpec, "unknown key %q in %q", keyPart, spec)
	}
	r := runes[0]
	if mods != tcell.ModNone {
		r = unicode.ToLower(r)
	}
	return tcell.NewEventKey(tcell.KeyRune, r, mods), nil
}

// FormatKey renders a key event in the form ParseKey accepts.
func FormatKey(ev *tcell.EventKey) string {
	var parts []string
	m := ev.Modifiers()
	if m&tcell.ModMeta != 0 {
		parts = append(parts, "Meta")
	}
	if m&tcell.ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	if m&tcell.ModCtrl != 0 {
		parts = append(parts, "Ctrl")
	}
	if m&tcell.ModShift != 0 {
		parts = append(parts, "Shift")
	}

	switch {
	case ev.Key() == tcell.KeyRune && ev.Rune() == ' ':
		parts = append(parts, "Space")
	case ev.Key() == tcell.KeyRune:
		parts = append(parts, string(ev.Rune()))
	case ev.Key() >= tcell.KeyCtrlA && ev.Key() <= tcell.KeyCtrlZ && m&tcell.ModCtrl != 0:
		parts = append(parts, string(rune('a'+ev.Key()-tcell.KeyCtrlA)))
	default:
		name, ok := tcell.KeyNames[ev.Key()]
		if !ok {
			name = fmt.Sprintf("Key[%d]", ev.Key())
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "+")
}

func keysEqual(a, b *tcell.EventKey) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Key() != b.Key() || a.Modifiers() != b.Modifiers() {
		return false
	}
	if a.Key() == tcell.KeyRune {
		return unicode.ToLower(a.Rune()) == unicode.ToLower(b.Rune())
	}
	return true
}

var modifierNames = map[string]tcell.ModMask{
	"ctrl":    tcell.ModCtrl,
	"control": tcell.ModCtrl,
	"alt":     tcell.ModAlt,
	"option":  tcell.ModAlt,
	"shift":   tcell.ModShift,
	"meta":    tcell.ModMeta,
	"cmd":     tcell.ModMeta,
	"super":   tcell.ModMeta,
}

var keyNames = map[string]tcell.Key{
	"up":        tcell.KeyUp,
	"down":      tcell.KeyDown,
	"left":      tcell.KeyLeft,
	"right":     tcell.KeyRight,
	"home":      tcell.KeyHome,
	"end":       tcell.KeyEnd,
	"pageup":    tcell.KeyPgUp,
	"pgup":      tcell.KeyPgUp,
	"pagedown":  tcell.KeyPgDn,
	"pgdn":      tcell.KeyPgDn,
	"insert":    tcell.KeyInsert,
	"delete":    tcell.KeyDelete,
	"del":       tcell.KeyDelete,
	"enter":     tcell.KeyEnter,
	"return":    tcell.KeyEnter,
	"tab":       tcell.KeyTab,
	"esc":       tcell.KeyEscape,
	"escape":    tcell.KeyEscape,
	"backspace": tcell.KeyBackspace,
	"space":     tcell.KeyRune,
	"f1":        tcell.KeyF1,
	"f2":        tcell.KeyF2,
	"f3":        tcell.KeyF3,
	"f4":        tcell.KeyF4,
	"f5":        tcell.KeyF5,
	"f6":        tcell.KeyF6,
	"f7":        tcell.KeyF7,
	"f8":        tcell.KeyF8,
	"f9":        tcell.KeyF9,
	"f10":       tcell.KeyF10,
	"f11":       tcell.KeyF11,
	"f12":       tcell.KeyF12,
}
