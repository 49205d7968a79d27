package monitor

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// keyMap holds the watch view's bindings. Scrolling is handled by the
// viewport's own key map.
type keyMap struct {
	Quit      key.Binding
	ScaleUp   key.Binding
	ScaleDown key.Binding
	Close     key.Binding
	Help      key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q / Ctrl+C", "Quit and detach"),
	),
	ScaleUp: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "Enlarge output image"),
	),
	ScaleDown: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "Shrink output image"),
	),
	Close: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "Close help"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "Toggle this help"),
	),
}

// scrollHelp documents the viewport keys next to our own.
var scrollHelp = []key.Binding{
	key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("up / down", "Scroll")),
	key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("PgUp / PgDn", "Scroll a page")),
}

// bindings lists every shortcut in help order.
func (k keyMap) bindings() []key.Binding {
	out := []key.Binding{k.Quit, k.ScaleUp, k.ScaleDown}
	out = append(out, scrollHelp...)
	return append(out, k.Close, k.Help)
}

// HandleKeyMsg applies a key press. It reports whether the key was consumed;
// unhandled keys go to the viewport.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	if key.Matches(msg, keys.Help) {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && key.Matches(msg, keys.Close) {
		m.showHelp = false
		return true, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		m.cancel()
		return true, tea.Quit
	case key.Matches(msg, keys.ScaleUp):
		m.stepScale(1)
		return true, nil
	case key.Matches(msg, keys.ScaleDown):
		m.stepScale(-1)
		return true, nil
	}
	return false, nil
}
