package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Stop      key.Binding
	Backend   key.Binding
	Recompute key.Binding
	Algorithm key.Binding
	Above     key.Binding
	Below     key.Binding
	NextParam key.Binding
	Edit      key.Binding
	Submit    key.Binding
	Escape    key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev instrument"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next instrument"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop/resume"),
		),
		Backend: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "backend calc"),
		),
		Recompute: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "recompute"),
		),
		Algorithm: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "next algorithm"),
		),
		Above: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "upper plot"),
		),
		Below: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "lower plot"),
		),
		NextParam: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next param"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit param"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp lists the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Algorithm, k.Stop, k.Backend, k.Recompute, k.NextParam, k.Edit, k.Above, k.Below, k.Quit}
}
