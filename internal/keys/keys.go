package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application. Letter keys
// are left to the input box, so every action sits behind a modifier.
type KeyMap struct {
	// Conversation
	Send  key.Binding
	Reset key.Binding

	// Scrolling
	ScrollUp   key.Binding
	ScrollDown key.Binding

	// Tool calls
	NextTool   key.Binding
	PrevTool   key.Binding
	ToggleTool key.Binding
	Connect    key.Binding

	// Connected accounts manager
	Accounts key.Binding

	// Help toggle
	Help key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Reset: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "new chat"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		NextTool: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next tool call"),
		),
		PrevTool: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous tool call"),
		),
		ToggleTool: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "expand/collapse"),
		),
		Connect: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("ctrl+k", "connect account"),
		),
		Accounts: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "connected accounts"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("ctrl+g", "toggle help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear selection"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Send, k.NextTool, k.ToggleTool, k.Connect, k.Help, k.Quit,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Reset, k.ScrollUp, k.ScrollDown},
		{k.NextTool, k.PrevTool, k.ToggleTool, k.Connect},
		{k.Accounts, k.Help, k.Back, k.Quit},
	}
}
