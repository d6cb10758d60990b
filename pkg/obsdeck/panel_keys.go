package obsdeck

import (
	"github.com/charmbracelet/bubbles/key"
)

const levelPageStep = 25.0

type keyMap struct {
	PrevSource key.Binding
	NextSource key.Binding
	LevelUp    key.Binding
	LevelDown  key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Mute       key.Binding
	Switch     key.Binding
	Refresh    key.Binding
	Login      key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var defaultKeyMap = keyMap{
	PrevSource: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "prev source"),
	),
	NextSource: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next source"),
	),
	LevelUp: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "louder"),
	),
	LevelDown: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "quieter"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "+25%"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "-25%"),
	),
	Mute: key.NewBinding(
		key.WithKeys("m", " "),
		key.WithHelp("m/space", "mute"),
	),
	Switch: key.NewBinding(
		key.WithKeys("tab", "shift+tab"),
		key.WithHelp("tab", "switch strip"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Login: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "log in"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.LevelUp, k.LevelDown, k.Mute, k.Switch, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevSource, k.NextSource, k.Switch},
		{k.LevelUp, k.LevelDown, k.PageUp, k.PageDown, k.Mute},
		{k.Refresh, k.Login, k.Help, k.Quit},
	}
}

type formKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

var defaultFormKeyMap = formKeyMap{
	Next: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next field"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("shift+tab", "prev field"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "log in"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Submit, k.Cancel, k.Quit}
}

func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
