package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Listen key.Binding
	Speak  key.Binding
	Target key.Binding
	Init   key.Binding
	Reset  key.Binding
	Log    key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Listen, k.Speak, k.Target, k.Init, k.Reset, k.Log, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Listen, k.Speak},
		{k.Target, k.Init, k.Reset},
		{k.Log, k.Quit},
	}
}

var keys = keyMap{
	Listen: key.NewBinding(
		key.WithKeys("l", " "),
		key.WithHelp("l", "listen"),
	),
	Speak: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "my language"),
	),
	Target: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "target"),
	),
	Init: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "init translator"),
	),
	Reset: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "reset translator"),
	),
	Log: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "log"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
