package console

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Connect key.Binding
	Start   key.Binding
	Stop    key.Binding
	Camera  key.Binding
	Audio   key.Binding
	Label   key.Binding
	Sonar   key.Binding
	Touch   key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Connect: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
		Start:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Stop:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Camera:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "switch camera")),
		Audio:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "switch audio")),
		Label:   key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "edit label")),
		Sonar:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sonar log")),
		Touch:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "touch log")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "close")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Start, k.Stop, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Start, k.Stop},
		{k.Camera, k.Audio, k.Label},
		{k.Sonar, k.Touch},
		{k.Help, k.Quit},
	}
}
