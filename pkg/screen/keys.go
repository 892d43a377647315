package screen

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Relevant   key.Binding
	Irrelevant key.Binding
	ShowMore   key.Binding
	Retry      key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Relevant: key.NewBinding(
			key.WithKeys("r", "y"),
			key.WithHelp("r", "relevant"),
		),
		Irrelevant: key.NewBinding(
			key.WithKeys("i", "n"),
			key.WithHelp("i", "irrelevant"),
		),
		ShowMore: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "show more"),
		),
		Retry: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "retry"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// help renders "key desc" pairs for the enabled bindings.
func help(bindings ...key.Binding) string {
	var out string
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		if out != "" {
			out += " · "
		}
		out += h.Key + " " + h.Desc
	}
	return out
}
