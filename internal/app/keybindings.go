package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keybindings for opdsnav.
type KeyMap struct {
	// Movement
	Down         key.Binding
	Up           key.Binding
	HalfPageDown key.Binding
	HalfPageUp   key.Binding
	GotoTop      key.Binding
	GotoBottom   key.Binding

	// Catalog
	Open     key.Binding
	Back     key.Binding
	OpenURI  key.Binding
	Reload   key.Binding
	LoadMore key.Binding
	Facets   key.Binding
	Search   key.Binding
	Reader   key.Binding

	// Library
	Save    key.Binding
	Saved   key.Binding
	Visited key.Binding

	// Modes
	CommandMode key.Binding
	Combine     key.Binding
	Delete      key.Binding
	Close       key.Binding

	// Actions
	Theme key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// DefaultKeyMap returns the default vim-style keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "move down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "move up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("Ctrl+d", "half page down"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("Ctrl+u", "half page up"),
		),
		GotoTop: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("gg", "go to top"),
		),
		GotoBottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "go to bottom"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter", "l", "right"),
			key.WithHelp("Enter/l", "open entry, group or subsection"),
		),
		Back: key.NewBinding(
			key.WithKeys("h", "left", "backspace", "H"),
			key.WithHelp("h/Backspace", "go back"),
		),
		OpenURI: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open catalog URI"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload page"),
		),
		LoadMore: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "load next page"),
		),
		Facets: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "choose facets"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search catalog"),
		),
		Reader: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "read description page"),
		),
		Save: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "save catalog"),
		),
		Saved: key.NewBinding(
			key.WithKeys("B"),
			key.WithHelp("B", "saved catalogs"),
		),
		Visited: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("Ctrl+h", "recently visited"),
		),
		CommandMode: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command mode"),
		),
		Combine: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "combine facets"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "remove saved catalog"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "close"),
		),
		Theme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "cycle theme"),
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
}

// helpSections groups bindings for the help screen.
func (k KeyMap) helpSections() []helpSection {
	return []helpSection{
		{"Movement", []key.Binding{k.Down, k.Up, k.HalfPageDown, k.HalfPageUp, k.GotoTop, k.GotoBottom}},
		{"Catalog", []key.Binding{k.Open, k.Back, k.OpenURI, k.Reload, k.LoadMore, k.Facets, k.Search, k.Reader}},
		{"Library", []key.Binding{k.Save, k.Saved, k.Visited, k.Delete}},
		{"Modes", []key.Binding{k.CommandMode, k.Combine, k.Close, k.Theme, k.Help, k.Quit}},
	}
}

type helpSection struct {
	name     string
	bindings []key.Binding
}
