package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vidyasagar/opdsnav/internal/theme"
)

// URLBar shows the current catalog URI and doubles as the input for
// opening a new one.
type URLBar struct {
	input   textinput.Model
	current string
	active  bool
	width   int
}

// NewURLBar creates a new URL bar.
func NewURLBar() URLBar {
	ti := textinput.New()
	ti.Placeholder = "Catalog URI (https://, file:, asset:)..."
	ti.CharLimit = 2048
	ti.Width = 60
	ti.Prompt = ""

	return URLBar{
		input: ti,
	}
}

// SetWidth updates the URL bar width.
func (u *URLBar) SetWidth(w int) {
	u.width = w
	u.input.Width = w - 8
}

// SetCurrent sets the URI displayed while the bar is inactive.
func (u *URLBar) SetCurrent(uri string) {
	u.current = uri
}

// Current returns the displayed URI.
func (u *URLBar) Current() string {
	return u.current
}

// Focus activates the URL bar for input, prefilled with the current URI.
func (u *URLBar) Focus() tea.Cmd {
	u.active = true
	u.input.SetValue(u.current)
	u.input.CursorEnd()
	return u.input.Focus()
}

// Blur deactivates the URL bar.
func (u *URLBar) Blur() {
	u.active = false
	u.input.Blur()
}

// IsActive reports whether the URL bar is focused.
func (u *URLBar) IsActive() bool {
	return u.active
}

// Value returns the current input text.
func (u *URLBar) Value() string {
	return u.input.Value()
}

// Update handles messages for the URL bar.
func (u *URLBar) Update(msg tea.Msg) (*URLBar, tea.Cmd) {
	if !u.active {
		return u, nil
	}
	var cmd tea.Cmd
	u.input, cmd = u.input.Update(msg)
	return u, cmd
}

// View renders the URL bar.
func (u *URLBar) View() string {
	t := theme.Current

	border := t.Border
	fg := t.TextDim
	if u.active {
		border = t.BorderFocus
		fg = t.Text
	}
	barStyle := lipgloss.NewStyle().
		Foreground(fg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(u.width - 2)

	promptStyle := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	content := u.current
	if u.active {
		content = u.input.View()
	}
	return barStyle.Render(promptStyle.Render("⌂") + " " + content)
}
