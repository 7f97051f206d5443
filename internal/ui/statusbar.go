package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/vidyasagar/opdsnav/internal/theme"
)

// StatusBar shows the navigation state at the bottom of the screen.
type StatusBar struct {
	title    string
	state    string
	loading  string // spinner frame while a page loads
	position string
	mode     string
	account  string
	filtered bool
	width    int
	message  string
	isError  bool
}

// NewStatusBar creates a new status bar.
func NewStatusBar() StatusBar {
	return StatusBar{
		mode: "BROWSE",
	}
}

// SetWidth sets the status bar width.
func (s *StatusBar) SetWidth(w int) {
	s.width = w
}

// SetTitle updates the page title.
func (s *StatusBar) SetTitle(title string) {
	s.title = title
}

// SetState updates the navigation state name.
func (s *StatusBar) SetState(name string) {
	s.state = name
}

// SetLoading shows frame as a loading indicator. An empty frame hides it.
func (s *StatusBar) SetLoading(frame string) {
	s.loading = frame
}

// SetPosition sets the position string (e.g. "3/42", "TOP").
func (s *StatusBar) SetPosition(pos string) {
	s.position = pos
}

// SetMode sets the current mode indicator (BROWSE, OPEN, DETAIL, etc).
func (s *StatusBar) SetMode(mode string) {
	s.mode = mode
}

// Mode returns the current mode indicator.
func (s *StatusBar) Mode() string {
	return s.mode
}

// SetAccount sets the active account id.
func (s *StatusBar) SetAccount(id string) {
	s.account = id
}

// SetFiltered marks whether unsupported books are hidden.
func (s *StatusBar) SetFiltered(v bool) {
	s.filtered = v
}

// SetMessage sets a temporary status message.
func (s *StatusBar) SetMessage(msg string) {
	s.message = msg
	s.isError = false
}

// SetError sets a temporary error message.
func (s *StatusBar) SetError(msg string) {
	s.message = msg
	s.isError = true
}

// Message returns the current temporary message.
func (s *StatusBar) Message() string {
	return s.message
}

// View renders the status bar.
func (s *StatusBar) View() string {
	t := theme.Current

	modeStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Surface).
		Padding(0, 1)

	switch s.mode {
	case "BROWSE":
		modeStyle = modeStyle.Background(t.Primary)
	case "OPEN":
		modeStyle = modeStyle.Background(t.Success)
	case "COMMAND":
		modeStyle = modeStyle.Background(t.Accent)
	case "SEARCH":
		modeStyle = modeStyle.Background(t.Warning)
	case "FACETS":
		modeStyle = modeStyle.Background(t.FacetActive)
	case "DETAIL":
		modeStyle = modeStyle.Background(t.Info)
	default:
		modeStyle = modeStyle.Background(t.Secondary)
	}
	mode := modeStyle.Render(s.mode)

	barStyle := lipgloss.NewStyle().
		Foreground(t.Text).
		Background(t.Surface)

	var left string
	switch {
	case s.loading != "":
		loadStyle := lipgloss.NewStyle().
			Foreground(t.Warning).
			Background(t.Surface).
			Bold(true).
			Padding(0, 1)
		left = loadStyle.Render(s.loading + " Loading...")
	case s.message != "":
		color := t.Info
		if s.isError {
			color = t.Error
		}
		msgStyle := lipgloss.NewStyle().
			Foreground(color).
			Background(t.Surface).
			Padding(0, 1)
		left = msgStyle.Render(s.message)
	case s.title != "":
		titleStyle := lipgloss.NewStyle().
			Foreground(t.Text).
			Background(t.Surface).
			Padding(0, 1)
		left = titleStyle.Render(s.title)
	}

	rightStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.Surface).
		Padding(0, 1)

	var right string
	if s.account != "" {
		right += rightStyle.Render("@" + s.account)
	}
	if s.filtered {
		right += rightStyle.Render("supported only")
	}
	if s.state != "" {
		right += rightStyle.Render(s.state)
	}
	posStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Secondary).
		Background(t.Surface).
		Padding(0, 1)
	right += posStyle.Render(s.position)

	modeWidth := lipgloss.Width(mode)
	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	spacerWidth := s.width - modeWidth - leftWidth - rightWidth
	if spacerWidth < 0 {
		spacerWidth = 0
	}

	spacerStyle := lipgloss.NewStyle().
		Background(t.Surface)
	spacer := spacerStyle.Render(fmt.Sprintf("%*s", spacerWidth, ""))

	return barStyle.Render(mode + left + spacer + right)
}
