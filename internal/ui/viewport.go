package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vidyasagar/opdsnav/internal/theme"
)

// PageViewport wraps bubbles/viewport for entry details and description
// pages.
type PageViewport struct {
	viewport   viewport.Model
	ready      bool
	contentSet bool
}

// NewPageViewport creates a new viewport (dimensions set on first WindowSizeMsg).
func NewPageViewport() PageViewport {
	return PageViewport{}
}

// SetSize updates the viewport dimensions.
func (pv *PageViewport) SetSize(width, height int) {
	if !pv.ready {
		pv.viewport = viewport.New(width, height)
		pv.viewport.MouseWheelEnabled = true
		pv.viewport.MouseWheelDelta = 3
		pv.ready = true
	} else {
		pv.viewport.Width = width
		pv.viewport.Height = height
	}
}

// SetContent replaces the viewport content and scrolls to the top.
func (pv *PageViewport) SetContent(content string) {
	if !pv.ready {
		return
	}
	pv.viewport.SetContent(content)
	pv.contentSet = true
	pv.viewport.GotoTop()
}

// ClearContent returns the viewport to the welcome screen.
func (pv *PageViewport) ClearContent() {
	pv.contentSet = false
	if pv.ready {
		pv.viewport.SetContent("")
	}
}

// HasContent reports whether content has been set.
func (pv *PageViewport) HasContent() bool {
	return pv.contentSet
}

// Update forwards messages to the viewport.
func (pv *PageViewport) Update(msg tea.Msg) (*PageViewport, tea.Cmd) {
	if !pv.ready {
		return pv, nil
	}
	var cmd tea.Cmd
	pv.viewport, cmd = pv.viewport.Update(msg)
	return pv, cmd
}

// View renders the viewport.
func (pv *PageViewport) View() string {
	if !pv.ready {
		return "\n  Initializing..."
	}
	if !pv.contentSet {
		return pv.renderWelcome()
	}
	return pv.viewport.View()
}

// ScrollInfo returns a string like "42%" or "TOP" or "BOT".
func (pv *PageViewport) ScrollInfo() string {
	if !pv.ready {
		return "TOP"
	}
	pct := pv.viewport.ScrollPercent()
	switch {
	case pct <= 0:
		return "TOP"
	case pct >= 1:
		return "BOT"
	default:
		return fmt.Sprintf("%d%%", int(pct*100))
	}
}

// HalfPageDown scrolls down half a page.
func (pv *PageViewport) HalfPageDown() {
	if pv.ready {
		pv.viewport.HalfViewDown()
	}
}

// HalfPageUp scrolls up half a page.
func (pv *PageViewport) HalfPageUp() {
	if pv.ready {
		pv.viewport.HalfViewUp()
	}
}

// LineDown scrolls down n lines.
func (pv *PageViewport) LineDown(n int) {
	if pv.ready {
		pv.viewport.LineDown(n)
	}
}

// LineUp scrolls up n lines.
func (pv *PageViewport) LineUp(n int) {
	if pv.ready {
		pv.viewport.LineUp(n)
	}
}

// GotoTop scrolls to the top.
func (pv *PageViewport) GotoTop() {
	if pv.ready {
		pv.viewport.GotoTop()
	}
}

// GotoBottom scrolls to the bottom.
func (pv *PageViewport) GotoBottom() {
	if pv.ready {
		pv.viewport.GotoBottom()
	}
}

// Width returns the viewport width.
func (pv *PageViewport) Width() int {
	if !pv.ready {
		return 0
	}
	return pv.viewport.Width
}

// WelcomeKeys lists the shortcuts shown on the welcome screen.
var WelcomeKeys = []struct {
	Key  string
	Desc string
}{
	{"o", "Open a catalog URI"},
	{"j / k", "Move down / up"},
	{"Enter / l", "Open entry, group or subsection"},
	{"h / Backspace", "Go back"},
	{"n", "Load the next page"},
	{"f", "Choose facets"},
	{"/", "Search the catalog"},
	{"b / B", "Save catalog / saved catalogs"},
	{"Ctrl+h", "Recently visited"},
	{":", "Command mode"},
	{"?", "Show all keybindings"},
	{"q", "Quit"},
}

func (pv *PageViewport) renderWelcome() string {
	t := theme.Current

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary)
	subtitleStyle := lipgloss.NewStyle().
		Foreground(t.TextDim)
	accentStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)
	keyStyle := lipgloss.NewStyle().
		Foreground(t.Secondary)
	descStyle := lipgloss.NewStyle().
		Foreground(t.Text)

	logo := `
   ___  _ __   __| |___ _ __   __ ___   __
  / _ \| '_ \ / _' / __| '_ \ / _' \ \ / /
 | (_) | |_) | (_| \__ \ | | | (_| |\ V /
  \___/| .__/ \__,_|___/_| |_|\__,_| \_/
       |_|
`

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(subtitleStyle.Render("  Browse OPDS library catalogs from the terminal"))
	sb.WriteString("\n\n")
	sb.WriteString(accentStyle.Render("  Quick Start"))
	sb.WriteString("\n\n")

	for _, s := range WelcomeKeys {
		sb.WriteString(keyStyle.Render(fmt.Sprintf("    %-16s", s.Key)))
		sb.WriteString(descStyle.Render(s.Desc))
		sb.WriteString("\n")
	}
	return sb.String()
}
