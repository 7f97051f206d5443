package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vidyasagar/opdsnav/internal/theme"
)

// PanelItem is one catalog page listed in the side panel.
type PanelItem struct {
	AccountID string
	URI       string
	Title     string
	When      time.Time
}

// HistoryPanel is a side panel listing recently visited or saved catalog
// pages.
type HistoryPanel struct {
	heading string
	items   []PanelItem
	cursor  cursor
	width   int
	height  int
	visible bool
}

// NewHistoryPanel creates a new history panel.
func NewHistoryPanel() HistoryPanel {
	return HistoryPanel{}
}

// SetItems replaces the listed pages under heading.
func (hp *HistoryPanel) SetItems(heading string, items []PanelItem) {
	hp.heading = heading
	hp.items = items
	hp.cursor.reset(len(items))
}

// Heading returns the panel heading.
func (hp *HistoryPanel) Heading() string {
	return hp.heading
}

// SetSize updates the panel dimensions.
func (hp *HistoryPanel) SetSize(w, h int) {
	hp.width = w
	hp.height = h
	// 2 header lines, 2 lines per item
	hp.cursor.page = (h - 3) / 2
}

// Show makes the panel visible.
func (hp *HistoryPanel) Show() {
	hp.visible = true
	hp.cursor.reset(len(hp.items))
}

// Hide closes the panel.
func (hp *HistoryPanel) Hide() {
	hp.visible = false
	hp.cursor.lastGKey = false
}

// IsVisible reports whether the panel is shown.
func (hp *HistoryPanel) IsVisible() bool {
	return hp.visible
}

// CursorUp moves the cursor up one item.
func (hp *HistoryPanel) CursorUp() { hp.cursor.up(1) }

// CursorDown moves the cursor down one item.
func (hp *HistoryPanel) CursorDown() { hp.cursor.down(1) }

// GotoBottom moves to the last item.
func (hp *HistoryPanel) GotoBottom() { hp.cursor.bottom() }

// HandleGKey handles "g" and reports whether "gg" completed.
func (hp *HistoryPanel) HandleGKey() bool { return hp.cursor.g() }

// ResetGKey forgets a pending "g".
func (hp *HistoryPanel) ResetGKey() { hp.cursor.lastGKey = false }

// Selected returns the item at the cursor.
func (hp *HistoryPanel) Selected() (PanelItem, bool) {
	if hp.cursor.pos < 0 || hp.cursor.pos >= len(hp.items) {
		return PanelItem{}, false
	}
	return hp.items[hp.cursor.pos], true
}

// RemoveSelected removes the item at the cursor.
func (hp *HistoryPanel) RemoveSelected() {
	i := hp.cursor.pos
	if i < 0 || i >= len(hp.items) {
		return
	}
	hp.items = append(hp.items[:i], hp.items[i+1:]...)
	hp.cursor.resize(len(hp.items))
}

// View renders the panel.
func (hp *HistoryPanel) View() string {
	if !hp.visible {
		return ""
	}

	t := theme.Current

	panelStyle := lipgloss.NewStyle().
		Width(hp.width).
		Height(hp.height)
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Background(t.Surface).
		Width(hp.width).
		Padding(0, 1)
	separatorStyle := lipgloss.NewStyle().
		Foreground(t.Border)
	selectedStyle := lipgloss.NewStyle().
		Foreground(t.TextBright).
		Background(t.Surface).
		Bold(true).
		Width(hp.width).
		Padding(0, 1)
	normalStyle := lipgloss.NewStyle().
		Foreground(t.Text).
		Width(hp.width).
		Padding(0, 1)
	uriStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Width(hp.width).
		Padding(0, 1)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(hp.heading))
	sb.WriteString("\n")
	sepWidth := hp.width - 2
	if sepWidth < 1 {
		sepWidth = 1
	}
	sb.WriteString(separatorStyle.Render(strings.Repeat("─", sepWidth)))
	sb.WriteString("\n")

	if len(hp.items) == 0 {
		sb.WriteString(uriStyle.Render("Nothing here yet."))
		return panelStyle.Render(sb.String())
	}

	maxLen := hp.width - 4
	start, end := hp.cursor.window()
	for i := start; i < end; i++ {
		item := hp.items[i]
		title := item.Title
		if title == "" {
			title = item.URI
		}
		meta := fmt.Sprintf("%s  %s", truncate(item.URI, maxLen-10), timeAgo(item.When))

		if i == hp.cursor.pos {
			sb.WriteString(selectedStyle.Render("▸ " + truncate(title, maxLen)))
		} else {
			sb.WriteString(normalStyle.Render("  " + truncate(title, maxLen)))
		}
		sb.WriteString("\n")
		sb.WriteString(uriStyle.Render("  " + meta))
		sb.WriteString("\n")
	}

	linesUsed := 2 + (end-start)*2
	if remaining := hp.height - linesUsed; remaining > 1 {
		sb.WriteString(strings.Repeat("\n", remaining-1))
		hintStyle := lipgloss.NewStyle().
			Foreground(t.TextDim).
			Italic(true).
			Padding(0, 1)
		sb.WriteString(hintStyle.Render("j/k:move  Enter:open  d:del  Esc:close"))
	}

	return panelStyle.Render(sb.String())
}

// timeAgo returns a human-readable relative time string.
func timeAgo(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
