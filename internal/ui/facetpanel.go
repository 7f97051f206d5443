package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vidyasagar/opdsnav/internal/feed"
	"github.com/vidyasagar/opdsnav/internal/theme"
)

// FacetPanel is a popup listing the facet groups of the current page.
// Single facets can be marked with space and chosen together as one
// composite facet.
type FacetPanel struct {
	groups  []feed.FacetGroup
	flat    []facetRef
	marked  map[int]bool
	cursor  cursor
	visible bool
	width   int
	height  int
}

type facetRef struct {
	group int
	facet feed.Facet
}

// NewFacetPanel creates an empty facet panel.
func NewFacetPanel() FacetPanel {
	return FacetPanel{marked: make(map[int]bool)}
}

// SetGroups replaces the listed facet groups.
func (fp *FacetPanel) SetGroups(groups []feed.FacetGroup) {
	fp.groups = groups
	fp.flat = fp.flat[:0]
	for gi, g := range groups {
		for _, f := range g.Facets {
			fp.flat = append(fp.flat, facetRef{group: gi, facet: f})
		}
	}
	fp.marked = make(map[int]bool)
	fp.cursor.reset(len(fp.flat))
}

// Len returns the number of listed facets.
func (fp *FacetPanel) Len() int {
	return len(fp.flat)
}

// SetSize sets the available area for rendering.
func (fp *FacetPanel) SetSize(w, h int) {
	fp.width = w
	fp.height = h
	fp.cursor.page = h - 10
}

// Show makes the panel visible.
func (fp *FacetPanel) Show() {
	fp.visible = true
	fp.marked = make(map[int]bool)
}

// Hide closes the panel.
func (fp *FacetPanel) Hide() {
	fp.visible = false
}

// IsVisible reports whether the panel is shown.
func (fp *FacetPanel) IsVisible() bool {
	return fp.visible
}

// CursorUp moves to the previous facet.
func (fp *FacetPanel) CursorUp() { fp.cursor.up(1) }

// CursorDown moves to the next facet.
func (fp *FacetPanel) CursorDown() { fp.cursor.down(1) }

// ToggleMark marks or unmarks the facet under the cursor for a composite
// choice. Only single facets can be marked.
func (fp *FacetPanel) ToggleMark() bool {
	i := fp.cursor.pos
	if i < 0 || i >= len(fp.flat) {
		return false
	}
	if _, ok := fp.flat[i].facet.(feed.SingleFacet); !ok {
		return false
	}
	if fp.marked[i] {
		delete(fp.marked, i)
	} else {
		fp.marked[i] = true
	}
	return true
}

// Choose returns the facet to apply: the composite of the marked facets
// in display order when any are marked, else the facet under the cursor.
func (fp *FacetPanel) Choose() (feed.Facet, error) {
	if len(fp.marked) > 0 {
		var singles []feed.SingleFacet
		for i, ref := range fp.flat {
			if fp.marked[i] {
				singles = append(singles, ref.facet.(feed.SingleFacet))
			}
		}
		return feed.NewComposite(singles)
	}
	i := fp.cursor.pos
	if i < 0 || i >= len(fp.flat) {
		return nil, nil
	}
	return fp.flat[i].facet, nil
}

// View renders the palette as a bordered popup.
func (fp *FacetPanel) View() string {
	if !fp.visible {
		return ""
	}

	t := theme.Current

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary)
	groupNameStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Accent).
		Underline(true)
	facetStyle := lipgloss.NewStyle().
		Foreground(t.Facet)
	activeStyle := lipgloss.NewStyle().
		Foreground(t.FacetActive).
		Bold(true)
	dimStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Italic(true)
	separatorStyle := lipgloss.NewStyle().
		Foreground(t.Border)

	var lines []string
	if len(fp.flat) == 0 {
		lines = append(lines, dimStyle.Render("This page has no facets."))
	}

	start, end := fp.cursor.window()
	lastGroup := -1
	for i := start; i < end; i++ {
		ref := fp.flat[i]
		if ref.group != lastGroup {
			if lastGroup != -1 {
				lines = append(lines, "")
			}
			lines = append(lines, groupNameStyle.Render(fp.groups[ref.group].Name))
			lastGroup = ref.group
		}

		mark := "   "
		if fp.marked[i] {
			mark = " + "
		}
		pointer := "  "
		if i == fp.cursor.pos {
			pointer = "▸ "
		}
		style := facetStyle
		label := feed.FacetTitle(ref.facet)
		if feed.IsActive(ref.facet) {
			style = activeStyle
			label += " ✓"
		}
		lines = append(lines, pointer+mark+style.Render(label))
	}

	body := strings.Join(lines, "\n")
	bodyWidth := lipgloss.Width(body)
	if bodyWidth < 40 {
		bodyWidth = 40
	}
	rule := separatorStyle.Render(strings.Repeat("─", bodyWidth))

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Facets"),
		rule,
		body,
		rule,
		dimStyle.Render("Enter:apply  Space:combine  Esc:close"),
	)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2)

	return boxStyle.Render(content)
}
