package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vidyasagar/opdsnav/internal/feed"
	"github.com/vidyasagar/opdsnav/internal/theme"
)

// RowKind identifies what a catalog row stands for.
type RowKind int

const (
	RowEntry RowKind = iota
	RowCorrupt
	RowGroup
	RowMore
)

// Row is one selectable line of the catalog list.
type Row struct {
	Kind  RowKind
	Entry feed.Entry
	Group feed.Group
}

// CatalogList shows the entries or groups of the current catalog page.
type CatalogList struct {
	key    string
	title  string
	rows   []Row
	cursor cursor
	width  int
	height int
}

// NewCatalogList creates an empty catalog list.
func NewCatalogList() CatalogList {
	return CatalogList{}
}

// SetSize updates the list dimensions.
func (cl *CatalogList) SetSize(w, h int) {
	cl.width = w
	cl.height = h
	// title + separator
	cl.cursor.page = h - 2
	cl.cursor.ensureVisible()
}

// SetEntries shows an ungrouped page. When key matches the page already
// shown, the selection is kept so appended pages don't jump.
func (cl *CatalogList) SetEntries(key, title string, entries []feed.Entry, hasNext bool) {
	rows := make([]Row, 0, len(entries)+1)
	for _, e := range entries {
		kind := RowEntry
		if _, ok := e.(feed.CorruptEntry); ok {
			kind = RowCorrupt
		}
		rows = append(rows, Row{Kind: kind, Entry: e})
	}
	if hasNext {
		rows = append(rows, Row{Kind: RowMore})
	}
	cl.set(key, title, rows)
}

// SetGroups shows a grouped page: each group header followed by its
// entries.
func (cl *CatalogList) SetGroups(key, title string, groups []feed.Group) {
	var rows []Row
	for _, g := range groups {
		rows = append(rows, Row{Kind: RowGroup, Group: g})
		for _, e := range g.Entries {
			rows = append(rows, Row{Kind: RowEntry, Entry: e})
		}
	}
	cl.set(key, title, rows)
}

func (cl *CatalogList) set(key, title string, rows []Row) {
	same := key != "" && key == cl.key
	cl.key = key
	cl.title = title
	cl.rows = rows
	if same {
		cl.cursor.resize(len(rows))
		return
	}
	cl.cursor.reset(len(rows))
}

// Clear empties the list.
func (cl *CatalogList) Clear() {
	cl.set("", "", nil)
}

// Len returns the number of rows.
func (cl *CatalogList) Len() int {
	return len(cl.rows)
}

// Title returns the page title shown above the rows.
func (cl *CatalogList) Title() string {
	return cl.title
}

// Selected returns the row under the cursor.
func (cl *CatalogList) Selected() (Row, bool) {
	if cl.cursor.pos < 0 || cl.cursor.pos >= len(cl.rows) {
		return Row{}, false
	}
	return cl.rows[cl.cursor.pos], true
}

// AtEnd reports whether the cursor is on the last row.
func (cl *CatalogList) AtEnd() bool {
	return len(cl.rows) > 0 && cl.cursor.pos == len(cl.rows)-1
}

// CursorUp moves the cursor up one row.
func (cl *CatalogList) CursorUp() { cl.cursor.up(1) }

// CursorDown moves the cursor down one row.
func (cl *CatalogList) CursorDown() { cl.cursor.down(1) }

// HalfPageUp moves the cursor up half a page.
func (cl *CatalogList) HalfPageUp() { cl.cursor.up(cl.cursor.visible() / 2) }

// HalfPageDown moves the cursor down half a page.
func (cl *CatalogList) HalfPageDown() { cl.cursor.down(cl.cursor.visible() / 2) }

// GotoTop moves to the first row.
func (cl *CatalogList) GotoTop() { cl.cursor.top() }

// GotoBottom moves to the last row.
func (cl *CatalogList) GotoBottom() { cl.cursor.bottom() }

// HandleGKey handles the "g" key and reports whether "gg" completed.
func (cl *CatalogList) HandleGKey() bool { return cl.cursor.g() }

// ResetGKey forgets a pending "g".
func (cl *CatalogList) ResetGKey() { cl.cursor.lastGKey = false }

// Position returns a string like "3/42".
func (cl *CatalogList) Position() string {
	if len(cl.rows) == 0 {
		return "0/0"
	}
	return fmt.Sprintf("%d/%d", cl.cursor.pos+1, len(cl.rows))
}

// View renders the list.
func (cl *CatalogList) View() string {
	t := theme.Current

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Padding(0, 1)
	separatorStyle := lipgloss.NewStyle().
		Foreground(t.Border)
	dimStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Padding(0, 1)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(truncate(cl.title, cl.width-2)))
	sb.WriteString("\n")
	sepWidth := cl.width - 2
	if sepWidth < 1 {
		sepWidth = 1
	}
	sb.WriteString(separatorStyle.Render(strings.Repeat("─", sepWidth)))
	sb.WriteString("\n")

	if len(cl.rows) == 0 {
		sb.WriteString(dimStyle.Render("This catalog page is empty."))
		return lipgloss.NewStyle().Width(cl.width).Height(cl.height).Render(sb.String())
	}

	start, end := cl.cursor.window()
	for i := start; i < end; i++ {
		sb.WriteString(cl.renderRow(cl.rows[i], i == cl.cursor.pos))
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	return lipgloss.NewStyle().Width(cl.width).Height(cl.height).Render(sb.String())
}

func (cl *CatalogList) renderRow(r Row, selected bool) string {
	t := theme.Current

	style := lipgloss.NewStyle().Foreground(t.Text)
	marker := "  "
	if selected {
		style = style.Foreground(t.TextBright).Background(t.Surface).Bold(true)
		marker = "▸ "
	}
	maxLen := cl.width - 4

	switch r.Kind {
	case RowGroup:
		gs := lipgloss.NewStyle().Foreground(t.GroupTitle).Bold(true)
		if selected {
			gs = gs.Background(t.Surface)
		}
		return gs.Render(marker + truncate("§ "+r.Group.Title, maxLen))
	case RowMore:
		ms := lipgloss.NewStyle().Foreground(t.Info).Italic(true)
		if selected {
			ms = ms.Background(t.Surface)
		}
		return ms.Render(marker + "… load more")
	case RowCorrupt:
		es := lipgloss.NewStyle().Foreground(t.Error)
		if selected {
			es = es.Background(t.Surface)
		}
		return es.Render(marker + truncate("⚠ unreadable entry "+feed.BookIDOf(r.Entry), maxLen))
	}

	oe, ok := r.Entry.(feed.OPDSEntry)
	if !ok {
		return style.Render(marker)
	}
	title := oe.Entry.Title
	if title == "" {
		title = "(untitled)"
	}
	if oe.Entry.Subsection != "" && len(oe.Entry.Acquisitions) == 0 {
		title += " ›"
	}
	line := style.Render(marker + truncate(title, maxLen))
	if len(oe.Entry.Authors) > 0 {
		remaining := cl.width - lipgloss.Width(line) - 3
		if remaining > 8 {
			authorStyle := lipgloss.NewStyle().Foreground(t.Author)
			line += authorStyle.Render("  " + truncate(strings.Join(oe.Entry.Authors, ", "), remaining))
		}
	}
	return line
}
