package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vidyasagar/opdsnav/internal/feed"
	"github.com/vidyasagar/opdsnav/internal/opds"
)

func entry(title string, authors ...string) feed.Entry {
	return feed.OPDSEntry{
		AccountID: "acct",
		BookID:    feed.NewBookID(title),
		Entry:     opds.Entry{ID: title, Title: title, Authors: authors},
	}
}

func TestCatalogListEntriesAndMoreRow(t *testing.T) {
	cl := NewCatalogList()
	cl.SetSize(80, 20)
	cl.SetEntries("https://example.com/a.xml", "Fiction", []feed.Entry{
		entry("Dracula", "Bram Stoker"),
		feed.CorruptEntry{AccountID: "acct", BookID: "broken", Err: errors.New("bad")},
	}, true)

	if cl.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", cl.Len())
	}
	row, _ := cl.Selected()
	if row.Kind != RowEntry {
		t.Errorf("first row kind = %v, want RowEntry", row.Kind)
	}
	cl.CursorDown()
	if row, _ := cl.Selected(); row.Kind != RowCorrupt {
		t.Errorf("second row kind = %v, want RowCorrupt", row.Kind)
	}
	cl.GotoBottom()
	if row, _ := cl.Selected(); row.Kind != RowMore || !cl.AtEnd() {
		t.Errorf("last row should be the load-more row")
	}

	view := cl.View()
	for _, want := range []string{"Fiction", "Dracula", "Bram Stoker", "unreadable entry", "load more"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestCatalogListKeepsCursorOnAppend(t *testing.T) {
	cl := NewCatalogList()
	cl.SetSize(80, 20)
	first := []feed.Entry{entry("A"), entry("B")}
	cl.SetEntries("feed", "Feed", first, true)
	cl.GotoBottom()
	cl.CursorUp()

	cl.SetEntries("feed", "Feed", append(first, entry("C")), false)
	if got := cl.Position(); got != "2/3" {
		t.Errorf("Position() = %q after append, want 2/3", got)
	}

	cl.SetEntries("other", "Other", first, false)
	if got := cl.Position(); got != "1/2" {
		t.Errorf("Position() = %q for a new page, want 1/2", got)
	}
}

func TestCatalogListGroups(t *testing.T) {
	cl := NewCatalogList()
	cl.SetSize(80, 20)
	cl.SetGroups("home", "Home", []feed.Group{
		{Title: "New", URI: "https://example.com/new", Entries: []feed.Entry{entry("A"), entry("B")}},
		{Title: "Popular", URI: "https://example.com/popular", Entries: []feed.Entry{entry("C")}},
	})
	if cl.Len() != 5 {
		t.Fatalf("expected 5 rows, got %d", cl.Len())
	}
	row, _ := cl.Selected()
	if row.Kind != RowGroup || row.Group.Title != "New" {
		t.Errorf("first row = %+v, want the New group header", row)
	}
	cl.GotoBottom()
	cl.CursorUp()
	if row, _ := cl.Selected(); row.Kind != RowGroup || row.Group.URI != "https://example.com/popular" {
		t.Errorf("row = %+v, want the Popular group header", row)
	}
}

func TestCursorGG(t *testing.T) {
	var c cursor
	c.page = 5
	c.reset(20)
	c.down(12)
	if c.offset != 8 {
		t.Errorf("offset = %d, want 8", c.offset)
	}
	if c.g() {
		t.Fatal("single g should not jump")
	}
	if !c.g() || c.pos != 0 || c.offset != 0 {
		t.Errorf("gg should jump to the top, pos=%d offset=%d", c.pos, c.offset)
	}
}

func facetGroups() []feed.FacetGroup {
	return []feed.FacetGroup{
		{Name: "Language", Facets: []feed.Facet{
			feed.SingleFacet{AccountID: "acct", Group: "Language", Title: "English", URI: "https://example.com/en", Active: true},
			feed.SingleFacet{AccountID: "acct", Group: "Language", Title: "French", URI: "https://example.com/fr"},
		}},
		{Name: "Availability", Facets: []feed.Facet{
			feed.SingleFacet{AccountID: "acct", Group: "Availability", Title: "Now", URI: "https://example.com/now"},
		}},
		feed.PseudoSortFacets(feed.SortNone),
	}
}

func TestFacetPanelChoosesUnderCursor(t *testing.T) {
	fp := NewFacetPanel()
	fp.SetSize(80, 40)
	fp.SetGroups(facetGroups())
	fp.Show()
	fp.CursorDown()

	f, err := fp.Choose()
	if err != nil {
		t.Fatal(err)
	}
	single, ok := f.(feed.SingleFacet)
	if !ok || single.Title != "French" {
		t.Errorf("Choose() = %#v, want the French facet", f)
	}
	if !strings.Contains(fp.View(), "English ✓") {
		t.Errorf("active facet not marked in view")
	}
}

func TestFacetPanelComposite(t *testing.T) {
	fp := NewFacetPanel()
	fp.SetSize(80, 40)
	fp.SetGroups(facetGroups())
	fp.Show()

	fp.CursorDown()
	fp.ToggleMark() // French
	fp.CursorDown()
	fp.ToggleMark() // Now
	fp.CursorDown()
	if fp.ToggleMark() {
		t.Error("pseudo facets cannot be combined")
	}

	f, err := fp.Choose()
	if err != nil {
		t.Fatal(err)
	}
	composite, ok := f.(feed.CompositeFacet)
	if !ok {
		t.Fatalf("Choose() = %T, want CompositeFacet", f)
	}
	if composite.Title() != "French + Now" {
		t.Errorf("composite title = %q", composite.Title())
	}
}

func TestStatusBarShowsErrorOverTitle(t *testing.T) {
	sb := NewStatusBar()
	sb.SetWidth(120)
	sb.SetTitle("Fiction")
	sb.SetState("Error")
	sb.SetError("authentication required")
	view := sb.View()
	if !strings.Contains(view, "authentication required") || strings.Contains(view, "Fiction") {
		t.Errorf("status bar should show the error instead of the title: %q", view)
	}
	sb.SetMessage("")
	if !strings.Contains(sb.View(), "Fiction") {
		t.Errorf("title should return once the message clears")
	}
}

func TestHistoryPanelRemoveSelected(t *testing.T) {
	hp := NewHistoryPanel()
	hp.SetSize(40, 20)
	hp.SetItems("Saved", []PanelItem{
		{URI: "https://example.com/a", Title: "A"},
		{URI: "https://example.com/b", Title: "B"},
	})
	hp.Show()
	hp.GotoBottom()
	hp.RemoveSelected()
	item, ok := hp.Selected()
	if !ok || item.Title != "A" {
		t.Errorf("Selected() = %+v, %v; want A", item, ok)
	}
}

func TestCommandBarSearchCarriesDescriptor(t *testing.T) {
	fiction := &opds.SearchDescriptor{ShortName: "Fiction", Template: "https://example.com/fiction?q={searchTerms}"}
	cb := NewCommandBar()
	cb.OpenSearch(fiction)
	cb.SetValue("  dracula ")

	result := cb.Submit()
	if result.Type != CommandSearch || result.Value != "dracula" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Search != fiction {
		t.Error("result should carry the descriptor the bar was opened with")
	}
	if cb.IsActive() {
		t.Error("Submit should close the bar")
	}
}

func TestCommandBarHistoryIsScoped(t *testing.T) {
	fiction := &opds.SearchDescriptor{Template: "https://example.com/fiction?q={searchTerms}"}
	poetry := &opds.SearchDescriptor{Template: "https://example.com/poetry?q={searchTerms}"}
	up := tea.KeyMsg{Type: tea.KeyUp}

	cb := NewCommandBar()
	cb.OpenSearch(fiction)
	cb.SetValue("dracula")
	cb.Submit()
	cb.OpenCommand()
	cb.SetValue("sort title")
	cb.Submit()

	cb.OpenSearch(poetry)
	cb.Update(up)
	if got := cb.Value(); got != "" {
		t.Errorf("poetry search recalled %q from another catalog", got)
	}
	cb.Close()

	cb.OpenSearch(fiction)
	cb.Update(up)
	if got := cb.Value(); got != "dracula" {
		t.Errorf("fiction search recalled %q, want dracula", got)
	}
	cb.Close()

	cb.OpenCommand()
	cb.Update(up)
	if got := cb.Value(); got != "sort title" {
		t.Errorf("command recalled %q, want sort title", got)
	}
	cb.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := cb.Value(); got != "" {
		t.Errorf("down past the newest entry should clear the input, got %q", got)
	}
}

func TestCommandBarCompletesCommandNames(t *testing.T) {
	tab := tea.KeyMsg{Type: tea.KeyTab}
	cb := NewCommandBar("save", "saved", "search", "theme")

	cb.OpenCommand()
	cb.SetValue("th")
	cb.Update(tab)
	if got := cb.Value(); got != "theme " {
		t.Errorf("unique match completed to %q", got)
	}

	cb.SetValue("s")
	cb.Update(tab)
	if got := cb.Value(); got != "s" {
		t.Errorf("ambiguous match should stop at the shared prefix, got %q", got)
	}

	cb.SetValue("sav")
	cb.Update(tab)
	if got := cb.Value(); got != "save" {
		t.Errorf("completion = %q, want save", got)
	}
}
