package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vidyasagar/opdsnav/internal/browser"
	"github.com/vidyasagar/opdsnav/internal/feed"
	"github.com/vidyasagar/opdsnav/internal/navigation"
	"github.com/vidyasagar/opdsnav/internal/storage"
	"github.com/vidyasagar/opdsnav/internal/theme"
	"github.com/vidyasagar/opdsnav/internal/ui"
)

const (
	visitedHeading = "Recently visited"
	savedHeading   = "Saved catalogs"
	storageTimeout = 2 * time.Second
	recentLimit    = 50
)

// commandNames are completed by Tab in the command bar.
var commandNames = []string{
	"account", "back", "clearvisits", "filter", "help", "history", "more", "open",
	"quit", "reload", "save", "saved", "search", "sort", "theme", "unsave", "visited",
}

var commandHelp = []struct {
	usage string
	desc  string
}{
	{":open <uri>", "Open a catalog page"},
	{":search <terms>", "Search the current catalog"},
	{":account [id]", "Switch account or list accounts"},
	{":filter [on|off]", "Show only supported books"},
	{":sort <title|author|none>", "Sort the current page"},
	{":more", "Load the next page"},
	{":back", "Go back"},
	{":reload", "Reload the current page"},
	{":save / :unsave", "Save or forget the current catalog"},
	{":saved", "List saved catalogs"},
	{":visited", "List recently visited pages"},
	{":clearvisits", "Forget visited pages"},
	{":theme [name]", "Change theme"},
	{":quit", "Quit opdsnav"},
}

// handleCommandResult processes a submitted command or search.
func (m Model) handleCommandResult(result ui.CommandResult) (tea.Model, tea.Cmd) {
	switch result.Type {
	case ui.CommandEx:
		return m.executeCommand(result.Value)
	case ui.CommandSearch:
		return m, m.search(result.Search, result.Value)
	}
	return m, nil
}

// executeCommand handles :commands.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return m, nil
	}
	arg := strings.Join(parts[1:], " ")

	switch parts[0] {
	case "q", "quit":
		return m.quit()
	case "o", "open":
		if arg == "" {
			m.statusBar.SetMessage("Usage: :open <uri>")
			return m, nil
		}
		return m, m.submit(m.newFeed(m.accountID, NormalizeURI(arg)))
	case "search":
		desc := m.searchDescriptor()
		if desc == nil {
			m.statusBar.SetMessage("This catalog is not searchable")
			return m, nil
		}
		return m, m.search(desc, arg)
	case "account", "accounts":
		if arg == "" {
			ids := make([]string, len(m.config.Accounts))
			for i, a := range m.config.Accounts {
				ids[i] = a.ID
			}
			m.statusBar.SetMessage(fmt.Sprintf("Current: %s | Accounts: %s", m.accountID, strings.Join(ids, ", ")))
			return m, nil
		}
		acct, ok := m.config.Account(arg)
		if !ok {
			m.statusBar.SetError("Unknown account: " + arg)
			return m, nil
		}
		m.setAccount(acct.ID)
		return m, m.submit(m.newFeed(acct.ID, acct.CatalogURI))
	case "filter":
		v := !m.loader.ShowOnlySupportedBooks()
		switch arg {
		case "on":
			v = true
		case "off":
			v = false
		}
		return m.setFilter(v)
	case "sort":
		by, ok := map[string]feed.SortBy{"title": feed.SortByTitle, "author": feed.SortByAuthor, "none": feed.SortNone}[arg]
		if !ok {
			m.statusBar.SetMessage("Usage: :sort <title|author|none>")
			return m, nil
		}
		m.sortBy = by
		if s, ok := m.state.(navigation.LoadedFeedWithoutGroups); ok {
			m.showEntries(s.Feed)
		}
	case "more":
		return m, m.loadMore()
	case "back":
		return m, m.goBack()
	case "reload":
		return m, m.reload()
	case "save":
		return m, m.saveCatalog()
	case "unsave":
		accountID, uri, _, ok := m.location()
		if !ok {
			return m, nil
		}
		return m, m.removeSaved(ui.PanelItem{AccountID: accountID, URI: uri})
	case "saved":
		return m, m.loadSaved()
	case "visited", "history":
		return m, m.loadVisits()
	case "clearvisits":
		return m, m.clearVisits()
	case "theme":
		if arg == "" {
			m.statusBar.SetMessage(fmt.Sprintf("Current: %s | Available: %s", theme.Current.Name, strings.Join(theme.List(), ", ")))
			return m, nil
		}
		if !theme.Set(arg) {
			m.statusBar.SetError(fmt.Sprintf("Unknown theme: %s (available: %s)", arg, strings.Join(theme.List(), ", ")))
			return m, nil
		}
		m.config.Theme = arg
		m.statusBar.SetMessage("Theme: " + arg)
		return m, m.saveConfig()
	case "help":
		m.showHelp()
	default:
		m.statusBar.SetError("Unknown command: " + parts[0])
	}
	return m, nil
}

// setFilter toggles hiding of unsupported books and reloads the page so
// the change is visible.
func (m Model) setFilter(v bool) (tea.Model, tea.Cmd) {
	m.loader.SetShowOnlySupportedBooks(v)
	m.config.ShowOnlySupportedBooks = v
	m.statusBar.SetFiltered(v)
	if v {
		m.statusBar.SetMessage("Showing supported books only")
	} else {
		m.statusBar.SetMessage("Showing all books")
	}
	return m, tea.Batch(m.saveConfig(), m.reload())
}

func (m Model) saveConfig() tea.Cmd {
	cfg := m.config
	logger := m.logger
	return func() tea.Msg {
		if err := cfg.Save(); err != nil {
			logger.Warn("saving config", "err", err)
			return statusMsg{err: fmt.Errorf("saving config: %w", err)}
		}
		return nil
	}
}

func (m *Model) setAccount(id string) {
	if id == "" {
		return
	}
	m.accountID = id
	m.statusBar.SetAccount(id)
}

// newFeed builds a request for uri with the account's credentials.
func (m Model) newFeed(accountID, uri string) navigation.NewFeed {
	if accountID == "" {
		accountID = m.accountID
	}
	return navigation.NewFeed{
		AccountID:   accountID,
		URI:         uri,
		Credentials: m.credentials(accountID),
	}
}

func (m Model) credentials(accountID string) browser.Credentials {
	acct, ok := m.config.Account(accountID)
	if !ok {
		return nil
	}
	return acct.Credentials()
}

// location returns the account, URI and title of the page on screen.
func (m Model) location() (accountID, uri, title string, ok bool) {
	switch s := m.state.(type) {
	case navigation.LoadedFeedWithGroups:
		return requestAccount(s.Request, m.accountID), s.Feed.URI, s.Feed.Title, true
	case navigation.LoadedFeedWithoutGroups:
		return requestAccount(s.Request, m.accountID), s.Feed.URI, s.Feed.Title, true
	}
	return "", "", "", false
}

func requestAccount(r navigation.Request, fallback string) string {
	switch r := r.(type) {
	case navigation.NewFeed:
		if r.AccountID != "" {
			return r.AccountID
		}
	case navigation.ResolvedCompositeFacet:
		if id := r.Facet.AccountID(); id != "" {
			return id
		}
	}
	return fallback
}

func (m Model) recordVisit(r navigation.Request, uri, title, kind string) tea.Cmd {
	if m.visits == nil || uri == "" {
		return nil
	}
	visits := m.visits
	logger := m.logger
	accountID := requestAccount(r, m.accountID)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		if err := visits.Record(ctx, accountID, uri, title, kind); err != nil {
			logger.Warn("recording visit", "uri", uri, "err", err)
		}
		return nil
	}
}

func (m Model) loadVisits() tea.Cmd {
	if m.visits == nil {
		return func() tea.Msg { return statusMsg{text: "History is unavailable"} }
	}
	visits := m.visits
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		recent, err := visits.Recent(ctx, recentLimit)
		if err != nil {
			return panelLoadedMsg{err: fmt.Errorf("loading visits: %w", err)}
		}
		items := make([]ui.PanelItem, len(recent))
		for i, v := range recent {
			items[i] = ui.PanelItem{AccountID: v.AccountID, URI: v.URI, Title: v.Title, When: v.VisitedAt}
		}
		return panelLoadedMsg{heading: visitedHeading, items: items}
	}
}

func (m Model) clearVisits() tea.Cmd {
	if m.visits == nil {
		return nil
	}
	visits := m.visits
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		if err := visits.Clear(ctx); err != nil {
			return statusMsg{err: fmt.Errorf("clearing visits: %w", err)}
		}
		return statusMsg{text: "Visited pages cleared"}
	}
}

func (m Model) saveCatalog() tea.Cmd {
	accountID, uri, title, ok := m.location()
	if !ok {
		return func() tea.Msg { return statusMsg{text: "Open a catalog page to save it"} }
	}
	if m.catalogs == nil {
		return func() tea.Msg { return statusMsg{text: "Saved catalogs are unavailable"} }
	}
	catalogs := m.catalogs
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		added, err := catalogs.Add(ctx, accountID, uri, title)
		if err != nil {
			return statusMsg{err: fmt.Errorf("saving catalog: %w", err)}
		}
		if !added {
			return statusMsg{text: "Already saved: " + title}
		}
		return statusMsg{text: "Saved: " + title}
	}
}

func (m Model) removeSaved(item ui.PanelItem) tea.Cmd {
	if m.catalogs == nil {
		return nil
	}
	catalogs := m.catalogs
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		removed, err := catalogs.Remove(ctx, item.AccountID, item.URI)
		if err != nil {
			return statusMsg{err: fmt.Errorf("removing catalog: %w", err)}
		}
		if !removed {
			return statusMsg{text: "Not saved: " + item.URI}
		}
		return statusMsg{text: "Removed: " + item.URI}
	}
}

func (m Model) loadSaved() tea.Cmd {
	if m.catalogs == nil {
		return func() tea.Msg { return statusMsg{text: "Saved catalogs are unavailable"} }
	}
	catalogs := m.catalogs
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		saved, err := catalogs.List(ctx)
		if err != nil {
			return panelLoadedMsg{err: fmt.Errorf("loading saved catalogs: %w", err)}
		}
		return panelLoadedMsg{heading: savedHeading, items: savedItems(saved)}
	}
}

func savedItems(saved []storage.SavedCatalog) []ui.PanelItem {
	items := make([]ui.PanelItem, len(saved))
	for i, c := range saved {
		items[i] = ui.PanelItem{AccountID: c.AccountID, URI: c.URI, Title: c.Title, When: c.CreatedAt}
	}
	return items
}
