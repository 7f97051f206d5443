package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vidyasagar/opdsnav/internal/browser"
	"github.com/vidyasagar/opdsnav/internal/feed"
	"github.com/vidyasagar/opdsnav/internal/feeds"
	"github.com/vidyasagar/opdsnav/internal/navigation"
	"github.com/vidyasagar/opdsnav/internal/opds"
	"github.com/vidyasagar/opdsnav/internal/storage"
	"github.com/vidyasagar/opdsnav/internal/theme"
	"github.com/vidyasagar/opdsnav/internal/ui"
)

const detailCacheSize = 100

// Mode represents the current input mode.
type Mode int

const (
	ModeBrowse  Mode = iota
	ModeOpen         // URL bar focused
	ModeCommand      // command or search bar active
	ModeFacets       // facet palette open
	ModePanel        // visited or saved catalogs panel focused
	ModeDetail       // entry, description page or help in the viewport
)

// CatalogLoader loads catalog pages and owns the supported-books filter.
// *feeds.Loader implements it.
type CatalogLoader interface {
	navigation.Loader
	SetShowOnlySupportedBooks(v bool)
	ShowOnlySupportedBooks() bool
}

// Deps are the collaborators the model is built from. Visits and
// Catalogs may be nil when storage is unavailable.
type Deps struct {
	Loader   CatalogLoader
	Fetcher  feeds.Transport
	Config   *storage.Config
	Visits   *storage.VisitStore
	Catalogs *storage.SavedCatalogStore
	Logger   *log.Logger

	// StartURI is opened on startup with the account AccountID.
	StartURI  string
	AccountID string
}

// Model is the top-level bubbletea model for opdsnav.
type Model struct {
	// UI components
	urlBar       ui.URLBar
	statusBar    ui.StatusBar
	commandBar   ui.CommandBar
	list         ui.CatalogList
	viewport     ui.PageViewport
	historyPanel ui.HistoryPanel
	facetPanel   ui.FacetPanel
	spinner      spinner.Model

	// Navigation
	engine   *navigation.Engine
	dispatch *dispatcher
	state    navigation.State
	sortBy   feed.SortBy

	// Shared state
	loader      CatalogLoader
	fetcher     feeds.Transport
	config      *storage.Config
	visits      *storage.VisitStore
	catalogs    *storage.SavedCatalogStore
	logger      *log.Logger
	detailCache *lru.Cache[string, *browser.RenderedPage]
	keys        KeyMap
	mode        Mode
	accountID   string
	startURI    string
	width       int
	height      int
	ready       bool
	quitting    bool
}

// futureMsg reports the outcome of an engine command.
type futureMsg struct {
	op  string
	err error
}

// panelLoadedMsg carries the items for the side panel.
type panelLoadedMsg struct {
	heading string
	items   []ui.PanelItem
	err     error
}

// articleLoadedMsg is sent when a description page finishes loading.
type articleLoadedMsg struct {
	uri  string
	page *browser.RenderedPage
	err  error
}

// statusMsg sets a status bar message from a background command.
type statusMsg struct {
	text string
	err  error
}

// New creates an opdsnav Model. The navigation engine starts immediately;
// it is stopped when the user quits.
func New(deps Deps) (Model, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	cfg := deps.Config
	if cfg == nil {
		def := storage.DefaultConfig()
		cfg = &def
	}

	// Rendered entry details and description pages, keyed by book id or URI.
	detailCache, err := lru.New[string, *browser.RenderedPage](detailCacheSize)
	if err != nil {
		return Model{}, fmt.Errorf("creating detail cache: %w", err)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.Current.Warning)

	d := newDispatcher()
	engine := navigation.New(deps.Loader, navigation.Options{
		Dispatch: d.send,
		Logger:   logger.WithPrefix("navigation"),
	})

	accountID := deps.AccountID
	if accountID == "" && len(cfg.Accounts) > 0 {
		accountID = cfg.Accounts[0].ID
	}

	m := Model{
		urlBar:       ui.NewURLBar(),
		statusBar:    ui.NewStatusBar(),
		commandBar:   ui.NewCommandBar(commandNames...),
		list:         ui.NewCatalogList(),
		viewport:     ui.NewPageViewport(),
		historyPanel: ui.NewHistoryPanel(),
		facetPanel:   ui.NewFacetPanel(),
		spinner:      s,
		engine:       engine,
		dispatch:     d,
		state:        navigation.Initial{},
		loader:       deps.Loader,
		fetcher:      deps.Fetcher,
		config:       cfg,
		visits:       deps.Visits,
		catalogs:     deps.Catalogs,
		logger:       logger,
		detailCache:  detailCache,
		keys:         DefaultKeyMap(),
		mode:         ModeBrowse,
		accountID:    accountID,
		startURI:     deps.StartURI,
	}
	m.statusBar.SetAccount(accountID)
	m.statusBar.SetFiltered(deps.Loader.ShowOnlySupportedBooks())
	m.statusBar.SetState(m.state.Name())
	return m, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.dispatch.next()}
	if m.startURI != "" {
		cmds = append(cmds, m.submit(m.newFeed(m.accountID, m.startURI)))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case dispatchMsg:
		msg.fn()
		cmd := m.syncState()
		return m, tea.Batch(cmd, m.dispatch.next())

	case spinner.TickMsg:
		if _, loading := m.state.(navigation.Loading); !loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.statusBar.SetLoading(m.spinner.View())
		return m, cmd

	case futureMsg:
		return m.handleFuture(msg)

	case panelLoadedMsg:
		if msg.err != nil {
			m.statusBar.SetError(msg.err.Error())
			return m, nil
		}
		m.historyPanel.SetItems(msg.heading, msg.items)
		m.historyPanel.Show()
		m.mode = ModePanel
		m.statusBar.SetMode("PANEL")
		m.layout()
		return m, nil

	case articleLoadedMsg:
		if msg.err != nil {
			m.statusBar.SetError(msg.err.Error())
			return m, nil
		}
		m.detailCache.Add("article:"+msg.uri, msg.page)
		m.showPage(msg.page)
		return m, nil

	case statusMsg:
		if msg.err != nil {
			m.statusBar.SetError(msg.err.Error())
		} else {
			m.statusBar.SetMessage(msg.text)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	if m.mode == ModeDetail {
		vp, cmd := m.viewport.Update(msg)
		m.viewport = *vp
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "\n  Loading opdsnav..."
	}

	var sections []string
	sections = append(sections, m.urlBar.View())

	main := m.mainView()
	if m.historyPanel.IsVisible() {
		t := theme.Current
		dividerStyle := lipgloss.NewStyle().
			Foreground(t.Border)
		divider := dividerStyle.Render(strings.TrimSuffix(strings.Repeat("│\n", m.mainHeight()), "\n"))
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.historyPanel.View(), divider, main)
	}
	sections = append(sections, main)
	sections = append(sections, m.statusBar.View())
	if m.commandBar.IsActive() {
		sections = append(sections, m.commandBar.View())
	}

	result := lipgloss.JoinVertical(lipgloss.Left, sections...)

	if m.facetPanel.IsVisible() {
		result = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.facetPanel.View(),
			lipgloss.WithWhitespaceChars(" "),
		)
	}
	return result
}

func (m Model) mainView() string {
	if m.mode == ModeDetail || m.list.Len() == 0 && !m.hasPage() {
		return m.viewport.View()
	}
	return m.list.View()
}

// hasPage reports whether a catalog page has been shown.
func (m Model) hasPage() bool {
	return m.list.Title() != "" || len(m.engine.Entries()) > 0 || len(m.engine.Groups()) > 0
}

func (m Model) mainHeight() int {
	// url bar with border + status bar
	h := m.height - 3 - 1
	if m.commandBar.IsActive() {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

// layout recalculates dimensions for all components.
func (m *Model) layout() {
	m.urlBar.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)
	m.commandBar.SetWidth(m.width)
	m.facetPanel.SetSize(m.width, m.height)

	height := m.mainHeight()
	width := m.width
	if m.historyPanel.IsVisible() {
		panelWidth := m.width * 30 / 100
		if panelWidth < 24 {
			panelWidth = 24
		}
		m.historyPanel.SetSize(panelWidth, height)
		width = m.width - panelWidth - 1
	}
	m.list.SetSize(width, height)
	m.viewport.SetSize(width, height)
}

// handleKeyMsg processes key events based on current mode.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	switch m.mode {
	case ModeOpen:
		return m.handleOpenMode(msg)
	case ModeCommand:
		return m.handleCommandMode(msg)
	case ModeFacets:
		return m.handleFacetMode(msg)
	case ModePanel:
		return m.handlePanelMode(msg)
	case ModeDetail:
		return m.handleDetailMode(msg)
	default:
		return m.handleBrowseMode(msg)
	}
}

// handleBrowseMode processes keys while the catalog list has focus.
func (m Model) handleBrowseMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.GotoTop) {
		m.list.ResetGKey()
	}
	m.statusBar.SetMessage("")

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Down):
		m.list.CursorDown()
		// Reaching the last row pulls in the next page.
		if m.list.AtEnd() {
			if row, ok := m.list.Selected(); ok && row.Kind == ui.RowMore {
				m.syncPosition()
				return m, m.loadMore()
			}
		}
	case key.Matches(msg, m.keys.Up):
		m.list.CursorUp()
	case key.Matches(msg, m.keys.HalfPageDown):
		m.list.HalfPageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		m.list.HalfPageUp()
	case key.Matches(msg, m.keys.GotoTop):
		m.list.HandleGKey()
	case key.Matches(msg, m.keys.GotoBottom):
		m.list.GotoBottom()
	case key.Matches(msg, m.keys.Open):
		return m.activate()
	case key.Matches(msg, m.keys.Back):
		return m, m.goBack()
	case key.Matches(msg, m.keys.OpenURI):
		m.mode = ModeOpen
		m.statusBar.SetMode("OPEN")
		cmd := m.urlBar.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Reload):
		return m, m.reload()
	case key.Matches(msg, m.keys.LoadMore):
		return m, m.loadMore()
	case key.Matches(msg, m.keys.Facets):
		return m.openFacets()
	case key.Matches(msg, m.keys.Search):
		return m.openSearch()
	case key.Matches(msg, m.keys.CommandMode):
		m.mode = ModeCommand
		m.statusBar.SetMode("COMMAND")
		cmd := m.commandBar.OpenCommand()
		m.layout()
		return m, cmd
	case key.Matches(msg, m.keys.Save):
		return m, m.saveCatalog()
	case key.Matches(msg, m.keys.Saved):
		return m, m.loadSaved()
	case key.Matches(msg, m.keys.Visited):
		return m, m.loadVisits()
	case key.Matches(msg, m.keys.Theme):
		return m.cycleTheme()
	case key.Matches(msg, m.keys.Help):
		m.showHelp()
	}
	m.syncPosition()
	return m, nil
}

// handleDetailMode processes keys while the viewport has focus.
func (m Model) handleDetailMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
	case key.Matches(msg, m.keys.HalfPageDown):
		m.viewport.HalfPageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		m.viewport.HalfPageUp()
	case key.Matches(msg, m.keys.GotoTop):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.GotoBottom):
		m.viewport.GotoBottom()
	case key.Matches(msg, m.keys.Reader):
		return m, m.openReader()
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Close):
		// Entries are history states; help and description pages are not.
		if _, ok := m.state.(navigation.LoadedFeedEntry); ok {
			return m, m.goBack()
		}
		m.leaveDetail()
	case key.Matches(msg, m.keys.CommandMode):
		m.mode = ModeCommand
		m.statusBar.SetMode("COMMAND")
		cmd := m.commandBar.OpenCommand()
		m.layout()
		return m, cmd
	case key.Matches(msg, m.keys.Theme):
		return m.cycleTheme()
	}
	m.statusBar.SetPosition(m.viewport.ScrollInfo())
	return m, nil
}

// handleOpenMode processes keys when the URL bar is focused.
func (m Model) handleOpenMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.urlBar.Blur()
		m.restoreMode()
		return m, nil
	case tea.KeyEnter:
		uri := strings.TrimSpace(m.urlBar.Value())
		m.urlBar.Blur()
		m.restoreMode()
		if uri == "" {
			return m, nil
		}
		return m, m.submit(m.newFeed(m.accountID, NormalizeURI(uri)))
	}

	ub, cmd := m.urlBar.Update(msg)
	m.urlBar = *ub
	return m, cmd
}

// handleCommandMode processes keys in command and search mode.
func (m Model) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.commandBar.Close()
		m.restoreMode()
		m.layout()
		return m, nil
	case tea.KeyEnter:
		result := m.commandBar.Submit()
		m.restoreMode()
		m.layout()
		return m.handleCommandResult(result)
	}

	cb, cmd := m.commandBar.Update(msg)
	m.commandBar = *cb
	return m, cmd
}

// handleFacetMode processes keys while the facet palette is open.
func (m Model) handleFacetMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Close), key.Matches(msg, m.keys.Facets):
		m.facetPanel.Hide()
		m.restoreMode()
	case key.Matches(msg, m.keys.Down):
		m.facetPanel.CursorDown()
	case key.Matches(msg, m.keys.Up):
		m.facetPanel.CursorUp()
	case key.Matches(msg, m.keys.Combine):
		if !m.facetPanel.ToggleMark() {
			m.statusBar.SetMessage("Only catalog facets can be combined")
		}
	case msg.Type == tea.KeyEnter:
		f, err := m.facetPanel.Choose()
		m.facetPanel.Hide()
		m.restoreMode()
		if err != nil {
			m.statusBar.SetError(err.Error())
			return m, nil
		}
		cmd := m.applyFacet(f)
		return m, cmd
	}
	return m, nil
}

// handlePanelMode processes keys while the side panel has focus.
func (m Model) handlePanelMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.GotoTop) {
		m.historyPanel.ResetGKey()
	}

	switch {
	case key.Matches(msg, m.keys.Close), key.Matches(msg, m.keys.Visited):
		m.closePanel()
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Down):
		m.historyPanel.CursorDown()
	case key.Matches(msg, m.keys.Up):
		m.historyPanel.CursorUp()
	case key.Matches(msg, m.keys.GotoTop):
		m.historyPanel.HandleGKey()
	case key.Matches(msg, m.keys.GotoBottom):
		m.historyPanel.GotoBottom()
	case key.Matches(msg, m.keys.Delete):
		item, ok := m.historyPanel.Selected()
		if !ok || m.historyPanel.Heading() != savedHeading || m.catalogs == nil {
			return m, nil
		}
		m.historyPanel.RemoveSelected()
		return m, m.removeSaved(item)
	case msg.Type == tea.KeyEnter:
		item, ok := m.historyPanel.Selected()
		m.closePanel()
		if !ok {
			return m, nil
		}
		m.setAccount(item.AccountID)
		return m, m.submit(m.newFeed(item.AccountID, item.URI))
	}
	return m, nil
}

func (m *Model) closePanel() {
	m.historyPanel.Hide()
	m.restoreMode()
	m.layout()
}

// restoreMode returns to the detail or browse mode the current state
// calls for.
func (m *Model) restoreMode() {
	m.mode = ModeBrowse
	m.statusBar.SetMode("BROWSE")
	if _, ok := m.state.(navigation.LoadedFeedEntry); ok {
		m.mode = ModeDetail
		m.statusBar.SetMode("DETAIL")
	}
}

func (m *Model) leaveDetail() {
	m.mode = ModeBrowse
	m.statusBar.SetMode("BROWSE")
	m.viewport.ClearContent()
	m.syncPosition()
}

// activate opens the selected row.
func (m Model) activate() (tea.Model, tea.Cmd) {
	row, ok := m.list.Selected()
	if !ok {
		return m, nil
	}
	switch row.Kind {
	case ui.RowGroup:
		return m, m.submit(m.newFeed(m.accountID, row.Group.URI))
	case ui.RowMore:
		return m, m.loadMore()
	case ui.RowCorrupt:
		if ce, ok := row.Entry.(feed.CorruptEntry); ok && ce.Err != nil {
			m.statusBar.SetError("Unreadable entry: " + ce.Err.Error())
		}
		return m, nil
	}

	oe, ok := row.Entry.(feed.OPDSEntry)
	if !ok {
		return m, nil
	}
	if oe.Entry.Subsection != "" && len(oe.Entry.Acquisitions) == 0 {
		return m, m.submit(m.newFeed(oe.AccountID, oe.Entry.Subsection))
	}
	return m, m.submit(navigation.ExistingEntry{Entry: row.Entry})
}

// applyFacet navigates to the page a facet choice selects. Pseudo facets
// only reorder the current page.
func (m *Model) applyFacet(f feed.Facet) tea.Cmd {
	switch f := f.(type) {
	case feed.SingleFacet:
		return m.submit(m.newFeed(f.AccountID, f.URI))
	case feed.CompositeFacet:
		return m.submit(navigation.ResolvedCompositeFacet{
			Facet:       f,
			Credentials: m.credentials(f.AccountID()),
		})
	case feed.PseudoFacet:
		m.sortBy = f.Sort
		if s, ok := m.state.(navigation.LoadedFeedWithoutGroups); ok {
			m.showEntries(s.Feed)
		}
		m.statusBar.SetMessage("Sorted by " + strings.ToLower(f.Title))
	}
	return nil
}

func (m Model) openFacets() (tea.Model, tea.Cmd) {
	s, ok := m.state.(navigation.LoadedFeedWithoutGroups)
	if !ok {
		m.statusBar.SetMessage("Facets are only available on list pages")
		return m, nil
	}
	m.facetPanel.SetGroups(m.facetGroups(s.Feed))
	m.facetPanel.Show()
	m.mode = ModeFacets
	m.statusBar.SetMode("FACETS")
	return m, nil
}

func (m Model) facetGroups(f *feed.WithoutGroups) []feed.FacetGroup {
	groups := append([]feed.FacetGroup(nil), f.FacetsByGroup...)
	return append(groups, feed.PseudoSortFacets(m.sortBy))
}

func (m Model) openSearch() (tea.Model, tea.Cmd) {
	desc := m.searchDescriptor()
	if desc == nil {
		m.statusBar.SetMessage("This catalog is not searchable")
		return m, nil
	}
	m.mode = ModeCommand
	m.statusBar.SetMode("SEARCH")
	cmd := m.commandBar.OpenSearch(desc)
	m.layout()
	return m, cmd
}

// searchDescriptor returns the search of the page on screen.
func (m Model) searchDescriptor() *opds.SearchDescriptor {
	switch s := m.state.(type) {
	case navigation.LoadedFeedWithoutGroups:
		return s.Feed.Search
	case navigation.LoadedFeedWithGroups:
		return s.Feed.Search
	}
	return nil
}

func (m Model) search(desc *opds.SearchDescriptor, terms string) tea.Cmd {
	if desc == nil || terms == "" {
		return nil
	}
	uri, err := desc.Query(terms)
	if err != nil {
		return func() tea.Msg { return statusMsg{err: err} }
	}
	return m.submit(m.newFeed(m.accountID, uri))
}

// syncState mirrors the engine's published state into the UI.
func (m *Model) syncState() tea.Cmd {
	prev := m.state
	s := m.engine.State()
	m.state = s
	m.statusBar.SetState(s.Name())
	m.statusBar.SetLoading("")

	switch s := s.(type) {
	case navigation.Initial:
		m.list.Clear()
		m.viewport.ClearContent()
	case navigation.Loading:
		m.statusBar.SetLoading(m.spinner.View())
		if _, wasLoading := prev.(navigation.Loading); !wasLoading {
			return m.spinner.Tick
		}
	case navigation.Failed:
		m.logger.Warn("catalog request failed", "err", s.Err)
		m.statusBar.SetError(describeError(s.Err))
		if m.mode == ModeDetail {
			m.leaveDetail()
		}
	case navigation.LoadedFeedWithGroups:
		m.leaveDetailIfOpen()
		m.list.SetGroups(s.Feed.URI, s.Feed.Title, s.Feed.Groups)
		m.urlBar.SetCurrent(s.Feed.URI)
		m.statusBar.SetTitle(s.Feed.Title)
		m.statusBar.SetMessage("")
		m.syncPosition()
		return m.recordVisit(s.Request, s.Feed.URI, s.Feed.Title, s.Name())
	case navigation.LoadedFeedWithoutGroups:
		m.leaveDetailIfOpen()
		sameFeed := false
		if old, ok := prev.(navigation.LoadedFeedWithoutGroups); ok {
			sameFeed = old.Feed.URI == s.Feed.URI
		}
		m.showEntries(s.Feed)
		m.urlBar.SetCurrent(s.Feed.URI)
		m.statusBar.SetTitle(s.Feed.Title)
		m.statusBar.SetMessage("")
		if sameFeed {
			// An appended page is not a new visit.
			return nil
		}
		return m.recordVisit(s.Request, s.Feed.URI, s.Feed.Title, s.Name())
	case navigation.LoadedFeedEntry:
		m.showEntry(s.Request.Entry)
	}
	return nil
}

func (m *Model) leaveDetailIfOpen() {
	if m.mode == ModeDetail {
		m.leaveDetail()
	}
}

func (m *Model) showEntries(f *feed.WithoutGroups) {
	m.list.SetEntries(f.URI, f.Title, feed.SortEntries(f.Entries, m.sortBy), f.HasNext())
	m.syncPosition()
}

// showEntry renders an entry's details into the viewport.
func (m *Model) showEntry(e feed.Entry) {
	oe, ok := e.(feed.OPDSEntry)
	if !ok {
		m.statusBar.SetError("This entry could not be read")
		return
	}
	page, ok := m.detailCache.Get(oe.BookID)
	if !ok {
		page = browser.RenderEntry(oe.Entry, m.viewport.Width())
		m.detailCache.Add(oe.BookID, page)
	}
	m.showPage(page)
}

func (m *Model) showPage(page *browser.RenderedPage) {
	m.viewport.SetContent(page.Content)
	m.mode = ModeDetail
	m.statusBar.SetMode("DETAIL")
	m.statusBar.SetTitle(page.Title)
	m.statusBar.SetMessage("")
	if n := len(page.Links); n > 0 {
		m.statusBar.SetMessage(fmt.Sprintf("%d links", n))
	}
	m.statusBar.SetPosition(m.viewport.ScrollInfo())
}

func (m *Model) syncPosition() {
	if m.mode == ModeDetail {
		m.statusBar.SetPosition(m.viewport.ScrollInfo())
		return
	}
	m.statusBar.SetPosition(m.list.Position())
}

// handleFuture reports failures the state machine doesn't show itself.
func (m Model) handleFuture(msg futureMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.err == nil, errors.Is(msg.err, navigation.ErrCancelled):
	case errors.Is(msg.err, navigation.ErrNoHistory):
		m.statusBar.SetMessage("Nothing to go back to")
	case errors.Is(msg.err, navigation.ErrClosed):
	case msg.op == "load":
		// The Error state already carries it.
	default:
		m.logger.Warn("navigation command failed", "op", msg.op, "err", msg.err)
		m.statusBar.SetError(describeError(msg.err))
	}
	return m, nil
}

func (m Model) submit(r navigation.Request) tea.Cmd {
	return waitFuture("load", m.engine.Submit(r))
}

func (m Model) loadMore() tea.Cmd {
	s, ok := m.state.(navigation.LoadedFeedWithoutGroups)
	if !ok || !s.Feed.HasNext() {
		return nil
	}
	return waitFuture("more", m.engine.LoadMore())
}

func (m Model) goBack() tea.Cmd {
	return waitFuture("back", m.engine.GoBack())
}

// reload resubmits the request behind the page on screen.
func (m Model) reload() tea.Cmd {
	switch s := m.state.(type) {
	case navigation.LoadedFeedWithGroups:
		return m.submit(s.Request)
	case navigation.LoadedFeedWithoutGroups:
		return m.submit(s.Request)
	case navigation.Failed:
		return m.submit(s.Request)
	}
	return nil
}

func waitFuture(op string, f *navigation.Future) tea.Cmd {
	return func() tea.Msg {
		<-f.Done()
		return futureMsg{op: op, err: f.Err()}
	}
}

// openReader fetches the description page of the entry on screen.
func (m Model) openReader() tea.Cmd {
	s, ok := m.state.(navigation.LoadedFeedEntry)
	if !ok {
		return nil
	}
	oe, ok := s.Request.Entry.(feed.OPDSEntry)
	if !ok || oe.Entry.Alternate == "" {
		return func() tea.Msg { return statusMsg{text: "This entry has no description page"} }
	}
	uri := oe.Entry.Alternate
	if page, ok := m.detailCache.Get("article:" + uri); ok {
		return func() tea.Msg { return articleLoadedMsg{uri: uri, page: page} }
	}
	if m.fetcher == nil {
		return func() tea.Msg { return statusMsg{text: "Description pages are unavailable"} }
	}

	fetcher := m.fetcher
	creds := m.credentials(oe.AccountID)
	width := m.viewport.Width()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		result, err := fetcher.Fetch(ctx, browser.Request{URI: uri, Credentials: creds})
		if err != nil {
			return articleLoadedMsg{uri: uri, err: err}
		}
		article, err := browser.Extract(result)
		if err != nil {
			return articleLoadedMsg{uri: uri, err: err}
		}
		return articleLoadedMsg{uri: uri, page: browser.RenderArticle(article, width)}
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.dispatch.close()
	if err := m.engine.Close(); err != nil {
		m.logger.Warn("closing navigation engine", "err", err)
	}
	return m, tea.Quit
}

// cycleTheme switches to the next available theme.
func (m Model) cycleTheme() (tea.Model, tea.Cmd) {
	themes := theme.List()
	next := themes[0]
	for i, name := range themes {
		if name == theme.Current.Name {
			next = themes[(i+1)%len(themes)]
			break
		}
	}
	theme.Set(next)
	m.spinner.Style = lipgloss.NewStyle().Foreground(theme.Current.Warning)
	m.statusBar.SetMessage("Theme: " + next)
	return m, nil
}

// showHelp renders the keybindings into the viewport.
func (m *Model) showHelp() {
	t := theme.Current

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		MarginBottom(1)
	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Accent).
		MarginTop(1)
	keyStyle := lipgloss.NewStyle().
		Foreground(t.Secondary).
		Width(18)
	descStyle := lipgloss.NewStyle().
		Foreground(t.Text)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("opdsnav Keybindings"))
	sb.WriteString("\n\n")

	for _, section := range m.keys.helpSections() {
		sb.WriteString(sectionStyle.Render(section.name))
		sb.WriteString("\n\n")
		for _, b := range section.bindings {
			h := b.Help()
			sb.WriteString(keyStyle.Render(h.Key))
			sb.WriteString(descStyle.Render(h.Desc))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(sectionStyle.Render("Commands"))
	sb.WriteString("\n\n")
	for _, c := range commandHelp {
		sb.WriteString(keyStyle.Render(c.usage))
		sb.WriteString(descStyle.Render(c.desc))
		sb.WriteString("\n")
	}

	m.viewport.SetContent(sb.String())
	m.mode = ModeDetail
	m.statusBar.SetMode("DETAIL")
	m.statusBar.SetTitle("Help - Keybindings")
	m.statusBar.SetPosition(m.viewport.ScrollInfo())
}

// describeError turns a failure into a one-line status message.
func describeError(err error) string {
	var fe *feeds.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case feeds.KindAuthentication:
			msg := "Authentication required for " + fe.URI
			if fe.Problem != nil && fe.Problem.Title != "" {
				msg += ": " + fe.Problem.Title
			}
			return msg
		case feeds.KindFileNotFound:
			return "Not found: " + fe.URI
		}
	}
	var ce *navigation.CompositeFacetError
	if errors.As(err, &ce) {
		return fmt.Sprintf("Facet %q: %v", ce.Facet.Title, ce.Err)
	}
	return err.Error()
}

// NormalizeURI adds https:// to bare host names.
func NormalizeURI(uri string) string {
	uri = strings.TrimSpace(uri)
	if i := strings.Index(uri, ":"); i > 0 {
		switch strings.ToLower(uri[:i]) {
		case "http", "https", "file", "content", "asset":
			return uri
		}
	}
	return "https://" + uri
}
