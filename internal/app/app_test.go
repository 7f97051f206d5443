package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vidyasagar/opdsnav/internal/browser"
	"github.com/vidyasagar/opdsnav/internal/feed"
	"github.com/vidyasagar/opdsnav/internal/feeds"
	"github.com/vidyasagar/opdsnav/internal/navigation"
	"github.com/vidyasagar/opdsnav/internal/opds"
	"github.com/vidyasagar/opdsnav/internal/storage"
	"github.com/vidyasagar/opdsnav/internal/ui"
)

const rootURI = "https://example.com/root.xml"

type stubLoader struct {
	mu            sync.Mutex
	feeds         map[string]feed.Feed
	calls         []string
	onlySupported bool
}

func (l *stubLoader) Fetch(_ context.Context, _, uri string, _ browser.Credentials, _ string) (feed.Feed, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, uri)
	f, ok := l.feeds[uri]
	if !ok {
		return nil, &feeds.Error{Kind: feeds.KindFileNotFound, URI: uri}
	}
	return f, nil
}

func (l *stubLoader) SetShowOnlySupportedBooks(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onlySupported = v
}

func (l *stubLoader) ShowOnlySupportedBooks() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.onlySupported
}

func book(title, author string) feed.Entry {
	return feed.OPDSEntry{
		AccountID: "acct",
		BookID:    feed.NewBookID(title),
		Entry:     opds.Entry{ID: title, Title: title, Authors: []string{author}},
	}
}

func newTestModel(t *testing.T) (Model, *stubLoader) {
	t.Helper()
	loader := &stubLoader{
		onlySupported: true,
		feeds: map[string]feed.Feed{
			rootURI: &feed.WithoutGroups{
				URI:     rootURI,
				Title:   "Fiction",
				Entries: []feed.Entry{book("Walden", "Thoreau"), book("Dracula", "Stoker")},
				Next:    "https://example.com/root.xml?page=2",
			},
			"https://example.com/root.xml?page=2": &feed.WithoutGroups{
				URI:     "https://example.com/root.xml?page=2",
				Title:   "Fiction",
				Entries: []feed.Entry{book("Emma", "Austen")},
			},
		},
	}
	cfg := storage.DefaultConfig()
	cfg.Accounts = []storage.Account{{ID: "acct", Title: "Test", CatalogURI: rootURI}}

	m, err := New(Deps{Loader: loader, Config: &cfg})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() {
		m.dispatch.close()
		m.engine.Close()
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model), loader
}

// pumpUntil feeds dispatched engine closures to the model until the named
// state is on screen.
func pumpUntil(t *testing.T, m Model, name string) Model {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for m.state.Name() != name {
		next := m.dispatch.next()
		msgs := make(chan tea.Msg, 1)
		go func() { msgs <- next() }()
		select {
		case msg := <-msgs:
			updated, _ := m.Update(msg)
			m = updated.(Model)
		case <-deadline:
			t.Fatalf("state %s never reached, stuck at %s", name, m.state.Name())
		}
	}
	return m
}

func press(t *testing.T, m Model, keys string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch keys {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func TestModelBrowsesIntoEntryAndBack(t *testing.T) {
	m, _ := newTestModel(t)
	m.submit(m.newFeed("acct", rootURI))
	m = pumpUntil(t, m, "LoadedFeedWithoutGroups")

	if m.list.Len() != 3 {
		t.Fatalf("expected 2 entries and a load-more row, got %d rows", m.list.Len())
	}
	if m.urlBar.Current() != rootURI {
		t.Errorf("url bar shows %q", m.urlBar.Current())
	}

	m = press(t, m, "enter")
	m = pumpUntil(t, m, "LoadedFeedEntry")
	if m.mode != ModeDetail {
		t.Errorf("mode = %v after opening an entry, want ModeDetail", m.mode)
	}
	if _, ok := m.detailCache.Get(feed.NewBookID("Walden")); !ok {
		t.Error("rendered entry should be cached")
	}
	if !m.engine.HasHistory() {
		t.Error("the list page should be in history")
	}

	m = press(t, m, "h")
	m = pumpUntil(t, m, "LoadedFeedWithoutGroups")
	if m.mode != ModeBrowse {
		t.Errorf("mode = %v after going back, want ModeBrowse", m.mode)
	}
	if m.list.Len() != 3 {
		t.Errorf("list should be restored, got %d rows", m.list.Len())
	}
}

func TestModelLoadsMoreAtEndOfList(t *testing.T) {
	m, loader := newTestModel(t)
	m.submit(m.newFeed("acct", rootURI))
	m = pumpUntil(t, m, "LoadedFeedWithoutGroups")

	m = press(t, m, "j")
	m = press(t, m, "j")

	deadline := time.After(2 * time.Second)
	for len(m.engine.Entries()) != 3 {
		next := m.dispatch.next()
		msgs := make(chan tea.Msg, 1)
		go func() { msgs <- next() }()
		select {
		case msg := <-msgs:
			updated, _ := m.Update(msg)
			m = updated.(Model)
		case <-deadline:
			t.Fatalf("next page never appended: %d rows", m.list.Len())
		}
	}

	loader.mu.Lock()
	defer loader.mu.Unlock()
	if got := strings.Join(loader.calls, " "); !strings.HasSuffix(got, "page=2") {
		t.Errorf("loader calls = %s", got)
	}
}

func TestModelShowsFailure(t *testing.T) {
	m, _ := newTestModel(t)
	m.submit(m.newFeed("acct", "https://example.com/missing.xml"))
	m = pumpUntil(t, m, "Error")

	if got := m.statusBar.Message(); !strings.Contains(got, "Not found") {
		t.Errorf("status message = %q", got)
	}
	if m.engine.HasHistory() {
		t.Error("a failed load must not be saved to history")
	}
}

func TestModelFilterCommand(t *testing.T) {
	m, loader := newTestModel(t)
	updated, _ := m.executeCommand("filter off")
	m = updated.(Model)
	if loader.ShowOnlySupportedBooks() {
		t.Error("filter off should disable the supported-books filter")
	}
	if m.config.ShowOnlySupportedBooks {
		t.Error("config should record the filter setting")
	}

	updated, _ = m.executeCommand("filter")
	m = updated.(Model)
	if !loader.ShowOnlySupportedBooks() {
		t.Error("bare filter should toggle back on")
	}
}

func TestModelSortCommand(t *testing.T) {
	m, _ := newTestModel(t)
	m.submit(m.newFeed("acct", rootURI))
	m = pumpUntil(t, m, "LoadedFeedWithoutGroups")

	updated, _ := m.executeCommand("sort title")
	m = updated.(Model)
	row, ok := m.list.Selected()
	if !ok || row.Kind != ui.RowEntry {
		t.Fatalf("unexpected first row %+v", row)
	}
	if title := row.Entry.(feed.OPDSEntry).Entry.Title; title != "Dracula" {
		t.Errorf("first entry = %q after sorting by title, want Dracula", title)
	}
}

func TestModelUnknownAccount(t *testing.T) {
	m, _ := newTestModel(t)
	updated, cmd := m.executeCommand("account nope")
	m = updated.(Model)
	if cmd != nil {
		t.Error("unknown account should not navigate")
	}
	if !strings.Contains(m.statusBar.Message(), "Unknown account") {
		t.Errorf("status message = %q", m.statusBar.Message())
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "authentication",
			err: &feeds.Error{
				Kind:    feeds.KindAuthentication,
				URI:     "https://example.com/private",
				Problem: &browser.ProblemReport{Title: "Invalid credentials"},
			},
			want: "Authentication required for https://example.com/private: Invalid credentials",
		},
		{
			name: "wrapped not found",
			err:  fmt.Errorf("outer: %w", &feeds.Error{Kind: feeds.KindFileNotFound, URI: "asset:/x"}),
			want: "Not found: asset:/x",
		},
		{
			name: "composite facet",
			err:  &navigation.CompositeFacetError{Facet: feed.SingleFacet{Title: "French"}, Err: navigation.ErrFacetMissing},
			want: `Facet "French": required facet missing`,
		},
		{
			name: "other",
			err:  errors.New("boom"),
			want: "boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeError(tt.err); got != tt.want {
				t.Errorf("describeError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeURI(t *testing.T) {
	tests := map[string]string{
		"example.com/opds":     "https://example.com/opds",
		"http://example.com/x": "http://example.com/x",
		"asset:/catalog.xml":   "asset:/catalog.xml",
		"file:///tmp/feed.xml": "file:///tmp/feed.xml",
		"localhost:8080/opds":  "https://localhost:8080/opds",
	}
	for in, want := range tests {
		if got := NormalizeURI(in); got != want {
			t.Errorf("NormalizeURI(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDispatcherKeepsOrder(t *testing.T) {
	d := newDispatcher()
	defer d.close()

	var got []int
	for i := 0; i < 3; i++ {
		i := i
		d.send(func() { got = append(got, i) })
	}
	for i := 0; i < 3; i++ {
		msg := d.next()().(dispatchMsg)
		msg.fn()
	}
	if fmt.Sprint(got) != "[0 1 2]" {
		t.Errorf("closures ran as %v", got)
	}
}

func TestDispatcherCloseUnblocks(t *testing.T) {
	d := newDispatcher()
	d.close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.send(func() {})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked after close")
	}
	if msg := d.next()(); msg != nil {
		// Buffered closures may still be drained; either outcome is fine
		// as long as nothing blocks.
		if _, ok := msg.(dispatchMsg); !ok {
			t.Errorf("unexpected message %T", msg)
		}
	}
}
