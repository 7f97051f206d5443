package feeds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/vidyasagar/opdsnav/internal/browser"
	"github.com/vidyasagar/opdsnav/internal/feed"
)

const ungroupedCatalog = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opds="http://opds-spec.org/2010/catalog">
  <id>urn:catalog:list</id>
  <title>Fiction</title>
  <link rel="next" href="/page2.xml" type="application/atom+xml;profile=opds-catalog;kind=acquisition"/>
  <link rel="search" href="/search.xml" type="application/opensearchdescription+xml"/>
  <link rel="http://opds-spec.org/facet" href="/fiction.xml?format=ebook" title="Ebooks" opds:facetGroup="Format" opds:activeFacet="true"/>
  <link rel="http://opds-spec.org/facet" href="/fiction.xml?format=audio" title="Audiobooks" opds:facetGroup="Format"/>
  <link rel="http://opds-spec.org/facet" href="/fiction.xml?lang=en" title="English" opds:facetGroup="Language"/>
  <entry>
    <id>urn:book:free</id>
    <title>Free Book</title>
    <updated>2024-01-01T00:00:00Z</updated>
    <link rel="http://opds-spec.org/acquisition/open-access" href="/free.epub" type="application/epub+zip"/>
  </entry>
  <entry>
    <id>urn:book:paid</id>
    <title>Paid Book</title>
    <updated>2024-01-01T00:00:00Z</updated>
    <link rel="http://opds-spec.org/acquisition/buy" href="/buy" type="application/epub+zip"/>
  </entry>
  <entry>
    <title>No identifier</title>
  </entry>
  <entry>
    <id>urn:book:borrow</id>
    <title>Borrowable</title>
    <updated>2024-01-01T00:00:00Z</updated>
    <link rel="http://opds-spec.org/acquisition/borrow" href="/borrow" type="application/atom+xml;type=entry;profile=opds-catalog">
      <opds:indirectAcquisition type="application/vnd.adobe.adept+xml">
        <opds:indirectAcquisition type="application/epub+zip"/>
      </opds:indirectAcquisition>
    </link>
  </entry>
</feed>`

const groupedCatalog = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opds="http://opds-spec.org/2010/catalog">
  <id>urn:catalog:home</id>
  <title>Home</title>
  <link rel="http://opds-spec.org/facet" href="/ignored" title="Ignored" opds:facetGroup="G"/>
  <entry>
    <id>urn:book:1</id>
    <title>One</title>
    <link rel="collection" href="/new.xml" title="New"/>
    <link rel="http://opds-spec.org/acquisition" href="/1.epub" type="application/epub+zip"/>
  </entry>
  <entry>
    <id>urn:book:2</id>
    <title>Two</title>
    <link rel="collection" href="/popular.xml" title="Popular"/>
    <link rel="collection" href="/new.xml" title="New"/>
    <link rel="http://opds-spec.org/acquisition" href="/2.epub" type="application/epub+zip"/>
  </entry>
  <entry>
    <id>urn:book:3</id>
    <title>Loose</title>
    <link rel="http://opds-spec.org/acquisition" href="/3.epub" type="application/epub+zip"/>
  </entry>
</feed>`

const searchDescriptor = `<?xml version="1.0" encoding="UTF-8"?>
<OpenSearchDescription xmlns="http://a9.com/-/spec/opensearch/1.1/">
  <ShortName>Search</ShortName>
  <Description>Search the catalog</Description>
  <Url type="application/atom+xml;profile=opds-catalog" template="/search?q={searchTerms}"/>
</OpenSearchDescription>`

func catalogServer(t *testing.T, searchHits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/fiction.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(ungroupedCatalog))
	})
	mux.HandleFunc("/home.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(groupedCatalog))
	})
	mux.HandleFunc("/search.xml", func(w http.ResponseWriter, r *http.Request) {
		if searchHits != nil {
			searchHits.Add(1)
		}
		w.Write([]byte(searchDescriptor))
	})
	mux.HandleFunc("/private.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/api-problem+json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"title":"Invalid credentials","status":401}`))
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not xml"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestLoader(t *testing.T, srv *httptest.Server, onlySupported bool) *Loader {
	t.Helper()
	l, err := NewLoader(Options{
		Transport:              browser.NewFetcher(browser.WithHTTPClient(srv.Client())),
		ShowOnlySupportedBooks: onlySupported,
	})
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}
	return l
}

func TestFetchUngroupedFiltersUnsupported(t *testing.T) {
	srv := catalogServer(t, nil)
	l := newTestLoader(t, srv, true)

	f, err := l.Fetch(context.Background(), "acct", srv.URL+"/fiction.xml", nil, "")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	list, ok := f.(*feed.WithoutGroups)
	if !ok {
		t.Fatalf("expected *feed.WithoutGroups, got %T", f)
	}

	// free, corrupt, borrow; the buy-only entry is filtered
	if len(list.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list.Entries))
	}
	if _, ok := list.Entries[1].(feed.CorruptEntry); !ok {
		t.Fatalf("expected corrupt entry at index 1, got %T", list.Entries[1])
	}
	if got := list.Entries[2].(feed.OPDSEntry).Entry.Title; got != "Borrowable" {
		t.Fatalf("unexpected entry %q", got)
	}
	if list.Next != srv.URL+"/page2.xml" {
		t.Errorf("unexpected next %q", list.Next)
	}
	if len(list.FacetsByGroup) != 2 || list.FacetsByGroup[0].Name != "Format" || len(list.FacetsByGroup[0].Facets) != 2 {
		t.Fatalf("unexpected facet groups: %+v", list.FacetsByGroup)
	}
	if _, ok := list.ActiveFacet("Format", "Ebooks"); !ok {
		t.Error("expected active Ebooks facet")
	}
	if list.Search == nil || list.Search.Template != srv.URL+"/search?q={searchTerms}" {
		t.Fatalf("unexpected search descriptor: %+v", list.Search)
	}
}

const navigationCatalog = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <id>urn:catalog:start</id>
  <title>Start</title>
  <entry>
    <id>urn:nav:fiction</id>
    <title>Fiction</title>
    <link rel="subsection" href="https://example.com/fiction.xml" type="application/atom+xml;profile=opds-catalog;kind=acquisition"/>
  </entry>
  <entry>
    <id>urn:book:paid</id>
    <title>Paid Book</title>
    <link rel="http://opds-spec.org/acquisition/buy" href="https://example.com/buy" type="application/epub+zip"/>
  </entry>
</feed>`

// Navigation entries have no acquisitions at all; the supported-books
// filter keeps them so catalogs stay browsable.
func TestFilterKeepsNavigationEntries(t *testing.T) {
	l, err := NewLoader(Options{
		Assets:                 fstest.MapFS{"start.xml": &fstest.MapFile{Data: []byte(navigationCatalog)}},
		ShowOnlySupportedBooks: true,
	})
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}

	f, err := l.Fetch(context.Background(), "acct", "asset:start.xml", nil, "")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	entries := f.(*feed.WithoutGroups).Entries
	if len(entries) != 1 {
		t.Fatalf("expected only the navigation entry, got %d entries", len(entries))
	}
	oe, ok := entries[0].(feed.OPDSEntry)
	if !ok || oe.Entry.Title != "Fiction" || len(oe.Entry.Acquisitions) != 0 {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestFetchFilterDisabledKeepsEverything(t *testing.T) {
	srv := catalogServer(t, nil)
	l := newTestLoader(t, srv, true)
	l.SetShowOnlySupportedBooks(false)

	f, err := l.Fetch(context.Background(), "acct", srv.URL+"/fiction.xml", nil, "")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if n := len(f.(*feed.WithoutGroups).Entries); n != 4 {
		t.Fatalf("expected 4 entries, got %d", n)
	}
}

func TestFetchCustomFormatSupport(t *testing.T) {
	srv := catalogServer(t, nil)
	l, err := NewLoader(Options{
		Transport:              browser.NewFetcher(browser.WithHTTPClient(srv.Client())),
		ShowOnlySupportedBooks: true,
		Formats:                NewMediaTypes("application/epub+zip"),
	})
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}

	f, err := l.Fetch(context.Background(), "acct", srv.URL+"/fiction.xml", nil, "")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	// the borrow path goes through ACSM, which is not supported here
	if n := len(f.(*feed.WithoutGroups).Entries); n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
}

func TestFetchGrouped(t *testing.T) {
	srv := catalogServer(t, nil)
	l := newTestLoader(t, srv, true)

	f, err := l.Fetch(context.Background(), "acct", srv.URL+"/home.xml", nil, "")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	groups, ok := f.(*feed.WithGroups)
	if !ok {
		t.Fatalf("expected *feed.WithGroups, got %T", f)
	}
	if len(groups.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups.Groups))
	}
	if groups.Groups[0].Title != "New" || len(groups.Groups[0].Entries) != 2 {
		t.Errorf("unexpected first group: %+v", groups.Groups[0])
	}
	if groups.Groups[1].Title != "Popular" || len(groups.Groups[1].Entries) != 1 {
		t.Errorf("unexpected second group: %+v", groups.Groups[1])
	}
}

func TestFetchUnauthorized(t *testing.T) {
	srv := catalogServer(t, nil)
	l := newTestLoader(t, srv, true)

	_, err := l.Fetch(context.Background(), "acct", srv.URL+"/private.xml", browser.BasicCredentials{Username: "u", Password: "p"}, "")

	var ferr *Error
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ferr.Kind != KindAuthentication {
		t.Errorf("expected KindAuthentication, got %v", ferr.Kind)
	}
	if ferr.Problem == nil || ferr.Problem.Title != "Invalid credentials" {
		t.Errorf("expected problem report, got %+v", ferr.Problem)
	}
}

func TestFetchGeneralFailures(t *testing.T) {
	srv := catalogServer(t, nil)
	l := newTestLoader(t, srv, true)

	for _, path := range []string{"/broken.xml", "/missing.xml"} {
		_, err := l.Fetch(context.Background(), "acct", srv.URL+path, nil, "")
		var ferr *Error
		if !errors.As(err, &ferr) || ferr.Kind != KindGeneral {
			t.Errorf("%s: expected general failure, got %v", path, err)
		}
	}
}

func TestSearchDescriptorIsCached(t *testing.T) {
	var hits atomic.Int32
	srv := catalogServer(t, &hits)
	l := newTestLoader(t, srv, false)

	for i := 0; i < 3; i++ {
		if _, err := l.Fetch(context.Background(), "acct", srv.URL+"/fiction.xml", nil, ""); err != nil {
			t.Fatalf("Fetch returned error: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 descriptor fetch, got %d", hits.Load())
	}
}

func TestSearchDescriptorFailureIsNotFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fiction.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ungroupedCatalog))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	l := newTestLoader(t, srv, false)

	f, err := l.Fetch(context.Background(), "acct", srv.URL+"/fiction.xml", nil, "")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if f.(*feed.WithoutGroups).Search != nil {
		t.Fatal("expected no search descriptor")
	}
}

func TestFetchAsset(t *testing.T) {
	assets := fstest.MapFS{
		"catalogs/root.xml": &fstest.MapFile{Data: []byte(ungroupedCatalog)},
	}
	l, err := NewLoader(Options{Assets: assets})
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}

	f, err := l.Fetch(context.Background(), "acct", "asset:catalogs/root.xml", nil, "")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if n := len(f.(*feed.WithoutGroups).Entries); n != 4 {
		t.Fatalf("expected 4 entries, got %d", n)
	}

	_, err = l.Fetch(context.Background(), "acct", "asset:catalogs/missing.xml", nil, "")
	var ferr *Error
	if !errors.As(err, &ferr) || ferr.Kind != KindFileNotFound {
		t.Fatalf("expected file not found, got %v", err)
	}
}

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.xml")
	if err := os.WriteFile(path, []byte(groupedCatalog), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	l, err := NewLoader(Options{})
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}

	f, err := l.Fetch(context.Background(), "acct", "file://"+filepath.ToSlash(path), nil, "")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if _, ok := f.(*feed.WithGroups); !ok {
		t.Fatalf("expected grouped feed, got %T", f)
	}

	_, err = l.Fetch(context.Background(), "acct", "file:///does/not/exist.xml", nil, "")
	var ferr *Error
	if !errors.As(err, &ferr) || ferr.Kind != KindFileNotFound {
		t.Fatalf("expected file not found, got %v", err)
	}
}

func TestMediaTypesIgnoresParameters(t *testing.T) {
	m := NewMediaTypes("application/atom+xml", "application/epub+zip")
	if !m.Supports([]string{"application/atom+xml;type=entry;profile=opds-catalog", "application/epub+zip"}) {
		t.Error("expected path to be supported")
	}
	if m.Supports(nil) {
		t.Error("empty path must not be supported")
	}
	if m.Supports([]string{"application/pdf"}) {
		t.Error("pdf is not in the set")
	}
}
