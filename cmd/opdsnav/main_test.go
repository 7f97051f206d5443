package main

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/vidyasagar/opdsnav/internal/feed"
	"github.com/vidyasagar/opdsnav/internal/feeds"
)

func TestBundledWelcomeCatalog(t *testing.T) {
	assets, err := fs.Sub(bundled, "assets")
	if err != nil {
		t.Fatalf("fs.Sub returned error: %v", err)
	}
	l, err := feeds.NewLoader(feeds.Options{Assets: assets, ShowOnlySupportedBooks: true})
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}

	f, err := l.Fetch(context.Background(), "", welcomeURI, nil, "")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	wg, ok := f.(*feed.WithoutGroups)
	if !ok {
		t.Fatalf("expected an ungrouped feed, got %T", f)
	}
	if len(wg.Entries) != 3 {
		t.Fatalf("expected 3 catalogs, got %d", len(wg.Entries))
	}
	for _, e := range wg.Entries {
		oe, ok := e.(feed.OPDSEntry)
		if !ok {
			t.Fatalf("unexpected entry %T", e)
		}
		if !strings.HasPrefix(oe.Entry.Subsection, "https://") {
			t.Errorf("%s: subsection = %q", oe.Entry.Title, oe.Entry.Subsection)
		}
	}
}

func TestDescribe(t *testing.T) {
	f := &feed.WithoutGroups{Entries: make([]feed.Entry, 2), Next: "https://example.com/2"}
	if got := describe(f); got != "2 entries, more pages" {
		t.Errorf("describe() = %q", got)
	}
	g := &feed.WithGroups{Groups: make([]feed.Group, 3)}
	if got := describe(g); got != "3 groups" {
		t.Errorf("describe() = %q", got)
	}
}
