// Package feed holds the immutable values a catalog page is turned into:
// grouped and ungrouped feeds, their entries and facets.
package feed

import (
	"github.com/vidyasagar/opdsnav/internal/opds"
)

// Feed is either *WithGroups or *WithoutGroups.
type Feed interface {
	isFeed()
}

// WithGroups is a catalog page organized into named collections. Grouped
// pages never carry navigable facets.
type WithGroups struct {
	URI    string
	Title  string
	Groups []Group
	Search *opds.SearchDescriptor
}

// WithoutGroups is a flat, paginated list of entries.
type WithoutGroups struct {
	URI           string
	Title         string
	Entries       []Entry
	FacetsByGroup []FacetGroup

	// Next is the URI of the following page, empty on the last page.
	Next   string
	Search *opds.SearchDescriptor
}

func (*WithGroups) isFeed()    {}
func (*WithoutGroups) isFeed() {}

// Group is one named collection of a grouped feed.
type Group struct {
	Title   string
	URI     string
	Entries []Entry
}

// FacetGroup is the ordered set of facets sharing a group name.
type FacetGroup struct {
	Name   string
	Facets []Facet
}

// HasNext reports whether another page can be loaded.
func (f *WithoutGroups) HasNext() bool {
	return f.Next != ""
}

// Append returns a new feed holding f's entries followed by page's, with
// the next-page pointer taken from page. f is not modified.
func (f *WithoutGroups) Append(page *WithoutGroups) *WithoutGroups {
	entries := make([]Entry, 0, len(f.Entries)+len(page.Entries))
	entries = append(entries, f.Entries...)
	entries = append(entries, page.Entries...)

	search := f.Search
	if search == nil {
		search = page.Search
	}
	return &WithoutGroups{
		URI:           f.URI,
		Title:         f.Title,
		Entries:       entries,
		FacetsByGroup: f.FacetsByGroup,
		Next:          page.Next,
		Search:        search,
	}
}

// ActiveFacet finds an active single facet by group name and title.
func (f *WithoutGroups) ActiveFacet(group, title string) (SingleFacet, bool) {
	for _, fg := range f.FacetsByGroup {
		if fg.Name != group {
			continue
		}
		for _, facet := range fg.Facets {
			single, ok := facet.(SingleFacet)
			if ok && single.Active && single.Title == title {
				return single, true
			}
		}
	}
	return SingleFacet{}, false
}

// TitleOf returns a display title for any feed.
func TitleOf(f Feed) string {
	switch f := f.(type) {
	case *WithGroups:
		return f.Title
	case *WithoutGroups:
		return f.Title
	default:
		return ""
	}
}
