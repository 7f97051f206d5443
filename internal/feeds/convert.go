package feeds

import (
	"fmt"

	"github.com/vidyasagar/opdsnav/internal/feed"
	"github.com/vidyasagar/opdsnav/internal/opds"
)

// convert turns a parsed document into a feed. Any entry with a
// collection link makes the whole page grouped; grouped pages drop
// entries outside a collection and drop facets.
func convert(accountID string, doc *opds.Feed, search *opds.SearchDescriptor, onlySupported bool, formats FormatSupport) feed.Feed {
	entries := make([]feed.Entry, 0, len(doc.Items))
	grouped := false
	for i, item := range doc.Items {
		e := convertItem(accountID, doc.URI, i, item)
		if !keep(e, onlySupported, formats) {
			continue
		}
		if item.Entry != nil && len(item.Entry.Groups) > 0 {
			grouped = true
		}
		entries = append(entries, e)
	}

	if grouped {
		return &feed.WithGroups{
			URI:    doc.URI,
			Title:  doc.Title,
			Groups: groupEntries(entries),
			Search: search,
		}
	}
	return &feed.WithoutGroups{
		URI:           doc.URI,
		Title:         doc.Title,
		Entries:       entries,
		FacetsByGroup: groupFacets(accountID, doc.Facets),
		Next:          doc.Next,
		Search:        search,
	}
}

func convertItem(accountID, docURI string, index int, item opds.Item) feed.Entry {
	if item.Entry != nil {
		return feed.OPDSEntry{
			AccountID: accountID,
			BookID:    feed.NewBookID(item.Entry.ID),
			Entry:     *item.Entry,
		}
	}
	key := item.ID
	if key == "" {
		key = fmt.Sprintf("%s#%d", docURI, index)
	}
	return feed.CorruptEntry{
		AccountID: accountID,
		BookID:    feed.NewBookID(key),
		Err:       item.Err,
	}
}

// groupEntries buckets entries by collection in order of first
// appearance. An entry in several collections appears in each.
func groupEntries(entries []feed.Entry) []feed.Group {
	var groups []feed.Group
	index := make(map[string]int)
	for _, e := range entries {
		opdsEntry, ok := e.(feed.OPDSEntry)
		if !ok {
			continue
		}
		for _, link := range opdsEntry.Entry.Groups {
			i, seen := index[link.Href]
			if !seen {
				i = len(groups)
				index[link.Href] = i
				groups = append(groups, feed.Group{Title: link.Title, URI: link.Href})
			}
			groups[i].Entries = append(groups[i].Entries, e)
		}
	}
	return groups
}

func groupFacets(accountID string, facets []opds.Facet) []feed.FacetGroup {
	var groups []feed.FacetGroup
	index := make(map[string]int)
	for _, f := range facets {
		i, seen := index[f.Group]
		if !seen {
			i = len(groups)
			index[f.Group] = i
			groups = append(groups, feed.FacetGroup{Name: f.Group})
		}
		groups[i].Facets = append(groups[i].Facets, feed.SingleFacet{
			AccountID: accountID,
			Group:     f.Group,
			GroupType: f.GroupType,
			Title:     f.Title,
			URI:       f.URI,
			Active:    f.Active,
		})
	}
	return groups
}
