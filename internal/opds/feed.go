// Package opds parses OPDS 1.x catalog documents (Atom with the OPDS
// extensions) and OpenSearch descriptors.
package opds

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Link relations used by catalogs.
const (
	RelFacet      = "http://opds-spec.org/facet"
	RelImage      = "http://opds-spec.org/image"
	RelThumbnail  = "http://opds-spec.org/image/thumbnail"
	RelCollection = "collection"
	RelNext       = "next"
	RelSearch     = "search"
	RelAlternate  = "alternate"
	RelSubsection = "subsection"
)

// Feed is a parsed catalog document.
type Feed struct {
	ID      string
	URI     string
	Title   string
	Updated time.Time
	Links   []Link
	Items   []Item
	Facets  []Facet

	// Next and SearchURI are absolute, or empty when the document has none.
	Next      string
	SearchURI string
}

// Item is one entry slot of a feed. Exactly one of Entry and Err is set;
// Err marks an entry that was present in the document but could not be
// interpreted.
type Item struct {
	Entry *Entry
	ID    string
	Err   error
}

// Entry is a single catalog item.
type Entry struct {
	ID           string
	Title        string
	Authors      []string
	Summary      string
	Content      string
	Publisher    string
	Published    time.Time
	Updated      time.Time
	Categories   []string
	Cover        string
	Thumbnail    string
	Alternate    string
	// Subsection is the catalog a navigation entry leads to.
	Subsection   string
	Groups       []Link
	Acquisitions []Acquisition
}

// Link is an Atom link with absolute href.
type Link struct {
	Href  string
	Rel   string
	Type  string
	Title string
}

// Facet is a facet link advertised by a feed.
type Facet struct {
	Group     string
	GroupType string
	Title     string
	URI       string
	Active    bool
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	ID      string      `xml:"id"`
	Title   string      `xml:"title"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    atomText       `xml:"summary"`
	Content    atomText       `xml:"content"`
	Published  string         `xml:"published"`
	Issued     string         `xml:"issued"`
	Updated    string         `xml:"updated"`
	Publisher  string         `xml:"publisher"`
	Authors    []atomPerson   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Links      []atomLink     `xml:"link"`
}

type atomText struct {
	Type  string `xml:"type,attr"`
	Text  string `xml:",chardata"`
	Inner string `xml:",innerxml"`
}

type atomPerson struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term  string `xml:"term,attr"`
	Label string `xml:"label,attr"`
}

type atomLink struct {
	Href           string                `xml:"href,attr"`
	Rel            string                `xml:"rel,attr"`
	Type           string                `xml:"type,attr"`
	Title          string                `xml:"title,attr"`
	FacetGroup     string                `xml:"facetGroup,attr"`
	FacetGroupType string                `xml:"facetGroupType,attr"`
	ActiveFacet    string                `xml:"activeFacet,attr"`
	Indirect       []indirectAcquisition `xml:"indirectAcquisition"`
}

type indirectAcquisition struct {
	Type     string                `xml:"type,attr"`
	Children []indirectAcquisition `xml:"indirectAcquisition"`
}

// Parse decodes a catalog document. base is the URI the document was
// fetched from; relative links are resolved against it.
func Parse(r io.Reader, base *url.URL) (*Feed, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var af atomFeed
	if err := dec.Decode(&af); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	f := &Feed{
		ID:    strings.TrimSpace(af.ID),
		Title: strings.TrimSpace(af.Title),
	}
	if base != nil {
		f.URI = base.String()
	}
	if af.Updated != "" {
		if t, err := parseTime(af.Updated); err == nil {
			f.Updated = t
		}
	}

	for _, l := range af.Links {
		link := resolveLink(base, l)
		switch {
		case l.Rel == RelFacet:
			f.Facets = append(f.Facets, Facet{
				Group:     strings.TrimSpace(l.FacetGroup),
				GroupType: l.FacetGroupType,
				Title:     strings.TrimSpace(l.Title),
				URI:       link.Href,
				Active:    strings.EqualFold(l.ActiveFacet, "true"),
			})
		case l.Rel == RelNext && f.Next == "":
			f.Next = link.Href
		case l.Rel == RelSearch && f.SearchURI == "" && isOpenSearchType(l.Type):
			f.SearchURI = link.Href
		}
		f.Links = append(f.Links, link)
	}

	f.Items = make([]Item, 0, len(af.Entries))
	for i, ae := range af.Entries {
		entry, err := convertEntry(base, ae)
		if err != nil {
			f.Items = append(f.Items, Item{
				ID:  strings.TrimSpace(ae.ID),
				Err: fmt.Errorf("entry %d: %w", i, err),
			})
			continue
		}
		f.Items = append(f.Items, Item{Entry: entry, ID: entry.ID})
	}

	return f, nil
}

func convertEntry(base *url.URL, ae atomEntry) (*Entry, error) {
	e := &Entry{
		ID:        strings.TrimSpace(ae.ID),
		Title:     strings.TrimSpace(ae.Title),
		Publisher: strings.TrimSpace(ae.Publisher),
	}
	if e.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	if e.Title == "" {
		return nil, fmt.Errorf("missing title")
	}

	if ae.Updated != "" {
		t, err := parseTime(ae.Updated)
		if err != nil {
			return nil, fmt.Errorf("updated: %w", err)
		}
		e.Updated = t
	}
	published := ae.Published
	if published == "" {
		published = ae.Issued
	}
	if published != "" {
		if t, err := parseTime(published); err == nil {
			e.Published = t
		}
	}

	for _, a := range ae.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			e.Authors = append(e.Authors, name)
		}
	}
	for _, c := range ae.Categories {
		label := c.Label
		if label == "" {
			label = c.Term
		}
		if label != "" {
			e.Categories = append(e.Categories, label)
		}
	}

	e.Content = ae.Content.markup()
	e.Summary = ae.Summary.plain()
	if e.Summary == "" && e.Content != "" {
		e.Summary = plainText(e.Content)
	}

	for _, l := range ae.Links {
		link := resolveLink(base, l)
		switch {
		case isAcquisitionRel(l.Rel):
			e.Acquisitions = append(e.Acquisitions, Acquisition{
				Relation: ParseRelation(l.Rel),
				URI:      link.Href,
				Type:     l.Type,
				Indirect: convertIndirect(l.Indirect),
			})
		case l.Rel == RelImage:
			e.Cover = link.Href
		case l.Rel == RelThumbnail:
			e.Thumbnail = link.Href
		case l.Rel == RelCollection:
			e.Groups = append(e.Groups, link)
		case l.Rel == RelSubsection || (isCatalogType(l.Type) && e.Subsection == ""):
			if e.Subsection == "" {
				e.Subsection = link.Href
			}
		case l.Rel == RelAlternate || l.Rel == "":
			if e.Alternate == "" {
				e.Alternate = link.Href
			}
		}
	}

	return e, nil
}

func (t atomText) markup() string {
	if t.Type == "xhtml" {
		return strings.TrimSpace(t.Inner)
	}
	return strings.TrimSpace(t.Text)
}

func (t atomText) plain() string {
	switch t.Type {
	case "html", "xhtml":
		return plainText(t.markup())
	default:
		return collapseSpace(t.Text)
	}
}

// plainText reduces an HTML fragment to its text content.
func plainText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}
	return collapseSpace(doc.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolveLink(base *url.URL, l atomLink) Link {
	return Link{
		Href:  Resolve(base, l.Href),
		Rel:   l.Rel,
		Type:  l.Type,
		Title: strings.TrimSpace(l.Title),
	}
}

// Resolve makes href absolute against base. Unparseable hrefs are
// returned unchanged.
func Resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil || href == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func isCatalogType(t string) bool {
	return strings.HasPrefix(t, "application/atom+xml") && strings.Contains(t, "profile=opds-catalog") && !strings.Contains(t, "type=entry")
}

func isOpenSearchType(t string) bool {
	return t == "" || strings.HasPrefix(t, "application/opensearchdescription+xml")
}
