package opds

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html/charset"
)

// SearchDescriptor is the subset of an OpenSearch 1.1 description needed
// to build catalog search URIs.
type SearchDescriptor struct {
	ShortName   string
	Description string
	Template    string
}

type openSearchDescription struct {
	XMLName     xml.Name        `xml:"OpenSearchDescription"`
	ShortName   string          `xml:"ShortName"`
	Description string          `xml:"Description"`
	URLs        []openSearchURL `xml:"Url"`
}

type openSearchURL struct {
	Type     string `xml:"type,attr"`
	Template string `xml:"template,attr"`
}

// ParseSearchDescriptor decodes an OpenSearch description and picks the
// first URL template that returns an Atom/OPDS feed.
func ParseSearchDescriptor(r io.Reader, base *url.URL) (*SearchDescriptor, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var osd openSearchDescription
	if err := dec.Decode(&osd); err != nil {
		return nil, fmt.Errorf("decode search descriptor: %w", err)
	}

	for _, u := range osd.URLs {
		if u.Template == "" || !strings.Contains(u.Type, "atom+xml") {
			continue
		}
		return &SearchDescriptor{
			ShortName:   strings.TrimSpace(osd.ShortName),
			Description: strings.TrimSpace(osd.Description),
			Template:    resolveTemplate(base, u.Template),
		}, nil
	}
	return nil, fmt.Errorf("search descriptor has no atom url template")
}

// Query expands the template with the given search terms.
func (d *SearchDescriptor) Query(terms string) (string, error) {
	if !strings.Contains(d.Template, "{searchTerms}") {
		return "", fmt.Errorf("search template has no {searchTerms}: %s", d.Template)
	}
	return strings.ReplaceAll(d.Template, "{searchTerms}", url.QueryEscape(strings.TrimSpace(terms))), nil
}

// resolveTemplate resolves a template that may be relative. The braces
// must survive, so the placeholder is swapped out around resolution.
func resolveTemplate(base *url.URL, template string) string {
	const marker = "opdsnavsearchterms"
	swapped := strings.ReplaceAll(template, "{searchTerms}", marker)
	resolved := Resolve(base, swapped)
	return strings.ReplaceAll(resolved, marker, "{searchTerms}")
}
