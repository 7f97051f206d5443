package feed

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyComposite = errors.New("composite facet has no constituents")
	ErrMixedAccounts  = errors.New("composite facet spans several accounts")
)

// Facet is SingleFacet, CompositeFacet or PseudoFacet.
type Facet interface {
	isFacet()
}

// SingleFacet is one facet link of a catalog page.
type SingleFacet struct {
	AccountID string
	Group     string
	GroupType string
	Title     string
	URI       string
	Active    bool
}

// CompositeFacet is one logical choice the catalog can only express as
// several facet links resolved in order. Build it with NewComposite.
type CompositeFacet struct {
	Facets []SingleFacet
}

// PseudoFacet is synthesized locally and has no network representation.
type PseudoFacet struct {
	Group  string
	Title  string
	Active bool
	Sort   SortBy
}

func (SingleFacet) isFacet()    {}
func (CompositeFacet) isFacet() {}
func (PseudoFacet) isFacet()    {}

// NewComposite validates that facets is non-empty and single-account.
func NewComposite(facets []SingleFacet) (CompositeFacet, error) {
	if len(facets) == 0 {
		return CompositeFacet{}, ErrEmptyComposite
	}
	account := facets[0].AccountID
	for _, f := range facets[1:] {
		if f.AccountID != account {
			return CompositeFacet{}, fmt.Errorf("%w: %q and %q", ErrMixedAccounts, account, f.AccountID)
		}
	}
	return CompositeFacet{Facets: append([]SingleFacet(nil), facets...)}, nil
}

// AccountID returns the account shared by every constituent.
func (c CompositeFacet) AccountID() string {
	if len(c.Facets) == 0 {
		return ""
	}
	return c.Facets[0].AccountID
}

// Title joins constituent titles for display.
func (c CompositeFacet) Title() string {
	titles := make([]string, len(c.Facets))
	for i, f := range c.Facets {
		titles[i] = f.Title
	}
	return strings.Join(titles, " + ")
}

// FacetTitle returns a display title for any facet.
func FacetTitle(f Facet) string {
	switch f := f.(type) {
	case SingleFacet:
		return f.Title
	case CompositeFacet:
		return f.Title()
	case PseudoFacet:
		return f.Title
	default:
		return ""
	}
}

// IsActive reports whether a facet is the selected one of its group. A
// composite is active when all of its constituents are.
func IsActive(f Facet) bool {
	switch f := f.(type) {
	case SingleFacet:
		return f.Active
	case CompositeFacet:
		for _, s := range f.Facets {
			if !s.Active {
				return false
			}
		}
		return len(f.Facets) > 0
	case PseudoFacet:
		return f.Active
	default:
		return false
	}
}

// SortBy is a local ordering applied by pseudo facets.
type SortBy int

const (
	SortNone SortBy = iota
	SortByTitle
	SortByAuthor
)

// SortGroupName is the facet group pseudo sort facets are placed in.
const SortGroupName = "Sort by"

// PseudoSortFacets returns the local sort choices with active marked.
func PseudoSortFacets(active SortBy) FacetGroup {
	return FacetGroup{
		Name: SortGroupName,
		Facets: []Facet{
			PseudoFacet{Group: SortGroupName, Title: "Title", Sort: SortByTitle, Active: active == SortByTitle},
			PseudoFacet{Group: SortGroupName, Title: "Author", Sort: SortByAuthor, Active: active == SortByAuthor},
		},
	}
}

// SortEntries returns a sorted copy of entries. Corrupt entries sort last
// and keep their relative order.
func SortEntries(entries []Entry, by SortBy) []Entry {
	out := append([]Entry(nil), entries...)
	if by == SortNone {
		return out
	}
	key := func(e Entry) (string, bool) {
		oe, ok := e.(OPDSEntry)
		if !ok {
			return "", false
		}
		if by == SortByAuthor && len(oe.Entry.Authors) > 0 {
			return strings.ToLower(oe.Entry.Authors[0]), true
		}
		return strings.ToLower(oe.Entry.Title), true
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, oki := key(out[i])
		kj, okj := key(out[j])
		if oki != okj {
			return oki
		}
		return ki < kj
	})
	return out
}
