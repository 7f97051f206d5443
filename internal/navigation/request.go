package navigation

import (
	"github.com/vidyasagar/opdsnav/internal/browser"
	"github.com/vidyasagar/opdsnav/internal/feed"
)

// Request is NewFeed, ExistingEntry or ResolvedCompositeFacet. Requests
// are immutable once submitted.
type Request interface {
	isRequest()
}

// NewFeed fetches and displays a catalog page.
type NewFeed struct {
	AccountID   string
	URI         string
	Credentials browser.Credentials
	Method      string
}

// ExistingEntry displays an already fetched entry without a fetch.
type ExistingEntry struct {
	Entry feed.Entry
}

// ResolvedCompositeFacet fetches each constituent facet page in order and
// displays the combined result.
type ResolvedCompositeFacet struct {
	Facet       feed.CompositeFacet
	Credentials browser.Credentials
	Method      string
}

func (NewFeed) isRequest()                {}
func (ExistingEntry) isRequest()          {}
func (ResolvedCompositeFacet) isRequest() {}

// requestAuth returns the account and credentials a request was made
// with, for fetching follow-up pages.
func requestAuth(r Request) (accountID string, creds browser.Credentials) {
	switch r := r.(type) {
	case NewFeed:
		return r.AccountID, r.Credentials
	case ResolvedCompositeFacet:
		return r.Facet.AccountID(), r.Credentials
	case ExistingEntry:
		return feed.AccountIDOf(r.Entry), nil
	default:
		return "", nil
	}
}
