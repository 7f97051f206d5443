package feed

import (
	"github.com/google/uuid"

	"github.com/vidyasagar/opdsnav/internal/opds"
)

// Entry is either OPDSEntry or CorruptEntry.
type Entry interface {
	isEntry()
}

// OPDSEntry is a successfully parsed catalog item.
type OPDSEntry struct {
	AccountID string
	BookID    string
	Entry     opds.Entry
}

// CorruptEntry stands in for an item that failed to parse, so that list
// positions stay stable.
type CorruptEntry struct {
	AccountID string
	BookID    string
	Err       error
}

func (OPDSEntry) isEntry()    {}
func (CorruptEntry) isEntry() {}

// NewBookID derives a stable book identifier from a catalog entry ID.
func NewBookID(entryID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(entryID)).String()
}

// BookIDOf returns the book identifier of any entry.
func BookIDOf(e Entry) string {
	switch e := e.(type) {
	case OPDSEntry:
		return e.BookID
	case CorruptEntry:
		return e.BookID
	default:
		return ""
	}
}

// AccountIDOf returns the owning account of any entry.
func AccountIDOf(e Entry) string {
	switch e := e.(type) {
	case OPDSEntry:
		return e.AccountID
	case CorruptEntry:
		return e.AccountID
	default:
		return ""
	}
}
