package feeds

import (
	"mime"
	"strings"

	"github.com/vidyasagar/opdsnav/internal/feed"
	"github.com/vidyasagar/opdsnav/internal/opds"
)

// FormatSupport decides whether the application can act on a linearized
// acquisition path (outermost media type first).
type FormatSupport interface {
	Supports(path []string) bool
}

// FormatSupportFunc adapts a function to FormatSupport.
type FormatSupportFunc func(path []string) bool

func (f FormatSupportFunc) Supports(path []string) bool {
	return f(path)
}

// MediaTypes supports a path when every media type along it is in the
// set. Parameters are ignored when comparing.
type MediaTypes map[string]bool

// NewMediaTypes builds a set from media type strings.
func NewMediaTypes(types ...string) MediaTypes {
	m := make(MediaTypes, len(types))
	for _, t := range types {
		if base := baseMediaType(t); base != "" {
			m[base] = true
		}
	}
	return m
}

// DefaultMediaTypes are the formats a reader application typically opens.
func DefaultMediaTypes() MediaTypes {
	return NewMediaTypes(
		"application/epub+zip",
		"application/pdf",
		"application/audiobook+json",
		"application/vnd.adobe.adept+xml",
		"application/atom+xml",
	)
}

func (m MediaTypes) Supports(path []string) bool {
	if len(path) == 0 {
		return false
	}
	for _, t := range path {
		if !m[baseMediaType(t)] {
			return false
		}
	}
	return true
}

func baseMediaType(t string) string {
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(t))
	}
	return mt
}

// SupportedRelation reports whether an acquisition relation is one the
// application can complete without payment or subscription flows.
func SupportedRelation(r opds.Relation) bool {
	switch r {
	case opds.RelationBorrow, opds.RelationGeneric, opds.RelationOpenAccess:
		return true
	default:
		return false
	}
}

// acceptable reports whether e has at least one acquisition with a
// supported relation and a supported format path. Entries without any
// acquisition are navigation entries and always pass.
func acceptable(e *opds.Entry, formats FormatSupport) bool {
	if len(e.Acquisitions) == 0 {
		return true
	}
	for _, a := range e.Acquisitions {
		if !SupportedRelation(a.Relation) {
			continue
		}
		for _, path := range a.Paths() {
			if formats.Supports(path) {
				return true
			}
		}
	}
	return false
}

// keep applies the filter to a converted entry. Corrupt entries pass.
func keep(e feed.Entry, onlySupported bool, formats FormatSupport) bool {
	if !onlySupported {
		return true
	}
	opdsEntry, ok := e.(feed.OPDSEntry)
	if !ok {
		return true
	}
	return acceptable(&opdsEntry.Entry, formats)
}
