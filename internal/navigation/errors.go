package navigation

import (
	"errors"
	"fmt"

	"github.com/vidyasagar/opdsnav/internal/feed"
)

var (
	ErrCancelled         = errors.New("navigation: command cancelled")
	ErrNoHistory         = errors.New("navigation: no history")
	ErrClosed            = errors.New("navigation: engine closed")
	ErrQueueFull         = errors.New("navigation: command queue full")
	ErrCloseTimeout      = errors.New("navigation: worker did not stop in time")
	ErrGroupedFeedFacets = errors.New("grouped feeds cannot have facets")
	ErrFacetMissing      = errors.New("required facet missing")
	ErrGroupedNextPage   = errors.New("next page is a grouped feed")
)

// CompositeFacetError reports which constituent of a composite facet
// failed validation.
type CompositeFacetError struct {
	Facet feed.SingleFacet
	Err   error
}

func (e *CompositeFacetError) Error() string {
	return fmt.Sprintf("resolving facet %s/%s (%s): %v", e.Facet.Group, e.Facet.Title, e.Facet.URI, e.Err)
}

func (e *CompositeFacetError) Unwrap() error {
	return e.Err
}
