package navigation

import (
	"context"

	"github.com/vidyasagar/opdsnav/internal/feed"
)

// resolveComposite fetches each constituent facet page in order. Every
// page must be ungrouped and must echo its facet back as active. The last
// page is the result, since each fetch refines the previous one.
func (e *Engine) resolveComposite(ctx context.Context, r ResolvedCompositeFacet) (*feed.WithoutGroups, error) {
	// The facet may have been built without NewComposite.
	if _, err := feed.NewComposite(r.Facet.Facets); err != nil {
		return nil, err
	}

	var last *feed.WithoutGroups
	for _, single := range r.Facet.Facets {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		f, err := e.fetch(ctx, single.AccountID, single.URI, r.Credentials, r.Method)
		if err != nil {
			return nil, err
		}

		page, ok := f.(*feed.WithoutGroups)
		if !ok {
			return nil, &CompositeFacetError{Facet: single, Err: ErrGroupedFeedFacets}
		}
		if _, ok := page.ActiveFacet(single.Group, single.Title); !ok {
			return nil, &CompositeFacetError{Facet: single, Err: ErrFacetMissing}
		}
		e.logger.Debug("resolved facet", "group", single.Group, "title", single.Title, "entries", len(page.Entries))
		last = page
	}
	return last, nil
}
