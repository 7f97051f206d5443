package navigation

import (
	"github.com/vidyasagar/opdsnav/internal/feed"
)

// State is what the engine currently displays.
type State interface {
	// Name is the variant name, stable for logging and tests.
	Name() string
}

// Initial is the state before any navigation.
type Initial struct{}

// Loading means a fetch for Request is in flight.
type Loading struct {
	Request Request
}

// Failed means the most recent command for Request failed.
type Failed struct {
	Request Request
	Err     error
}

type LoadedFeedWithGroups struct {
	Request Request
	Feed    *feed.WithGroups
}

type LoadedFeedWithoutGroups struct {
	Request Request
	Feed    *feed.WithoutGroups
}

// LoadedFeedEntry displays a single entry.
type LoadedFeedEntry struct {
	Request ExistingEntry
}

func (Initial) Name() string                 { return "Initial" }
func (Loading) Name() string                 { return "Loading" }
func (Failed) Name() string                  { return "Error" }
func (LoadedFeedWithGroups) Name() string    { return "LoadedFeedWithGroups" }
func (LoadedFeedWithoutGroups) Name() string { return "LoadedFeedWithoutGroups" }
func (LoadedFeedEntry) Name() string         { return "LoadedFeedEntry" }

// HistoryParticipant reports whether s may be pushed onto the back stack.
func HistoryParticipant(s State) bool {
	switch s.(type) {
	case LoadedFeedWithGroups, LoadedFeedWithoutGroups, LoadedFeedEntry:
		return true
	default:
		return false
	}
}

// loaded wraps a fetched feed in the matching terminal state.
func loaded(r Request, f feed.Feed) (State, bool) {
	switch f := f.(type) {
	case *feed.WithGroups:
		return LoadedFeedWithGroups{Request: r, Feed: f}, true
	case *feed.WithoutGroups:
		return LoadedFeedWithoutGroups{Request: r, Feed: f}, true
	default:
		return nil, false
	}
}
