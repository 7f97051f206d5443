// Package navigation serializes catalog navigation through a single
// worker goroutine and publishes the resulting states to observers.
package navigation

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vidyasagar/opdsnav/internal/browser"
	"github.com/vidyasagar/opdsnav/internal/feed"
)

const (
	queueCapacity = 10
	closeTimeout  = 2 * time.Second
)

// Loader fetches one catalog page. *feeds.Loader implements it.
type Loader interface {
	Fetch(ctx context.Context, accountID, uri string, creds browser.Credentials, method string) (feed.Feed, error)
}

// Options configure an Engine. Zero values select defaults.
type Options struct {
	// Dispatch runs fn on the goroutine observers read from. Closures
	// must run in the order they are dispatched. Defaults to running fn
	// inline.
	Dispatch func(fn func())

	// CheckCaller is called at the top of Submit, LoadMore and GoBack to
	// assert the caller's goroutine discipline.
	CheckCaller func()

	Logger *log.Logger
}

type commandKind int

const (
	cmdSubmit commandKind = iota
	cmdLoadMore
	cmdGoBack
)

func (k commandKind) String() string {
	switch k {
	case cmdLoadMore:
		return "load-more"
	case cmdGoBack:
		return "go-back"
	default:
		return "submit"
	}
}

type command struct {
	kind    commandKind
	request Request
	future  *Future
	ctx     context.Context
	cancel  context.CancelFunc
}

// abort cancels c and completes its future as cancelled.
func (c *command) abort() {
	c.cancel()
	c.future.complete(ErrCancelled)
}

// Engine is the navigation actor. All state and history mutation happens
// on its worker goroutine; readers only see published snapshots.
type Engine struct {
	loader      Loader
	dispatch    func(func())
	checkCaller func()
	logger      *log.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	commands chan *command
	stop     chan struct{}
	stopped  chan struct{}

	pendingMu sync.Mutex
	pending   map[*command]struct{}
	closed    bool

	// Owned by the worker.
	state         State
	beforeLoading State
	entries       []feed.Entry
	groups        []feed.Group
	history       *browser.History[State]

	mirror *mirror
}

// New starts an engine in the Initial state.
func New(loader Loader, opts Options) *Engine {
	e := &Engine{
		loader:      loader,
		dispatch:    opts.Dispatch,
		checkCaller: opts.CheckCaller,
		logger:      opts.Logger,
		commands:    make(chan *command, queueCapacity),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
		pending:     make(map[*command]struct{}),
		state:       Initial{},
		history:     browser.NewHistory[State](),
	}
	if e.dispatch == nil {
		e.dispatch = func(fn func()) { fn() }
	}
	if e.checkCaller == nil {
		e.checkCaller = func() {}
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	e.beforeLoading = e.state
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.mirror = newMirror(snapshot{state: e.state})

	go e.run()
	return e
}

// Submit cancels all pending work and navigates to r.
func (e *Engine) Submit(r Request) *Future {
	e.checkCaller()
	if r == nil {
		return completedFuture(fmt.Errorf("navigation: nil request"))
	}
	return e.enqueue(cmdSubmit, r, true)
}

// LoadMore appends the next page of the current ungrouped feed. It is a
// no-op unless the current state is LoadedFeedWithoutGroups with a next
// page. Pending work is not cancelled.
func (e *Engine) LoadMore() *Future {
	e.checkCaller()
	return e.enqueue(cmdLoadMore, nil, false)
}

// GoBack cancels pending work and reinstalls the most recent history
// state. It fails with ErrNoHistory when the stack is empty.
func (e *Engine) GoBack() *Future {
	e.checkCaller()
	return e.enqueue(cmdGoBack, nil, true)
}

// Close stops accepting commands, cancels all pending work and waits a
// bounded time for the worker to exit.
func (e *Engine) Close() error {
	e.pendingMu.Lock()
	if e.closed {
		e.pendingMu.Unlock()
		return nil
	}
	e.closed = true
	for c := range e.pending {
		c.abort()
	}
	e.pending = make(map[*command]struct{})
	e.pendingMu.Unlock()

	e.cancel()
	close(e.stop)

	select {
	case <-e.stopped:
	case <-time.After(closeTimeout):
		e.logger.Warn("navigation worker still running after close")
		return ErrCloseTimeout
	}
	e.history.Clear()
	e.mirror.closeAll()
	return nil
}

// State returns the most recently published state.
func (e *Engine) State() State {
	return e.mirror.get().state
}

// Entries returns the entries of the most recent ungrouped feed.
func (e *Engine) Entries() []feed.Entry {
	return e.mirror.get().entries
}

// Groups returns the groups of the most recent grouped feed.
func (e *Engine) Groups() []feed.Group {
	return e.mirror.get().groups
}

// HasHistory reports whether GoBack has somewhere to go.
func (e *Engine) HasHistory() bool {
	return e.mirror.get().hasHistory
}

// Subscribe returns a channel that receives every published state,
// starting with the current one, and a function that ends the
// subscription. A subscriber that falls behind misses states.
func (e *Engine) Subscribe() (<-chan State, func()) {
	return e.mirror.subscribe()
}

func (e *Engine) enqueue(kind commandKind, r Request, replace bool) *Future {
	ctx, cancel := context.WithCancel(e.ctx)
	c := &command{kind: kind, request: r, future: newFuture(), ctx: ctx, cancel: cancel}

	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	if e.closed {
		cancel()
		c.future.complete(ErrClosed)
		return c.future
	}
	if replace {
		for p := range e.pending {
			p.abort()
			delete(e.pending, p)
		}
	}

	select {
	case e.commands <- c:
		e.pending[c] = struct{}{}
	default:
		cancel()
		c.future.complete(ErrQueueFull)
	}
	return c.future
}

func (e *Engine) forget(c *command) {
	c.cancel()
	e.pendingMu.Lock()
	delete(e.pending, c)
	e.pendingMu.Unlock()
}

func (e *Engine) run() {
	defer close(e.stopped)
	for {
		select {
		case <-e.stop:
			return
		case c := <-e.commands:
			e.execute(c)
		}
	}
}

func (e *Engine) execute(c *command) {
	defer e.forget(c)
	if c.ctx.Err() != nil {
		c.future.complete(ErrCancelled)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("navigation: %s panicked: %v", c.kind, r)
			e.logger.Error("recovered worker panic", "err", err)
			if c.kind == cmdSubmit {
				e.install(Failed{Request: c.request, Err: err})
			}
			c.future.complete(err)
		}
	}()

	var err error
	switch c.kind {
	case cmdSubmit:
		err = e.runRequest(c)
	case cmdLoadMore:
		err = e.runLoadMore(c)
	case cmdGoBack:
		err = e.runGoBack()
	}
	if err != nil {
		e.logger.Debug("command failed", "kind", c.kind, "err", err)
	}
	c.future.complete(err)
}

func (e *Engine) runRequest(c *command) error {
	e.setLoading(c.request)

	var (
		next State
		err  error
	)
	switch r := c.request.(type) {
	case NewFeed:
		var f feed.Feed
		f, err = e.fetch(c.ctx, r.AccountID, r.URI, r.Credentials, r.Method)
		if err == nil {
			next, err = loadedOrError(r, f)
		}
	case ExistingEntry:
		next = LoadedFeedEntry{Request: r}
	case ResolvedCompositeFacet:
		var f *feed.WithoutGroups
		f, err = e.resolveComposite(c.ctx, r)
		if err == nil {
			next = LoadedFeedWithoutGroups{Request: r, Feed: f}
		}
	default:
		err = fmt.Errorf("navigation: unsupported request %T", c.request)
	}

	if c.ctx.Err() != nil {
		return ErrCancelled
	}
	if err != nil {
		e.install(Failed{Request: c.request, Err: err})
		return err
	}
	e.saveHistory()
	e.install(next)
	return nil
}

func (e *Engine) runLoadMore(c *command) error {
	cur, ok := e.state.(LoadedFeedWithoutGroups)
	if !ok || !cur.Feed.HasNext() {
		return nil
	}

	accountID, creds := requestAuth(cur.Request)
	f, err := e.fetch(c.ctx, accountID, cur.Feed.Next, creds, "")
	if err != nil {
		return err
	}
	if c.ctx.Err() != nil {
		return ErrCancelled
	}
	page, ok := f.(*feed.WithoutGroups)
	if !ok {
		return fmt.Errorf("loading %s: %w", cur.Feed.Next, ErrGroupedNextPage)
	}
	e.install(LoadedFeedWithoutGroups{Request: cur.Request, Feed: cur.Feed.Append(page)})
	return nil
}

// runGoBack pops the history stack. Any load it interrupted has already
// been cancelled by GoBack, and a cancelled load leaves no history behind.
func (e *Engine) runGoBack() error {
	prev, ok := e.history.Pop()
	if !ok {
		return ErrNoHistory
	}
	e.beforeLoading = nil
	e.install(prev)
	return nil
}

// fetch runs the loader off the worker and returns early on cancellation.
func (e *Engine) fetch(ctx context.Context, accountID, uri string, creds browser.Credentials, method string) (feed.Feed, error) {
	type result struct {
		feed feed.Feed
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("loading %s: loader panicked: %v", uri, r)}
			}
		}()
		f, err := e.loader.Fetch(ctx, accountID, uri, creds, method)
		done <- result{feed: f, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ErrCancelled
	case res := <-done:
		return res.feed, res.err
	}
}

func (e *Engine) setLoading(r Request) {
	if _, loading := e.state.(Loading); !loading {
		e.beforeLoading = e.state
	}
	e.install(Loading{Request: r})
}

// saveHistory pushes the state that was displayed before loading began.
func (e *Engine) saveHistory() {
	if HistoryParticipant(e.beforeLoading) {
		e.history.Push(e.beforeLoading)
	}
	e.beforeLoading = nil
}

// install makes s current and publishes it. Feed states refresh the
// cached entry and group lists; other states leave them as they were.
func (e *Engine) install(s State) {
	e.state = s
	switch s := s.(type) {
	case LoadedFeedWithoutGroups:
		e.entries, e.groups = s.Feed.Entries, nil
	case LoadedFeedWithGroups:
		e.entries, e.groups = nil, s.Feed.Groups
	}

	snap := snapshot{
		state:      s,
		entries:    e.entries,
		groups:     e.groups,
		hasHistory: e.history.Len() > 0,
	}
	e.logger.Debug("state", "name", s.Name(), "history", e.history.Len())
	e.dispatch(func() { e.mirror.set(snap) })
}

func loadedOrError(r Request, f feed.Feed) (State, error) {
	s, ok := loaded(r, f)
	if !ok {
		return nil, fmt.Errorf("navigation: loader returned %T", f)
	}
	return s, nil
}
