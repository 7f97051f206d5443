// Package feeds loads catalog pages from the network, bundled assets or
// local content and turns them into feed values.
package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vidyasagar/opdsnav/internal/browser"
	"github.com/vidyasagar/opdsnav/internal/feed"
	"github.com/vidyasagar/opdsnav/internal/opds"
)

const (
	defaultSearchCacheSize = 64
	maxLocalSize           = 10 * 1024 * 1024 // 10 MB
	searchAccept           = "application/opensearchdescription+xml, application/xml;q=0.9, */*;q=0.5"
)

// Transport performs authenticated fetches. *browser.Fetcher implements it.
type Transport interface {
	Fetch(ctx context.Context, r browser.Request) (*browser.FetchResult, error)
}

// Options configure a Loader. Zero values select defaults.
type Options struct {
	Transport              Transport
	Assets                 fs.FS // serves asset: URIs
	Content                ContentResolver
	Formats                FormatSupport
	ShowOnlySupportedBooks bool
	SearchCacheSize        int
	Logger                 *log.Logger
}

// Loader fetches and converts catalog pages. It is safe for concurrent
// use; its only mutable state is the supported-books flag and the search
// descriptor cache.
type Loader struct {
	transport     Transport
	assets        fs.FS
	content       ContentResolver
	formats       FormatSupport
	onlySupported atomic.Bool
	searches      *lru.Cache[string, *opds.SearchDescriptor]
	logger        *log.Logger
}

// NewLoader creates a Loader.
func NewLoader(opts Options) (*Loader, error) {
	size := opts.SearchCacheSize
	if size <= 0 {
		size = defaultSearchCacheSize
	}
	cache, err := lru.New[string, *opds.SearchDescriptor](size)
	if err != nil {
		return nil, fmt.Errorf("creating search cache: %w", err)
	}

	l := &Loader{
		transport: opts.Transport,
		assets:    opts.Assets,
		content:   opts.Content,
		formats:   opts.Formats,
		searches:  cache,
		logger:    opts.Logger,
	}
	if l.transport == nil {
		l.transport = browser.NewFetcher()
	}
	if l.content == nil {
		l.content = FileResolver{}
	}
	if l.formats == nil {
		l.formats = DefaultMediaTypes()
	}
	if l.logger == nil {
		l.logger = log.New(io.Discard)
	}
	l.onlySupported.Store(opts.ShowOnlySupportedBooks)
	return l, nil
}

// SetShowOnlySupportedBooks toggles the acquisition filter for later loads.
func (l *Loader) SetShowOnlySupportedBooks(v bool) {
	l.onlySupported.Store(v)
}

// ShowOnlySupportedBooks reports whether the acquisition filter is on.
func (l *Loader) ShowOnlySupportedBooks() bool {
	return l.onlySupported.Load()
}

// Fetch loads the catalog page at uri. Failures are always *Error.
func (l *Loader) Fetch(ctx context.Context, accountID, uri string, creds browser.Credentials, method string) (feed.Feed, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return nil, general(uri, fmt.Errorf("parsing URI: %w", err))
	}

	body, base, lerr := l.read(ctx, u, creds, method)
	if lerr != nil {
		return nil, lerr
	}

	doc, err := opds.Parse(bytes.NewReader(body), base)
	if err != nil {
		return nil, general(uri, err)
	}
	l.logger.Debug("parsed catalog", "uri", doc.URI, "entries", len(doc.Items), "facets", len(doc.Facets))

	var search *opds.SearchDescriptor
	if doc.SearchURI != "" {
		search = l.searchDescriptor(ctx, doc.SearchURI, creds)
	}
	return convert(accountID, doc, search, l.onlySupported.Load(), l.formats), nil
}

// read returns the raw document and the URI relative links resolve against.
func (l *Loader) read(ctx context.Context, u *url.URL, creds browser.Credentials, method string) ([]byte, *url.URL, *Error) {
	uri := u.String()
	switch u.Scheme {
	case "asset":
		body, err := l.readAsset(u)
		if err != nil {
			return nil, nil, localError(uri, err)
		}
		return body, u, nil

	case "content", "file":
		rc, err := l.content.Open(ctx, u)
		if err != nil {
			return nil, nil, localError(uri, err)
		}
		defer rc.Close()
		body, err := io.ReadAll(io.LimitReader(rc, maxLocalSize))
		if err != nil {
			return nil, nil, general(uri, fmt.Errorf("reading content: %w", err))
		}
		return body, u, nil

	default:
		res, err := l.transport.Fetch(ctx, browser.Request{URI: uri, Method: method, Credentials: creds})
		if err != nil {
			return nil, nil, transportError(uri, err)
		}
		base, err := url.Parse(res.FinalURI)
		if err != nil || res.FinalURI == "" {
			base = u
		}
		return res.Body, base, nil
	}
}

func (l *Loader) readAsset(u *url.URL) ([]byte, error) {
	if l.assets == nil {
		return nil, fmt.Errorf("no bundled assets: %w", fs.ErrNotExist)
	}
	name := u.Opaque
	if name == "" {
		name = u.Path
	}
	name = strings.TrimPrefix(name, "/")
	body, err := fs.ReadFile(l.assets, name)
	if err != nil {
		return nil, fmt.Errorf("reading asset: %w", err)
	}
	return body, nil
}

// searchDescriptor fetches the descriptor at uri. Failures are logged and
// yield nil; they never fail the feed.
func (l *Loader) searchDescriptor(ctx context.Context, uri string, creds browser.Credentials) *opds.SearchDescriptor {
	if d, ok := l.searches.Get(uri); ok {
		return d
	}
	res, err := l.transport.Fetch(ctx, browser.Request{URI: uri, Credentials: creds, Accept: searchAccept})
	if err != nil {
		l.logger.Warn("fetching search descriptor", "uri", uri, "err", err)
		return nil
	}
	base, _ := url.Parse(res.FinalURI)
	d, err := opds.ParseSearchDescriptor(bytes.NewReader(res.Body), base)
	if err != nil {
		l.logger.Warn("parsing search descriptor", "uri", uri, "err", err)
		return nil
	}
	l.searches.Add(uri, d)
	return d
}

func localError(uri string, err error) *Error {
	if errors.Is(err, fs.ErrNotExist) {
		return &Error{Kind: KindFileNotFound, URI: uri, Err: err}
	}
	return general(uri, err)
}

func transportError(uri string, err error) *Error {
	var httpErr *browser.HTTPError
	if errors.As(err, &httpErr) {
		kind := KindGeneral
		if httpErr.Unauthorized() {
			kind = KindAuthentication
		}
		return &Error{Kind: kind, URI: uri, Problem: httpErr.Problem, Err: err}
	}
	return general(uri, err)
}
