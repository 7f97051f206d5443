package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout    = 30 * time.Second
	maxBodySize       = 10 * 1024 * 1024 // 10 MB
	maxProblemSize    = 64 * 1024
	defaultUserAgent  = "opdsnav/0.1 (+https://github.com/vidyasagar/opdsnav)"
	defaultAccept     = "application/atom+xml;profile=opds-catalog, application/atom+xml;q=0.9, application/xml;q=0.8, */*;q=0.5"
	problemReportType = "application/api-problem+json"
)

// SharedTransport is a tuned HTTP transport shared by every Fetcher.
var SharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ResponseHeaderTimeout: 20 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
}

// Credentials authorize a request. Implementations are opaque to callers.
type Credentials interface {
	apply(req *http.Request)
}

// BasicCredentials use HTTP basic authentication.
type BasicCredentials struct {
	Username string
	Password string
}

func (c BasicCredentials) apply(req *http.Request) {
	req.SetBasicAuth(c.Username, c.Password)
}

// BearerCredentials send an OAuth-style bearer token.
type BearerCredentials struct {
	Token string
}

func (c BearerCredentials) apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.Token)
}

// Request describes one fetch.
type Request struct {
	URI         string
	Method      string // defaults to GET
	Credentials Credentials
	Accept      string
}

// FetchResult holds the raw response from fetching a URI.
type FetchResult struct {
	URI         string
	FinalURI    string // after redirects
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// ProblemReport is an RFC 7807 problem detail returned by catalog servers.
type ProblemReport struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	URI     string
	Status  int
	Problem *ProblemReport
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("fetching %s: status %d", e.URI, e.Status)
	if e.Problem != nil {
		if e.Problem.Detail != "" {
			return msg + ": " + e.Problem.Detail
		}
		if e.Problem.Title != "" {
			return msg + ": " + e.Problem.Title
		}
	}
	return msg
}

// Unauthorized reports whether the server rejected the credentials.
func (e *HTTPError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// Fetcher performs authenticated catalog requests. It is safe for
// concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables it.
func WithRateLimit(perSecond float64, burst int) FetcherOption {
	return func(f *Fetcher) {
		if perSecond <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHTTPClient replaces the underlying client (tests use httptest's).
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// NewFetcher creates a Fetcher on the shared transport.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Transport: SharedTransport,
			Timeout:   defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (>10)")
				}
				return nil
			},
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs req. Non-2xx responses return *HTTPError.
func (f *Fetcher) Fetch(ctx context.Context, r Request) (*FetchResult, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URI, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	accept := r.Accept
	if accept == "" {
		accept = defaultAccept
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)
	if r.Credentials != nil {
		r.Credentials.apply(req)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", r.URI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			URI:     r.URI,
			Status:  resp.StatusCode,
			Problem: readProblem(resp),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &FetchResult{
		URI:         r.URI,
		FinalURI:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Duration:    time.Since(start),
	}, nil
}

func readProblem(resp *http.Response) *ProblemReport {
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), problemReportType) {
		return nil
	}
	var p ProblemReport
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProblemSize)).Decode(&p); err != nil {
		return nil
	}
	return &p
}

// IsHTML checks if the content type indicates HTML.
func IsHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
