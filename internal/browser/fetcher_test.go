package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchSendsHeadersAndCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "reader" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Accept") == "" {
			t.Error("expected an Accept header")
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte("<feed/>"))
	}))
	defer srv.Close()

	f := NewFetcher(WithUserAgent("test-agent"), WithHTTPClient(srv.Client()))
	res, err := f.Fetch(context.Background(), Request{
		URI:         srv.URL + "/root.xml",
		Credentials: BasicCredentials{Username: "reader", Password: "secret"},
	})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if string(res.Body) != "<feed/>" {
		t.Errorf("unexpected body %q", res.Body)
	}
	if res.ContentType != "application/atom+xml" {
		t.Errorf("unexpected content type %q", res.ContentType)
	}
}

func TestFetchBearerCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	f := NewFetcher(WithHTTPClient(srv.Client()))
	if _, err := f.Fetch(context.Background(), Request{URI: srv.URL, Credentials: BearerCredentials{Token: "tok"}}); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
}

func TestFetchProblemReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/api-problem+json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"http://librarysimplified.org/terms/problem/credentials-invalid","title":"Invalid credentials","status":401,"detail":"PIN rejected"}`))
	}))
	defer srv.Close()

	f := NewFetcher(WithHTTPClient(srv.Client()))
	_, err := f.Fetch(context.Background(), Request{URI: srv.URL})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if !httpErr.Unauthorized() {
		t.Errorf("expected unauthorized, got status %d", httpErr.Status)
	}
	if httpErr.Problem == nil || httpErr.Problem.Detail != "PIN rejected" {
		t.Fatalf("unexpected problem report: %+v", httpErr.Problem)
	}
}

func TestFetchNotFoundWithoutProblem(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewFetcher(WithHTTPClient(srv.Client()))
	_, err := f.Fetch(context.Background(), Request{URI: srv.URL})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}
	if httpErr.Problem != nil {
		t.Errorf("expected no problem report, got %+v", httpErr.Problem)
	}
}

func TestFetchHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewFetcher(WithHTTPClient(srv.Client()))
	if _, err := f.Fetch(ctx, Request{URI: srv.URL}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestIsHTML(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"text/html; charset=utf-8", true},
		{"application/xhtml+xml", true},
		{"application/atom+xml", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsHTML(tt.ct); got != tt.want {
			t.Errorf("IsHTML(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}

func TestExtractWrapsNonHTML(t *testing.T) {
	article, err := Extract(&FetchResult{FinalURI: "https://example.com/a.txt", ContentType: "text/plain", Body: []byte("plain")})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if article.TextContent != "plain" || article.URI != "https://example.com/a.txt" {
		t.Fatalf("unexpected article: %+v", article)
	}
}
