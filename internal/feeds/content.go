package feeds

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
)

// ContentResolver opens local resources addressed by content: and file:
// URIs.
type ContentResolver interface {
	Open(ctx context.Context, u *url.URL) (io.ReadCloser, error)
}

// FileResolver serves file: URIs from the local filesystem. Other schemes
// have no provider.
type FileResolver struct{}

func (FileResolver) Open(_ context.Context, u *url.URL) (io.ReadCloser, error) {
	if u.Scheme != "file" {
		return nil, fmt.Errorf("no content provider for %s", u.Redacted())
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}
