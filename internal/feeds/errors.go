package feeds

import (
	"fmt"

	"github.com/vidyasagar/opdsnav/internal/browser"
)

// Kind classifies a loader failure.
type Kind int

const (
	// KindGeneral covers transport, server and parse failures.
	KindGeneral Kind = iota
	// KindAuthentication is an HTTP 401 from the catalog server.
	KindAuthentication
	// KindFileNotFound is missing bundled or local content.
	KindFileNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication failed"
	case KindFileNotFound:
		return "file not found"
	default:
		return "failed"
	}
}

// Error is the failure variant of a feed load.
type Error struct {
	Kind    Kind
	URI     string
	Problem *browser.ProblemReport
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("loading %s: %s", e.URI, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func general(uri string, err error) *Error {
	return &Error{Kind: KindGeneral, URI: uri, Err: err}
}
