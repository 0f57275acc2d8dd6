package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/wfs-clickmap/internal/core/ogc"
)

const parseSnippetLen = 200

// TransportError wraps a failure of the network call itself.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("wfs transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is returned for responses outside the 2xx range.
type HTTPStatusError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("wfs fetch failed: %d %s", e.Status, e.StatusText)
	if e.Body != "" {
		msg += "\n" + e.Body
	}
	return msg
}

// ParseError is returned when the body is not valid JSON.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return "wfs server returned non-JSON: " + e.Snippet
}

func (e *ParseError) Unwrap() error { return e.Err }

// Class names the error kind for logs and metrics.
func Class(err error) string {
	var (
		ve  *ogc.ValidationError
		te  *TransportError
		he  *HTTPStatusError
		pe  *ParseError
		pje *ogc.ProjectionError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &he):
		return "http_status"
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &pje):
		return "projection"
	}
	return "other"
}

func snippet(body string) string {
	body = strings.ToValidUTF8(body, "�")
	r := []rune(body)
	if len(r) > parseSnippetLen {
		r = r[:parseSnippetLen]
	}
	return string(r)
}
