// Package transport issues requests against the NT view HTTP API and
// classifies every failure into a small error taxonomy.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ResponseType selects how a response body is expected to be consumed.
type ResponseType int

const (
	// ResponseJSON expects a JSON document.
	ResponseJSON ResponseType = iota
	// ResponseText expects plain text.
	ResponseText
	// ResponseBlob expects an opaque binary stream.
	ResponseBlob
)

// accept returns the Accept header value for the response type.
func (rt ResponseType) accept() string {
	switch rt {
	case ResponseText:
		return "text/plain"
	case ResponseBlob:
		return "*/*"
	default:
		return "application/json"
	}
}

// Requester performs a single remote call. Implementations return a
// *Response for 2xx replies and an *Error for everything else.
type Requester interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request describes one remote call. At most one of JSON and Multipart
// may be set.
type Request struct {
	// Operation is a short description used in logs and errors,
	// e.g. "list projects".
	Operation    string
	Method       string
	Path         string
	Query        url.Values
	JSON         any
	Multipart    *Multipart
	ResponseType ResponseType
}

// Multipart is a multipart/form-data payload with plain fields and a
// single file part.
type Multipart struct {
	Fields    map[string]string
	FileField string
	FileName  string
	File      io.Reader
}

// Response is a successful reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into dst.
func (r *Response) Decode(dst any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("decoding response: empty body")
	}

	if err := json.Unmarshal(r.Body, dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}
