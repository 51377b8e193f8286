package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind classifies a failed remote call.
type Kind int

const (
	// KindOther covers every failure not classified below.
	KindOther Kind = iota
	// KindTransport is a network failure, timeout or cancellation.
	KindTransport
	// KindNotFound means the remote system reported a missing identity.
	KindNotFound
	// KindValidation means the remote system rejected the payload.
	KindValidation
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "other"
	}
}

// Error is returned for every failed remote call.
type Error struct {
	Kind       Kind
	Operation  string
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s %s: %v", e.Operation, e.Method, e.Path, e.Err)
	}

	return fmt.Sprintf("%s: HTTP %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause of transport-level failures.
func (e *Error) Unwrap() error { return e.Err }

// NewStatusError builds the error for a non-2xx reply, extracting the
// server message from the body.
func NewStatusError(req *Request, statusCode int, body []byte) *Error {
	msg := extractMessage(body)
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	return &Error{
		Kind:       kindForStatus(statusCode),
		Operation:  req.Operation,
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: statusCode,
		Message:    msg,
	}
}

// NewTransportError wraps a failure that happened before a reply arrived.
func NewTransportError(req *Request, err error) *Error {
	return &Error{
		Kind:      KindTransport,
		Operation: req.Operation,
		Method:    req.Method,
		Path:      req.Path,
		Message:   err.Error(),
		Err:       err,
	}
}

func kindForStatus(code int) Kind {
	switch code {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindOther
	}
}

// extractMessage pulls a human-readable message out of an error body.
// Handles {"detail": "..."}, validation lists {"detail": [{"loc": [...],
// "msg": "..."}]}, {"error": "..."} and plain text.
func extractMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}

	if !gjson.Valid(text) {
		return text
	}

	detail := gjson.Get(text, "detail")

	switch {
	case detail.Type == gjson.String:
		return detail.String()
	case detail.IsArray():
		msgs := make([]string, 0, len(detail.Array()))

		detail.ForEach(func(_, item gjson.Result) bool {
			msg := item.Get("msg").String()

			locs := make([]string, 0, 4)
			for _, l := range item.Get("loc").Array() {
				locs = append(locs, l.String())
			}

			if len(locs) > 0 {
				msg = strings.Join(locs, ".") + ": " + msg
			}

			msgs = append(msgs, msg)

			return true
		})

		return strings.Join(msgs, "; ")
	}

	if e := gjson.Get(text, "error"); e.Type == gjson.String {
		return e.String()
	}

	return text
}

// KindOf returns the kind of err, or KindOther when err is not an *Error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}

	return KindOther
}

// IsNotFound reports whether err is a NotFound failure.
func IsNotFound(err error) bool { return err != nil && KindOf(err) == KindNotFound }

// IsValidation reports whether err is a Validation failure.
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }

// IsTransport reports whether err is a network-level failure.
func IsTransport(err error) bool { return err != nil && KindOf(err) == KindTransport }

// HasStatusCode reports whether err is an *Error with the given HTTP status.
func HasStatusCode(err error, code int) bool {
	var te *Error

	return errors.As(err, &te) && te.StatusCode == code
}
