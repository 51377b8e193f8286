package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ethpandaops/ntview/pkg/config"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Option configures the HTTP transport.
type Option func(*httpTransport)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *httpTransport) {
		t.client = c
	}
}

// WithLimiter overrides the request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(t *httpTransport) {
		t.limiter = l
	}
}

type httpTransport struct {
	log       logrus.FieldLogger
	baseURL   string
	token     string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// Ensure interface compliance.
var _ Requester = (*httpTransport)(nil)

// NewHTTPTransport creates a Requester that talks to cfg.BaseURL.
func NewHTTPTransport(
	log logrus.FieldLogger,
	cfg *config.ClientConfig,
	opts ...Option,
) Requester {
	t := &httpTransport{
		log:       log.WithField("component", "transport"),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute > 0 {
		perSecond := float64(cfg.RateLimit.RequestsPerMinute) / 60.0
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), cfg.RateLimit.RequestsPerMinute)
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Do executes the request and returns the buffered response.
func (t *httpTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, NewTransportError(req, err)
		}
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, &Error{
			Kind:      KindOther,
			Operation: req.Operation,
			Method:    req.Method,
			Path:      req.Path,
			Message:   err.Error(),
			Err:       err,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.url(req), body)
	if err != nil {
		return nil, NewTransportError(req, fmt.Errorf("creating request: %w", err))
	}

	requestID := uuid.NewString()

	httpReq.Header.Set("Accept", req.ResponseType.accept())
	httpReq.Header.Set("X-Request-ID", requestID)

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}

	if t.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.token)
	}

	start := time.Now()

	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"operation":  req.Operation,
			"request_id": requestID,
		}).WithError(err).Debug("Request failed")

		return nil, NewTransportError(req, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransportError(req, fmt.Errorf("reading response: %w", err))
	}

	t.log.WithFields(logrus.Fields{
		"operation":  req.Operation,
		"method":     req.Method,
		"path":       req.Path,
		"status":     resp.StatusCode,
		"bytes":      len(data),
		"duration":   time.Since(start).String(),
		"request_id": requestID,
	}).Debug("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewStatusError(req, resp.StatusCode, data)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (t *httpTransport) url(req *Request) string {
	u := t.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	return u
}

// encodeBody serialises the JSON or multipart payload of req.
func encodeBody(req *Request) (io.Reader, string, error) {
	switch {
	case req.JSON != nil && req.Multipart != nil:
		return nil, "", fmt.Errorf("request has both json and multipart bodies")
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("marshaling request body: %w", err)
		}

		return bytes.NewReader(data), "application/json", nil
	case req.Multipart != nil:
		return encodeMultipart(req.Multipart)
	default:
		return nil, "", nil
	}
}

func encodeMultipart(m *Multipart) (io.Reader, string, error) {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if err := w.WriteField(k, m.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", k, err)
		}
	}

	if m.File != nil {
		field := m.FileField
		if field == "" {
			field = "file"
		}

		part, err := w.CreateFormFile(field, m.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("creating file part: %w", err)
		}

		if _, err := io.Copy(part, m.File); err != nil {
			return nil, "", fmt.Errorf("copying file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
