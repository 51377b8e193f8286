package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ethpandaops/ntview/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestTransport(t *testing.T, srv *httptest.Server, opts ...Option) Requester {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	return NewHTTPTransport(log, &config.ClientConfig{
		BaseURL:   srv.URL + "/",
		Token:     "secret",
		Timeout:   5 * time.Second,
		UserAgent: "ntview-test",
	}, opts...)
}

func TestDo_JSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/projects/", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("project_id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "ntview-test", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "svc-a", body["name"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1,"name":"svc-a"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)

	resp, err := tr.Do(context.Background(), &Request{
		Operation: "create project",
		Method:    http.MethodPost,
		Path:      "/api/projects/",
		Query:     url.Values{"project_id": {"7"}},
		JSON:      map[string]string{"name": "svc-a"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var got struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	require.NoError(t, resp.Decode(&got))
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "svc-a", got.Name)
}

func TestDo_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "custom_gc", r.FormValue("kind"))
		assert.Equal(t, "gc.log", r.FormValue("display_name"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)

		defer func() { _ = f.Close() }()

		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "gc.log", hdr.Filename)
		assert.Equal(t, "[GC pause 12ms]", string(data))

		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)

	_, err := tr.Do(context.Background(), &Request{
		Operation: "upload artifact",
		Method:    http.MethodPost,
		Path:      "/api/artifacts/test/1/upload",
		Multipart: &Multipart{
			Fields:    map[string]string{"kind": "custom_gc", "display_name": "gc.log"},
			FileField: "file",
			FileName:  "gc.log",
			File:      strings.NewReader("[GC pause 12ms]"),
		},
	})
	require.NoError(t, err)
}

func TestDo_TextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("Report for test 4"))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)

	resp, err := tr.Do(context.Background(), &Request{
		Operation:    "get report text",
		Method:       http.MethodGet,
		Path:         "/api/reports/test/4/text",
		ResponseType: ResponseText,
	})
	require.NoError(t, err)
	assert.Equal(t, "Report for test 4", resp.Text())
}

func TestDo_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{
			name:    "not found with detail",
			status:  http.StatusNotFound,
			body:    `{"detail":"Project not found"}`,
			kind:    KindNotFound,
			message: "Project not found",
		},
		{
			name:    "bad request",
			status:  http.StatusBadRequest,
			body:    `{"detail":"No Grafana sources configured"}`,
			kind:    KindValidation,
			message: "No Grafana sources configured",
		},
		{
			name:    "conflict",
			status:  http.StatusConflict,
			body:    `{"error":"already exists"}`,
			kind:    KindValidation,
			message: "already exists",
		},
		{
			name:    "validation list",
			status:  http.StatusUnprocessableEntity,
			body:    `{"detail":[{"loc":["body","name"],"msg":"field required"}]}`,
			kind:    KindValidation,
			message: "body.name: field required",
		},
		{
			name:    "server error plain text",
			status:  http.StatusInternalServerError,
			body:    "boom",
			kind:    KindOther,
			message: "boom",
		},
		{
			name:    "empty body falls back to status text",
			status:  http.StatusBadGateway,
			kind:    KindOther,
			message: "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr := newTestTransport(t, srv)

			_, err := tr.Do(context.Background(), &Request{
				Operation: "get project",
				Method:    http.MethodGet,
				Path:      "/api/projects/1",
			})
			require.Error(t, err)

			var te *Error
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.kind, te.Kind)
			assert.Equal(t, tt.status, te.StatusCode)
			assert.Equal(t, tt.message, te.Message)
			assert.True(t, HasStatusCode(err, tt.status))
			assert.Contains(t, err.Error(), "get project")
		})
	}
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	tr := newTestTransport(t, srv)
	srv.Close()

	_, err := tr.Do(context.Background(), &Request{
		Operation: "health",
		Method:    http.MethodGet,
		Path:      "/health",
	})
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.False(t, IsNotFound(err))
}

func TestDo_RateLimiterHonoursContext(t *testing.T) {
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv, WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))

	req := &Request{Operation: "health", Method: http.MethodGet, Path: "/health"}

	_, err := tr.Do(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = tr.Do(ctx, req)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, 1, calls)
}

func TestDo_RejectsTwoBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("request should not be sent")
	}))
	defer srv.Close()

	tr := newTestTransport(t, srv)

	_, err := tr.Do(context.Background(), &Request{
		Operation: "bad",
		Method:    http.MethodPost,
		Path:      "/x",
		JSON:      map[string]string{},
		Multipart: &Multipart{},
	})
	require.Error(t, err)
	assert.Equal(t, KindOther, KindOf(err))
}
