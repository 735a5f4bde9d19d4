package adapter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string, opts ...Option) *MatchboxClient {
	t.Helper()

	opts = append(opts, WithPollInterval(10*time.Millisecond), WithStartupTimeout(time.Second))

	client, err := NewMatchbox(baseURL, "http://example.org/StructureMap", opts...)
	require.NoError(t, err)

	return client
}

func TestNewMatchbox_Validation(t *testing.T) {
	_, err := NewMatchbox("", "http://example.org/StructureMap")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baseURL is required")

	_, err = NewMatchbox("http://localhost:8080/fhir", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canonicalBase is required")
}

func TestNewMatchbox_NormalizesURLs(t *testing.T) {
	client, err := NewMatchbox("http://localhost:8080/fhir/", "http://example.org/StructureMap")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/fhir", client.baseURL)
	assert.Equal(t, "http://example.org/StructureMap/", client.canonicalBase)
}

func TestMatchboxClient_Ping(t *testing.T) {
	var gotPath, gotAccept string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.Ping(context.Background()))

	assert.Equal(t, "/metadata", gotPath)
	assert.Equal(t, "application/fhir+json", gotAccept)
}

func TestMatchboxClient_PingReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, HasStatusCode(err, http.StatusInternalServerError))
	assert.False(t, IsNotFound(err))
}

func TestMatchboxClient_WaitReady(t *testing.T) {
	t.Run("recovers after startup failures", func(t *testing.T) {
		var calls atomic.Int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		require.NoError(t, client.WaitReady(context.Background()))
		assert.GreaterOrEqual(t, calls.Load(), int32(3))
	})

	t.Run("gives up after the startup timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL, WithStartupTimeout(50*time.Millisecond))

		err := client.WaitReady(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine not ready within")
	})
}

func TestMatchboxClient_UploadMap(t *testing.T) {
	const content = `map "http://example.org/StructureMap/X" = "X"` + "\n"

	var gotMethod, gotPath, gotContentType, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")

		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.UploadMap(context.Background(), "X", content))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/StructureMap", gotPath)
	assert.Equal(t, "text/fhir-mapping", gotContentType)
	assert.Equal(t, content, gotBody)
}

func TestMatchboxClient_UploadMapSurfacesDiagnostics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"resourceType":"OperationOutcome","issue":[{"severity":"error","diagnostics":"Unknown context Patientt"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.UploadMap(context.Background(), "X", "map ...")
	require.Error(t, err)
	assert.True(t, HasStatusCode(err, http.StatusBadRequest))
	assert.Contains(t, err.Error(), "upload map X")
	assert.Contains(t, err.Error(), "Unknown context Patientt")
}

func TestMatchboxClient_DeleteMap(t *testing.T) {
	t.Run("searches by canonical url and deletes every match", func(t *testing.T) {
		var searchQuery string
		var deletedPaths []string

		mux := http.NewServeMux()
		mux.HandleFunc("GET /StructureMap", func(w http.ResponseWriter, r *http.Request) {
			searchQuery = r.URL.Query().Get("url")
			_, _ = w.Write([]byte(`{"entry":[{"resource":{"id":"42"}},{"resource":{"id":"43"}}]}`))
		})
		mux.HandleFunc("DELETE /StructureMap/{id}", func(w http.ResponseWriter, r *http.Request) {
			deletedPaths = append(deletedPaths, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		})

		srv := httptest.NewServer(mux)
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		require.NoError(t, client.DeleteMap(context.Background(), "PatientToSubject"))

		assert.Equal(t, "http://example.org/StructureMap/PatientToSubject", searchQuery)
		assert.Equal(t, []string{"/StructureMap/42", "/StructureMap/43"}, deletedPaths)
	})

	t.Run("unknown map satisfies IsNotFound", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"entry":[]}`))
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)

		err := client.DeleteMap(context.Background(), "Ghost")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "delete map Ghost")
	})

	t.Run("search failure propagates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)

		err := client.DeleteMap(context.Background(), "X")
		require.Error(t, err)
		assert.True(t, HasStatusCode(err, http.StatusBadGateway))
	})
}

func TestOutcomeMessage(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status string
		want   string
	}{
		{
			name:   "diagnostics from operation outcome",
			body:   `{"issue":[{"diagnostics":""},{"diagnostics":"parse error at 4:2"}]}`,
			status: "400 Bad Request",
			want:   "parse error at 4:2",
		},
		{
			name:   "raw body when not an operation outcome",
			body:   "  upstream exploded  ",
			status: "502 Bad Gateway",
			want:   "upstream exploded",
		},
		{
			name:   "status when the body is empty",
			body:   "",
			status: "503 Service Unavailable",
			want:   "503 Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcomeMessage([]byte(tt.body), tt.status))
		})
	}
}

func TestAPIError(t *testing.T) {
	err := NewAPIError("upload map X", http.StatusConflict, "already locked")

	assert.Equal(t, "upload map X: HTTP 409: already locked", err.Error())
	assert.Equal(t, http.StatusConflict, err.StatusCode())
	assert.Equal(t, "already locked", err.Message())
	assert.Equal(t, "upload map X", err.Operation())
	assert.True(t, HasStatusCode(err, http.StatusConflict))
	assert.False(t, HasStatusCode(err, http.StatusNotFound))
}
