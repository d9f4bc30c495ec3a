package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simple-apps-suite/simple-notes/internal/testutil"
)

func newTestServer(t *testing.T, mock *testutil.MockAPI) *httptest.Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BaseURL = mock.URL()

	stack, err := newClientStack(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(stack.Close)

	srv := httptest.NewServer(newServeMux(cfg, stack, 5*time.Second))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestFetchEndpoint(t *testing.T) {
	mock := newPagedMock(t)
	srv := newTestServer(t, mock)

	resp, body := get(t, srv.URL+"/fetch/publicRooms?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "3", resp.Header.Get("X-Pages"))
	assert.Equal(t, "false", resp.Header.Get("X-Has-More"))

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &result))
	assert.Equal(t, []any{"!a", "!b", "!c", "!d", "!e"}, result["chunk"])
}

func TestFetchEndpoint_MaxPagesAndToken(t *testing.T) {
	mock := newPagedMock(t)
	srv := newTestServer(t, mock)

	resp, body := get(t, srv.URL+"/fetch/publicRooms?max_pages=1", http.Header{
		"Authorization": []string{"Bearer alice"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "1", resp.Header.Get("X-Pages"))
	assert.Equal(t, "true", resp.Header.Get("X-Has-More"))
	assert.Equal(t, "Bearer alice", mock.LastRequestHeader.Get("Authorization"))
	assert.False(t, mock.GetQueries()[0].Has("max_pages"), "max_pages is not forwarded")
}

func TestFetchEndpoint_Errors(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(publicRoomsPath, testutil.NewServerErrorResponse())
	srv := newTestServer(t, mock)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown api", "/fetch/nope", http.StatusNotFound},
		{"bad max_pages", "/fetch/publicRooms?max_pages=-1", http.StatusBadRequest},
		{"upstream failure", "/fetch/publicRooms", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, srv.URL+tt.path, nil)
			assert.Equal(t, tt.status, resp.StatusCode)

			var payload map[string]string
			require.NoError(t, json.Unmarshal([]byte(body), &payload))
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mock := newPagedMock(t)
	srv := newTestServer(t, mock)

	resp, _ := get(t, srv.URL+"/fetch/publicRooms", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := get(t, srv.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "request_epochs_total")
	assert.Contains(t, body, "api_requests_total")
}
