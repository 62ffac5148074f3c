package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/geometry.report/internal/httputil"
	"github.com/banshee-data/geometry.report/internal/render"
	"github.com/banshee-data/geometry.report/internal/testutil"
	"github.com/banshee-data/geometry.report/internal/version"
)

func TestClient_AgainstServer(t *testing.T) {
	server, _ := setupTestServer(t)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	c := NewClient(ts.URL+"/", httputil.NewStandardClient(ts.Client()))
	ctx := context.Background()

	res, err := c.Charts(ctx, testutil.SampleJSON(t))
	require.NoError(t, err)
	assert.Len(t, res.Charts, testutil.SampleVisibleCharts)

	snap, err := c.Snapshot(ctx, testutil.SampleJSON(t))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(snap.DataURL, render.PNGDataURLPrefix))

	page, err := c.HTML(ctx, testutil.SampleJSON(t))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<html")

	runs, err := c.Runs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	info, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, version.Current(), info)
}

func TestClient_StatusErrors(t *testing.T) {
	server, _ := setupTestServer(t)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	c := NewClient(ts.URL, nil)
	_, err := c.Charts(context.Background(), []byte("null"))

	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Message, "invalid input")

	_, err = c.HTML(context.Background(), []byte("{"))
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestClient_Requests(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `[]`)
	mock.AddResponse(http.StatusOK, `{"run_id":"r1","data_url":"data:image/png;base64,AA=="}`)

	c := NewClient("http://reports.local", mock)
	runs, err := c.Runs(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)

	snap, err := c.Snapshot(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", snap.RunID)

	req := mock.GetRequest(0)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "http://reports.local/api/runs?limit=5", req.URL.String())

	req = mock.GetRequest(1)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/snapshot", req.URL.Path)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestClient_TransportError(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddErrorResponse(errors.New("connection refused"))

	_, err := NewClient("http://reports.local", mock).Version(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /api/version: connection refused")
}
