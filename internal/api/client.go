package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/geometry.report/internal/db"
	"github.com/banshee-data/geometry.report/internal/httputil"
	"github.com/banshee-data/geometry.report/internal/pipeline"
	"github.com/banshee-data/geometry.report/internal/version"
)

// Client talks to a remote report server.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// NewClient returns a client for the server at baseURL. A nil c uses
// http.DefaultClient.
func NewClient(baseURL string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: c}
}

// Charts posts a payload and returns the full run result.
func (c *Client) Charts(ctx context.Context, body []byte) (*pipeline.Result, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/charts", body)
	if err != nil {
		return nil, err
	}
	var res pipeline.Result
	if err := httputil.DecodeJSON(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Snapshot posts a payload and returns the PNG snapshot data URL.
func (c *Client) Snapshot(ctx context.Context, body []byte) (*SnapshotResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/snapshot", body)
	if err != nil {
		return nil, err
	}
	var res SnapshotResponse
	if err := httputil.DecodeJSON(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// HTML posts a payload and returns the interactive chart page.
func (c *Client) HTML(ctx context.Context, body []byte) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, "/charts", body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httputil.DecodeJSON(resp, nil)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Runs lists recent runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]db.Run, error) {
	path := "/api/runs"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var runs []db.Run
	if err := httputil.DecodeJSON(resp, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Version returns the server build metadata.
func (c *Client) Version(ctx context.Context) (version.Info, error) {
	var info version.Info
	resp, err := c.do(ctx, http.MethodGet, "/api/version", nil)
	if err != nil {
		return info, err
	}
	err = httputil.DecodeJSON(resp, &info)
	return info, err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
