// Package client talks to the driftwatch daemon's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"driftwatch/pkg/sdk/types"
)

var (
	ErrScanNotReady      = errors.New("no scan has completed yet")
	ErrRestartDisabled   = errors.New("restarts are disabled on this host")
	ErrRestartInProgress = errors.New("a restart batch is already running")
)

type API interface {
	Health(ctx context.Context) error
	Scan(ctx context.Context) (*types.ScanResult, error)
	Outdated(ctx context.Context) ([]string, error)
	Trigger(ctx context.Context) error
	Restart(ctx context.Context, units []string) (types.RestartResponse, error)
	Restarts(ctx context.Context, unit string, limit int) ([]types.RestartRecord, error)
}

var _ API = (*Client)(nil)

type Client struct {
	base *url.URL
	http *http.Client
}

func New(server string) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(server), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must use http or https", server)
	}
	return &Client{base: base, http: &http.Client{Timeout: 30 * time.Second}}, nil
}

// APIError is a non-2xx response that did not map to a sentinel error.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) Scan(ctx context.Context) (*types.ScanResult, error) {
	var out types.ScanResult
	if err := c.do(ctx, http.MethodGet, "/compose", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Outdated(ctx context.Context) ([]string, error) {
	var out types.OutdatedResponse
	if err := c.do(ctx, http.MethodGet, "/compose/outdated", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Units, nil
}

func (c *Client) Trigger(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/compose/scan", nil, nil, nil)
}

// Restart asks the daemon to restart units. With no units the daemon restarts
// everything its last scan classified Outdated.
func (c *Client) Restart(ctx context.Context, units []string) (types.RestartResponse, error) {
	var out types.RestartResponse
	err := c.do(ctx, http.MethodPost, "/compose/outdated/restart", nil, types.RestartRequest{Units: units}, &out)
	return out, err
}

func (c *Client) Restarts(ctx context.Context, unit string, limit int) ([]types.RestartRecord, error) {
	q := url.Values{}
	if unit != "" {
		q.Set("path", unit)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Restarts []types.RestartRecord `json:"restarts"`
	}
	if err := c.do(ctx, http.MethodGet, "/compose/restarts", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Restarts, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return responseErr(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func responseErr(resp *http.Response) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &body)

	switch body.Error.Code {
	case "SCAN_NOT_READY":
		return ErrScanNotReady
	case "RESTART_DISABLED":
		return ErrRestartDisabled
	case "RESTART_IN_PROGRESS":
		return ErrRestartInProgress
	}
	msg := body.Error.Message
	if body.Error.Code == "" {
		msg = strings.TrimSpace(string(data))
	}
	return &APIError{Status: resp.StatusCode, Code: body.Error.Code, Message: msg}
}
