// Package client is a typed REST and push-stream client for the filecat
// server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"filecat/internal/api"
	"filecat/internal/filecat"
)

// DefaultTimeout bounds every REST call. The push stream has no timeout.
const DefaultTimeout = 30 * time.Second

// Client talks to one filecat server.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout overrides DefaultTimeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    DefaultTimeout,
		httpClient: &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: 10}},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "client"))
	return c, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends one request and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	op := method + " " + path
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &TransportError{Op: op, Err: err}
		}
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body api.ErrorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

// --- files ---

func (c *Client) ListFiles(ctx context.Context, filter filecat.FileFilter) ([]*filecat.FileRecord, error) {
	var files []*filecat.FileRecord
	err := c.do(ctx, http.MethodGet, "/api/v1/files?filter="+strconv.Itoa(int(filter)), nil, &files)
	return files, err
}

func (c *Client) LatestPerCategory(ctx context.Context) ([]*filecat.FileRecord, error) {
	var files []*filecat.FileRecord
	err := c.do(ctx, http.MethodGet, "/api/v1/files/latest", nil, &files)
	return files, err
}

func (c *Client) ListByCategory(ctx context.Context, category string) ([]*filecat.FileRecord, error) {
	var files []*filecat.FileRecord
	err := c.do(ctx, http.MethodGet, "/api/v1/files/category/"+url.PathEscape(category), nil, &files)
	return files, err
}

func (c *Client) GetFile(ctx context.Context, id int64) (*filecat.FileRecord, error) {
	var rec filecat.FileRecord
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/files/%d", id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) SetCategory(ctx context.Context, id int64, category string) (*filecat.FileRecord, error) {
	var rec filecat.FileRecord
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/files/%d", id), api.SetCategoryRequest{Category: category}, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) NotShowAgain(ctx context.Context, id int64) (*filecat.FileRecord, error) {
	var rec filecat.FileRecord
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/v1/files/%d/not-show-again", id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) Acknowledge(ctx context.Context, id int64) (*filecat.FileRecord, error) {
	var rec filecat.FileRecord
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/v1/files/%d/acknowledge", id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) DeleteFile(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/files/%d", id), nil, nil)
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := c.do(ctx, http.MethodGet, "/api/v1/categories", nil, &categories)
	return categories, err
}

// --- actions ---

func (c *Client) submit(ctx context.Context, path string, body any) (string, error) {
	var accepted api.JobAccepted
	if err := c.do(ctx, http.MethodPost, path, body, &accepted); err != nil {
		return "", err
	}
	return accepted.JobID, nil
}

// RefreshFiles starts a refresh job and returns its id.
func (c *Client) RefreshFiles(ctx context.Context) (string, error) {
	return c.submit(ctx, "/api/v1/actions/refresh-files", nil)
}

func (c *Client) ForceCategorize(ctx context.Context, force bool) (string, error) {
	return c.submit(ctx, "/api/v1/actions/force-categorize", api.ForceCategorizeRequest{ForceRecategorization: force})
}

func (c *Client) MoveFiles(ctx context.Context, req filecat.MoveRequest) (string, error) {
	return c.submit(ctx, "/api/v1/actions/move-files", req)
}

func (c *Client) TrainModel(ctx context.Context) (string, error) {
	return c.submit(ctx, "/api/v1/actions/train-model", nil)
}

func (c *Client) Jobs(ctx context.Context) ([]api.JobStatus, error) {
	var jobs []api.JobStatus
	err := c.do(ctx, http.MethodGet, "/api/v1/actions/jobs", nil, &jobs)
	return jobs, err
}

func (c *Client) JobStatus(ctx context.Context, jobID string) (*api.JobStatus, error) {
	var status api.JobStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/actions/jobs/"+url.PathEscape(jobID)+"/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/actions/jobs/"+url.PathEscape(jobID), nil, nil)
}

func (c *Client) History(ctx context.Context, limit int) ([]*filecat.BatchJob, error) {
	var jobs []*filecat.BatchJob
	err := c.do(ctx, http.MethodGet, "/api/v1/actions/history?limit="+strconv.Itoa(limit), nil, &jobs)
	return jobs, err
}

// --- configs ---

func (c *Client) Configs(ctx context.Context, environment string) ([]*filecat.ConfigEntry, error) {
	path := "/api/v1/configs"
	if environment != "" {
		path += "?environment=" + url.QueryEscape(environment)
	}
	var entries []*filecat.ConfigEntry
	err := c.do(ctx, http.MethodGet, path, nil, &entries)
	return entries, err
}

func (c *Client) PutConfig(ctx context.Context, key, value, environment string) (*filecat.ConfigEntry, error) {
	var entry filecat.ConfigEntry
	err := c.do(ctx, http.MethodPut, "/api/v1/configs/"+url.PathEscape(key),
		api.PutConfigRequest{Value: value, Environment: environment}, &entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) DeleteConfig(ctx context.Context, environment, key string) error {
	path := "/api/v1/configs/" + url.PathEscape(key)
	if environment != "" {
		path += "?environment=" + url.QueryEscape(environment)
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
