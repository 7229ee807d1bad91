// Package blogapi is a client for the remote content API that stores blog
// post metadata. Only the listing and upsert endpoints are used.
package blogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dileepadev/blogsync/pkg/logger"
	"github.com/dileepadev/blogsync/pkg/version"
)

const (
	// APIKeyHeader carries the sync API key
	APIKeyHeader = "x-api-key"
	// RunIDHeader identifies all requests made by one sync run
	RunIDHeader = "x-sync-run-id"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

// Record is a post as listed by the remote API. Only slug and index are
// decoded; any other fields are ignored whatever their type.
type Record struct {
	Slug  string `json:"slug"`
	Index int    `json:"index"`
}

// SyncRequest is the body of an upsert call
type SyncRequest struct {
	Slug      string  `json:"slug"`
	Index     int     `json:"index"`
	Title     string  `json:"title"`
	Date      *string `json:"date,omitempty"`
	Excerpt   *string `json:"excerpt,omitempty"`
	Link      string  `json:"link"`
	BannerURL string  `json:"bannerUrl"`
}

// SyncResponse is the decoded body of a successful upsert
type SyncResponse struct {
	// ID is the stored identifier in text form, whatever its JSON type
	ID string
}

// UnmarshalJSON accepts an _id of any JSON type
func (r *SyncResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID any `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = ""
	if raw.ID != nil {
		r.ID = fmt.Sprint(raw.ID)
	}
	return nil
}

// StatusError is returned when the API answers with a non-success status
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client talks to the content API
type Client struct {
	baseURL    string
	apiKey     string
	runID      string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRunID tags every request with the given run identifier
func WithRunID(id string) Option {
	return func(c *Client) {
		c.runID = id
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for the API rooted at baseURL. The API key is only
// needed for SyncBlog.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		userAgent: "blogsync/" + version.Get().Version,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListBlogs fetches every post record known to the API
func (c *Client) ListBlogs(ctx context.Context) ([]Record, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/blogs", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "failed to decode blog list")
	}

	logger.G(ctx).WithField("count", len(records)).Debug("fetched existing blogs")
	return records, nil
}

// SyncBlog upserts a post keyed by its slug
func (c *Client) SyncBlog(ctx context.Context, blog SyncRequest) (*SyncResponse, error) {
	body, err := json.Marshal(blog)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode sync request")
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/blogs/sync", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, c.apiKey)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result := &SyncResponse{}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sync response")
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			// the upsert went through; the body is only used for logging
			logger.G(ctx).WithError(err).WithField("slug", blog.Slug).Debug("sync response is not JSON")
		}
	}

	return result, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s %s request", method, path)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.runID != "" {
		req.Header.Set(RunIDHeader, c.runID)
	}
	return req, nil
}

// do sends the request and converts non-2xx responses into a *StatusError
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s failed", req.Method, req.URL.Path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return resp, nil
}
