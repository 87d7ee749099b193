// Package api is the client for the daemon's snapshot REST API: folder
// configuration and status, directory listings, needed files, per-file
// detail, ignore patterns, and the revert, restore and rescan actions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/syncbrowse/syncbrowse/internal/config"
	"github.com/syncbrowse/syncbrowse/internal/constants"
	inthttp "github.com/syncbrowse/syncbrowse/internal/http"
	"github.com/syncbrowse/syncbrowse/internal/logging"
	"github.com/syncbrowse/syncbrowse/internal/models"
	"github.com/syncbrowse/syncbrowse/internal/ratelimit"
	"github.com/syncbrowse/syncbrowse/internal/validation"
	"github.com/syncbrowse/syncbrowse/internal/version"
)

// Remote is the snapshot API surface the browser depends on.
type Remote interface {
	Ping(ctx context.Context) error
	Folders(ctx context.Context) ([]models.Folder, error)
	FolderStatus(ctx context.Context, folder string) (models.FolderStatus, error)
	Browse(ctx context.Context, folder, prefix string) ([]models.Entry, error)
	Need(ctx context.Context, folder string) (models.NeedResponse, error)
	File(ctx context.Context, folder, path string) (*models.FileDetail, error)
	Ignores(ctx context.Context, folder string) (models.Ignores, error)
	SetIgnores(ctx context.Context, folder string, patterns []string) error
	Revert(ctx context.Context, folder string) error
	Versions(ctx context.Context, folder string) (map[string][]models.FileVersion, error)
	RestoreVersions(ctx context.Context, folder string, versions map[string]time.Time) (map[string]string, error)
	Scan(ctx context.Context, folder, sub string) error
}

// retryLogger adapts retryablehttp's leveled logger to zerolog.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client talks to one daemon.
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	apiKey     string
	limiter    *ratelimit.RateLimiter
	logger     *logging.Logger
}

var _ Remote = (*Client)(nil)

// NewClient creates a client for cfg's daemon. Requests are rate limited,
// retried with backoff on transport errors and 429/5xx, and a throttling
// response puts the limiter into cooldown for the server's Retry-After.
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("daemon base URL is empty: %w", config.ErrMissingBaseURL)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	httpClient, err := inthttp.CreateClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	return newClient(httpClient, cfg.BaseURL, cfg.APIKey, logger), nil
}

func newClient(httpClient *nethttp.Client, baseURL, apiKey string, logger *logging.Logger) *Client {
	limiter := ratelimit.NewSnapshotRateLimiter()
	limiter.SetLogger(logger)

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = &retryLogger{logger: logger}
	retryClient.CheckRetry = inthttp.RetryPolicy
	retryClient.Backoff = inthttp.RetryBackoff
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.ResponseLogHook = func(_ retryablehttp.Logger, resp *nethttp.Response) {
		if resp.StatusCode != nethttp.StatusTooManyRequests && resp.StatusCode != nethttp.StatusServiceUnavailable {
			return
		}
		wait := retryAfter(resp.Header.Get("Retry-After"))
		limiter.SetCooldown(wait)
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("path", resp.Request.URL.Path).
			Dur("cooldown", wait).
			Msg("daemon throttled snapshot requests")
	}

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    limiter,
		logger:     logger,
	}
}

// retryAfter parses a Retry-After header in seconds, defaulting to 2s.
func retryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := nethttp.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 2 * time.Second
}

// BaseURL returns the daemon URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the client's retrying HTTP client.
func (c *Client) HTTPClient() *nethttp.Client {
	return c.httpClient
}

// do performs one API call, decoding a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter cancelled: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := nethttp.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("api call failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &inthttp.ProtocolError{Op: method + " " + path, Err: err}
	}
	return nil
}

func folderQuery(folder string) url.Values {
	q := url.Values{}
	q.Set("folder", folder)
	return q
}

// Ping checks the daemon is reachable and the API key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Ping string `json:"ping"`
	}
	if err := c.do(ctx, nethttp.MethodGet, "/rest/system/ping", nil, nil, &out); err != nil {
		return err
	}
	if out.Ping != "pong" {
		return &inthttp.ProtocolError{Op: "ping", Err: fmt.Errorf("unexpected reply %q", out.Ping)}
	}
	return nil
}

// Folders lists the configured folders.
func (c *Client) Folders(ctx context.Context) ([]models.Folder, error) {
	var out []models.Folder
	if err := c.do(ctx, nethttp.MethodGet, "/rest/config/folders", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FolderStatus fetches one folder's status snapshot.
func (c *Client) FolderStatus(ctx context.Context, folder string) (models.FolderStatus, error) {
	var out models.FolderStatus
	err := c.do(ctx, nethttp.MethodGet, "/rest/db/status", folderQuery(folder), nil, &out)
	return out, err
}

// Browse lists the direct children of prefix ("" for the folder root).
func (c *Client) Browse(ctx context.Context, folder, prefix string) ([]models.Entry, error) {
	q := folderQuery(folder)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		q.Set("prefix", prefix)
	}
	q.Set("levels", "0")

	out := []models.Entry{}
	if err := c.do(ctx, nethttp.MethodGet, "/rest/db/browse", q, nil, &out); err != nil {
		return nil, err
	}
	// Names end up in cache keys and local paths.
	kept := out[:0]
	for _, e := range out {
		if err := validation.ValidateEntryName(e.Name); err != nil {
			c.logger.Warn().Err(err).Str("folder", folder).Str("prefix", prefix).Msg("dropping invalid entry")
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}

// Need returns the paths the folder still has to pull.
func (c *Client) Need(ctx context.Context, folder string) (models.NeedResponse, error) {
	q := folderQuery(folder)
	q.Set("perpage", strconv.Itoa(constants.NeedPageSize))
	var out models.NeedResponse
	err := c.do(ctx, nethttp.MethodGet, "/rest/db/need", q, nil, &out)
	return out, err
}

// File returns the local and global record of one path.
func (c *Client) File(ctx context.Context, folder, path string) (*models.FileDetail, error) {
	q := folderQuery(folder)
	q.Set("file", strings.Trim(path, "/"))
	var out models.FileDetail
	if err := c.do(ctx, nethttp.MethodGet, "/rest/db/file", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ignores returns the folder's ignore patterns.
func (c *Client) Ignores(ctx context.Context, folder string) (models.Ignores, error) {
	var out models.Ignores
	err := c.do(ctx, nethttp.MethodGet, "/rest/db/ignores", folderQuery(folder), nil, &out)
	return out, err
}

// SetIgnores replaces the folder's ignore patterns.
func (c *Client) SetIgnores(ctx context.Context, folder string, patterns []string) error {
	if patterns == nil {
		patterns = []string{}
	}
	return c.do(ctx, nethttp.MethodPost, "/rest/db/ignores", folderQuery(folder), models.Ignores{Ignore: patterns}, nil)
}

// Revert discards local changes in a receive-only folder.
func (c *Client) Revert(ctx context.Context, folder string) error {
	return c.do(ctx, nethttp.MethodPost, "/rest/db/revert", folderQuery(folder), nil, nil)
}

// Versions lists archived versions per path.
func (c *Client) Versions(ctx context.Context, folder string) (map[string][]models.FileVersion, error) {
	out := map[string][]models.FileVersion{}
	if err := c.do(ctx, nethttp.MethodGet, "/rest/folder/versions", folderQuery(folder), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RestoreVersions restores the given path -> version time pairs. The result
// maps paths that failed to their error message.
func (c *Client) RestoreVersions(ctx context.Context, folder string, versions map[string]time.Time) (map[string]string, error) {
	out := map[string]string{}
	if err := c.do(ctx, nethttp.MethodPost, "/rest/folder/versions", folderQuery(folder), versions, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Scan asks the daemon to rescan a folder, or one path of it when sub is set.
func (c *Client) Scan(ctx context.Context, folder, sub string) error {
	q := folderQuery(folder)
	if sub = strings.Trim(sub, "/"); sub != "" {
		q.Set("sub", sub)
	}
	return c.do(ctx, nethttp.MethodPost, "/rest/db/scan", q, nil, nil)
}
