package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/syncbrowse/syncbrowse/internal/constants"
	inthttp "github.com/syncbrowse/syncbrowse/internal/http"
	"github.com/syncbrowse/syncbrowse/internal/logging"
	"github.com/syncbrowse/syncbrowse/internal/version"
)

// FeedError is a non-2xx response from the event feed.
type FeedError struct {
	StatusCode int
	Body       string
}

func (e *FeedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("event feed returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("event feed returned HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus implements inthttp.StatusError.
func (e *FeedError) HTTPStatus() int { return e.StatusCode }

// Client long-polls the daemon's event feed.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *nethttp.Client
	Logger  *logging.Logger

	// Timeout is the server-side long-poll timeout.
	Timeout time.Duration
	// Backoff is the fixed sleep after a failed or malformed poll.
	Backoff time.Duration

	// OnBatch, if set, is called with every processed non-empty batch
	// before its invalidations are queued. Used by the headless feed.
	OnBatch func(BatchResult)
}

// NewClient creates a client with the default timeout and backoff.
func NewClient(baseURL, apiKey string, httpClient *nethttp.Client, logger *logging.Logger) *Client {
	if httpClient == nil {
		httpClient = nethttp.DefaultClient
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    httpClient,
		Logger:  logger,
		Timeout: constants.EventLongPollTimeout,
		Backoff: constants.EventBackoff,
	}
}

// Run polls until ctx is cancelled, which is the only way it returns.
//
// For every non-empty batch the invalidations are pushed first, in arrival
// order, followed by exactly one watermark carrying the batch's last ID.
// Sinks never block, so Run only ever waits on the network and its backoff.
func (c *Client) Run(ctx context.Context, lastID uint64, invalidations Sink[CacheInvalidation], watermarks Sink[uint64]) error {
	c.Logger.Info().Str("url", c.BaseURL).Uint64("last_id", lastID).Msg("event feed started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := c.Poll(ctx, lastID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			kind := inthttp.ClassifyError(err)
			c.Logger.Warn().Err(err).
				Str("kind", inthttp.ErrorTypeName(kind)).
				Uint64("last_id", lastID).
				Dur("backoff", c.Backoff).
				Msg("event poll failed")
			if err := sleep(ctx, c.Backoff); err != nil {
				return err
			}
			continue
		}
		if len(batch) == 0 {
			continue
		}

		res := ProcessBatch(lastID, batch)
		for _, gap := range res.Gaps {
			c.Logger.Warn().
				Uint64("last_id", gap.LastID).
				Uint64("event_id", gap.EventID).
				Uint64("missed", gap.Missed()).
				Msg("event id gap, cache may be stale for the skipped range")
		}
		if c.OnBatch != nil {
			c.OnBatch(res)
		}

		for _, inv := range res.Invalidations {
			invalidations.Push(inv)
		}
		lastID = res.LastID
		watermarks.Push(lastID)
		c.Logger.Debug().
			Int("events", len(batch)).
			Int("invalidations", len(res.Invalidations)).
			Uint64("last_id", lastID).
			Msg("event batch processed")
	}
}

// Poll issues one long-poll request for events after lastID. An empty slice
// means the server timed out with nothing new.
func (c *Client) Poll(ctx context.Context, lastID uint64) ([]RawEvent, error) {
	q := url.Values{}
	q.Set("since", strconv.FormatUint(lastID, 10))
	q.Set("timeout", strconv.Itoa(int(c.Timeout/time.Second)))

	reqCtx, cancel := context.WithTimeout(ctx, c.Timeout+constants.EventRequestSlack)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(reqCtx, nethttp.MethodGet, c.BaseURL+"/rest/events?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build event request: %w", err)
	}
	req.Header.Set("X-API-Key", c.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("event request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FeedError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var batch []RawEvent
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, &inthttp.ProtocolError{Op: "events", Err: err}
	}
	return batch, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
