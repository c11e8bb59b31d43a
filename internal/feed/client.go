package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
)

// Headers the upstream service requires on every request.
const (
	headerOrigin    = "https://fastpokemap.se"
	headerUserAgent = "Mozilla/5.0 (Windows NT 6.1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/41.0.2228.0 Safari/537.36"
	headerAuthority = "api.fastpokemap.se"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the sighting feed for a coordinate.
type Client struct {
	client  HTTPClient
	baseURL string
	key     string
	backoff time.Duration
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBackoff overrides the default 5-second retry backoff.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// New creates a Client for the given endpoint and access key.
func New(client HTTPClient, baseURL, key string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		client:  client,
		baseURL: baseURL,
		key:     key,
		backoff: 5 * time.Second,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query fetches sightings around the coordinate. Transient failures (network
// errors, empty or malformed bodies, responses without a result marker) are
// retried with a fixed backoff until a well-formed response arrives or ctx is
// cancelled.
func (c *Client) Query(ctx context.Context, lat, lng float64) (*Response, error) {
	var resp *Response
	err := retry.Do(ctx, retry.NewConstant(c.backoff), func(ctx context.Context) error {
		r, err := c.queryOnce(ctx, lat, lng)
		if err != nil {
			c.log.Warn("feed query failed, will retry", "lat", lat, "lng", lng, "error", err)
			return retry.RetryableError(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) queryOnce(ctx context.Context, lat, lng float64) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryURL(lat, lng), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Origin", headerOrigin)
	req.Header.Set("User-Agent", headerUserAgent)
	req.Header.Set("Authority", headerAuthority)

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", httpResp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	resp, ok := Decode(body)
	if !ok {
		return nil, fmt.Errorf("server overloaded or malformed body (%d bytes)", len(body))
	}
	return resp, nil
}

func (c *Client) queryURL(lat, lng float64) string {
	q := url.Values{}
	q.Set("key", c.key)
	q.Set("ts", "0")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	return c.baseURL + "?" + q.Encode()
}
