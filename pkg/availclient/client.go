// Package availclient is a thin client for a remote availability
// service: GET with read-through caching and retry with exponential
// backoff and jitter.
package availclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/avail/pkg/httpcache"
	"github.com/codeGROOVE-dev/avail/pkg/peaks"
	"github.com/codeGROOVE-dev/retry"
)

// ScoreResponse is the availability score payload served at /api/score.
type ScoreResponse struct {
	At    time.Time `json:"at"`
	Score float64   `json:"score"`
}

type peaksResponse struct {
	Peaks []peaks.PeakEntry `json:"peaks"`
}

type optimalResponse struct {
	Optimal   *peaks.Recommendation `json:"optimal,omitempty"`
	Available bool                  `json:"available"`
}

// Client talks to one availability server.
type Client struct {
	logger        *slog.Logger
	doer          httpcache.Doer
	baseURL       string
	retryAttempts uint
	retryDelay    time.Duration
	retryMaxDelay time.Duration
}

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	cache      *httpcache.Cache
	timeout    time.Duration
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithCache enables read-through response caching.
func WithCache(cache *httpcache.Cache) Option {
	return func(o *options) { o.cache = cache }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, logger *slog.Logger, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("server URL %q must use http or https", baseURL)
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &options{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: o.timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	var doer httpcache.Doer = httpClient
	if o.cache != nil {
		doer = httpcache.NewClient(o.cache, httpClient, logger)
	}

	return &Client{
		baseURL:       strings.TrimSuffix(parsed.String(), "/"),
		doer:          doer,
		logger:        logger,
		retryAttempts: 5,
		retryDelay:    time.Second,
		retryMaxDelay: 2 * time.Minute,
	}, nil
}

// Score fetches the current availability score.
func (c *Client) Score(ctx context.Context) (ScoreResponse, error) {
	var out ScoreResponse
	if err := c.getJSON(ctx, "/api/score", nil, &out); err != nil {
		return ScoreResponse{}, err
	}
	return out, nil
}

// Peaks fetches the top peak periods. limit <= 0 uses the server
// default.
func (c *Client) Peaks(ctx context.Context, limit int) ([]peaks.PeakEntry, error) {
	params := map[string]string{}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	var out peaksResponse
	if err := c.getJSON(ctx, "/api/peaks", params, &out); err != nil {
		return nil, err
	}
	return out.Peaks, nil
}

// OptimalTime fetches the next optimal time recommendation. A nil
// result with nil error means the server has no data yet, not a
// failure.
func (c *Client) OptimalTime(ctx context.Context) (*peaks.Recommendation, error) {
	var out optimalResponse
	if err := c.getJSON(ctx, "/api/optimal", nil, &out); err != nil {
		return nil, err
	}
	if !out.Available {
		return nil, nil
	}
	return out.Optimal, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params map[string]string, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("building request URL: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	body, err := c.doWithRetry(ctx, u.String())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// doWithRetry performs a GET with exponential backoff and jitter.
// Rate limiting and other client errors are not retried; server errors
// and transport failures are.
func (c *Client) doWithRetry(ctx context.Context, requestURL string) ([]byte, error) {
	start := time.Now()

	var body []byte
	var lastErr error

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("building request: %w", err))
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.doer.Do(req)
			if err != nil {
				c.logger.Warn("request failed",
					"url", requestURL,
					"error", err,
					"duration", time.Since(start),
				)
				lastErr = err
				return err
			}

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				_ = resp.Body.Close()
				lastErr = fmt.Errorf("rate limited by server")
				return retry.Unrecoverable(lastErr)
			case resp.StatusCode >= 500:
				respBody, _ := io.ReadAll(resp.Body)
				_ = resp.Body.Close()
				c.logger.Warn("server error",
					"url", requestURL,
					"status", resp.StatusCode,
					"body", string(respBody),
				)
				lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
				return lastErr
			case resp.StatusCode != http.StatusOK:
				_ = resp.Body.Close()
				lastErr = fmt.Errorf("unexpected status: %d", resp.StatusCode)
				return retry.Unrecoverable(lastErr)
			default:
			}

			body, err = io.ReadAll(resp.Body)
			if closeErr := resp.Body.Close(); closeErr != nil {
				c.logger.Debug("failed to close response body", "error", closeErr)
			}
			if err != nil {
				lastErr = fmt.Errorf("reading response body: %w", err)
				return lastErr
			}

			c.logger.Debug("request completed",
				"url", requestURL,
				"status", resp.StatusCode,
				"from_cache", resp.Header.Get("X-From-Cache") == "true",
				"duration", time.Since(start),
			)
			return nil
		},
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(c.retryMaxDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("retrying request",
				"url", requestURL,
				"attempt", n+1,
				"error", err,
			)
		}),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		c.logger.Error("request failed after retries",
			"url", requestURL,
			"error", lastErr,
			"duration", time.Since(start),
		)
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}

	return body, nil
}
