// Package fetch downloads workbook documents over HTTP with rate limiting,
// retries and a per-fetch timeout.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mwb/internal/config"
	"mwb/internal/logging"
	"mwb/internal/observability/metrics"
)

const (
	maxAttempts  = 5
	maxBodyBytes = 32 << 20
)

// ErrStructuredOnly is returned for non-forced fetches while the
// structured-only policy is on.
var ErrStructuredOnly = errors.New("document fetch disabled by structured-only policy")

// ErrTooLarge is returned when a body exceeds the download limit.
var ErrTooLarge = errors.New("response body too large")

// ErrStatus matches any StatusError through errors.Is.
var ErrStatus = errors.New("unexpected http status")

type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status=%d body=%s", e.URL, e.Status, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	log        *logging.Logger
	metrics    *metrics.ExtractionMetrics
	maxBody    int64
}

func NewClient(cfg config.Config, log *logging.Logger, m *metrics.ExtractionMetrics) *Client {
	if log == nil {
		log = logging.Discard()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    NewRateLimiter(cfg.FetchRateRPS),
		log:        log,
		metrics:    m,
		maxBody:    maxBodyBytes,
	}
}

// FetchText returns the body of rawURL as text. With the structured-only
// policy on, only forced fetches reach the network.
func (c *Client) FetchText(ctx context.Context, rawURL string, force bool) (string, error) {
	if c.cfg.StructuredOnly && !force {
		return "", ErrStructuredOnly
	}
	body, _, err := c.fetch(ctx, rawURL, "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchBytes returns the raw body of rawURL and its content type.
func (c *Client) FetchBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	return c.fetch(ctx, rawURL, "*/*")
}

func (c *Client) fetch(ctx context.Context, rawURL, accept string) ([]byte, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}

	if timeout := c.cfg.FetchTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	body, contentType, err := c.fetchWithRetry(ctx, u.String(), accept)
	outcome := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	c.metrics.ObserveFetch(outcome, time.Since(started).Seconds())
	if err != nil {
		c.log.Warn("fetch failed", "url", u.String(), "outcome", outcome, "error", err)
	}
	return body, contentType, err
}

func (c *Client) fetchWithRetry(ctx context.Context, target, accept string) ([]byte, string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, "", err
		}
		req.Header.Set("Accept", accept)
		if ua := strings.TrimSpace(c.cfg.FetchUserAgent); ua != "" {
			req.Header.Set("User-Agent", ua)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if int64(len(body)) > c.maxBody {
			return nil, "", fmt.Errorf("fetch %s: %w (limit %d bytes)", target, ErrTooLarge, c.maxBody)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &StatusError{URL: target, Status: resp.StatusCode, Body: snippet(body)}
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				lastErr = statusErr
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				if err := sleep(ctx, backoff); err != nil {
					return nil, "", err
				}
				continue
			}
			return nil, "", statusErr
		}

		return body, resp.Header.Get("Content-Type"), nil
	}

	if lastErr == nil {
		lastErr = errors.New("fetch request failed")
	}
	return nil, "", lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
