// Package fetcher provides the HTTP content fetcher used by URL sources and
// the playlist parser. A Factory is supplied at player construction; the
// player itself never fetches.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Content is one fetched resource. Callers own Body and must close it.
type Content struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
}

// Fetcher retrieves a single URL.
type Fetcher interface {
	// Fetch retrieves the resource. A non-2xx response is returned as a
	// *StatusError.
	Fetch(ctx context.Context) (*Content, error)
	URL() string
}

// Factory creates Fetchers. Treated as an opaque collaborator by the player.
type Factory interface {
	New(url string) Fetcher
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}

const (
	defaultTimeout     = 10 * time.Second
	defaultRate        = rate.Limit(10) // requests per second across the factory
	defaultBurst       = 5
	defaultMaxRetries  = 3
	defaultMaxInterval = 2 * time.Second
)

// HTTPFactory is the default Factory over net/http. All fetchers created by
// one factory share a rate limiter so a playlist with many segments cannot
// hammer a host.
type HTTPFactory struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPFactory creates a factory with its own client and limiter.
func NewHTTPFactory() *HTTPFactory {
	return &HTTPFactory{
		client:  &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
	}
}

// NewHTTPFactoryWithClient creates a factory around an existing client,
// for tests against httptest servers.
func NewHTTPFactoryWithClient(client *http.Client) *HTTPFactory {
	return &HTTPFactory{
		client:  client,
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
	}
}

func (f *HTTPFactory) New(url string) Fetcher {
	return &httpFetcher{
		url:     url,
		client:  f.client,
		limiter: f.limiter,
	}
}

type httpFetcher struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

func (f *httpFetcher) URL() string { return f.url }

// Fetch retrieves the URL with rate limiting and bounded retries. Transport
// errors and 5xx responses are retried with exponential backoff; 4xx
// responses are permanent.
func (f *httpFetcher) Fetch(ctx context.Context) (*Content, error) {
	requestID := uuid.NewString()

	var content *Content
	op := func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("X-Request-Id", requestID)

		resp, err := f.client.Do(req)
		if err != nil {
			slog.Debug("fetcher: request failed, may retry", "url", f.url, "requestId", requestID, "err", err)
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			content = &Content{
				URL:         f.url,
				StatusCode:  resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        resp.Body,
			}
			return nil
		}

		resp.Body.Close()
		statusErr := &StatusError{Code: resp.StatusCode, URL: f.url}
		if resp.StatusCode >= 500 {
			slog.Debug("fetcher: server error, may retry", "url", f.url, "requestId", requestID, "status", resp.StatusCode)
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = defaultMaxInterval
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, defaultMaxRetries), ctx)); err != nil {
		return nil, err
	}
	return content, nil
}
