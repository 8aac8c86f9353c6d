package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cotizador/backend/internal/domain"
)

const (
	remoteMaxAttempts  = 3
	remoteMaxBodyBytes = 32 << 20
	remoteUserAgent    = "cotizador/1.0"
)

// IsRemote reports whether path names an HTTP(S) catalog
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// RemoteClient downloads a catalog published over HTTP
type RemoteClient struct {
	httpClient   *http.Client
	url          string
	rateLimiter  *rate.Limiter
	maxBodyBytes int64
	backoff      func(attempt int) time.Duration
	log          *zap.Logger
}

// NewRemoteClient creates a client for the catalog at url
func NewRemoteClient(url string, log *zap.Logger) *RemoteClient {
	if log == nil {
		log = zap.NewNop()
	}

	return &RemoteClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		url: url,
		// Reloads come from file events and signals; never hammer the origin
		rateLimiter:  rate.NewLimiter(rate.Every(time.Second), remoteMaxAttempts),
		maxBodyBytes: remoteMaxBodyBytes,
		backoff:      exponentialBackoff,
		log:          log,
	}
}

// Fetch downloads the catalog body. Network errors, 429 and 5xx responses
// are retried with exponential backoff; other statuses fail immediately.
func (c *RemoteClient) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= remoteMaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		// Wait for rate limiter
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, retry, err := c.fetchOnce(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err

		c.log.Warn("catalog fetch failed",
			zap.String("url", c.url),
			zap.Int("attempt", attempt),
			zap.Bool("retry", retry && attempt < remoteMaxAttempts),
			zap.Error(err))
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *RemoteClient) fetchOnce(ctx context.Context) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", remoteUserAgent)
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", domain.ErrCatalogFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		return nil, retry, fmt.Errorf("%w: status %d", domain.ErrCatalogFetch, resp.StatusCode)
	}

	body, err := readLimitedBody(resp.Body, c.maxBodyBytes)
	if err != nil {
		return nil, false, err
	}
	return body, false, nil
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// readLimitedBody reads r completely, failing when it exceeds limit bytes.
// A truncated catalog would silently drop rows.
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrCatalogFetch, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrCatalogFetch, limit)
	}
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
