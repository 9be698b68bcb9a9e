package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/qepting91/reddit-export/internal/domain"
)

// maxPages bounds any pagination loop.
const maxPages = 500

// nearListingCap is where Reddit listings stop handing out pages: about 1000
// items, a few less when removed items are skipped.
const nearListingCap = 900

type options struct {
	baseURL    string
	limiter    *rate.Limiter
	backoff    func() retry.Backoff
	pageSize   int
	httpClient *http.Client
}

// Option tunes a collector.
type Option func(*options)

// WithBaseURL points the collector at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithLimiter replaces the default request pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n uint64) Option {
	return func(o *options) {
		o.backoff = func() retry.Backoff {
			return retry.WithMaxRetries(n, retry.WithJitterPercent(10, retry.NewExponential(2*time.Second)))
		}
	}
}

// WithBackoff replaces the retry policy. f is called once per request.
func WithBackoff(f func() retry.Backoff) Option {
	return func(o *options) { o.backoff = f }
}

// WithPageSize sets the listing page size.
func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func newOptions(baseURL string, every time.Duration, opts []Option) options {
	o := options{
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Every(every), 1),
		pageSize:   100,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	WithMaxRetries(4)(&o)
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// do paces and retries f. Only transient errors are retried; when retries
// run out the last transient error is returned.
func (o options) do(ctx context.Context, what string, f func(context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, o.backoff(), func(ctx context.Context) error {
		attempt++
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
		err := f(ctx)
		if domain.IsTransient(err) {
			slog.WarnContext(ctx, "Request failed, retrying", "request", what, "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

// statusError maps an HTTP status to the fetch error taxonomy.
func statusError(code int, what string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return domain.Transient(fmt.Errorf("%s: http %d", what, code))
	default:
		return domain.Permanent(fmt.Errorf("%s: http %d", what, code))
	}
}

// listingExhausted is called when a newest-first listing has no next page
// and no item older than since has shown up. Near the depth cap that means
// the window was cut short rather than fully covered.
func listingExhausted(what string, since time.Time, n int) error {
	if since.IsZero() || n < nearListingCap {
		return nil
	}
	return domain.Transient(fmt.Errorf("%s: listing ended after %d items before reaching %s: %w",
		what, n, since.UTC().Format(time.RFC3339), domain.ErrIncomplete))
}
