package datasets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// StatusError is returned when a server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Fetcher downloads remote files with exponential backoff.
// 4xx responses are not retried.
type Fetcher struct {
	client          *http.Client
	timeout         time.Duration
	maxTries        uint
	initialInterval time.Duration
}

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) FetchOption {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout bounds one Fetch call, retries included.
func WithTimeout(d time.Duration) FetchOption {
	return func(f *Fetcher) { f.timeout = d }
}

// WithMaxTries bounds the number of attempts.
func WithMaxTries(n uint) FetchOption {
	return func(f *Fetcher) { f.maxTries = n }
}

// WithInitialInterval sets the first retry delay.
func WithInitialInterval(d time.Duration) FetchOption {
	return func(f *Fetcher) { f.initialInterval = d }
}

// NewFetcher creates a Fetcher. Defaults: 60s timeout, 5 tries, 500ms first delay.
func NewFetcher(opts ...FetchOption) *Fetcher {
	f := &Fetcher{
		client:          http.DefaultClient,
		timeout:         60 * time.Second,
		maxTries:        5,
		initialInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the body of url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	logger := log.GetLoggerWithName("datasets.Fetcher").With(log.SourceKey, url)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.initialInterval

	attempt := 0
	start := time.Now()
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(errors.Wrap(err, "build request"))
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "GET %s", url)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			serr := errors.WithStack(&StatusError{URL: url, StatusCode: resp.StatusCode})
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(serr)
			}
			return nil, serr
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", url)
		}
		return b, nil
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(f.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Download failed, retrying",
				log.AttemptKey, attempt,
				log.ErrAttrKey, err.Error(),
				"retry_in_ms", next.Milliseconds(),
			)
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s after %d attempt(s)", url, attempt)
	}
	logger.Debug("Downloaded",
		log.AttemptKey, attempt,
		"bytes", len(body),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return body, nil
}

var defaultFetcher = NewFetcher()

// FetchCSV downloads a remote CSV with the default retry policy.
func FetchCSV(ctx context.Context, url string) ([]byte, error) {
	return defaultFetcher.Fetch(ctx, url)
}
