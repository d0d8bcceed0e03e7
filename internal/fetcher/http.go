package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// HostRate is the request rate given to hosts without an entry in RateLimiters.
	HostRate     rate.Limit
	RateLimiters map[string]*rate.Limiter
}

// HTTPFetcher downloads dataset files over HTTP(S). Transient failures
// (network errors, 429, 5xx) are retried with exponential backoff, and each
// host gets its own token bucket.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher returns an HTTPFetcher with defaults filled in.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.HostRate == 0 {
		opts.HostRate = 5
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "impression-cli/1.0"
	}

	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for host, lim := range opts.RateLimiters {
		limiters[host] = lim
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	var host string
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		burst := 1
		if f.opts.HostRate > 1 && f.opts.HostRate != rate.Inf {
			burst = int(f.opts.HostRate)
		}
		lim = rate.NewLimiter(f.opts.HostRate, burst)
		f.limiters[host] = lim
	}
	return lim
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// backoffDelay is the un-jittered wait before retry attempt+1.
func backoffDelay(base, ceiling time.Duration, attempt int) time.Duration {
	if attempt >= 32 {
		return ceiling
	}
	d := base << attempt
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}

// retryAfter reads a delay-seconds Retry-After header. HTTP dates are ignored.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func (f *HTTPFetcher) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	lim := f.limiterFor(req.URL.String())
	log := zap.L().With(zap.String("url", req.URL.Redacted()))

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		wait := backoffDelay(f.opts.BaseBackoff, f.opts.MaxBackoff, attempt)
		resp, err := f.client.Do(req.Clone(ctx))
		switch {
		case err != nil:
			lastErr = err
			log.Warn("fetcher: request failed", zap.Int("attempt", attempt+1), zap.Error(err))
		case retryable(resp.StatusCode):
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d", resp.StatusCode)
			if d, ok := retryAfter(resp); ok {
				wait = min(d, f.opts.MaxBackoff)
			}
			log.Warn("fetcher: retryable status",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
			)
		default:
			return resp, nil
		}

		if attempt == f.opts.MaxRetries-1 {
			break
		}
		if err := sleep(ctx, jitter(wait)); err != nil {
			return nil, eris.Wrap(err, "fetcher: backoff")
		}
	}
	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

func jitter(d time.Duration) time.Duration {
	if half := int64(d) / 2; half > 0 {
		return d + time.Duration(rand.Int64N(half))
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Download returns the body of a 200 response for rawURL.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, req.URL.Redacted())
	}
	return resp.Body, nil
}

// DownloadToFile writes the body for rawURL to path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck
	return writeFile(path, body)
}

// writeFile streams r into path through a sibling .part file, so a failed
// transfer never leaves a truncated dataset at path.
func writeFile(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrap(err, "rename file")
	}
	return n, nil
}
