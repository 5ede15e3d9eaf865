package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/hui-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	DefaultRate rate.Limit // applied to hosts without a dedicated limiter
}

// AdaptiveLimiter tunes a rate.Limiter to the host's mood: each success
// nudges the rate up, a 429 halves it. The rate stays within
// [initial/4, initial*2] so one bad stretch cannot park a sync forever.
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	current rate.Limit
	floor   rate.Limit
	ceil    rate.Limit
}

// NewAdaptiveLimiter builds a self-tuning limiter around an initial rate.
func NewAdaptiveLimiter(initial rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(initial, burst),
		current: initial,
		floor:   initial / 4,
		ceil:    initial * 2,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess nudges the rate up 20%, capped at the ceiling.
func (a *AdaptiveLimiter) OnSuccess() { a.retune(1.2) }

// OnRateLimit halves the rate after a 429.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.retune(0.5)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(a.Limit())),
	)
}

func (a *AdaptiveLimiter) retune(factor rate.Limit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current * factor
	if next > a.ceil {
		next = a.ceil
	}
	if next < a.floor {
		next = a.floor
	}
	a.current = next
	a.limiter.SetLimit(next)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// HTTPFetcher implements Fetcher over net/http with per-host rate
// limiting and retry on throttling and server errors.
type HTTPFetcher struct {
	client           *http.Client
	opts             HTTPOptions
	defaultLimiter   *rate.Limiter
	adaptiveLimiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "hui-cli/2.0"
	}
	if opts.DefaultRate == 0 {
		opts.DefaultRate = 2
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:             opts,
		defaultLimiter:   rate.NewLimiter(opts.DefaultRate, int(math.Max(1, float64(opts.DefaultRate)))),
		adaptiveLimiters: DefaultAdaptiveLimiters(),
	}
}

// DefaultAdaptiveLimiters covers the two census hosts the sources pull
// from. api.census.gov throttles unkeyed clients aggressively; the
// bulk-file mirror tolerates more.
func DefaultAdaptiveLimiters() map[string]*AdaptiveLimiter {
	return map[string]*AdaptiveLimiter{
		"api.census.gov":  NewAdaptiveLimiter(2, 2),
		"www2.census.gov": NewAdaptiveLimiter(5, 5),
	}
}

func (f *HTTPFetcher) adaptiveLimiterFor(rawURL string) *AdaptiveLimiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return f.adaptiveLimiters[u.Host]
}

// waitTurn blocks on the host's adaptive limiter when there is one,
// otherwise on the shared default limiter.
func (f *HTTPFetcher) waitTurn(ctx context.Context, rawURL string) error {
	var err error
	if adaptive := f.adaptiveLimiterFor(rawURL); adaptive != nil {
		err = adaptive.Wait(ctx)
	} else {
		err = f.defaultLimiter.Wait(ctx)
	}
	return eris.Wrap(err, "rate limiter wait")
}

func (f *HTTPFetcher) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "build %s request for %s", method, rawURL)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	return req, nil
}

// doWithRetry issues the request until a non-retryable response arrives
// or attempts run out. 429s also feed the host's adaptive limiter so the
// next request arrives slower.
func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	target := req.URL.String()
	adaptive := f.adaptiveLimiterFor(target)

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if err := f.waitTurn(ctx, target); err != nil {
			return nil, err
		}

		resp, err := f.client.Do(req.Clone(ctx))
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http 429 from %s", target)
			if adaptive != nil {
				adaptive.OnRateLimit()
			}
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, target)
		default:
			if adaptive != nil {
				adaptive.OnSuccess()
			}
			return resp, nil
		}

		zap.L().Warn("http request failed, retrying",
			zap.String("url", target),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
		backoffSleep(ctx, attempt)
	}
	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

// backoffSleep waits out a doubling backoff with jitter, capped at 30s,
// returning early on context cancellation.
func backoffSleep(ctx context.Context, attempt int) {
	d := time.Second << attempt
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := f.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL and writes it to the given path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "create %s", path)
	}
	n, err := io.Copy(file, body)
	if err != nil {
		_ = file.Close()
		return n, eris.Wrapf(err, "write %s", path)
	}
	return n, eris.Wrapf(file.Close(), "close %s", path)
}

// HeadETag performs a HEAD request and returns the ETag header value.
func (f *HTTPFetcher) HeadETag(ctx context.Context, rawURL string) (string, error) {
	req, err := f.newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return "", err
	}
	if err := f.waitTurn(ctx, rawURL); err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "head request")
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.Header.Get("ETag"), nil
}

// DownloadIfChanged fetches the URL only when the stored ETag is stale.
// Returns (body, newETag, changed, error); an unchanged resource returns
// a nil body and the old ETag.
func (f *HTTPFetcher) DownloadIfChanged(ctx context.Context, rawURL string, etag string) (io.ReadCloser, string, bool, error) {
	req, err := f.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, "", false, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if err := f.waitTurn(ctx, rawURL); err != nil {
		return nil, "", false, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", false, eris.Wrap(err, "download if changed")
	}
	switch resp.StatusCode {
	case http.StatusNotModified:
		_ = resp.Body.Close()
		return nil, etag, false, nil
	case http.StatusOK:
		return resp.Body, resp.Header.Get("ETag"), true, nil
	default:
		_ = resp.Body.Close()
		return nil, "", false, eris.Errorf("download if changed: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
}
