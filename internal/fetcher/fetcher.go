package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/ratelimit"
	"go.uber.org/zap"
)

// maxBodySize caps how much of a response body is read. Listing pages
// are well under this; anything larger is not a page we want.
const maxBodySize = 10 << 20

type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindHTTPError ErrorKind = "http_error"
	KindBlocked   ErrorKind = "blocked"
	KindExhausted ErrorKind = "exhausted"
)

// FetchError is the typed failure of a single Fetch call.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsBlocked reports whether err is a block signal from the target site.
func IsBlocked(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindBlocked
}

// blockMarkers are body substrings that indicate a challenge page
// served with a 200.
var blockMarkers = []string{"captcha", "unusual traffic"}

type Options struct {
	UserAgents []string
	DelayMin   time.Duration
	DelayMax   time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Fetcher issues HTTP GETs with a randomized inter-request delay,
// round-robin header rotation and bounded retries. Safe for use from
// multiple workers: the rotation index is atomic and the limiter is
// internally synchronized.
type Fetcher struct {
	client     *http.Client
	limiter    *ratelimit.BackoffLimiter
	headerSets []http.Header
	rotation   atomic.Uint64
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:     &http.Client{Timeout: opts.Timeout},
		limiter:    ratelimit.NewBackoffLimiter(opts.DelayMin, opts.DelayMax),
		headerSets: buildHeaderSets(opts.UserAgents),
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}
}

// Fetch retrieves one page. Transient failures (timeouts, 5xx) are
// retried with exponential backoff up to the configured count; a block
// signal (403, 429 or a challenge marker in the body) is returned
// immediately without retry.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*models.RawPage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr *FetchError
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := f.retryDelay * time.Duration(1<<(attempt-1))
			f.logger.Debug("retrying fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		page, ferr := f.attempt(ctx, url)
		if ferr == nil {
			f.limiter.RecordSuccess()
			return page, nil
		}

		f.limiter.RecordError()
		if ferr.Kind == KindBlocked {
			f.logger.Warn("block signal detected", zap.String("url", url), zap.Int("status", ferr.StatusCode))
			return nil, ferr
		}
		if ferr.Kind == KindHTTPError && ferr.StatusCode < 500 {
			// Client errors other than the block statuses do not heal
			// on retry.
			return nil, ferr
		}
		lastErr = ferr
	}

	return nil, &FetchError{Kind: KindExhausted, URL: url, StatusCode: lastErr.StatusCode, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url string) (*models.RawPage, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindHTTPError, URL: url, Err: err}
	}
	req.Header = f.nextHeaders()

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &FetchError{Kind: KindTimeout, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &FetchError{Kind: KindBlocked, URL: url, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		return nil, &FetchError{Kind: KindHTTPError, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{Kind: KindTimeout, URL: url, Err: err}
	}

	if marker := findBlockMarker(body); marker != "" {
		return nil, &FetchError{Kind: KindBlocked, URL: url, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("challenge marker %q in body", marker)}
	}

	return &models.RawPage{
		URL:        url,
		FetchedAt:  time.Now().UTC(),
		Body:       body,
		Status:     models.PageOK,
		StatusCode: resp.StatusCode,
	}, nil
}

// nextHeaders advances the rotation index and returns a copy of the
// next header set.
func (f *Fetcher) nextHeaders() http.Header {
	idx := f.rotation.Add(1) - 1
	set := f.headerSets[idx%uint64(len(f.headerSets))]
	return set.Clone()
}

func findBlockMarker(body []byte) string {
	// Only the head of the page needs scanning, challenge pages are
	// small and carry the marker early.
	head := body
	if len(head) > 64<<10 {
		head = head[:64<<10]
	}
	lower := strings.ToLower(string(head))
	for _, m := range blockMarkers {
		if strings.Contains(lower, m) {
			return m
		}
	}
	return ""
}

func buildHeaderSets(userAgents []string) []http.Header {
	if len(userAgents) == 0 {
		userAgents = []string{"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"}
	}
	sets := make([]http.Header, 0, len(userAgents))
	for _, ua := range userAgents {
		h := http.Header{}
		h.Set("User-Agent", ua)
		h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		h.Set("Accept-Language", "en-US,en;q=0.9")
		h.Set("Connection", "keep-alive")
		h.Set("Upgrade-Insecure-Requests", "1")
		sets = append(sets, h)
	}
	return sets
}
