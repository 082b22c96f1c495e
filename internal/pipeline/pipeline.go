package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/fetcher"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/metrics"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/normalizer"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/parser"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/results"
	"go.uber.org/zap"
)

// PageFetcher retrieves a single raw page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*models.RawPage, error)
}

// Cache is an optional recently-fetched filter in front of the
// fetcher. IncrRetry tracks fetch failures per URL across runs.
type Cache interface {
	IsRecentlyFetched(ctx context.Context, url string) (bool, error)
	MarkFetched(ctx context.Context, url string) error
	IncrRetry(ctx context.Context, url string) (int64, error)
}

// maxURLRetries is the cross-run failure budget per page URL. A URL
// that keeps failing is marked fetched so later runs skip it until the
// mark expires.
const maxURLRetries = 3

// Summary reports the counters of one pipeline run.
type Summary struct {
	Query           string    `json:"query"`
	PagesFetched    int       `json:"pages_fetched"`
	PagesFailed     int       `json:"pages_failed"`
	PagesSkipped    int       `json:"pages_skipped"`
	ProductsParsed  int       `json:"products_parsed"`
	ProductsDropped int       `json:"products_dropped"`
	RecordCount     int       `json:"record_count"`
	Blocked         bool      `json:"blocked"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Pipeline wires fetcher, parser and normalizer into a bounded worker
// pool and collects canonical records. Parse and normalize are pure
// and run inside the workers; merging is serialized through a single
// collector so no lock is ever held across network I/O.
type Pipeline struct {
	fetcher PageFetcher
	parser  parser.Parser
	norm    *normalizer.Normalizer
	cache   Cache
	metrics *metrics.Metrics
	logger  *zap.Logger
	baseURL string
	workers int
}

func New(f PageFetcher, p parser.Parser, baseURL string, workers int, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		fetcher: f,
		parser:  p,
		norm:    normalizer.New(),
		metrics: m,
		logger:  logger,
		baseURL: baseURL,
		workers: workers,
	}
}

// WithCache attaches a recently-fetched cache consulted before each
// page fetch.
func (p *Pipeline) WithCache(c Cache) *Pipeline {
	p.cache = c
	return p
}

// pageJob is one search-result page to process, index 0-based.
type pageJob struct {
	index int
	url   string
}

// pageOutcome is what a worker reports back for one page. Exactly one
// outcome arrives per dispatched page, even on failure or skip.
type pageOutcome struct {
	index   int
	records []*models.ProductRecord
	parsed  int
	dropped int
	skipped bool
	err     error
}

// Run fetches up to maxPages of search results for query and returns
// the deduplicated record set plus counters. Records merge in page
// order regardless of worker completion order, so identical inputs
// yield an identically ordered set. Cancellation stops dispatching new
// fetches; pages already in flight still complete and the partial set
// is a valid result. Zero records is an empty set, not an error.
func (p *Pipeline) Run(ctx context.Context, query string, maxPages int) (*results.ResultSet, *Summary, error) {
	if maxPages < 1 {
		return nil, nil, fmt.Errorf("maxPages must be at least 1, got %d", maxPages)
	}

	summary := &Summary{Query: query, StartedAt: time.Now().UTC()}

	jobs := make(chan pageJob, maxPages)
	for i := 0; i < maxPages; i++ {
		jobs <- pageJob{index: i, url: p.searchURL(query, i+1)}
	}
	close(jobs)

	outcomes := make(chan pageOutcome, maxPages)
	var stopped atomic.Bool

	var wg sync.WaitGroup
	workers := p.workers
	if workers > maxPages {
		workers = maxPages
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				outcomes <- p.processPage(ctx, job, &stopped)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	rs := results.New()
	p.collect(rs, outcomes, summary)

	summary.RecordCount = rs.Len()
	summary.FinishedAt = time.Now().UTC()

	p.logger.Info("run finished",
		zap.String("query", query),
		zap.Int("pages_fetched", summary.PagesFetched),
		zap.Int("pages_failed", summary.PagesFailed),
		zap.Int("records", summary.RecordCount),
		zap.Bool("blocked", summary.Blocked))

	return rs, summary, nil
}

// FetchDetail retrieves one product detail page and parses its
// extended attributes. It goes through the same rate-limited fetcher
// as listing pages.
func (p *Pipeline) FetchDetail(ctx context.Context, url string) (*models.ProductDetail, error) {
	page, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return p.parser.ParseProductDetail(page)
}

func (p *Pipeline) processPage(ctx context.Context, job pageJob, stopped *atomic.Bool) pageOutcome {
	if stopped.Load() || ctx.Err() != nil {
		return pageOutcome{index: job.index, skipped: true}
	}

	if p.cache != nil {
		cached, err := p.cache.IsRecentlyFetched(ctx, job.url)
		if err != nil {
			p.logger.Warn("fetch cache lookup failed", zap.String("url", job.url), zap.Error(err))
		} else if cached {
			p.logger.Debug("skipping recently fetched page", zap.String("url", job.url))
			return pageOutcome{index: job.index, skipped: true}
		}
	}

	page, err := p.fetcher.Fetch(ctx, job.url)
	if err != nil {
		if fetcher.IsBlocked(err) {
			// Block signals indicate a policy condition; stop
			// dispatching and surface it on the summary.
			stopped.Store(true)
		} else {
			p.recordFetchFailure(ctx, job.url)
		}
		return pageOutcome{index: job.index, err: err}
	}

	fields, err := p.parser.ParseListing(page)
	if err != nil {
		return pageOutcome{index: job.index, err: err}
	}

	out := pageOutcome{index: job.index}
	for _, group := range groupFields(fields) {
		out.parsed++
		rec, err := p.norm.Normalize(page.URL, group)
		if err != nil {
			if errors.Is(err, normalizer.ErrMissingRequiredField) {
				p.logger.Warn("dropping product group",
					zap.String("page", page.URL), zap.Error(err))
				out.dropped++
				continue
			}
			out.dropped++
			continue
		}
		out.records = append(out.records, rec)
	}

	if p.cache != nil {
		if err := p.cache.MarkFetched(ctx, job.url); err != nil {
			p.logger.Warn("fetch cache mark failed", zap.String("url", job.url), zap.Error(err))
		}
	}

	return out
}

// recordFetchFailure bumps the cross-run retry counter for url and
// suppresses the URL once its failure budget is spent.
func (p *Pipeline) recordFetchFailure(ctx context.Context, url string) {
	if p.cache == nil {
		return
	}
	count, err := p.cache.IncrRetry(ctx, url)
	if err != nil {
		p.logger.Warn("retry counter update failed", zap.String("url", url), zap.Error(err))
		return
	}
	if count >= maxURLRetries {
		p.logger.Warn("url exceeded retry budget, suppressing",
			zap.String("url", url), zap.Int64("failures", count))
		if err := p.cache.MarkFetched(ctx, url); err != nil {
			p.logger.Warn("fetch cache mark failed", zap.String("url", url), zap.Error(err))
		}
	}
}

// collect drains worker outcomes and merges them strictly in page
// order. Out-of-order arrivals are buffered until their turn.
func (p *Pipeline) collect(rs *results.ResultSet, outcomes <-chan pageOutcome, summary *Summary) {
	pending := make(map[int]pageOutcome)
	next := 0

	apply := func(out pageOutcome) {
		switch {
		case out.skipped:
			summary.PagesSkipped++
		case out.err != nil:
			summary.PagesFailed++
			p.countFailure(out.err)
		default:
			summary.PagesFetched++
			summary.ProductsParsed += out.parsed
			summary.ProductsDropped += out.dropped
			if p.metrics != nil {
				p.metrics.PagesFetched.Inc()
				p.metrics.ProductsParsed.Add(float64(out.parsed))
				p.metrics.ProductsDropped.Add(float64(out.dropped))
			}
			for _, rec := range out.records {
				rs.Merge(rec)
				if p.metrics != nil {
					p.metrics.RecordsMerged.Inc()
				}
			}
		}
		if fetcher.IsBlocked(out.err) {
			summary.Blocked = true
		}
	}

	for out := range outcomes {
		pending[out.index] = out
		for {
			buffered, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			apply(buffered)
			next++
		}
	}
}

func (p *Pipeline) countFailure(err error) {
	if p.metrics == nil {
		return
	}
	var fe *fetcher.FetchError
	switch {
	case errors.As(err, &fe):
		p.metrics.PagesFailed.WithLabelValues(string(fe.Kind)).Inc()
	case errors.Is(err, parser.ErrUnrecognizedPageShape):
		p.metrics.PagesFailed.WithLabelValues("bad_page").Inc()
	default:
		p.metrics.PagesFailed.WithLabelValues("other").Inc()
	}
}

func (p *Pipeline) searchURL(query string, page int) string {
	return fmt.Sprintf("%s/trade/search?SearchText=%s&page=%d",
		p.baseURL, url.QueryEscape(query), page)
}

// groupFields partitions raw fields by product key, preserving the
// order in which keys first appear on the page.
func groupFields(fields []models.RawField) [][]models.RawField {
	byKey := make(map[string][]models.RawField)
	var order []string
	for _, f := range fields {
		if _, ok := byKey[f.ProductKey]; !ok {
			order = append(order, f.ProductKey)
		}
		byKey[f.ProductKey] = append(byKey[f.ProductKey], f)
	}

	groups := make([][]models.RawField, 0, len(order))
	for _, key := range order {
		groups = append(groups, byKey[key])
	}
	return groups
}
