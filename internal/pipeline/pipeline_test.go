package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/fetcher"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBaseURL = "https://market.test"

// fakeFetcher serves canned bodies or errors keyed by URL.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*models.RawPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, &fetcher.FetchError{Kind: fetcher.KindHTTPError, URL: url, StatusCode: http.StatusNotFound}
	}
	return &models.RawPage{
		URL:        url,
		FetchedAt:  time.Now().UTC(),
		Body:       []byte(body),
		Status:     models.PageOK,
		StatusCode: http.StatusOK,
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeCache marks one URL as recently fetched and counts retries in
// memory. URLs marked during a run count as recently fetched in later
// runs, like the redis-backed cache.
type fakeCache struct {
	mu      sync.Mutex
	recent  string
	marked  []string
	retries map[string]int64
	lookups int
}

func (c *fakeCache) IsRecentlyFetched(_ context.Context, url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if url == c.recent {
		return true, nil
	}
	for _, m := range c.marked {
		if m == url {
			return true, nil
		}
	}
	return false, nil
}

func (c *fakeCache) MarkFetched(_ context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marked = append(c.marked, url)
	return nil
}

func (c *fakeCache) IncrRetry(_ context.Context, url string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retries == nil {
		c.retries = make(map[string]int64)
	}
	c.retries[url]++
	return c.retries[url], nil
}

func card(title, price, supplier, href string) string {
	return fmt.Sprintf(`<div class="product-card">
	  <a href="%s"></a>
	  <h3 class="item-title">%s</h3>
	  <span class="price">%s</span>
	  <span class="supplier-name">%s</span>
	</div>`, href, title, price, supplier)
}

func listingBody(cards ...string) string {
	body := "<html><body>"
	for _, c := range cards {
		body += c
	}
	return body + "</body></html>"
}

func pageURL(query string, page int) string {
	return fmt.Sprintf("%s/trade/search?SearchText=%s&page=%d", testBaseURL, query, page)
}

func newTestPipeline(t *testing.T, f PageFetcher, workers int) *Pipeline {
	t.Helper()
	p, err := parser.NewListingParser(testBaseURL, 20)
	require.NoError(t, err)
	return New(f, p, testBaseURL, workers, nil, zap.NewNop())
}

func TestRunMergesAcrossPages(t *testing.T) {
	ff := &fakeFetcher{bodies: map[string]string{
		pageURL("widget", 1): listingBody(
			card("Blue Widget", "$3.50", "Acme Co", "/p/blue"),
			card("Shared Widget", "$1.00", "Shared Co", "/p/shared"),
		),
		pageURL("widget", 2): listingBody(
			card("Shared Widget", "$9.99", "Shared Co", "/p/shared"),
			card("Red Widget", "$2.00", "Red Co", "/p/red"),
		),
	}}

	pipe := newTestPipeline(t, ff, 2)
	rs, summary, err := pipe.Run(context.Background(), "widget", 2)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.PagesFetched)
	assert.Equal(t, 0, summary.PagesFailed)
	assert.Equal(t, 4, summary.ProductsParsed)
	assert.Equal(t, 3, summary.RecordCount)
	assert.False(t, summary.Blocked)

	records := rs.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "Blue Widget", records[0].Title)
	assert.Equal(t, "Shared Widget", records[1].Title)
	assert.Equal(t, "Red Widget", records[2].Title)

	// The duplicate keeps its first-seen price and unions source pages.
	shared := records[1]
	require.NotNil(t, shared.Price)
	assert.Equal(t, 1.00, shared.Price.Amount)
	assert.Equal(t, []string{pageURL("widget", 1), pageURL("widget", 2)}, shared.SourceURLs)
}

func TestRunIsDeterministicAcrossWorkerCounts(t *testing.T) {
	bodies := map[string]string{}
	for page := 1; page <= 6; page++ {
		var cards []string
		for i := 0; i < 4; i++ {
			cards = append(cards, card(
				fmt.Sprintf("Widget P%dN%d", page, i),
				"$1.00",
				fmt.Sprintf("Supplier %d", i),
				fmt.Sprintf("/p/%d-%d", page, i),
			))
		}
		bodies[pageURL("widget", page)] = listingBody(cards...)
	}

	var runs [][]string
	for _, workers := range []int{1, 4} {
		pipe := newTestPipeline(t, &fakeFetcher{bodies: bodies}, workers)
		rs, _, err := pipe.Run(context.Background(), "widget", 6)
		require.NoError(t, err)

		var ids []string
		for _, rec := range rs.Records() {
			ids = append(ids, rec.ID)
		}
		runs = append(runs, ids)
	}

	assert.Equal(t, runs[0], runs[1])
	assert.Len(t, runs[0], 24)
}

func TestRunStopsAfterBlockSignal(t *testing.T) {
	ff := &fakeFetcher{
		bodies: map[string]string{
			pageURL("widget", 1): listingBody(card("Blue Widget", "$3.50", "Acme Co", "/p/blue")),
		},
		errs: map[string]error{
			pageURL("widget", 2): &fetcher.FetchError{
				Kind: fetcher.KindBlocked, URL: pageURL("widget", 2), StatusCode: http.StatusForbidden,
			},
		},
	}

	pipe := newTestPipeline(t, ff, 1)
	rs, summary, err := pipe.Run(context.Background(), "widget", 4)
	require.NoError(t, err)

	assert.True(t, summary.Blocked)
	assert.Equal(t, 1, summary.PagesFetched)
	assert.Equal(t, 1, summary.PagesFailed)
	assert.Equal(t, 2, summary.PagesSkipped)
	assert.Equal(t, 1, rs.Len())
	assert.Equal(t, 2, ff.callCount())
}

func TestRunCountsDroppedGroups(t *testing.T) {
	// Second entry has no link, so the required url field is missing.
	noLink := `<div class="product-card"><h3 class="item-title">Orphan</h3></div>`
	ff := &fakeFetcher{bodies: map[string]string{
		pageURL("widget", 1): listingBody(card("Blue Widget", "$3.50", "Acme Co", "/p/blue"), noLink),
	}}

	pipe := newTestPipeline(t, ff, 1)
	rs, summary, err := pipe.Run(context.Background(), "widget", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ProductsParsed)
	assert.Equal(t, 1, summary.ProductsDropped)
	assert.Equal(t, 1, rs.Len())
}

func TestRunSkipsRecentlyFetchedPages(t *testing.T) {
	ff := &fakeFetcher{bodies: map[string]string{
		pageURL("widget", 1): listingBody(card("Blue Widget", "$3.50", "Acme Co", "/p/blue")),
		pageURL("widget", 2): listingBody(card("Red Widget", "$2.00", "Red Co", "/p/red")),
	}}
	cache := &fakeCache{recent: pageURL("widget", 2)}

	pipe := newTestPipeline(t, ff, 1).WithCache(cache)
	rs, summary, err := pipe.Run(context.Background(), "widget", 2)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PagesFetched)
	assert.Equal(t, 1, summary.PagesSkipped)
	assert.Equal(t, 1, rs.Len())
	assert.Equal(t, []string{pageURL("widget", 1)}, cache.marked)
}

func TestRunFailedPageDoesNotAbortRun(t *testing.T) {
	ff := &fakeFetcher{
		bodies: map[string]string{
			pageURL("widget", 2): listingBody(card("Red Widget", "$2.00", "Red Co", "/p/red")),
		},
		errs: map[string]error{
			pageURL("widget", 1): &fetcher.FetchError{
				Kind: fetcher.KindExhausted, URL: pageURL("widget", 1), StatusCode: http.StatusBadGateway,
			},
		},
	}

	pipe := newTestPipeline(t, ff, 2)
	rs, summary, err := pipe.Run(context.Background(), "widget", 2)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PagesFailed)
	assert.Equal(t, 1, summary.PagesFetched)
	assert.Equal(t, 1, rs.Len())
	assert.Equal(t, "Red Widget", rs.Records()[0].Title)
}

func TestRunSuppressesRepeatedlyFailingURL(t *testing.T) {
	failing := pageURL("widget", 1)
	ff := &fakeFetcher{errs: map[string]error{
		failing: &fetcher.FetchError{
			Kind: fetcher.KindExhausted, URL: failing, StatusCode: http.StatusBadGateway,
		},
	}}
	cache := &fakeCache{}
	pipe := newTestPipeline(t, ff, 1).WithCache(cache)

	// Failures below the budget leave the URL eligible.
	for i := 0; i < 2; i++ {
		_, summary, err := pipe.Run(context.Background(), "widget", 1)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.PagesFailed)
	}
	assert.Empty(t, cache.marked)

	// The third failure spends the budget and marks the URL.
	_, summary, err := pipe.Run(context.Background(), "widget", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PagesFailed)
	assert.Equal(t, []string{failing}, cache.marked)

	// The next run skips it without touching the fetcher again.
	before := ff.callCount()
	_, summary, err = pipe.Run(context.Background(), "widget", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PagesSkipped)
	assert.Equal(t, before, ff.callCount())
}

func TestFetchDetail(t *testing.T) {
	detailURL := testBaseURL + "/p/blue"
	ff := &fakeFetcher{bodies: map[string]string{
		detailURL: `<html><body>
		<div class="product-description">A durable widget.</div>
		<div class="shipping-info">Ships in 7 days.</div>
		</body></html>`,
	}}

	pipe := newTestPipeline(t, ff, 1)
	detail, err := pipe.FetchDetail(context.Background(), detailURL)
	require.NoError(t, err)

	assert.Equal(t, detailURL, detail.URL)
	assert.Equal(t, "A durable widget.", detail.Description)
	assert.Equal(t, "Ships in 7 days.", detail.ShippingInfo)
}

func TestFetchDetailPropagatesFetchErrors(t *testing.T) {
	detailURL := testBaseURL + "/p/gone"
	ff := &fakeFetcher{errs: map[string]error{
		detailURL: &fetcher.FetchError{
			Kind: fetcher.KindHTTPError, URL: detailURL, StatusCode: http.StatusNotFound,
		},
	}}

	pipe := newTestPipeline(t, ff, 1)
	_, err := pipe.FetchDetail(context.Background(), detailURL)
	require.Error(t, err)

	var fe *fetcher.FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestRunRejectsNonPositiveMaxPages(t *testing.T) {
	pipe := newTestPipeline(t, &fakeFetcher{}, 1)
	_, _, err := pipe.Run(context.Background(), "widget", 0)
	assert.Error(t, err)
}
