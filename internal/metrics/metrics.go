package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters of the scrape pipeline.
type Metrics struct {
	PagesFetched     prometheus.Counter
	PagesFailed      *prometheus.CounterVec
	ProductsParsed   prometheus.Counter
	ProductsDropped  prometheus.Counter
	RecordsMerged    prometheus.Counter
	ExportsGenerated *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		PagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "Listing pages fetched successfully",
		}),
		PagesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_pages_failed_total",
			Help: "Listing page fetch or parse failures",
		}, []string{"reason"}), // timeout, http_error, blocked, exhausted, bad_page
		ProductsParsed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_products_parsed_total",
			Help: "Product groups parsed from listing pages",
		}),
		ProductsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_products_dropped_total",
			Help: "Product groups dropped during normalization",
		}),
		RecordsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_records_merged_total",
			Help: "Records merged into the canonical result set",
		}),
		ExportsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_exports_generated_total",
			Help: "Export payloads generated",
		}, []string{"format"}),
	}
}
