package results

import (
	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
)

// ResultSet is the canonical, deduplicated record set of a scrape run.
// Records are unique by id and kept in first-seen order, so two runs
// over identical input produce identical sets. Not safe for concurrent
// use; the pipeline serializes all merges through one collector.
type ResultSet struct {
	records []*models.ProductRecord
	index   map[string]*models.ProductRecord
}

func New() *ResultSet {
	return &ResultSet{index: make(map[string]*models.ProductRecord)}
}

// Merge inserts rec, or, when a record with the same id already
// exists, unions rec's source URLs into it. All other fields keep
// their first-seen values. Merging the same record twice is a no-op.
func (rs *ResultSet) Merge(rec *models.ProductRecord) {
	existing, ok := rs.index[rec.ID]
	if !ok {
		clone := cloneRecord(rec)
		rs.records = append(rs.records, clone)
		rs.index[rec.ID] = clone
		return
	}

	for _, src := range rec.SourceURLs {
		if !contains(existing.SourceURLs, src) {
			existing.SourceURLs = append(existing.SourceURLs, src)
		}
	}
}

// Get returns the record with the given id, if present.
func (rs *ResultSet) Get(id string) (*models.ProductRecord, bool) {
	rec, ok := rs.index[id]
	return rec, ok
}

func (rs *ResultSet) Len() int {
	return len(rs.records)
}

// Records returns the records in first-seen order. The slice is a
// copy; the records themselves are shared and must be treated as
// read-only by callers.
func (rs *ResultSet) Records() []*models.ProductRecord {
	out := make([]*models.ProductRecord, len(rs.records))
	copy(out, rs.records)
	return out
}

func cloneRecord(rec *models.ProductRecord) *models.ProductRecord {
	clone := *rec
	if rec.Price != nil {
		price := *rec.Price
		clone.Price = &price
	}
	if rec.MOQ != nil {
		moq := *rec.MOQ
		clone.MOQ = &moq
	}
	clone.SourceURLs = dedupe(rec.SourceURLs)
	return &clone
}

func dedupe(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
