package results

import (
	"testing"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, title string, sources ...string) *models.ProductRecord {
	return &models.ProductRecord{
		ID:         id,
		Title:      title,
		URL:        "https://example.com/p/" + id,
		SourceURLs: sources,
	}
}

func TestMergeIdempotent(t *testing.T) {
	rs := New()
	rec := record("a", "Blue Widget", "https://example.com/search?page=1")

	rs.Merge(rec)
	first := rs.Records()
	rs.Merge(rec)

	assert.Equal(t, 1, rs.Len())
	assert.Equal(t, first, rs.Records())
}

func TestMergeKeepsFirstSeenValues(t *testing.T) {
	rs := New()
	moq1, moq2 := 100, 999

	first := record("a", "Blue Widget", "https://example.com/search?page=1")
	first.Price = &models.Price{Amount: 3.5, Currency: "USD"}
	first.MOQ = &moq1

	later := record("a", "Blue Widget v2", "https://example.com/search?page=2")
	later.Price = &models.Price{Amount: 9.9, Currency: "EUR"}
	later.MOQ = &moq2

	rs.Merge(first)
	rs.Merge(later)

	require.Equal(t, 1, rs.Len())
	got, ok := rs.Get("a")
	require.True(t, ok)

	assert.Equal(t, "Blue Widget", got.Title)
	assert.Equal(t, 3.5, got.Price.Amount)
	assert.Equal(t, "USD", got.Price.Currency)
	assert.Equal(t, 100, *got.MOQ)
	assert.Equal(t,
		[]string{"https://example.com/search?page=1", "https://example.com/search?page=2"},
		got.SourceURLs)
}

func TestMergeUnionsSourceURLsWithoutDuplicates(t *testing.T) {
	rs := New()

	rs.Merge(record("a", "Blue Widget", "page1"))
	rs.Merge(record("a", "Blue Widget", "page2"))
	rs.Merge(record("a", "Blue Widget", "page1"))

	got, ok := rs.Get("a")
	require.True(t, ok)
	assert.Equal(t, []string{"page1", "page2"}, got.SourceURLs)
}

func TestInsertionOrderIsFirstSeen(t *testing.T) {
	rs := New()

	rs.Merge(record("c", "Gamma", "p1"))
	rs.Merge(record("a", "Alpha", "p1"))
	rs.Merge(record("b", "Beta", "p2"))
	rs.Merge(record("a", "Alpha", "p3")) // re-merge must not reorder

	var ids []string
	for _, rec := range rs.Records() {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestMergeInsertsClone(t *testing.T) {
	rs := New()
	rec := record("a", "Blue Widget", "p1")
	rec.Price = &models.Price{Amount: 3.5, Currency: "USD"}

	rs.Merge(rec)

	// Caller-side mutation must not leak into the set.
	rec.Title = "mutated"
	rec.Price.Amount = 0
	rec.SourceURLs[0] = "mutated"

	got, ok := rs.Get("a")
	require.True(t, ok)
	assert.Equal(t, "Blue Widget", got.Title)
	assert.Equal(t, 3.5, got.Price.Amount)
	assert.Equal(t, []string{"p1"}, got.SourceURLs)
}
