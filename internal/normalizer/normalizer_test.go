package normalizer

import (
	"testing"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sourceURL = "https://example.com/search?page=1"

func group(values map[models.FieldName]string) []models.RawField {
	var fields []models.RawField
	for name, value := range values {
		fields = append(fields, models.RawField{ProductKey: "k", Name: name, Value: value})
	}
	return fields
}

func TestNormalize(t *testing.T) {
	n := New()

	rec, err := n.Normalize(sourceURL, group(map[models.FieldName]string{
		models.FieldTitle:    "  Blue   Widget ",
		models.FieldPrice:    "$3.50",
		models.FieldMOQ:      "500 pcs",
		models.FieldSupplier: "Acme Co.",
		models.FieldURL:      "https://example.com/p/1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Blue Widget", rec.Title)
	require.NotNil(t, rec.Price)
	assert.Equal(t, 3.50, rec.Price.Amount)
	assert.Equal(t, "USD", rec.Price.Currency)
	require.NotNil(t, rec.MOQ)
	assert.Equal(t, 500, *rec.MOQ)
	assert.Equal(t, "acme co.", rec.SupplierID)
	assert.Equal(t, []string{sourceURL}, rec.SourceURLs)
	assert.Equal(t, models.RecordID("acme co.", "Blue Widget", "https://example.com/p/1"), rec.ID)
}

func TestNormalizeMissingRequiredFields(t *testing.T) {
	n := New()

	tests := []struct {
		name   string
		fields map[models.FieldName]string
	}{
		{"no title", map[models.FieldName]string{
			models.FieldURL: "https://example.com/p/1",
		}},
		{"whitespace title", map[models.FieldName]string{
			models.FieldTitle: "   ",
			models.FieldURL:   "https://example.com/p/1",
		}},
		{"no url", map[models.FieldName]string{
			models.FieldTitle: "Blue Widget",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(sourceURL, group(tt.fields))
			assert.ErrorIs(t, err, ErrMissingRequiredField)
		})
	}
}

func TestParsePrice(t *testing.T) {
	n := New()

	tests := []struct {
		name     string
		in       string
		amount   float64
		high     float64
		currency string
		nilPrice bool
	}{
		{name: "plain dollars", in: "$3.50", amount: 3.50, currency: "USD"},
		{name: "us prefix", in: "US$ 12.00", amount: 12, currency: "USD"},
		{name: "range keeps both bounds", in: "$3.50 - $5.00", amount: 3.50, high: 5.00, currency: "USD"},
		{name: "en dash range", in: "$3–$5", amount: 3, high: 5, currency: "USD"},
		{name: "thousands separator", in: "$1,234.56", amount: 1234.56, currency: "USD"},
		{name: "euro symbol", in: "€9.99", amount: 9.99, currency: "EUR"},
		{name: "code only", in: "CNY 88", amount: 88, currency: "CNY"},
		{name: "no currency marker", in: "12.50", amount: 12.50, currency: ""},
		{name: "unparseable", in: "Price NA", nilPrice: true},
		{name: "empty", in: "", nilPrice: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price := n.ParsePrice(tt.in)
			if tt.nilPrice {
				assert.Nil(t, price)
				return
			}
			require.NotNil(t, price)
			assert.Equal(t, tt.amount, price.Amount)
			assert.Equal(t, tt.high, price.High)
			assert.Equal(t, tt.currency, price.Currency)
		})
	}
}

func TestParseMOQ(t *testing.T) {
	n := New()

	tests := []struct {
		in   string
		want int
		nil_ bool
	}{
		{in: "100 pieces", want: 100},
		{in: "1,000 sets", want: 1000},
		{in: "Min. Order: 50", want: 50},
		{in: "0 pieces", nil_: true},
		{in: "no number here", nil_: true},
		{in: "", nil_: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			moq := n.ParseMOQ(tt.in)
			if tt.nil_ {
				assert.Nil(t, moq)
				return
			}
			require.NotNil(t, moq)
			assert.Equal(t, tt.want, *moq)
		})
	}
}

func TestSupplierID(t *testing.T) {
	n := New()

	// Textually distinct but equivalent supplier strings map to one id.
	assert.Equal(t, n.SupplierID("Acme   Co."), n.SupplierID("acme co."))
	assert.Equal(t, n.SupplierID("  ACME CO.  "), n.SupplierID("acme co."))
	assert.NotEqual(t, n.SupplierID("acme co."), n.SupplierID("acme inc."))
}

func TestParseRating(t *testing.T) {
	n := New()

	assert.Equal(t, 4.5, n.ParseRating("4.5"))
	assert.Equal(t, 4.0, n.ParseRating("4.0 stars"))
	assert.Equal(t, 5.0, n.ParseRating("9.9"))
	assert.Equal(t, 0.0, n.ParseRating("No Rating"))
}
