package normalizer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
)

// ErrMissingRequiredField marks a product group that lacks a title or
// URL. Such groups are dropped from the result set, never fatal to the
// run.
var ErrMissingRequiredField = errors.New("missing required field")

// currencySymbols maps price prefixes to ISO codes. "$" is treated as
// USD; the marketplace shows dollar prices without a country prefix.
var currencySymbols = []struct {
	marker string
	code   string
}{
	{"US$", "USD"},
	{"USD", "USD"},
	{"EUR", "EUR"},
	{"GBP", "GBP"},
	{"JPY", "JPY"},
	{"CNY", "CNY"},
	{"RMB", "CNY"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
}

// Normalizer converts grouped raw fields into validated product
// records. All rules are deterministic; the same input always yields
// the same record.
type Normalizer struct {
	wsRe     *regexp.Regexp
	numberRe *regexp.Regexp
	intRe    *regexp.Regexp
	floatRe  *regexp.Regexp
}

func New() *Normalizer {
	return &Normalizer{
		wsRe:     regexp.MustCompile(`\s+`),
		numberRe: regexp.MustCompile(`\d+(?:,\d{3})*(?:\.\d+)?`),
		intRe:    regexp.MustCompile(`\d[\d,]*`),
		floatRe:  regexp.MustCompile(`\d+(?:\.\d+)?`),
	}
}

// Normalize builds a ProductRecord from the raw fields of one product
// group. sourceURL is the listing page the group was parsed from and
// becomes the record's first source. A group without a title or URL
// returns ErrMissingRequiredField.
func (n *Normalizer) Normalize(sourceURL string, fields []models.RawField) (*models.ProductRecord, error) {
	raw := make(map[models.FieldName]string, len(fields))
	for _, f := range fields {
		// First candidate wins when a field repeats within a group.
		if _, ok := raw[f.Name]; !ok {
			raw[f.Name] = f.Value
		}
	}

	title := n.CleanText(raw[models.FieldTitle])
	if title == "" {
		return nil, fmt.Errorf("%w: title", ErrMissingRequiredField)
	}
	productURL := strings.TrimSpace(raw[models.FieldURL])
	if productURL == "" {
		return nil, fmt.Errorf("%w: url", ErrMissingRequiredField)
	}

	supplierID := n.SupplierID(raw[models.FieldSupplier])

	rec := &models.ProductRecord{
		ID:          models.RecordID(supplierID, title, productURL),
		Title:       title,
		Price:       n.ParsePrice(raw[models.FieldPrice]),
		MOQ:         n.ParseMOQ(raw[models.FieldMOQ]),
		SupplierID:  supplierID,
		URL:         productURL,
		ImageURL:    strings.TrimSpace(raw[models.FieldImage]),
		Rating:      n.ParseRating(raw[models.FieldRating]),
		SourceURLs:  []string{sourceURL},
		FirstSeenAt: time.Now().UTC(),
	}

	return rec, nil
}

// CleanText trims and collapses internal whitespace.
func (n *Normalizer) CleanText(s string) string {
	return n.wsRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// SupplierID derives a stable identifier from a supplier display
// string: whitespace collapsed, lowercased. Strings differing only in
// case or spacing map to the same id.
func (n *Normalizer) SupplierID(s string) string {
	return strings.ToLower(n.CleanText(s))
}

// ParsePrice extracts a price from free text. A range such as
// "$3.50 - $5.00" keeps the lower bound as Amount and the upper bound
// in High. Unparseable input yields nil, not an error.
func (n *Normalizer) ParsePrice(s string) *models.Price {
	if s == "" {
		return nil
	}

	matches := n.numberRe.FindAllString(s, 2)
	if len(matches) == 0 {
		return nil
	}

	amount, err := parseDecimal(matches[0])
	if err != nil {
		return nil
	}

	price := &models.Price{Amount: amount, Currency: detectCurrency(s)}
	if len(matches) > 1 {
		if high, err := parseDecimal(matches[1]); err == nil && high > amount {
			price.High = high
		}
	}
	return price
}

// ParseMOQ extracts the leading integer from free text such as
// "100 pieces". Absent or zero quantities yield nil.
func (n *Normalizer) ParseMOQ(s string) *int {
	m := n.intRe.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil || v < 1 {
		return nil
	}
	return &v
}

// ParseRating extracts a star rating clamped to [0, 5].
func (n *Normalizer) ParseRating(s string) float64 {
	m := n.floatRe.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	if v > 5 {
		v = 5
	}
	return v
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func detectCurrency(s string) string {
	for _, c := range currencySymbols {
		if strings.Contains(s, c.marker) {
			return c.code
		}
	}
	return ""
}
