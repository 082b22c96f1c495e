package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
	"github.com/PuerkitoBio/goquery"
)

// containerSelectors locate product entries on a listing page. The
// marketplace rotates its class names, so several generations of
// markup are tried in order.
var containerSelectors = []string{
	"div[data-content*='product']",
	".item-content",
	".product-card",
	".organic-list .organic-gallery-offer",
	"div[component='product']",
}

// ListingParser extracts untyped field candidates from marketplace
// listing pages. It is a pure function of the page body and is safe
// for concurrent use.
type ListingParser struct {
	baseURL         *url.URL
	perPageLimit    int
	titleClassRe    *regexp.Regexp
	priceClassRe    *regexp.Regexp
	supplierClassRe *regexp.Regexp
	ratingClassRe   *regexp.Regexp
	moqRe           *regexp.Regexp
}

func NewListingParser(baseURL string, perPageLimit int) (*ListingParser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if perPageLimit <= 0 {
		perPageLimit = 20
	}
	return &ListingParser{
		baseURL:         base,
		perPageLimit:    perPageLimit,
		titleClassRe:    regexp.MustCompile(`(?i)title|name|product`),
		priceClassRe:    regexp.MustCompile(`(?i)price|cost|amount`),
		supplierClassRe: regexp.MustCompile(`(?i)supplier|seller|company`),
		ratingClassRe:   regexp.MustCompile(`(?i)rating|star|review`),
		moqRe:           regexp.MustCompile(`(?i)(?:MOQ|Min(?:imum)?\.?\s*Order)\D{0,10}(\d[\d,]*\s*\w*)`),
	}, nil
}

// ParseListing yields zero or more raw fields per product entry. A
// missing or malformed field on one entry produces no field for that
// (entry, field) pair; only a page without any entry markers fails.
func (p *ListingParser) ParseListing(page *models.RawPage) ([]models.RawField, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var items *goquery.Selection
	for _, sel := range containerSelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			items = s
			break
		}
	}
	if items == nil {
		return nil, fmt.Errorf("%s: %w", page.URL, ErrUnrecognizedPageShape)
	}

	var fields []models.RawField
	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if i >= p.perPageLimit {
			return false
		}
		key := fmt.Sprintf("%s#%d", page.URL, i)
		fields = append(fields, p.extractEntry(key, item)...)
		return true
	})

	return fields, nil
}

func (p *ListingParser) extractEntry(key string, item *goquery.Selection) []models.RawField {
	var fields []models.RawField
	add := func(name models.FieldName, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fields = append(fields, models.RawField{ProductKey: key, Name: name, Value: value})
		}
	}

	add(models.FieldTitle, p.firstByClass(item, "h2, h3, h4", p.titleClassRe))
	add(models.FieldPrice, p.firstByClass(item, "span, div, p", p.priceClassRe))
	add(models.FieldSupplier, p.firstByClass(item, "a, span, div", p.supplierClassRe))
	add(models.FieldRating, p.firstByClass(item, "span, div", p.ratingClassRe))

	if m := p.moqRe.FindStringSubmatch(item.Text()); m != nil {
		add(models.FieldMOQ, m[1])
	}

	if href, ok := item.Find("a[href]").First().Attr("href"); ok {
		add(models.FieldURL, p.absoluteURL(href))
	}
	if src, ok := item.Find("img[src]").First().Attr("src"); ok {
		add(models.FieldImage, p.absoluteURL(src))
	}

	return fields
}

// firstByClass returns the text of the first element among sel whose
// class attribute matches re.
func (p *ListingParser) firstByClass(item *goquery.Selection, sel string, re *regexp.Regexp) string {
	var text string
	item.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if class != "" && re.MatchString(class) {
			text = s.Text()
			return false
		}
		return true
	})
	return text
}

func (p *ListingParser) absoluteURL(href string) string {
	if strings.HasPrefix(href, "//") {
		return p.baseURL.Scheme + ":" + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return p.baseURL.ResolveReference(ref).String()
}
