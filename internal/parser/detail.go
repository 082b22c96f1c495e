package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
	"github.com/PuerkitoBio/goquery"
)

const (
	maxDescriptionLen = 1000
	maxShippingLen    = 500
	maxDetailImages   = 10
)

var descriptionSelectors = []string{
	".product-description",
	".detail-desc",
	"[data-content='description']",
	".description-content",
}

var shippingSelectors = []string{
	".shipping-info",
	".logistics-content",
	".delivery-info",
}

var specTableRe = regexp.MustCompile(`(?i)spec|parameter`)
var detailImageRe = regexp.MustCompile(`(?i)product|detail|gallery`)

// ParseProductDetail extracts the extended attributes shown on a
// product detail page. Every section is optional; an empty detail
// struct is a valid result for a sparse page.
func (p *ListingParser) ParseProductDetail(page *models.RawPage) (*models.ProductDetail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	detail := &models.ProductDetail{
		URL:       page.URL,
		ScrapedAt: page.FetchedAt,
	}

	for _, sel := range descriptionSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			detail.Description = truncate(text, maxDescriptionLen)
			break
		}
	}

	for _, sel := range shippingSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			detail.ShippingInfo = truncate(text, maxShippingLen)
			break
		}
	}

	detail.Specifications = p.extractSpecs(doc)
	detail.Images = p.extractDetailImages(doc)

	return detail, nil
}

func (p *ListingParser) extractSpecs(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		class, _ := table.Attr("class")
		if !specTableRe.MatchString(class) {
			return true
		}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() >= 2 {
				key := strings.TrimSpace(cells.Eq(0).Text())
				value := strings.TrimSpace(cells.Eq(1).Text())
				if key != "" && value != "" {
					specs[key] = value
				}
			}
		})
		return false
	})

	if len(specs) == 0 {
		return nil
	}
	return specs
}

func (p *ListingParser) extractDetailImages(doc *goquery.Document) []string {
	var images []string
	doc.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		if src == "" || strings.HasPrefix(src, "data:") || !detailImageRe.MatchString(src) {
			return true
		}
		images = append(images, p.absoluteURL(src))
		return len(images) < maxDetailImages
	})
	return images
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
