package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PageStatus classifies the outcome of a single page fetch.
type PageStatus string

const (
	PageOK        PageStatus = "ok"
	PageHTTPError PageStatus = "http_error"
	PageTimeout   PageStatus = "timeout"
	PageBlocked   PageStatus = "blocked"
)

// RawPage is the unparsed body of one fetched page. It is consumed by
// the parser and discarded afterwards.
type RawPage struct {
	URL        string
	FetchedAt  time.Time
	Body       []byte
	Status     PageStatus
	StatusCode int
}

// FieldName identifies which product attribute a RawField carries.
type FieldName string

const (
	FieldTitle    FieldName = "title"
	FieldPrice    FieldName = "price"
	FieldMOQ      FieldName = "moq"
	FieldSupplier FieldName = "supplier"
	FieldURL      FieldName = "url"
	FieldImage    FieldName = "image"
	FieldRating   FieldName = "rating"
)

// RawField is a single untyped field candidate extracted from a page.
// ProductKey groups fields belonging to the same listing entry.
type RawField struct {
	ProductKey string
	Name       FieldName
	Value      string
}

// Price is a parsed listing price. High is set only when the listing
// showed a range; Amount always holds the lower bound.
type Price struct {
	Amount   float64 `json:"amount"`
	High     float64 `json:"high,omitempty"`
	Currency string  `json:"currency"`
}

// ProductRecord is the canonical, deduplicated representation of one
// product listing. Once inserted into a result set only SourceURLs may
// grow; every other field keeps its first-seen value.
type ProductRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Price       *Price    `json:"price,omitempty"`
	MOQ         *int      `json:"moq,omitempty"`
	SupplierID  string    `json:"supplier_id"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	SourceURLs  []string  `json:"source_urls"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// RecordID derives the stable identity of a listing. The same
// (supplierID, title, url) triple always hashes to the same id, across
// runs and processes.
func RecordID(supplierID, title, url string) string {
	h := sha256.Sum256([]byte(supplierID + "\x00" + title + "\x00" + url))
	return hex.EncodeToString(h[:16])
}

func (p *Price) IsValid() bool {
	return p.Amount >= 0 && p.Currency != ""
}

func (r *ProductRecord) Validate() []string {
	var errs []string

	if r.ID == "" {
		errs = append(errs, "id is required")
	}
	if r.Title == "" {
		errs = append(errs, "title is required")
	}
	if r.URL == "" {
		errs = append(errs, "url is required")
	}
	if r.Price != nil && r.Price.Amount < 0 {
		errs = append(errs, "price amount must not be negative")
	}
	if r.MOQ != nil && *r.MOQ < 1 {
		errs = append(errs, "moq must be at least 1")
	}

	return errs
}

// ProductDetail holds extra attributes scraped from a product detail
// page. Kept separate from ProductRecord so listing dedup is not
// affected by detail lookups.
type ProductDetail struct {
	URL            string            `json:"url"`
	Description    string            `json:"description,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	ShippingInfo   string            `json:"shipping_info,omitempty"`
	Images         []string          `json:"images,omitempty"`
	ScrapedAt      time.Time         `json:"scraped_at"`
}
