package parser

import (
	"errors"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
)

// ErrUnrecognizedPageShape means none of the known product-entry
// markers were found, i.e. the page is not a listing page at all.
// Individual malformed entries never cause this.
var ErrUnrecognizedPageShape = errors.New("unrecognized page shape")

type Parser interface {
	ParseListing(page *models.RawPage) ([]models.RawField, error)
	ParseProductDetail(page *models.RawPage) (*models.ProductDetail, error)
}
