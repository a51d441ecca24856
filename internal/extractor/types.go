package extractor

import (
	"context"
	"time"

	"sjsage522/dealalert/internal/deal"
)

// Extractor turns a marketplace page into raw candidates
type Extractor interface {
	// FetchCandidates retrieves the current listing; any error aborts the run
	FetchCandidates(ctx context.Context) ([]deal.Candidate, error)

	// Name returns the extractor's name for logging and identification
	Name() string
}

// Selectors contains CSS selectors for the elements of a deal card
type Selectors struct {
	Card     string
	ItemAttr string
	Link     string
	Title    string
	Discount string
	Price    string
	Coupon   string
	Image    string
}

// Config contains configuration for an HTML extractor
type Config struct {
	Name         string
	URL          string
	BaseURL      string
	AffiliateTag string
	CacheKey     string
	BlockTime    time.Duration
	Timeout      time.Duration
	Selectors    Selectors
}

// DefaultSelectors returns selectors for the marketplace deals grid
func DefaultSelectors() Selectors {
	return Selectors{
		Card:     `div[data-testid="product-card"]`,
		ItemAttr: "data-asin",
		Link:     `a[href*="/dp/"]`,
		Title:    `p[id^="title-"] span.a-truncate-full`,
		Discount: `div[data-component="dui-badge"] span`,
		Price:    `span.a-price span.a-offscreen`,
		Coupon:   "div, span",
		Image:    "img",
	}
}
