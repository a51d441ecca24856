package deal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candidate is a raw, unvalidated listing produced by an extractor.
// Empty strings mean the field was not found on the page.
type Candidate struct {
	ItemID          string
	RawTitle        string
	RawDiscountText string
	RawPriceText    string
	RawCouponText   string
	ImageURL        string
	Link            string
}

// Item identifies a product by its stable marketplace key.
type Item struct {
	ID       string `json:"item_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Link     string `json:"link"`
	ImageURL string `json:"image_url,omitempty"`
}

// Observation is one validated sighting of an item's discount and price.
type Observation struct {
	Item
	DiscountPercent int                 `json:"discount_percent"`
	Price           decimal.NullDecimal `json:"price"`
	Coupon          string              `json:"coupon,omitempty"`
	ObservedAt      time.Time           `json:"observed_at"`
}

// HasPrice reports whether a usable positive price was observed
func (o Observation) HasPrice() bool {
	return o.Price.Valid && o.Price.Decimal.IsPositive()
}

// Transition is the outcome of reconciling an observation with the stored deal state
type Transition int

const (
	// Unchanged means the observed discount did not beat the recorded best
	Unchanged Transition = iota
	// New means the item had never been observed
	New
	// Improved means the observed discount is strictly greater than the recorded best
	Improved
)

func (t Transition) String() string {
	switch t {
	case New:
		return "new"
	case Improved:
		return "improved"
	default:
		return "unchanged"
	}
}

// Notifies reports whether the transition re-arms subscribers and triggers fan-out
func (t Transition) Notifies() bool {
	return t == New || t == Improved
}

// RejectReason explains why a candidate was discarded
type RejectReason string

const (
	ReasonMalformedKey RejectReason = "MalformedKey"
	ReasonNoDiscount   RejectReason = "NoDiscount"
	ReasonNoTitle      RejectReason = "NoTitle"
)
