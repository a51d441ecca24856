package deal

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	perrors "sjsage522/dealalert/pkg/errors"
)

// ASINPattern matches marketplace item keys (ten upper-case alphanumerics)
var ASINPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

var (
	integerPattern = regexp.MustCompile(`\d+`)
	pricePattern   = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// Validator turns candidates into observations. It holds no mutable state.
type Validator struct {
	keyPattern *regexp.Regexp
	classifier *Classifier
	policy     *bluemonday.Policy
	now        func() time.Time
}

// ValidatorOption customizes a Validator
type ValidatorOption func(*Validator)

// WithKeyPattern overrides the item key syntax
func WithKeyPattern(p *regexp.Regexp) ValidatorOption {
	return func(v *Validator) { v.keyPattern = p }
}

// WithClassifier overrides the category classifier
func WithClassifier(c *Classifier) ValidatorOption {
	return func(v *Validator) { v.classifier = c }
}

// WithClock overrides the observation timestamp source
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// NewValidator creates a validator using ASIN keys and the embedded category table
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		keyPattern: ASINPattern,
		classifier: DefaultClassifier(),
		policy:     bluemonday.StrictPolicy(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Classifier returns the classifier used for categories
func (v *Validator) Classifier() *Classifier {
	return v.classifier
}

// Validate accepts a candidate as an Observation or rejects it with a
// malformed_candidate PipelineError carrying the RejectReason.
func (v *Validator) Validate(c Candidate) (Observation, error) {
	itemID := strings.TrimSpace(c.ItemID)
	if itemID == "" || !v.keyPattern.MatchString(itemID) {
		return Observation{}, perrors.NewMalformed(itemID, string(ReasonMalformedKey))
	}

	discount, ok := ParseDiscount(c.RawDiscountText)
	if !ok || discount == 0 {
		return Observation{}, perrors.NewMalformed(itemID, string(ReasonNoDiscount))
	}

	title := v.plainText(c.RawTitle)
	if title == "" {
		return Observation{}, perrors.NewMalformed(itemID, string(ReasonNoTitle))
	}

	obs := Observation{
		Item: Item{
			ID:       itemID,
			Title:    title,
			Category: v.classifier.Classify(title),
			Link:     strings.TrimSpace(c.Link),
			ImageURL: strings.TrimSpace(c.ImageURL),
		},
		DiscountPercent: discount,
		Coupon:          v.coupon(c.RawCouponText),
		ObservedAt:      v.now().UTC(),
	}
	if price, ok := ParsePrice(c.RawPriceText); ok {
		obs.Price = decimal.NullDecimal{Decimal: price, Valid: true}
	}
	return obs, nil
}

// plainText strips markup and collapses whitespace
func (v *Validator) plainText(raw string) string {
	cleaned := html.UnescapeString(v.policy.Sanitize(raw))
	return strings.Join(strings.Fields(cleaned), " ")
}

func (v *Validator) coupon(raw string) string {
	text := v.plainText(raw)
	if !strings.Contains(strings.ToLower(text), "coupon") {
		return ""
	}
	return text
}

// ParseDiscount extracts the first integer in text ("Up to 45% off" -> 45)
func ParseDiscount(text string) (int, bool) {
	match := integerPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParsePrice extracts a non-negative decimal from price text ("₹1,299.00" -> 1299.00)
func ParsePrice(text string) (decimal.Decimal, bool) {
	match := pricePattern.FindString(text)
	if match == "" {
		return decimal.Decimal{}, false
	}
	price, err := decimal.NewFromString(strings.ReplaceAll(match, ",", ""))
	if err != nil || price.IsNegative() {
		return decimal.Decimal{}, false
	}
	return price, true
}
