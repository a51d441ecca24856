package history

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"sjsage522/dealalert/internal/store"
)

// Source persists and queries price points
type Source interface {
	AppendPricePoint(ctx context.Context, itemID string, price decimal.Decimal, observedAt time.Time) error
	PricePointsSince(ctx context.Context, itemID string, since time.Time) ([]store.PricePoint, error)
}

// Index is the per-item price time series
type Index struct {
	src Source
	now func() time.Time
}

// NewIndex creates a price history index over src
func NewIndex(src Source) *Index {
	return &Index{src: src, now: time.Now}
}

// Append stores a price when it is known and positive. It reports whether a point was written.
func (i *Index) Append(ctx context.Context, itemID string, price decimal.NullDecimal, observedAt time.Time) (bool, error) {
	if !price.Valid || !price.Decimal.IsPositive() {
		return false, nil
	}
	if err := i.src.AppendPricePoint(ctx, itemID, price.Decimal, observedAt); err != nil {
		return false, err
	}
	return true, nil
}

// Recent returns the points observed within the trailing window, most recent first.
// The result is re-derived from storage on every call.
func (i *Index) Recent(ctx context.Context, itemID string, windowDays int) ([]store.PricePoint, error) {
	since := i.now().AddDate(0, 0, -windowDays)
	return i.src.PricePointsSince(ctx, itemID, since)
}
