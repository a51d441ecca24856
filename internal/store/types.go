package store

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"sjsage522/dealalert/internal/deal"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidDiscount is returned for a minimum discount outside 1..99
	ErrInvalidDiscount = errors.New("store: minimum discount must be between 1 and 99")
	// ErrEmptyKeyword is returned when a keyword is blank after trimming
	ErrEmptyKeyword = errors.New("store: keyword must not be empty")
)

// DealState is the best discount ever recorded for an item
type DealState struct {
	deal.Item
	BestDiscountPercent int
	LastSeenAt          time.Time
}

// PricePoint is one positive price observation
type PricePoint struct {
	ItemID     string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// TrackedItem is a tracking entry joined with what is known about the item
type TrackedItem struct {
	ItemID    string
	Title     string
	Link      string
	Discount  int
	TrackedAt time.Time
}

// KeywordSubscription pairs a user with one lower-cased keyword
type KeywordSubscription struct {
	UserID  int64
	Keyword string
}
