package history

import (
	"github.com/shopspring/decimal"

	"sjsage522/dealalert/internal/store"
)

// BadgeKind is the advisory price signal shown next to a deal
type BadgeKind int

const (
	NoBadge BadgeKind = iota
	LowestInWindow
	DroppedFrom
	IncreasedFrom
)

// Badge is a derived price signal. Reference is the previous price for the moved kinds.
type Badge struct {
	Kind      BadgeKind
	Reference decimal.Decimal
}

// String returns the canonical badge text, empty for NoBadge
func (b Badge) String() string {
	switch b.Kind {
	case LowestInWindow:
		return "lowest-in-window"
	case DroppedFrom:
		return "dropped-from " + b.Reference.String()
	case IncreasedFrom:
		return "increased-from " + b.Reference.String()
	default:
		return ""
	}
}

// Classify derives the badge for current from recent (most recent first).
// It never gates notification.
func Classify(current decimal.Decimal, recent []store.PricePoint) Badge {
	if len(recent) == 0 {
		return Badge{}
	}

	lowest := recent[0].Price
	for _, p := range recent[1:] {
		if p.Price.LessThan(lowest) {
			lowest = p.Price
		}
	}
	if current.Equal(lowest) {
		return Badge{Kind: LowestInWindow}
	}

	previous := recent[0].Price
	switch {
	case current.LessThan(previous):
		return Badge{Kind: DroppedFrom, Reference: previous}
	case current.GreaterThan(previous):
		return Badge{Kind: IncreasedFrom, Reference: previous}
	default:
		return Badge{}
	}
}
