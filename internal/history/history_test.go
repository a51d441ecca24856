package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealalert/internal/store"
)

// points builds a most-recent-first history from prices listed oldest first
func points(prices ...int64) []store.PricePoint {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	out := make([]store.PricePoint, len(prices))
	for i, p := range prices {
		out[len(prices)-1-i] = store.PricePoint{
			ItemID:     "B0SHOES001",
			Price:      decimal.NewFromInt(p),
			ObservedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		history []store.PricePoint
		current int64
		want    string
	}{
		{"lowest equals minimum", points(100, 90, 80), 80, "lowest-in-window"},
		{"increase over previous", points(100, 90), 95, "increased-from 90"},
		{"drop below previous but above min", points(70, 90), 80, "dropped-from 90"},
		{"new low below min is a drop", points(100, 90), 85, "dropped-from 90"},
		{"tie with previous above min", points(70, 90), 90, ""},
		{"empty history", nil, 50, ""},
		{"single point equal", points(50), 50, "lowest-in-window"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(decimal.NewFromInt(tc.current), tc.history)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestClassifyDecimalEquality(t *testing.T) {
	history := []store.PricePoint{{Price: decimal.RequireFromString("80.00")}}
	badge := Classify(decimal.RequireFromString("80"), history)
	assert.Equal(t, LowestInWindow, badge.Kind)
}

type failingSource struct{}

func (failingSource) AppendPricePoint(context.Context, string, decimal.Decimal, time.Time) error {
	return errors.New("disk full")
}

func (failingSource) PricePointsSince(context.Context, string, time.Time) ([]store.PricePoint, error) {
	return nil, errors.New("disk full")
}

func TestAppendSkipsUnknownPrice(t *testing.T) {
	idx := NewIndex(failingSource{})
	ctx := context.Background()

	wrote, err := idx.Append(ctx, "B0SHOES001", decimal.NullDecimal{}, time.Now())
	require.NoError(t, err)
	assert.False(t, wrote)

	wrote, err = idx.Append(ctx, "B0SHOES001", decimal.NewNullDecimal(decimal.Zero), time.Now())
	require.NoError(t, err)
	assert.False(t, wrote)

	_, err = idx.Append(ctx, "B0SHOES001", decimal.NewNullDecimal(decimal.NewFromInt(10)), time.Now())
	assert.Error(t, err)
}

func TestRecentWindow(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "deals.db"))
	require.NoError(t, err)
	defer s.Close()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	idx := NewIndex(s)
	idx.now = func() time.Time { return now }

	for _, p := range []struct {
		daysAgo int
		price   int64
	}{{40, 120}, {20, 100}, {10, 90}, {1, 80}} {
		_, err := idx.Append(ctx, "B0SHOES001", decimal.NewNullDecimal(decimal.NewFromInt(p.price)), now.AddDate(0, 0, -p.daysAgo))
		require.NoError(t, err)
	}

	recent, err := idx.Recent(ctx, "B0SHOES001", 30)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].Price.Equal(decimal.NewFromInt(80)))
	assert.True(t, recent[2].Price.Equal(decimal.NewFromInt(100)))

	// Restartable: the same window yields the same sequence
	again, err := idx.Recent(ctx, "B0SHOES001", 30)
	require.NoError(t, err)
	assert.Equal(t, recent, again)

	assert.Equal(t, "lowest-in-window", Classify(decimal.NewFromInt(80), recent).String())
}
