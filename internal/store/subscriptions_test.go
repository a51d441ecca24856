package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	added, err := s.Track(ctx, 7, "B0SHOES001")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Track(ctx, 7, "B0SHOES001")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = s.Track(ctx, 8, "B0SHOES001")
	require.NoError(t, err)

	trackers, err := s.TrackersOf(ctx, "B0SHOES001")
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, trackers)

	removed, err := s.Untrack(ctx, 7, "B0SHOES001")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Untrack(ctx, 7, "B0SHOES001")
	require.NoError(t, err)
	assert.False(t, removed)

	trackers, err = s.TrackersOf(ctx, "B0SHOES001")
	require.NoError(t, err)
	assert.Equal(t, []int64{8}, trackers)
}

func TestTrackedItemsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.RecordObservation(ctx, observation("B0SHOES001", 20))
	require.NoError(t, err)

	clock := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	for _, id := range []string{"B0SHOES001", "B0ITEM0002", "B0ITEM0003"} {
		clock = clock.Add(time.Minute)
		_, err := s.Track(ctx, 7, id)
		require.NoError(t, err)
	}

	page, total, err := s.TrackedItems(ctx, 7, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "B0ITEM0003", page[0].ItemID)
	assert.Empty(t, page[0].Title)

	page, _, err = s.TrackedItems(ctx, 7, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "B0SHOES001", page[0].ItemID)
	assert.Equal(t, "Trail Running Shoes", page[0].Title)
	assert.Equal(t, 20, page[0].Discount)
}

func TestMinDiscount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.MinDiscount(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetMinDiscount(ctx, 7, 30))
	require.NoError(t, s.SetMinDiscount(ctx, 7, 45))
	got, err := s.MinDiscount(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 45, got)

	assert.ErrorIs(t, s.SetMinDiscount(ctx, 7, 0), ErrInvalidDiscount)
	assert.ErrorIs(t, s.SetMinDiscount(ctx, 7, 100), ErrInvalidDiscount)
}

func TestKeywords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	added, err := s.AddKeyword(ctx, 7, "  Shoes ")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddKeyword(ctx, 7, "SHOES")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = s.AddKeyword(ctx, 7, "laptops")
	require.NoError(t, err)
	_, err = s.AddKeyword(ctx, 9, "watch")
	require.NoError(t, err)

	_, err = s.AddKeyword(ctx, 7, "   ")
	assert.ErrorIs(t, err, ErrEmptyKeyword)

	keywords, err := s.KeywordsOf(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"laptops", "shoes"}, keywords)

	subs, err := s.KeywordSubscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []KeywordSubscription{{7, "laptops"}, {7, "shoes"}, {9, "watch"}}, subs)

	removed, err := s.RemoveKeyword(ctx, 7, "Shoes")
	require.NoError(t, err)
	assert.True(t, removed)

	keywords, err = s.KeywordsOf(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"laptops"}, keywords)
}

func TestMarkNotifiedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	notified, err := s.HasNotified(ctx, 7, "B0SHOES001")
	require.NoError(t, err)
	assert.False(t, notified)

	require.NoError(t, s.MarkNotified(ctx, 7, "B0SHOES001", time.Now()))
	require.NoError(t, s.MarkNotified(ctx, 7, "B0SHOES001", time.Now()))

	notified, err = s.HasNotified(ctx, 7, "B0SHOES001")
	require.NoError(t, err)
	assert.True(t, notified)
}
