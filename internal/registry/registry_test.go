package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealalert/internal/deal"
	"sjsage522/dealalert/internal/store"
)

type mockSource struct {
	trackers map[string][]int64
	mins     map[int64]int
	subs     []store.KeywordSubscription
	err      error
}

func (m *mockSource) TrackersOf(_ context.Context, itemID string) ([]int64, error) {
	return m.trackers[itemID], m.err
}

func (m *mockSource) MinDiscount(_ context.Context, userID int64) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	if v, ok := m.mins[userID]; ok {
		return v, nil
	}
	return 0, store.ErrNotFound
}

func (m *mockSource) KeywordSubscriptions(context.Context) ([]store.KeywordSubscription, error) {
	return m.subs, m.err
}

func TestMinDiscountOf(t *testing.T) {
	src := &mockSource{mins: map[int64]int{1: 30}}
	r := New(src, nil, 0)
	ctx := context.Background()

	got, err := r.MinDiscountOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, got)

	got, err = r.MinDiscountOf(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultMinDiscount, got)

	src.err = errors.New("db down")
	_, err = r.MinDiscountOf(ctx, 1)
	assert.Error(t, err)
}

func TestKeywordSubscribersMatching(t *testing.T) {
	src := &mockSource{subs: []store.KeywordSubscription{
		{UserID: 1, Keyword: "shoes"},
		{UserID: 2, Keyword: "footwear"},
		{UserID: 3, Keyword: "laptop"},
		{UserID: 4, Keyword: "running"},
		{UserID: 4, Keyword: "footwear"},
		{UserID: 5, Keyword: "deals"},
	}}
	r := New(src, deal.DefaultClassifier(), 5)

	matches, err := r.KeywordSubscribersMatching(context.Background(), "Trail Running SHOES")
	require.NoError(t, err)

	assert.ElementsMatch(t, []KeywordMatch{
		{UserID: 1, Keyword: "shoes", Kind: MatchKeyword},
		{UserID: 2, Keyword: "footwear", Kind: MatchCategory},
		{UserID: 4, Keyword: "running", Kind: MatchKeyword},
		{UserID: 4, Keyword: "footwear", Kind: MatchCategory},
	}, matches)
}

func TestKeywordMatchesDefaultCategory(t *testing.T) {
	src := &mockSource{subs: []store.KeywordSubscription{{UserID: 5, Keyword: "deals"}}}
	r := New(src, nil, 5)

	matches, err := r.KeywordSubscribersMatching(context.Background(), "Induction Cooktop")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, MatchCategory, matches[0].Kind)
	assert.Equal(t, "category", matches[0].Kind.String())
}

func TestKeywordSubscribersMatchingError(t *testing.T) {
	r := New(&mockSource{err: errors.New("db down")}, nil, 5)
	_, err := r.KeywordSubscribersMatching(context.Background(), "anything")
	assert.Error(t, err)
}
