package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sjsage522/dealalert/internal/deal"
	"sjsage522/dealalert/internal/store"
)

// DefaultMinDiscount applies to users who never set a preference
const DefaultMinDiscount = 5

// Source is the subscription data the registry reads
type Source interface {
	TrackersOf(ctx context.Context, itemID string) ([]int64, error)
	MinDiscount(ctx context.Context, userID int64) (int, error)
	KeywordSubscriptions(ctx context.Context) ([]store.KeywordSubscription, error)
}

// MatchKind tells how a keyword subscription matched a deal
type MatchKind int

const (
	// MatchKeyword means the keyword is a substring of the title
	MatchKeyword MatchKind = iota
	// MatchCategory means the keyword names the deal's category
	MatchCategory
)

func (k MatchKind) String() string {
	if k == MatchCategory {
		return "category"
	}
	return "keyword"
}

// KeywordMatch is one subscription that matched a title
type KeywordMatch struct {
	UserID  int64
	Keyword string
	Kind    MatchKind
}

// Registry answers who should hear about a deal
type Registry struct {
	src        Source
	classifier *deal.Classifier
	defaultMin int
}

// New creates a registry. A non-positive defaultMin falls back to DefaultMinDiscount.
func New(src Source, classifier *deal.Classifier, defaultMin int) *Registry {
	if classifier == nil {
		classifier = deal.DefaultClassifier()
	}
	if defaultMin <= 0 {
		defaultMin = DefaultMinDiscount
	}
	return &Registry{src: src, classifier: classifier, defaultMin: defaultMin}
}

// TrackersOf returns the users tracking an item
func (r *Registry) TrackersOf(ctx context.Context, itemID string) ([]int64, error) {
	return r.src.TrackersOf(ctx, itemID)
}

// MinDiscountOf returns the user's minimum discount, defaulting when unset
func (r *Registry) MinDiscountOf(ctx context.Context, userID int64) (int, error) {
	percent, err := r.src.MinDiscount(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return r.defaultMin, nil
	}
	if err != nil {
		return 0, err
	}
	return percent, nil
}

// KeywordSubscribersMatching returns every subscription matching the title,
// either literally or through the title's derived category. A user may
// appear more than once; callers deduplicate by user before delivery.
func (r *Registry) KeywordSubscribersMatching(ctx context.Context, title string) ([]KeywordMatch, error) {
	subs, err := r.src.KeywordSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load keyword subscriptions: %w", err)
	}

	lowerTitle := strings.ToLower(title)
	category := strings.ToLower(r.classifier.Classify(title))
	categoryNames := r.matchingCategoryNames(category)

	var matches []KeywordMatch
	for _, sub := range subs {
		if sub.Keyword == "" {
			continue
		}
		if strings.Contains(lowerTitle, sub.Keyword) {
			matches = append(matches, KeywordMatch{UserID: sub.UserID, Keyword: sub.Keyword, Kind: MatchKeyword})
		}
		if _, ok := categoryNames[sub.Keyword]; ok {
			matches = append(matches, KeywordMatch{UserID: sub.UserID, Keyword: sub.Keyword, Kind: MatchCategory})
		}
	}
	return matches, nil
}

// matchingCategoryNames returns the lower-cased static category names contained in category
func (r *Registry) matchingCategoryNames(category string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, name := range r.classifier.Names() {
		lower := strings.ToLower(name)
		if strings.Contains(category, lower) {
			names[lower] = struct{}{}
		}
	}
	return names
}
