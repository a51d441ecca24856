package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Track adds a tracking entry. It reports false when the user already tracks the item.
func (s *Store) Track(ctx context.Context, userID int64, itemID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO tracking (user_id, item_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id, item_id) DO NOTHING`),
		userID, itemID, toMillis(s.now()),
	)
	if err != nil {
		return false, fmt.Errorf("track item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("track item: %w", err)
	}
	return n == 1, nil
}

// Untrack removes a tracking entry, reporting whether one existed
func (s *Store) Untrack(ctx context.Context, userID int64, itemID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM tracking WHERE user_id = ? AND item_id = ?`), userID, itemID)
	if err != nil {
		return false, fmt.Errorf("untrack item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("untrack item: %w", err)
	}
	return n > 0, nil
}

// TrackersOf returns the users tracking an item
func (s *Store) TrackersOf(ctx context.Context, itemID string) ([]int64, error) {
	return s.userIDs(ctx, `SELECT user_id FROM tracking WHERE item_id = ? ORDER BY user_id`, itemID)
}

// TrackedItems returns one page of a user's tracked items, newest first, and the total count
func (s *Store) TrackedItems(ctx context.Context, userID int64, limit, offset int) ([]TrackedItem, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM tracking WHERE user_id = ?`), userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tracked items: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT t.item_id, COALESCE(d.title, ''), COALESCE(d.link, ''), COALESCE(d.best_discount_percent, 0), t.created_at
		 FROM tracking t
		 LEFT JOIN items_state d ON d.item_id = t.item_id
		 WHERE t.user_id = ?
		 ORDER BY t.created_at DESC, t.item_id
		 LIMIT ? OFFSET ?`),
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query tracked items: %w", err)
	}
	defer rows.Close()

	var items []TrackedItem
	for rows.Next() {
		var it TrackedItem
		var created int64
		if err := rows.Scan(&it.ItemID, &it.Title, &it.Link, &it.Discount, &created); err != nil {
			return nil, 0, fmt.Errorf("scan tracked item: %w", err)
		}
		it.TrackedAt = fromMillis(created)
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// SetMinDiscount stores a user's minimum discount, which must be within 1..99
func (s *Store) SetMinDiscount(ctx context.Context, userID int64, percent int) error {
	if percent < 1 || percent > 99 {
		return ErrInvalidDiscount
	}
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO preferences (user_id, min_discount_percent)
		 VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   min_discount_percent = excluded.min_discount_percent`),
		userID, percent,
	)
	if err != nil {
		return fmt.Errorf("set min discount: %w", err)
	}
	return nil
}

// MinDiscount returns the user's explicit minimum discount, or ErrNotFound when unset
func (s *Store) MinDiscount(ctx context.Context, userID int64) (int, error) {
	var percent int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT min_discount_percent FROM preferences WHERE user_id = ?`), userID).Scan(&percent)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get min discount: %w", err)
	}
	return percent, nil
}

// NormalizeKeyword lower-cases and trims a keyword
func NormalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// AddKeyword subscribes a user to a keyword, reporting false if already subscribed
func (s *Store) AddKeyword(ctx context.Context, userID int64, keyword string) (bool, error) {
	keyword = NormalizeKeyword(keyword)
	if keyword == "" {
		return false, ErrEmptyKeyword
	}
	res, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO keyword_subs (user_id, keyword)
		 VALUES (?, ?)
		 ON CONFLICT(user_id, keyword) DO NOTHING`),
		userID, keyword,
	)
	if err != nil {
		return false, fmt.Errorf("add keyword: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add keyword: %w", err)
	}
	return n == 1, nil
}

// RemoveKeyword unsubscribes a user from a keyword, reporting whether it existed
func (s *Store) RemoveKeyword(ctx context.Context, userID int64, keyword string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM keyword_subs WHERE user_id = ? AND keyword = ?`), userID, NormalizeKeyword(keyword))
	if err != nil {
		return false, fmt.Errorf("remove keyword: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove keyword: %w", err)
	}
	return n > 0, nil
}

// KeywordsOf returns a user's keywords in alphabetical order
func (s *Store) KeywordsOf(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT keyword FROM keyword_subs WHERE user_id = ? ORDER BY keyword`), userID)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// KeywordSubscriptions returns every keyword subscription
func (s *Store) KeywordSubscriptions(ctx context.Context) ([]KeywordSubscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, keyword FROM keyword_subs ORDER BY user_id, keyword`)
	if err != nil {
		return nil, fmt.Errorf("query keyword subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []KeywordSubscription
	for rows.Next() {
		var sub KeywordSubscription
		if err := rows.Scan(&sub.UserID, &sub.Keyword); err != nil {
			return nil, fmt.Errorf("scan keyword subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// HasNotified reports whether the user was already notified about the item's current best discount
func (s *Store) HasNotified(ctx context.Context, userID int64, itemID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT 1 FROM notified WHERE user_id = ? AND item_id = ?`), userID, itemID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check notification record: %w", err)
	}
	return true, nil
}

// MarkNotified records that the user was notified about the item
func (s *Store) MarkNotified(ctx context.Context, userID int64, itemID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO notified (user_id, item_id, notified_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id, item_id) DO NOTHING`),
		userID, itemID, toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// NotifiedUsers returns the users holding a notification record for the item
func (s *Store) NotifiedUsers(ctx context.Context, itemID string) ([]int64, error) {
	return s.userIDs(ctx, `SELECT user_id FROM notified WHERE item_id = ? ORDER BY user_id`, itemID)
}

func (s *Store) userIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
