package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sjsage522/dealalert/internal/deal"
)

// RecordObservation reconciles an observation with the stored deal state.
//
// The insert, the conditional improvement and the clearing of notification
// records for the item commit in one transaction, and calls for the same item
// are serialized, so two concurrent observations cannot both be New.
func (s *Store) RecordObservation(ctx context.Context, obs deal.Observation) (deal.Transition, error) {
	unlock := s.items.Lock(obs.ID)
	defer unlock()

	seen := toMillis(obs.ObservedAt)
	if obs.ObservedAt.IsZero() {
		seen = toMillis(s.now())
	}

	transition := deal.Unchanged
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(
			`INSERT INTO items_state (item_id, best_discount_percent, last_seen_at, title, category, link, image_url)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(item_id) DO NOTHING`),
			obs.ID, obs.DiscountPercent, seen, obs.Title, obs.Category, obs.Link, obs.ImageURL,
		)
		if err != nil {
			return fmt.Errorf("insert deal state: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("insert deal state: %w", err)
		} else if n == 1 {
			transition = deal.New
		}

		if transition == deal.Unchanged {
			res, err = tx.ExecContext(ctx, s.q(
				`UPDATE items_state
				 SET best_discount_percent = ?, last_seen_at = ?, title = ?, category = ?, link = ?, image_url = ?
				 WHERE item_id = ? AND best_discount_percent < ?`),
				obs.DiscountPercent, seen, obs.Title, obs.Category, obs.Link, obs.ImageURL,
				obs.ID, obs.DiscountPercent,
			)
			if err != nil {
				return fmt.Errorf("improve deal state: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("improve deal state: %w", err)
			}
			if n == 1 {
				transition = deal.Improved
			}
		}

		if !transition.Notifies() {
			return nil
		}

		// Re-arm every subscriber for the new best discount
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM notified WHERE item_id = ?`), obs.ID); err != nil {
			return fmt.Errorf("clear notification records: %w", err)
		}
		return nil
	})
	if err != nil {
		return deal.Unchanged, err
	}

	s.log.Debug().
		Str("item_id", obs.ID).
		Int("discount", obs.DiscountPercent).
		Str("transition", transition.String()).
		Msg("Recorded observation")

	return transition, nil
}

// GetDealState returns the stored state for an item, or ErrNotFound
func (s *Store) GetDealState(ctx context.Context, itemID string) (*DealState, error) {
	var st DealState
	var seen int64
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT item_id, best_discount_percent, last_seen_at, title, category, link, image_url
		 FROM items_state WHERE item_id = ?`), itemID,
	).Scan(&st.ID, &st.BestDiscountPercent, &seen, &st.Title, &st.Category, &st.Link, &st.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deal state: %w", err)
	}
	st.LastSeenAt = fromMillis(seen)
	return &st, nil
}

// AppendPricePoint stores a price observation. Non-positive prices are ignored
// and a repeated (item, time) pair is a no-op.
func (s *Store) AppendPricePoint(ctx context.Context, itemID string, price decimal.Decimal, observedAt time.Time) error {
	if !price.IsPositive() {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO price_points (item_id, observed_at, price)
		 VALUES (?, ?, ?)
		 ON CONFLICT(item_id, observed_at) DO NOTHING`),
		itemID, toMillis(observedAt), price.String(),
	)
	if err != nil {
		return fmt.Errorf("append price point: %w", err)
	}
	return nil
}

// PricePointsSince returns the item's price points observed at or after since, most recent first
func (s *Store) PricePointsSince(ctx context.Context, itemID string, since time.Time) ([]PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT observed_at, price FROM price_points
		 WHERE item_id = ? AND observed_at >= ?
		 ORDER BY observed_at DESC`),
		itemID, toMillis(since),
	)
	if err != nil {
		return nil, fmt.Errorf("query price points: %w", err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var at int64
		var raw string
		if err := rows.Scan(&at, &raw); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored price %q: %w", raw, err)
		}
		points = append(points, PricePoint{ItemID: itemID, Price: price, ObservedAt: fromMillis(at)})
	}
	return points, rows.Err()
}
