package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// CommitOrderStock deducts ordered quantities from stock, floored at zero,
// and records eventID in the same transaction. It reports false when the
// event was already applied.
func (s *Store) CommitOrderStock(ctx context.Context, eventID, eventType string, items []models.OrderItemData) (bool, error) {
	applied := false
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
			eventID, eventType)
		if err != nil {
			return fmt.Errorf("failed to mark event processed: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		for _, item := range items {
			_, err := tx.ExecContext(ctx,
				"UPDATE products SET quantity = GREATEST(quantity - $1, 0), updated_at = NOW() WHERE id = $2",
				item.Quantity, item.ProductID)
			if err != nil {
				return fmt.Errorf("failed to commit stock for product %s: %w", item.ProductID, err)
			}
		}
		applied = true
		return nil
	})
	return applied, err
}
