package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateOrder writes an order and its line items in one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO orders (id, user_id, shipping_address, payment_method, payment_result,
				items_price, tax_price, shipping_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at`

		err := tx.GetContext(ctx, &order.CreatedAt, query,
			order.ID, order.UserID, order.ShippingAddress, order.PaymentMethod, order.PaymentResult,
			order.ItemsPrice, order.TaxPrice, order.ShippingPrice, order.TotalPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			if item.ID == uuid.Nil {
				item.ID = uuid.New()
			}
			item.OrderID = order.ID

			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, product_id, name, image, price, quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				item.ID, item.OrderID, item.ProductID, item.Name, item.Image, item.Price, item.Quantity)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		return nil
	})
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	orders := []models.Order{order}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return s.selectOrders(ctx,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id", userID)
}

// GetOrders retrieves every order, newest first
func (s *Store) GetOrders(ctx context.Context) ([]models.Order, error) {
	return s.selectOrders(ctx, "SELECT * FROM orders ORDER BY created_at DESC, id")
}

// GetOrdersContainingProducts retrieves orders with at least one line item
// referencing productIDs. Every item of a matching order is returned.
func (s *Store) GetOrdersContainingProducts(ctx context.Context, productIDs []uuid.UUID) ([]models.Order, error) {
	if len(productIDs) == 0 {
		return []models.Order{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT * FROM orders
		WHERE id IN (SELECT order_id FROM order_items WHERE product_id IN (?))
		ORDER BY created_at DESC, id`, productIDs)
	if err != nil {
		return nil, err
	}
	return s.selectOrders(ctx, s.db.Rebind(query), args...)
}

// SetGatewayOrderID records the payment gateway order created for an order
func (s *Store) SetGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET gateway_order_id = $1 WHERE id = $2", gatewayOrderID, orderID)
	if err != nil {
		return err
	}
	return expectAffected(res, "order "+orderID.String())
}

// MarkOrderPaid sets the payment fields of an unpaid order in a single
// update. It reports false when the order was already paid.
func (s *Store) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, result models.PaymentResult, paidAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET is_paid = TRUE, paid_at = $1, payment_result = $2 WHERE id = $3 AND is_paid = FALSE",
		paidAt, result, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkOrderDelivered sets the fulfillment fields
func (s *Store) MarkOrderDelivered(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET is_delivered = TRUE, delivered_at = $1 WHERE id = $2",
		deliveredAt, orderID)
	if err != nil {
		return err
	}
	return expectAffected(res, "order "+orderID.String())
}

func (s *Store) selectOrders(ctx context.Context, query string, args ...interface{}) ([]models.Order, error) {
	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads line items for orders with one query
func (s *Store) attachItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []models.OrderItem{}
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE order_id IN (?) ORDER BY order_id, id", ids)
	if err != nil {
		return err
	}

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}

	for _, item := range items {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return nil
}
