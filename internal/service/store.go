package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/google/uuid"
)

// UserStore persists identities
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

// ProductStore persists the catalog
type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, int, error)
	GetProductsBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	AddReview(ctx context.Context, review *models.Review) error
	GetProductStats(ctx context.Context, lowStockThreshold int) (*store.ProductStats, error)
}

// OrderStore persists orders and their line items
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	GetOrders(ctx context.Context) ([]models.Order, error)
	GetOrdersContainingProducts(ctx context.Context, productIDs []uuid.UUID) ([]models.Order, error)
	SetGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, result models.PaymentResult, paidAt time.Time) (bool, error)
	MarkOrderDelivered(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) error
}

// StockStore applies paid orders to inventory
type StockStore interface {
	CommitOrderStock(ctx context.Context, eventID, eventType string, items []models.OrderItemData) (bool, error)
}

// OrderEvents publishes the order lifecycle
type OrderEvents interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderDelivered(ctx context.Context, event *models.OrderDeliveredEvent) error
}

// IdempotencyKeys deduplicates order placement retries
type IdempotencyKeys interface {
	ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	CompleteIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// storeErr translates a store failure into the error taxonomy
func storeErr(err error, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(notFound)
	}
	return apperr.Internal("store operation failed", err)
}
