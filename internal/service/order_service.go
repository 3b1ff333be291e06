package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Pricing holds the rules that turn line items into order totals
type Pricing struct {
	TaxRate               decimal.Decimal
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// Totals is the price breakdown of an order, each amount rounded to cents
type Totals struct {
	Items    decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Calculate prices a set of line items
func (p Pricing) Calculate(items []models.OrderItem) Totals {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	t := Totals{Items: sum.Round(2)}
	t.Tax = t.Items.Mul(p.TaxRate).Round(2)
	if t.Items.GreaterThanOrEqual(p.FreeShippingThreshold) {
		t.Shipping = decimal.Zero
	} else {
		t.Shipping = p.ShippingFee.Round(2)
	}
	t.Total = t.Items.Add(t.Tax).Add(t.Shipping)
	return t
}

// OrderService handles order business logic
type OrderService struct {
	orders         OrderStore
	products       ProductStore
	idempotency    IdempotencyKeys
	idempotencyTTL time.Duration
	events         OrderEvents
	pricing        Pricing
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderService creates a new order service. idempotency may be nil, in
// which case Idempotency-Key headers are ignored.
func NewOrderService(
	orders OrderStore,
	products ProductStore,
	idempotency IdempotencyKeys,
	idempotencyTTL time.Duration,
	events OrderEvents,
	pricing Pricing,
) *OrderService {
	return &OrderService{
		orders:         orders,
		products:       products,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		events:         events,
		pricing:        pricing,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// CreateOrderRequest represents a request to place an order
type CreateOrderRequest struct {
	Items           []OrderItemRequest     `json:"order_items" binding:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
	PaymentMethod   string                 `json:"payment_method" binding:"required"`
	IdempotencyKey  string                 `json:"-"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// Create places an order for the calling customer. Line items snapshot the
// product name, image and effective price at this moment.
func (s *OrderService) Create(ctx context.Context, p auth.Principal, req *CreateOrderRequest) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Create")
	defer span.End()

	if err := auth.RequireRole(p, models.RoleCustomer); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("No order items")
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		// keys are scoped per buyer
		key := p.ID.String() + ":" + req.IdempotencyKey
		existing, reserved, rerr := s.idempotency.ReserveIdempotencyKey(ctx, key, s.idempotencyTTL)
		switch {
		case errors.Is(rerr, redisclient.ErrInFlight):
			return nil, apperr.Validation("A request with this Idempotency-Key is still being processed")
		case rerr != nil:
			s.logger.Warn("Idempotency check failed, placing order without it",
				zap.String("idempotency_key", key),
				zap.Error(rerr))
		case !reserved:
			return s.replay(ctx, p, key, existing)
		default:
			defer func() {
				s.settleIdempotencyKey(ctx, key, order, err)
			}()
		}
	}

	items, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	totals := s.pricing.Calculate(items)
	order = &models.Order{
		UserID:          p.ID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      totals.Items,
		TaxPrice:        totals.Tax,
		ShippingPrice:   totals.Shipping,
		TotalPrice:      totals.Total,
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, apperr.Internal("failed to create order", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", p.ID.String()),
		zap.String("total", order.TotalPrice.StringFixed(2)))

	event := &models.OrderCreatedEvent{
		BaseEvent:  models.NewBaseEvent(models.EventTypeOrderCreated, s.now()),
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalPrice: order.TotalPrice,
		Items:      models.ItemData(order.Items),
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return order, nil
}

// snapshotItems validates every requested product and copies its current
// name, image and price into new line items
func (s *OrderService) snapshotItems(ctx context.Context, reqItems []OrderItemRequest) ([]models.OrderItem, error) {
	wanted := make(map[uuid.UUID]int, len(reqItems))
	ids := make([]uuid.UUID, 0, len(reqItems))
	for _, item := range reqItems {
		if item.Quantity < 1 {
			util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
			return nil, apperr.Validation("Quantity must be at least 1")
		}
		if _, seen := wanted[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		wanted[item.ProductID] += item.Quantity
	}

	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, apperr.Internal("failed to load products", err)
	}

	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, id := range ids {
		product, ok := byID[id]
		if !ok {
			util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
			return nil, apperr.NotFound(fmt.Sprintf("Product %s not found", id))
		}
		if wanted[id] > product.Quantity {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, apperr.Validation(fmt.Sprintf("Insufficient stock for %s", product.Name))
		}
	}

	items := make([]models.OrderItem, 0, len(reqItems))
	for _, item := range reqItems {
		product := byID[item.ProductID]
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Price:     product.EffectivePrice(),
			Quantity:  item.Quantity,
		})
	}
	return items, nil
}

// replay returns the order already placed under an idempotency key
func (s *OrderService) replay(ctx context.Context, p auth.Principal, key, orderID string) (*models.Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, apperr.Internal("corrupt idempotency record", err)
	}
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Order not found")
	}
	if err := auth.RequireOwnership(p, order.UserID); err != nil {
		return nil, apperr.Forbidden("Not authorized to access this order")
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.String("order_id", orderID))
	return order, nil
}

func (s *OrderService) settleIdempotencyKey(ctx context.Context, key string, order *models.Order, err error) {
	if err != nil || order == nil {
		if rerr := s.idempotency.ReleaseIdempotencyKey(ctx, key); rerr != nil {
			s.logger.Error("Failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(rerr))
		}
		return
	}
	if cerr := s.idempotency.CompleteIdempotencyKey(ctx, key, order.ID.String(), s.idempotencyTTL); cerr != nil {
		s.logger.Error("Failed to complete idempotency key", zap.String("idempotency_key", key), zap.Error(cerr))
	}
}

// Get returns an order to its buyer or an admin
func (s *OrderService) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Get")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Order not found")
	}
	if err := auth.RequireOwnership(p, order.UserID); err != nil {
		return nil, apperr.Forbidden("Not authorized to access this order")
	}
	return order, nil
}

// ListMine returns the caller's orders, newest first
func (s *OrderService) ListMine(ctx context.Context, p auth.Principal) ([]models.Order, error) {
	orders, err := s.orders.GetOrdersByUserID(ctx, p.ID)
	if err != nil {
		return nil, apperr.Internal("failed to list orders", err)
	}
	return orders, nil
}

// ListAll returns every order for admins
func (s *OrderService) ListAll(ctx context.Context, p auth.Principal) ([]models.Order, error) {
	if err := auth.RequireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	orders, err := s.orders.GetOrders(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list orders", err)
	}
	return orders, nil
}

// ListForSeller returns every order containing at least one of the
// seller's products
func (s *OrderService) ListForSeller(ctx context.Context, p auth.Principal) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListForSeller")
	defer span.End()

	if err := auth.RequireRole(p, models.RoleSeller); err != nil {
		return nil, err
	}
	products, err := s.products.GetProductsBySeller(ctx, p.ID)
	if err != nil {
		return nil, apperr.Internal("failed to load seller products", err)
	}

	ids := make([]uuid.UUID, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	orders, err := s.orders.GetOrdersContainingProducts(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to list seller orders", err)
	}
	return orders, nil
}

// MarkDelivered records fulfillment. Delivering twice keeps the first
// delivery time.
func (s *OrderService) MarkDelivered(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.MarkDelivered")
	defer span.End()

	if err := auth.RequireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Order not found")
	}
	if order.IsDelivered {
		return order, nil
	}

	now := s.now().UTC()
	if err := s.orders.MarkOrderDelivered(ctx, id, now); err != nil {
		return nil, storeErr(err, "Order not found")
	}
	order.IsDelivered = true
	order.DeliveredAt = &now

	util.OrdersDeliveredTotal.Inc()
	s.logger.Info("Order delivered", zap.String("order_id", id.String()))

	event := &models.OrderDeliveredEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderDelivered, now),
		OrderID:   order.ID,
		UserID:    order.UserID,
	}
	if err := s.events.PublishOrderDelivered(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderDelivered event", zap.Error(err))
	}
	return order, nil
}
