package service

import (
	"context"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService bridges orders to the payment gateway
type PaymentService struct {
	orders   OrderStore
	gateway  payment.Gateway
	events   OrderEvents
	currency string
	logger   *zap.Logger
	now      func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(orders OrderStore, gateway payment.Gateway, events OrderEvents, currency string) *PaymentService {
	return &PaymentService{
		orders:   orders,
		gateway:  gateway,
		events:   events,
		currency: currency,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// CreatePaymentOrderRequest starts checkout for a stored order
type CreatePaymentOrderRequest struct {
	OrderID  uuid.UUID `json:"order_id" binding:"required"`
	Currency string    `json:"currency"`
}

// PaymentOrder is handed to the checkout widget
type PaymentOrder struct {
	*payment.ExternalOrder
	KeyID string `json:"key_id"`
}

// VerifyPaymentRequest is the gateway callback relayed by the client
type VerifyPaymentRequest struct {
	GatewayOrderID string    `json:"razorpay_order_id" binding:"required"`
	PaymentID      string    `json:"razorpay_payment_id" binding:"required"`
	Signature      string    `json:"razorpay_signature" binding:"required"`
	OrderID        uuid.UUID `json:"order_id" binding:"required"`
}

// CreateExternalOrder registers the order's stored total with the gateway.
// The order id is the receipt and the gateway order id is kept on the order
// for Verify.
func (s *PaymentService) CreateExternalOrder(ctx context.Context, p auth.Principal, req *CreatePaymentOrderRequest) (*PaymentOrder, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreateExternalOrder")
	defer span.End()

	order, err := s.ownedOrder(ctx, p, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return nil, apperr.Validation("Order is already paid")
	}

	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}

	ext, err := s.gateway.CreateOrder(ctx, order.TotalPrice, currency, order.ID.String())
	if err != nil {
		return nil, apperr.Internal("Error creating payment order", err)
	}
	if err := s.orders.SetGatewayOrderID(ctx, order.ID, ext.ID); err != nil {
		return nil, storeErr(err, "Order not found")
	}

	s.logger.Info("Payment order created",
		zap.String("order_id", order.ID.String()),
		zap.String("gateway_order_id", ext.ID),
		zap.Int64("amount_minor", ext.Amount))
	return &PaymentOrder{ExternalOrder: ext, KeyID: s.gateway.KeyID()}, nil
}

// Verify authenticates a gateway callback and marks the order paid in one
// conditional update. The callback must carry the gateway order id created
// for this order. A paid order is returned unchanged and only the callback
// whose update applied publishes ORDER_PAID.
func (s *PaymentService) Verify(ctx context.Context, p auth.Principal, req *VerifyPaymentRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Verify")
	defer span.End()

	if !s.gateway.Verify(payment.CallbackPayload(req.GatewayOrderID, req.PaymentID), req.Signature) {
		util.PaymentVerificationsTotal.WithLabelValues("bad_signature").Inc()
		s.logger.Warn("Payment signature mismatch",
			zap.String("order_id", req.OrderID.String()),
			zap.String("gateway_order_id", req.GatewayOrderID))
		return nil, apperr.Validation("Payment verification failed")
	}

	order, err := s.ownedOrder(ctx, p, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.GatewayOrderID == "" || order.GatewayOrderID != req.GatewayOrderID {
		util.PaymentVerificationsTotal.WithLabelValues("order_mismatch").Inc()
		s.logger.Warn("Payment callback for a different gateway order",
			zap.String("order_id", order.ID.String()),
			zap.String("expected", order.GatewayOrderID),
			zap.String("got", req.GatewayOrderID))
		return nil, apperr.Validation("Payment verification failed")
	}
	if order.IsPaid {
		util.PaymentVerificationsTotal.WithLabelValues("already_paid").Inc()
		return order, nil
	}

	paidAt := s.now().UTC()
	result := models.PaymentResult{
		PaymentID:      req.PaymentID,
		GatewayOrderID: req.GatewayOrderID,
		Signature:      req.Signature,
		Status:         models.PaymentStatusCompleted,
	}
	applied, err := s.orders.MarkOrderPaid(ctx, order.ID, result, paidAt)
	if err != nil {
		return nil, storeErr(err, "Order not found")
	}
	if !applied {
		// another callback paid it between the read and the update
		util.PaymentVerificationsTotal.WithLabelValues("already_paid").Inc()
		stored, err := s.orders.GetOrderByID(ctx, order.ID)
		if err != nil {
			return nil, storeErr(err, "Order not found")
		}
		return stored, nil
	}
	order.IsPaid = true
	order.PaidAt = &paidAt
	order.PaymentResult = result

	util.PaymentVerificationsTotal.WithLabelValues("success").Inc()
	util.OrdersPaidTotal.Inc()
	s.logger.Info("Order paid",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_id", req.PaymentID))

	base := models.NewBaseEvent(models.EventTypeOrderPaid, paidAt)
	base.EventID = models.OrderPaidEventID(order.ID)
	event := &models.OrderPaidEvent{
		BaseEvent: base,
		OrderID:   order.ID,
		PaymentID: req.PaymentID,
		Amount:    order.TotalPrice,
		Items:     models.ItemData(order.Items),
	}
	if err := s.events.PublishOrderPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}
	return order, nil
}

// Key returns the public gateway key for the checkout widget
func (s *PaymentService) Key() string {
	return s.gateway.KeyID()
}

func (s *PaymentService) ownedOrder(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Order not found")
	}
	if err := auth.RequireOwnership(p, order.UserID); err != nil {
		return nil, apperr.Forbidden("Not authorized to access this order")
	}
	return order, nil
}
