package service

import (
	"context"
	"time"

	"storefront/internal/analytics"
	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SellerService serves the seller dashboard
type SellerService struct {
	products ProductStore
	orders   OrderStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewSellerService creates a new seller service
func NewSellerService(products ProductStore, orders OrderStore) *SellerService {
	return &SellerService{
		products: products,
		orders:   orders,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// DashboardStats summarises the caller's products and the orders that
// reference them. Any read failure fails the whole summary.
func (s *SellerService) DashboardStats(ctx context.Context, p auth.Principal) (*analytics.Summary, error) {
	ctx, span := util.StartSpan(ctx, "SellerService.DashboardStats")
	defer span.End()

	if err := auth.RequireRole(p, models.RoleSeller); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		util.SellerStatsLatency.Observe(time.Since(start).Seconds())
	}()

	products, err := s.products.GetProductsBySeller(ctx, p.ID)
	if err != nil {
		s.logger.Error("Failed to load seller products", zap.String("seller_id", p.ID.String()), zap.Error(err))
		return nil, apperr.AggregationFailed(err)
	}

	ids := make([]uuid.UUID, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	orders, err := s.orders.GetOrdersContainingProducts(ctx, ids)
	if err != nil {
		s.logger.Error("Failed to load seller orders", zap.String("seller_id", p.ID.String()), zap.Error(err))
		return nil, apperr.AggregationFailed(err)
	}

	return analytics.Summarize(products, orders, s.now()), nil
}
