package service

import (
	"context"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// InventoryService applies paid orders to product stock
type InventoryService struct {
	stock  StockStore
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(stock StockStore) *InventoryService {
	return &InventoryService{
		stock:  stock,
		logger: util.GetLogger(),
	}
}

// HandleOrderPaid deducts the ordered quantities. Redelivered events are
// detected by event id and skipped.
func (s *InventoryService) HandleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.HandleOrderPaid")
	defer span.End()

	if event.EventID == "" {
		util.StockCommitsTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("order paid event for %s has no event id", event.OrderID)
	}

	applied, err := s.stock.CommitOrderStock(ctx, event.EventID, event.EventType, event.Items)
	if err != nil {
		util.StockCommitsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to commit stock for order %s: %w", event.OrderID, err)
	}

	if !applied {
		util.StockCommitsTotal.WithLabelValues("duplicate").Inc()
		s.logger.Info("Event already processed, skipping", zap.String("event_id", event.EventID))
		return nil
	}

	util.StockCommitsTotal.WithLabelValues("applied").Inc()
	s.logger.Info("Stock committed",
		zap.String("order_id", event.OrderID.String()),
		zap.Int("items", len(event.Items)))
	return nil
}
