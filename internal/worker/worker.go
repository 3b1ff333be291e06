package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Consumer is the part of broker.Consumer the worker drives
type Consumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// StockCommitter applies paid orders to inventory
type StockCommitter interface {
	HandleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
}

// OrderWorker consumes order events and commits stock for paid orders
type OrderWorker struct {
	consumer     Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewOrderWorker creates a new order worker
func NewOrderWorker(consumer Consumer, inventory StockCommitter) *OrderWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPaid(inventory.HandleOrderPaid)

	return &OrderWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks until ctx is cancelled or the consumer fails
func (w *OrderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderWorker) Stop() error {
	w.logger.Info("Stopping order worker...")
	return w.consumer.Close()
}
