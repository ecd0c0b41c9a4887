// Package events provides NATS event publishing for stock movements
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/sirupsen/logrus"
)

// StockEventPublisher handles publishing inventory-related events to NATS
type StockEventPublisher struct {
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(natsURL string, logger *logrus.Logger) (*StockEventPublisher, error) {
	if natsURL == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}

	log := logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "stock-engine-publisher"

	publisher, err := events.NewPublisher(config, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	// Ensure inventory stream exists
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := publisher.EnsureStream(ctx, events.StreamInventory, []string{"inventory.>"}); err != nil {
		log.WithError(err).Warn("Failed to ensure inventory stream exists")
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log.WithField("component", "stock-events"),
	}, nil
}

// PublishStockAdjusted publishes an inventory.adjusted event
func (p *StockEventPublisher) PublishStockAdjusted(ctx context.Context, tenantID string, productID string, storeID string, previousStock int, currentStock int, reason string, adjustedBy string) error {
	event := events.NewInventoryEvent(events.InventoryAdjusted, tenantID)
	event.Items = []events.InventoryItem{
		{
			ProductID:     productID,
			CurrentStock:  currentStock,
			PreviousStock: previousStock,
			WarehouseID:   storeID,
		},
	}
	event.AdjustmentReason = reason
	event.AdjustedBy = adjustedBy
	if currentStock > previousStock {
		event.AdjustmentType = "add"
	} else if currentStock < previousStock {
		event.AdjustmentType = "remove"
	} else {
		event.AdjustmentType = "set"
	}
	event.AlertLevel = "info"
	event.AlertMessage = fmt.Sprintf("Stock adjusted: product %s at store %s changed from %d to %d", productID, storeID, previousStock, currentStock)

	if err := p.publisher.PublishInventory(ctx, event); err != nil {
		p.logger.WithFields(logrus.Fields{
			"productId": productID,
			"storeId":   storeID,
		}).WithError(err).Error("Failed to publish inventory.adjusted event")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"productId":      productID,
		"storeId":        storeID,
		"previousStock":  previousStock,
		"currentStock":   currentStock,
		"adjustmentType": event.AdjustmentType,
	}).Info("Published inventory.adjusted event")
	return nil
}

// PublishLowStockAlert publishes an inventory.low_stock event
func (p *StockEventPublisher) PublishLowStockAlert(ctx context.Context, tenantID string, productID string, storeID string, currentStock int, threshold int) error {
	event := events.NewInventoryEvent(events.InventoryLowStock, tenantID)
	event.Items = []events.InventoryItem{
		{
			ProductID:    productID,
			CurrentStock: currentStock,
			ReorderPoint: threshold,
			WarehouseID:  storeID,
		},
	}
	event.AlertLevel = "warning"
	event.AlertMessage = fmt.Sprintf("Low stock alert: product %s at store %s has %d units remaining (threshold: %d)", productID, storeID, currentStock, threshold)
	event.CalculateSummary()

	if err := p.publisher.PublishInventory(ctx, event); err != nil {
		p.logger.WithFields(logrus.Fields{
			"productId": productID,
			"storeId":   storeID,
		}).WithError(err).Error("Failed to publish inventory.low_stock event")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"productId":    productID,
		"storeId":      storeID,
		"currentStock": currentStock,
		"threshold":    threshold,
	}).Info("Published inventory.low_stock event")
	return nil
}

// PublishOutOfStockAlert publishes an inventory.out_of_stock event
func (p *StockEventPublisher) PublishOutOfStockAlert(ctx context.Context, tenantID string, productID string, storeID string) error {
	event := events.NewInventoryEvent(events.InventoryOutOfStock, tenantID)
	event.Items = []events.InventoryItem{
		{
			ProductID:    productID,
			CurrentStock: 0,
			WarehouseID:  storeID,
		},
	}
	event.AlertLevel = "critical"
	event.AlertMessage = fmt.Sprintf("Out of stock: product %s at store %s is now out of stock", productID, storeID)
	event.CalculateSummary()

	if err := p.publisher.PublishInventory(ctx, event); err != nil {
		p.logger.WithFields(logrus.Fields{
			"productId": productID,
			"storeId":   storeID,
		}).WithError(err).Error("Failed to publish inventory.out_of_stock event")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"productId": productID,
		"storeId":   storeID,
	}).Info("Published inventory.out_of_stock event")
	return nil
}

// IsConnected returns true if connected to NATS
func (p *StockEventPublisher) IsConnected() bool {
	return p.publisher.IsConnected()
}

// Close closes the NATS connection
func (p *StockEventPublisher) Close() {
	p.publisher.Close()
}
