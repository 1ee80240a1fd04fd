// Package analytics records business events for downstream reporting.
package analytics

import (
	"context"

	"github.com/fakestore-systems/fakestore-api/internal/logging"
)

// PurchaseItem is one line of a tracked purchase.
type PurchaseItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// PurchaseEvent is a completed order as seen by analytics.
type PurchaseEvent struct {
	OrderID string         `json:"orderId"`
	Items   []PurchaseItem `json:"items"`
}

// Service tracks business events. Currently events are emitted as structured
// log lines for collection by the log pipeline.
type Service struct {
	logger *logging.Logger
}

func NewService(logger *logging.Logger) *Service {
	return &Service{logger: logger}
}

// TrackPurchase records a completed purchase.
func (s *Service) TrackPurchase(ctx context.Context, event PurchaseEvent) error {
	s.logger.InfoContext(ctx, "purchase tracked",
		"order_id", event.OrderID,
		"item_count", len(event.Items),
	)
	return nil
}
