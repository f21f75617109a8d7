package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yorozuya/autochat/internal/model"
	"github.com/yorozuya/autochat/pkg/logger"
)

// OrderStateResolver summarises a buyer's orders.
type OrderStateResolver struct {
	orders  OrderSource
	timeout time.Duration
}

// NewOrderStateResolver creates a resolver.
func NewOrderStateResolver(orders OrderSource, timeout time.Duration) *OrderStateResolver {
	return &OrderStateResolver{orders: orders, timeout: timeout}
}

// Resolve returns the buyer's order state. Lookup failures degrade to no order.
func (r *OrderStateResolver) Resolve(ctx context.Context, log *logger.Logger, buyerID int64) model.OrderState {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	orders, err := r.orders.BuyerOrders(ctx, buyerID)
	if err != nil {
		log.Warn("order lookup failed, treating buyer as having no order",
			zap.Int64("buyer_id", buyerID),
			zap.Error(err),
		)
		return model.OrderState{}
	}

	state := model.NewOrderState(orders)
	if state.HasOrder {
		log.Debug("orders resolved",
			zap.Int("count", state.Count),
			zap.String("latest_invoice", state.Latest.InvoiceNumber),
			zap.String("latest_status", state.Latest.Status),
		)
	}
	return state
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
