package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yorozuya/autochat/internal/model"
	"github.com/yorozuya/autochat/pkg/logger"
)

// ComplaintGate decides whether an automated reply is allowed for a buyer.
type ComplaintGate struct {
	source  ComplaintSource
	timeout time.Duration
}

// NewComplaintGate creates a gate.
func NewComplaintGate(source ComplaintSource, timeout time.Duration) *ComplaintGate {
	return &ComplaintGate{source: source, timeout: timeout}
}

// Check returns the gate decision. Buyers without orders are never looked up,
// and a failed lookup counts as no complaint and no change.
func (g *ComplaintGate) Check(ctx context.Context, log *logger.Logger, buyerID int64, orders model.OrderState) model.GateDecision {
	if !orders.HasOrder {
		return model.GateDecision{}
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	state, err := g.source.ComplaintState(ctx, buyerID)
	if err != nil {
		log.Warn("complaint state lookup failed, assuming none open",
			zap.Int64("buyer_id", buyerID),
			zap.Error(err),
		)
		return model.GateDecision{}
	}

	if state.HasOpenComplaint {
		return model.GateDecision{Blocked: true}
	}

	if state.HasOpenChangeRequest {
		if len(state.ChangeDetails) == 0 {
			log.Warn("open change request has no details", zap.Int64("buyer_id", buyerID))
			return model.GateDecision{}
		}
		pending := state.ChangeDetails[0]
		return model.GateDecision{PendingChange: &pending}
	}

	return model.GateDecision{}
}
