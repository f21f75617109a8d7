package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yorozuya/autochat/internal/llm"
	"github.com/yorozuya/autochat/internal/model"
	"github.com/yorozuya/autochat/pkg/metrics"
)

const (
	complaintConfirmation = "Thank you for letting us know about the %s. We have recorded your complaint for the order " +
		"with invoice number %s and will handle it as soon as possible."

	changeConfirmation = "Thank you for letting us know about the changes you want for the order with invoice number %s. " +
		"We have recorded the change and will handle it as soon as possible."
)

// ToolCallDispatcher validates model tool calls and persists them.
type ToolCallDispatcher struct {
	store   ComplaintStore
	timeout time.Duration
}

// NewToolCallDispatcher creates a dispatcher.
func NewToolCallDispatcher(store ComplaintStore, timeout time.Duration) *ToolCallDispatcher {
	return &ToolCallDispatcher{store: store, timeout: timeout}
}

// Dispatch executes one tool call and returns its confirmation text.
// Invalid, unknown and unpersisted calls return false.
func (d *ToolCallDispatcher) Dispatch(ctx context.Context, turn *Turn, inv llm.ToolInvocation) (string, bool) {
	log := turn.Log.With(zap.String("tool", inv.Name), zap.String("tool_call_id", inv.ID))

	call, err := ParseToolCall(inv.Name, inv.Arguments)
	if err != nil {
		var argErr *ArgumentError
		switch {
		case errors.As(err, &argErr):
			log.Warn("tool call rejected", zap.Strings("missing", argErr.Missing), zap.Error(err))
			metrics.RecordToolDispatch(inv.Name, "invalid")
		case errors.Is(err, ErrUnknownTool):
			log.Warn("ignoring unknown tool call", zap.Error(err))
			metrics.RecordToolDispatch("unknown", "ignored")
		}
		return "", false
	}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	var text string
	switch c := call.(type) {
	case model.Complaint:
		err = d.store.UpsertComplaint(ctx, model.ComplaintRecord{
			InvoiceNumber:  c.InvoiceNumber,
			BuyerID:        c.BuyerID,
			ShopName:       c.ShopName,
			OrderStatus:    c.OrderStatus,
			Category:       c.Category,
			Description:    c.Description,
			ShopID:         turn.Conversation.ShopID,
			ConversationID: turn.Conversation.ID,
			BuyerUserID:    turn.Conversation.BuyerID,
		})
		text = fmt.Sprintf(complaintConfirmation, c.Category, c.InvoiceNumber)
	case model.ChangeRequest:
		if turn.Gate.PendingChange != nil {
			// rows are keyed by invoice, so a second request for the same invoice replaces the first
			log.Warn("recording change request while another is open",
				zap.String("invoice_number", c.InvoiceNumber),
				zap.String("open_change", turn.Gate.PendingChange.Summary),
			)
		}
		err = d.store.UpsertChangeRequest(ctx, model.ChangeRequestRecord{
			InvoiceNumber:  c.InvoiceNumber,
			BuyerID:        c.BuyerID,
			ShopName:       c.ShopName,
			OrderStatus:    c.OrderStatus,
			Summary:        c.Summary,
			Color:          c.Color,
			Size:           c.Size,
			ShopID:         turn.Conversation.ShopID,
			ConversationID: turn.Conversation.ID,
			BuyerUserID:    turn.Conversation.BuyerID,
		})
		text = fmt.Sprintf(changeConfirmation, c.InvoiceNumber)
	}

	if err != nil {
		log.Error("failed to persist tool call",
			zap.String("invoice_number", call.Invoice()),
			zap.Error(err),
		)
		metrics.RecordToolDispatch(inv.Name, "failed")
		return "", false
	}

	log.Info("tool call recorded", zap.String("invoice_number", call.Invoice()))
	metrics.RecordToolDispatch(inv.Name, "recorded")

	if turn.Tool == "" {
		turn.Tool = call.Tool()
		turn.InvoiceNumber = call.Invoice()
	}
	return text, true
}
