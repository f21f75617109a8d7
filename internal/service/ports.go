// Package service implements the conversation orchestration engine.
package service

import (
	"context"

	"github.com/yorozuya/autochat/internal/model"
)

// ChatBackend reads conversations and sends replies.
type ChatBackend interface {
	ListUnread(ctx context.Context, limit int) ([]model.Conversation, error)
	GetMessages(ctx context.Context, conv model.Conversation, pageSize int) ([]model.Message, error)
	SendReply(ctx context.Context, conv model.Conversation, text string) error
}

// OrderSource looks up a buyer's orders.
type OrderSource interface {
	BuyerOrders(ctx context.Context, buyerID int64) ([]model.Order, error)
}

// ComplaintSource looks up a buyer's open complaint and change-request state.
type ComplaintSource interface {
	ComplaintState(ctx context.Context, buyerID int64) (model.ComplaintState, error)
}

// OrderProcessor triggers backend order processing before a run.
type OrderProcessor interface {
	TriggerOrderProcessing(ctx context.Context) error
}

// ComplaintStore persists tool call results keyed by invoice number.
type ComplaintStore interface {
	UpsertComplaint(ctx context.Context, rec model.ComplaintRecord) error
	UpsertChangeRequest(ctx context.Context, rec model.ChangeRequestRecord) error
}

// EventPublisher publishes outcome events for auditing.
type EventPublisher interface {
	PublishOutcome(ctx context.Context, event *model.OutcomeEvent) error
	PublishRunSummary(ctx context.Context, summary *model.RunSummary) error
}

// NopPublisher drops all events.
type NopPublisher struct{}

func (NopPublisher) PublishOutcome(context.Context, *model.OutcomeEvent) error  { return nil }
func (NopPublisher) PublishRunSummary(context.Context, *model.RunSummary) error { return nil }
