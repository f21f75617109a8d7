package model

import (
	"time"
)

// OutcomeEvent records how a conversation's pipeline run ended.
type OutcomeEvent struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id"`
	ConversationID string    `json:"conversation_id"`
	ShopID         int64     `json:"shop_id"`
	BuyerID        int64     `json:"buyer_id"`
	Outcome        Outcome   `json:"outcome"`
	Reason         string    `json:"reason,omitempty"`
	InvoiceNumber  string    `json:"invoice_number,omitempty"`
	Tool           ToolName  `json:"tool,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RunSummary is the result of one scheduler run.
type RunSummary struct {
	RunID          string          `json:"run_id"`
	Success        bool            `json:"success"`
	OrderProcessed bool            `json:"order_processed"`
	ChatsFound     int             `json:"chats_found"`
	ChatsProcessed int             `json:"chats_processed"`
	Outcomes       map[Outcome]int `json:"outcomes"`
	StartedAt      time.Time       `json:"started_at"`
	Timestamp      time.Time       `json:"timestamp"`
}
