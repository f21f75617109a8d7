// Package model defines data structures for the autochat engine.
package model

// Conversation is an unread buyer conversation owned by one shop.
type Conversation struct {
	ID          string `json:"conversation_id"`
	ShopID      int64  `json:"shop_id"`
	ShopName    string `json:"shop_name"`
	BuyerID     int64  `json:"buyer_id"`
	BuyerName   string `json:"buyer_name"`
	UnreadCount int    `json:"unread_count"`
}

// Valid reports whether the identifying fields needed to run the pipeline are present.
func (c Conversation) Valid() bool {
	return c.ID != "" && c.ShopID != 0 && c.BuyerID != 0
}

// Outcome is the terminal state of one conversation's pipeline run.
type Outcome string

const (
	OutcomeReplied            Outcome = "replied"
	OutcomeSendFailed         Outcome = "send_failed"
	OutcomeNoReply            Outcome = "no_reply"
	OutcomeBlockedComplaint   Outcome = "blocked_complaint"
	OutcomeSkippedShop        Outcome = "skipped_shop_disabled"
	OutcomeSkippedInvalid     Outcome = "skipped_invalid"
	OutcomeSkippedMessageType Outcome = "skipped_message_type"
	OutcomeSkippedNoMessages  Outcome = "skipped_no_messages"
	OutcomeHistoryFailed      Outcome = "history_failed"
	OutcomeFailed             Outcome = "failed"
)
