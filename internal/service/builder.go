package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yorozuya/autochat/internal/config"
	"github.com/yorozuya/autochat/internal/llm"
	"github.com/yorozuya/autochat/internal/model"
)

const (
	shopContextFormat = "The current shop name is %s and the customer is %s."

	noOrderGuidance = "The customer has no orders yet. Do not process formal complaints or order changes, " +
		"but still help with general information when needed."

	changeRule = "Orders must not be changed unless their status is " + StatusInCancel + " or " + StatusProcessed +
		" and they have not been packed yet. Ignore change requests that do not meet these conditions."

	multiOrderCancelNote = "Cancellation requests are approved automatically whenever the customer has more than one order."
)

// ConversationBuilder assembles the message list sent to the model.
type ConversationBuilder struct {
	settings *config.Settings
}

// NewConversationBuilder creates a builder reading the prompt from settings.
func NewConversationBuilder(settings *config.Settings) *ConversationBuilder {
	return &ConversationBuilder{settings: settings}
}

// Build returns the system prompt, the order context, the pending change if any,
// then the history oldest first.
func (b *ConversationBuilder) Build(conv model.Conversation, orders model.OrderState, gate model.GateDecision, history []model.Message) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(history)+3)
	messages = append(messages,
		llm.ChatMessage{Role: string(model.RoleSystem), Content: b.settings.SystemPrompt()},
		llm.ChatMessage{Role: string(model.RoleSystem), Content: orderContext(conv, orders)},
	)

	if gate.PendingChange != nil && orders.HasOrder {
		messages = append(messages, llm.ChatMessage{
			Role:    string(model.RoleSystem),
			Content: pendingChangeContext(orders.Latest.InvoiceNumber, *gate.PendingChange),
		})
	}

	for _, m := range history {
		if m.Text == "" {
			continue
		}
		role := model.RoleUser
		if m.SenderIsShop {
			role = model.RoleAssistant
		}
		messages = append(messages, llm.ChatMessage{Role: string(role), Content: m.Text})
	}

	return messages
}

// ReplyableTail reports whether the newest message in a chronological history may be answered.
func ReplyableTail(history []model.Message) bool {
	if len(history) == 0 {
		return false
	}
	return history[len(history)-1].Type.Replyable()
}

func orderContext(conv model.Conversation, orders model.OrderState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, shopContextFormat, conv.ShopName, conv.BuyerName)

	if !orders.HasOrder {
		sb.WriteString(" ")
		sb.WriteString(noOrderGuidance)
		return sb.String()
	}

	sb.WriteString("\n")
	sb.WriteString(changeRule)
	sb.WriteString("\n")

	if orders.Count == 1 {
		o := orders.Latest
		fmt.Fprintf(&sb, "The customer has one order with invoice number %s and status %s. The order %s.",
			o.InvoiceNumber, o.Status, packedPhrase(o.Packed))
		return sb.String()
	}

	fmt.Fprintf(&sb, "The customer has %d orders:\n\n", orders.Count)
	for i, o := range orders.All {
		fmt.Fprintf(&sb, "%d. Invoice number: %s\n   Status: %s\n   Date: %s\n   Total: %s\n   Packed: %s\n\n",
			i+1, o.InvoiceNumber, o.Status, orderDate(o), strconv.FormatFloat(o.Total, 'f', -1, 64), yesNo(o.Packed))
	}
	sb.WriteString(multiOrderCancelNote)
	return sb.String()
}

func pendingChangeContext(invoice string, change model.ChangeDetail) string {
	return fmt.Sprintf("A change request is already recorded for invoice %s:\n\n"+
		"• Change details: %s\n• Requested color: %s\n• Requested size: %s\n\n"+
		"Do not record the same change again or contradict it.",
		invoice, orDefault(change.Summary, "No details"), orDefault(change.Color, "-"), orDefault(change.Size, "-"))
}

func packedPhrase(packed bool) string {
	if packed {
		return "has already been packed"
	}
	return "has not been packed yet"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orderDate(o model.Order) string {
	if o.CreatedAt.IsZero() {
		return "-"
	}
	return o.CreatedAt.Format("2006-01-02 15:04")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
