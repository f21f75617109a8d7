package model

// Role represents the role of a message sent to the language model.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageType is the backend's message kind.
type MessageType string

const (
	MessageTypeText          MessageType = "text"
	MessageTypeImage         MessageType = "image"
	MessageTypeSticker       MessageType = "sticker"
	MessageTypeVideo         MessageType = "video"
	MessageTypeImageWithText MessageType = "image_with_text"
	MessageTypeOther         MessageType = "other"
)

// Replyable reports whether a conversation ending in this message type may get an automated reply.
func (t MessageType) Replyable() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeSticker, MessageTypeVideo, MessageTypeImageWithText:
		return true
	default:
		return false
	}
}

// Message is one chat message. Histories are ordered oldest to newest.
type Message struct {
	ID           string      `json:"id"`
	SenderIsShop bool        `json:"sender_is_shop"`
	Type         MessageType `json:"type"`
	Text         string      `json:"text,omitempty"`
}
