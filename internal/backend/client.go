// Package backend is the HTTP client for the marketplace messaging and order backend.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yorozuya/autochat/internal/model"
)

const defaultName = "Unknown"

// ErrMalformedResponse is returned when a response body lacks the expected structure.
var ErrMalformedResponse = errors.New("malformed backend response")

// Client talks to the marketplace backend.
type Client struct {
	httpClient *resty.Client
}

// NewClient creates a backend client. An empty token sends unauthenticated requests.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "autochat/1.0").
		SetTimeout(timeout)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Client{httpClient: client}
}

// ListUnread returns up to limit unread conversations. An entry that cannot be decoded is
// returned as an empty conversation so the caller skips it without losing the rest.
func (c *Client) ListUnread(ctx context.Context, limit int) ([]model.Conversation, error) {
	var items []json.RawMessage
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("unread", "true").
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&items).
		Get("/api/msg/get_conversation_list")
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list conversations: status %d", resp.StatusCode())
	}

	convs := make([]model.Conversation, 0, len(items))
	for _, raw := range items {
		var item conversationDTO
		if err := json.Unmarshal(raw, &item); err != nil {
			convs = append(convs, model.Conversation{})
			continue
		}
		convs = append(convs, model.Conversation{
			ID:          string(item.ConversationID),
			ShopID:      int64(item.ShopID),
			ShopName:    orDefault(item.ShopName),
			BuyerID:     int64(item.ToID),
			BuyerName:   orDefault(item.ToName),
			UnreadCount: int(item.UnreadCount),
		})
	}
	return convs, nil
}

// GetMessages returns the latest page of a conversation's history, oldest first.
func (c *Client) GetMessages(ctx context.Context, conv model.Conversation, pageSize int) ([]model.Message, error) {
	var body messagesResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"conversationId": conv.ID,
			"shopId":         strconv.FormatInt(conv.ShopID, 10),
			"pageSize":       strconv.Itoa(pageSize),
		}).
		SetResult(&body).
		Get("/api/msg/get_message")
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get messages: status %d", resp.StatusCode())
	}
	if body.Response == nil || body.Response.Messages == nil {
		return nil, fmt.Errorf("get messages: %w", ErrMalformedResponse)
	}

	raw := body.Response.Messages
	messages := make([]model.Message, len(raw))
	for i, m := range raw {
		// the backend returns newest first
		messages[len(raw)-1-i] = model.Message{
			ID:           string(m.MessageID),
			SenderIsShop: int64(m.FromShopID) == conv.ShopID,
			Type:         model.MessageType(m.MessageType),
			Text:         strings.TrimSpace(m.Content.Text),
		}
	}
	return messages, nil
}

// SendReply posts a text reply to the buyer of a conversation.
func (c *Client) SendReply(ctx context.Context, conv model.Conversation, text string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(sendMessageRequest{
			ToID:        conv.BuyerID,
			MessageType: string(model.MessageTypeText),
			Content:     text,
			ShopID:      conv.ShopID,
		}).
		Post("/api/msg/send_message")
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send message: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// BuyerOrders returns the buyer's orders in backend order, latest first.
func (c *Client) BuyerOrders(ctx context.Context, buyerID int64) ([]model.Order, error) {
	var body ordersResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("user_id", strconv.FormatInt(buyerID, 10)).
		SetResult(&body).
		Get("/api/order_details")
	if err != nil {
		return nil, fmt.Errorf("order details: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("order details: status %d", resp.StatusCode())
	}

	orders := make([]model.Order, 0, len(body.Data))
	for _, o := range body.Data {
		order := model.Order{
			InvoiceNumber: o.OrderSN,
			Status:        o.OrderStatus,
			Total:         float64(o.TotalAmount),
			Packed:        o.IsPrinted,
		}
		if o.CreateTime > 0 {
			order.CreatedAt = time.Unix(int64(o.CreateTime), 0).UTC()
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// ComplaintState returns the buyer's open complaint and change-request state.
func (c *Client) ComplaintState(ctx context.Context, buyerID int64) (model.ComplaintState, error) {
	var body complaintStateResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("user_id", strconv.FormatInt(buyerID, 10)).
		SetResult(&body).
		Get("/api/cek_perubahan")
	if err != nil {
		return model.ComplaintState{}, fmt.Errorf("complaint state: %w", err)
	}
	if resp.IsError() {
		return model.ComplaintState{}, fmt.Errorf("complaint state: status %d", resp.StatusCode())
	}

	state := model.ComplaintState{
		HasOpenComplaint:     body.HasComplaint,
		HasOpenChangeRequest: body.HasChange,
	}
	for _, ch := range body.Changes {
		state.ChangeDetails = append(state.ChangeDetails, model.ChangeDetail{
			Summary: ch.Detail,
			Color:   ch.Change.Color,
			Size:    ch.Change.Size,
		})
	}
	return state, nil
}

// TriggerOrderProcessing asks the backend to process pending orders. Only 200 counts as success.
func (c *Client) TriggerOrderProcessing(ctx context.Context) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get("/api/proses_order")
	if err != nil {
		return fmt.Errorf("process orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("process orders: status %d", resp.StatusCode())
	}
	return nil
}

func orDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return defaultName
	}
	return s
}
