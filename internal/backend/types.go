package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// The marketplace backend is loose about numeric identifiers: the same field arrives as a JSON
// number on one endpoint and a quoted string on another. These types accept both.

// flexInt64 decodes unparseable values to 0, which callers treat as a missing identifier.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	s := unquote(data)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			*f = 0
			return nil
		}
		n = int64(fl)
	}
	*f = flexInt64(n)
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := unquote(data)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	*f = flexString(unquote(data))
	return nil
}

func unquote(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' {
		var out string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return strings.TrimSpace(out)
		}
	}
	return s
}

type conversationDTO struct {
	ConversationID flexString `json:"conversation_id"`
	ShopID         flexInt64  `json:"shop_id"`
	ToID           flexInt64  `json:"to_id"`
	ToName         string     `json:"to_name"`
	ShopName       string     `json:"shop_name"`
	UnreadCount    flexInt64  `json:"unread_count"`
}

type messageDTO struct {
	MessageID   flexString `json:"message_id"`
	MessageType string     `json:"message_type"`
	FromShopID  flexInt64  `json:"from_shop_id"`
	Content     struct {
		Text string `json:"text"`
	} `json:"content"`
}

type messagesResponse struct {
	Response *struct {
		Messages []messageDTO `json:"messages"`
	} `json:"response"`
}

type orderDTO struct {
	OrderSN     string    `json:"order_sn"`
	OrderStatus string    `json:"order_status"`
	CreateTime  flexInt64 `json:"create_time"`
	TotalAmount flexFloat `json:"total_amount"`
	IsPrinted   bool      `json:"is_printed"`
}

type ordersResponse struct {
	Data []orderDTO `json:"data"`
}

type changeDTO struct {
	Detail string `json:"detail_perubahan"`
	Change struct {
		Color string `json:"warna"`
		Size  string `json:"ukuran"`
	} `json:"perubahan"`
}

type complaintStateResponse struct {
	HasComplaint bool        `json:"ada_keluhan"`
	HasChange    bool        `json:"ada_perubahan"`
	Changes      []changeDTO `json:"perubahan_detail"`
}

type sendMessageRequest struct {
	ToID        int64  `json:"toId"`
	MessageType string `json:"messageType"`
	Content     string `json:"content"`
	ShopID      int64  `json:"shopId"`
}
