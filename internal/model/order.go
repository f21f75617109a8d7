package model

import "time"

// Order is a buyer's purchase record.
type Order struct {
	InvoiceNumber string    `json:"invoice_number"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	Total         float64   `json:"total"`
	Packed        bool      `json:"packed"`
}

// OrderState summarises a buyer's orders. Latest is the first order returned by the backend.
type OrderState struct {
	HasOrder bool    `json:"has_order"`
	Latest   *Order  `json:"latest,omitempty"`
	All      []Order `json:"all,omitempty"`
	Count    int     `json:"count"`
}

// NewOrderState builds an OrderState preserving the given order.
func NewOrderState(orders []Order) OrderState {
	if len(orders) == 0 {
		return OrderState{}
	}
	latest := orders[0]
	return OrderState{
		HasOrder: true,
		Latest:   &latest,
		All:      orders,
		Count:    len(orders),
	}
}
