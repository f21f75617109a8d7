package model

// ChangeDetail describes a recorded order change request.
type ChangeDetail struct {
	Summary string `json:"summary"`
	Color   string `json:"color,omitempty"`
	Size    string `json:"size,omitempty"`
}

// ComplaintState is a buyer's open complaint and change-request state.
type ComplaintState struct {
	HasOpenComplaint     bool           `json:"has_open_complaint"`
	HasOpenChangeRequest bool           `json:"has_open_change_request"`
	ChangeDetails        []ChangeDetail `json:"change_details,omitempty"`
}

// GateDecision is the complaint gate's verdict for one conversation turn.
type GateDecision struct {
	Blocked       bool          `json:"blocked"`
	PendingChange *ChangeDetail `json:"pending_change,omitempty"`
}

// ComplaintRecord is a complaint row keyed by invoice number.
type ComplaintRecord struct {
	InvoiceNumber  string
	BuyerID        string
	ShopName       string
	OrderStatus    string
	Category       string
	Description    string
	ShopID         int64
	ConversationID string
	BuyerUserID    int64
}

// ChangeRequestRecord is an order change-request row keyed by invoice number.
type ChangeRequestRecord struct {
	InvoiceNumber  string
	BuyerID        string
	ShopName       string
	OrderStatus    string
	Summary        string
	Color          string
	Size           string
	ShopID         int64
	ConversationID string
	BuyerUserID    int64
}
