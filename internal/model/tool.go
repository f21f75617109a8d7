package model

// ToolName identifies a function the language model may call.
type ToolName string

const (
	ToolFileComplaint      ToolName = "file_complaint"
	ToolRequestOrderChange ToolName = "request_order_change"
)

// ToolCall is a validated, model-issued action. The set of implementations is closed.
type ToolCall interface {
	Tool() ToolName
	Invoice() string
	isToolCall()
}

// Complaint is the validated argument set of a file_complaint call.
type Complaint struct {
	BuyerID       string
	ShopName      string
	OrderStatus   string
	Category      string
	Description   string
	InvoiceNumber string
}

func (Complaint) Tool() ToolName    { return ToolFileComplaint }
func (c Complaint) Invoice() string { return c.InvoiceNumber }
func (Complaint) isToolCall()       {}

// ChangeRequest is the validated argument set of a request_order_change call.
type ChangeRequest struct {
	BuyerID       string
	ShopName      string
	InvoiceNumber string
	OrderStatus   string
	Summary       string
	Color         string
	Size          string
}

func (ChangeRequest) Tool() ToolName    { return ToolRequestOrderChange }
func (c ChangeRequest) Invoice() string { return c.InvoiceNumber }
func (ChangeRequest) isToolCall()       {}
