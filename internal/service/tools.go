package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/yorozuya/autochat/internal/llm"
	"github.com/yorozuya/autochat/internal/model"
)

// Complaint categories offered to the model.
const (
	CategoryIncompleteProduct = "Incomplete Product"
	CategoryDamagedProduct    = "Damaged Product"
)

// Order statuses under which a change request may be recorded.
const (
	StatusInCancel  = "IN_CANCEL"
	StatusProcessed = "PROCESSED"
)

// ErrUnknownTool is returned for tool names outside the offered schema.
var ErrUnknownTool = errors.New("unknown tool")

// ArgumentError reports tool arguments that failed validation.
type ArgumentError struct {
	Tool    model.ToolName
	Missing []string
	Err     error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s arguments: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("invalid %s arguments: missing %s", e.Tool, strings.Join(e.Missing, ", "))
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// ToolDefinitions returns the fixed two-function schema offered on every model call.
func ToolDefinitions() []llm.ToolDefinition {
	str := jsonschema.Definition{Type: jsonschema.String}

	return []llm.ToolDefinition{
		{
			Name:        string(model.ToolFileComplaint),
			Description: "Record a customer complaint about one of their orders",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"buyer_id":     str,
					"shop_name":    str,
					"order_status": str,
					"category": {
						Type: jsonschema.String,
						Enum: []string{CategoryIncompleteProduct, CategoryDamagedProduct},
					},
					"description":    str,
					"invoice_number": str,
				},
				Required: []string{"buyer_id", "shop_name", "category", "description", "invoice_number", "order_status"},
			},
		},
		{
			Name:        string(model.ToolRequestOrderChange),
			Description: "Record a request to change order details such as color or size",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"buyer_id":       str,
					"shop_name":      str,
					"invoice_number": str,
					"order_status": {
						Type: jsonschema.String,
						Enum: []string{StatusInCancel, StatusProcessed},
					},
					"summary": str,
					"change": {
						Type: jsonschema.Object,
						Properties: map[string]jsonschema.Definition{
							"color": str,
							"size":  str,
						},
					},
				},
				Required: []string{"buyer_id", "shop_name", "summary", "invoice_number", "change", "order_status"},
			},
		},
	}
}

type toolArgs map[string]any

// str returns a trimmed string value. Models sometimes emit ids as numbers.
func (a toolArgs) str(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// invoice treats invoice_number and order_number as the same key.
func (a toolArgs) invoice() string {
	if v := a.str("invoice_number"); v != "" {
		return v
	}
	return a.str("order_number")
}

// ParseToolCall decodes and validates a model-issued tool call.
func ParseToolCall(name, arguments string) (model.ToolCall, error) {
	tool := model.ToolName(name)
	if tool != model.ToolFileComplaint && tool != model.ToolRequestOrderChange {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	var args toolArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, &ArgumentError{Tool: tool, Err: err}
	}

	if tool == model.ToolFileComplaint {
		c := model.Complaint{
			BuyerID:       args.str("buyer_id"),
			ShopName:      args.str("shop_name"),
			OrderStatus:   args.str("order_status"),
			Category:      args.str("category"),
			Description:   args.str("description"),
			InvoiceNumber: args.invoice(),
		}
		missing := missingFields(
			"buyer_id", c.BuyerID,
			"shop_name", c.ShopName,
			"category", c.Category,
			"description", c.Description,
			"invoice_number", c.InvoiceNumber,
			"order_status", c.OrderStatus,
		)
		if len(missing) > 0 {
			return nil, &ArgumentError{Tool: tool, Missing: missing}
		}
		return c, nil
	}

	cr := model.ChangeRequest{
		BuyerID:       args.str("buyer_id"),
		ShopName:      args.str("shop_name"),
		InvoiceNumber: args.invoice(),
		OrderStatus:   args.str("order_status"),
		Summary:       args.str("summary"),
	}
	missing := missingFields(
		"buyer_id", cr.BuyerID,
		"shop_name", cr.ShopName,
		"invoice_number", cr.InvoiceNumber,
		"order_status", cr.OrderStatus,
		"summary", cr.Summary,
	)
	change, ok := args["change"].(map[string]any)
	if !ok {
		missing = append(missing, "change")
	} else {
		cr.Color = toolArgs(change).str("color")
		cr.Size = toolArgs(change).str("size")
	}
	if len(missing) > 0 {
		return nil, &ArgumentError{Tool: tool, Missing: missing}
	}
	return cr, nil
}

func missingFields(pairs ...string) []string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			missing = append(missing, pairs[i])
		}
	}
	return missing
}
