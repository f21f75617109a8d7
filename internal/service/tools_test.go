package service

import (
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorozuya/autochat/internal/model"
)

func TestParseToolCallComplaint(t *testing.T) {
	call, err := ParseToolCall("file_complaint", `{
		"buyer_id": "901", "shop_name": "Toko Makmur", "order_status": "COMPLETED",
		"category": "Damaged Product", "description": "the glass arrived broken", "invoice_number": "INV001"
	}`)
	require.NoError(t, err)

	assert.Equal(t, model.Complaint{
		BuyerID:       "901",
		ShopName:      "Toko Makmur",
		OrderStatus:   "COMPLETED",
		Category:      "Damaged Product",
		Description:   "the glass arrived broken",
		InvoiceNumber: "INV001",
	}, call)
	assert.Equal(t, model.ToolFileComplaint, call.Tool())
	assert.Equal(t, "INV001", call.Invoice())
}

func TestParseToolCallChangeRequest(t *testing.T) {
	call, err := ParseToolCall("request_order_change", `{
		"buyer_id": 901, "shop_name": "Toko Makmur", "order_number": "INV002",
		"order_status": "PROCESSED", "summary": "switch to size L", "change": {"size": "L"}
	}`)
	require.NoError(t, err)

	cr, ok := call.(model.ChangeRequest)
	require.True(t, ok)
	assert.Equal(t, "901", cr.BuyerID)
	assert.Equal(t, "INV002", cr.InvoiceNumber)
	assert.Equal(t, "L", cr.Size)
	assert.Empty(t, cr.Color)
}

func TestParseToolCallRejects(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		args    string
		missing []string
	}{
		{
			name:    "complaint without invoice and description",
			tool:    "file_complaint",
			args:    `{"buyer_id": "1", "shop_name": "s", "order_status": "x", "category": "Damaged Product", "description": "  "}`,
			missing: []string{"description", "invoice_number"},
		},
		{
			name:    "change without payload",
			tool:    "request_order_change",
			args:    `{"buyer_id": "1", "shop_name": "s", "invoice_number": "INV1", "order_status": "PROCESSED", "summary": "cancel"}`,
			missing: []string{"change"},
		},
		{
			name:    "change with everything missing",
			tool:    "request_order_change",
			args:    `{}`,
			missing: []string{"buyer_id", "shop_name", "invoice_number", "order_status", "summary", "change"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToolCall(tt.tool, tt.args)

			var argErr *ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, model.ToolName(tt.tool), argErr.Tool)
			assert.Equal(t, tt.missing, argErr.Missing)
		})
	}
}

func TestParseToolCallMalformedJSON(t *testing.T) {
	_, err := ParseToolCall("file_complaint", `{"buyer_id":`)

	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestParseToolCallUnknownTool(t *testing.T) {
	_, err := ParseToolCall("issue_refund", `{}`)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestToolDefinitions(t *testing.T) {
	defs := ToolDefinitions()
	require.Len(t, defs, 2)

	assert.Equal(t, "file_complaint", defs[0].Name)
	assert.Equal(t, "request_order_change", defs[1].Name)

	complaint := defs[0].Parameters.(jsonschema.Definition)
	assert.ElementsMatch(t, []string{"buyer_id", "shop_name", "category", "description", "invoice_number", "order_status"}, complaint.Required)
	assert.Equal(t, []string{CategoryIncompleteProduct, CategoryDamagedProduct}, complaint.Properties["category"].Enum)

	change := defs[1].Parameters.(jsonschema.Definition)
	assert.Contains(t, change.Required, "change")
	assert.Equal(t, []string{StatusInCancel, StatusProcessed}, change.Properties["order_status"].Enum)
}
