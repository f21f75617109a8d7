package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yorozuya/autochat/internal/model"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=test dbname=test sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db
}

func TestUpsertComplaintKeysOnInvoice(t *testing.T) {
	db := dryRunDB(t)
	row := newComplaintRow(model.ComplaintRecord{
		InvoiceNumber: "INV001",
		BuyerID:       "901",
		ShopName:      "Toko A",
		OrderStatus:   "SHIPPED",
		Category:      "Damaged Product",
		Description:   "screen cracked",
		ShopID:        77,
	}, time.Now())

	stmt := upsertComplaint(db, row).Statement
	sql := stmt.SQL.String()

	assert.Contains(t, sql, `INSERT INTO "complaints"`)
	assert.Contains(t, sql, `ON CONFLICT ("invoice_number") DO UPDATE SET`)
	assert.Contains(t, sql, `"category"="excluded"."category"`)
	assert.NotContains(t, sql, `"created_at"="excluded"."created_at"`)
	assert.Contains(t, stmt.Vars, "INV001")
	assert.Contains(t, stmt.Vars, "Damaged Product")
}

func TestUpsertChangeRequestStoresRequestedChange(t *testing.T) {
	db := dryRunDB(t)
	row := newChangeRequestRow(model.ChangeRequestRecord{
		InvoiceNumber: "INV001",
		OrderStatus:   "PROCESSED",
		Summary:       "cancel order",
		Color:         "red",
	}, time.Now())

	assert.Equal(t, "red", row.RequestedChange["color"])
	assert.Equal(t, "", row.RequestedChange["size"])
	assert.Equal(t, statusOpen, row.Status)

	sql := upsertChangeRequest(db, row).Statement.SQL.String()

	assert.Contains(t, sql, `INSERT INTO "order_change_requests"`)
	assert.Contains(t, sql, `ON CONFLICT ("invoice_number") DO UPDATE SET`)
	assert.Contains(t, sql, `"requested_change"="excluded"."requested_change"`)
}

func TestSettingsRowToStored(t *testing.T) {
	temp := float32(0.3)
	stored := settingsRow{OpenAIModel: "gpt-4o", OpenAIPrompt: "be kind", OpenAITemperature: &temp}.toStored()

	assert.Equal(t, "gpt-4o", stored.Model)
	assert.Equal(t, "be kind", stored.Prompt)
	require.NotNil(t, stored.Temperature)
	assert.InDelta(t, 0.3, *stored.Temperature, 0.0001)
}
