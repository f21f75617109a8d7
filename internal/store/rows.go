package store

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yorozuya/autochat/internal/config"
	"github.com/yorozuya/autochat/internal/model"
)

const statusOpen = "open"

type complaintRow struct {
	ID             uint   `gorm:"primaryKey"`
	InvoiceNumber  string `gorm:"uniqueIndex;not null"`
	BuyerID        string
	BuyerUserID    int64 `gorm:"index"`
	ShopID         int64 `gorm:"index"`
	ShopName       string
	ConversationID string
	OrderStatus    string
	Category       string
	Description    string
	Status         string `gorm:"default:open"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (complaintRow) TableName() string { return "complaints" }

func newComplaintRow(rec model.ComplaintRecord, now time.Time) *complaintRow {
	return &complaintRow{
		InvoiceNumber:  rec.InvoiceNumber,
		BuyerID:        rec.BuyerID,
		BuyerUserID:    rec.BuyerUserID,
		ShopID:         rec.ShopID,
		ShopName:       rec.ShopName,
		ConversationID: rec.ConversationID,
		OrderStatus:    rec.OrderStatus,
		Category:       rec.Category,
		Description:    rec.Description,
		Status:         statusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func upsertComplaint(tx *gorm.DB, row *complaintRow) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "invoice_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"buyer_id", "buyer_user_id", "shop_id", "shop_name", "conversation_id",
			"order_status", "category", "description", "status", "updated_at",
		}),
	}).Create(row)
}

type changeRequestRow struct {
	ID              uint   `gorm:"primaryKey"`
	InvoiceNumber   string `gorm:"uniqueIndex;not null"`
	BuyerID         string
	BuyerUserID     int64 `gorm:"index"`
	ShopID          int64 `gorm:"index"`
	ShopName        string
	ConversationID  string
	OrderStatus     string
	Summary         string
	RequestedChange datatypes.JSONMap
	Status          string `gorm:"default:open"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (changeRequestRow) TableName() string { return "order_change_requests" }

func newChangeRequestRow(rec model.ChangeRequestRecord, now time.Time) *changeRequestRow {
	return &changeRequestRow{
		InvoiceNumber:  rec.InvoiceNumber,
		BuyerID:        rec.BuyerID,
		BuyerUserID:    rec.BuyerUserID,
		ShopID:         rec.ShopID,
		ShopName:       rec.ShopName,
		ConversationID: rec.ConversationID,
		OrderStatus:    rec.OrderStatus,
		Summary:        rec.Summary,
		RequestedChange: datatypes.JSONMap{
			"color": rec.Color,
			"size":  rec.Size,
		},
		Status:    statusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func upsertChangeRequest(tx *gorm.DB, row *changeRequestRow) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "invoice_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"buyer_id", "buyer_user_id", "shop_id", "shop_name", "conversation_id",
			"order_status", "summary", "requested_change", "status", "updated_at",
		}),
	}).Create(row)
}

type settingsRow struct {
	ID                uint     `gorm:"primaryKey"`
	OpenAIAPIKey      string   `gorm:"column:openai_api_key"`
	OpenAIModel       string   `gorm:"column:openai_model"`
	OpenAITemperature *float32 `gorm:"column:openai_temperature"`
	OpenAIPrompt      string   `gorm:"column:openai_prompt;type:text"`
	UpdatedAt         time.Time
}

func (settingsRow) TableName() string { return "settings" }

func (r settingsRow) toStored() config.StoredSettings {
	return config.StoredSettings{
		APIKey:      r.OpenAIAPIKey,
		Model:       r.OpenAIModel,
		Prompt:      r.OpenAIPrompt,
		Temperature: r.OpenAITemperature,
	}
}

type shopAutoReplyRow struct {
	ShopID  int64 `gorm:"primaryKey;autoIncrement:false"`
	Enabled bool  `gorm:"not null"`
}

func (shopAutoReplyRow) TableName() string { return "shop_auto_reply" }
