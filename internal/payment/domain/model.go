package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) Public() string {
	return strings.ToLower(string(s))
}

const ProviderStripe = "stripe"

// Payment is one attempt or refund observed at the gateway. Rows are unique
// on (provider, external_id).
type Payment struct {
	ID          snowflake.ID  `json:"id" gorm:"primaryKey"`
	OrderID     snowflake.ID  `json:"order_id" gorm:"not null;index"`
	Provider    string        `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_payments_provider_external_id,priority:1"`
	ExternalID  string        `json:"external_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_payments_provider_external_id,priority:2"`
	Status      PaymentStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	AmountCents int64         `json:"amount_cents" gorm:"not null"`
	CreatedAt   time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time     `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }
