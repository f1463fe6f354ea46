package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// Public is the lower-cased status exposed over HTTP.
func (s OrderStatus) Public() string {
	return strings.ToLower(string(s))
}

// ParseOrderStatus accepts either casing.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled, OrderStatusRefunded:
		return status, true
	default:
		return "", false
	}
}

// CanTransition is the order state machine. PENDING is never re-entered
// and CANCELLED and REFUNDED are final.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusPaid || to == OrderStatusFailed || to == OrderStatusCancelled
	case OrderStatusPaid:
		// A partial refund keeps the order PAID.
		return to == OrderStatusPaid || to == OrderStatusRefunded || to == OrderStatusCancelled
	case OrderStatusFailed:
		return to == OrderStatusCancelled
	default:
		return false
	}
}

type Order struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderNumber       string       `json:"order_number" gorm:"type:varchar(64);not null;uniqueIndex"`
	Status            OrderStatus  `json:"status" gorm:"type:varchar(16);not null;index"`
	SubtotalCents     int64        `json:"subtotal_cents" gorm:"not null"`
	Currency          string       `json:"currency" gorm:"type:varchar(3);not null"`
	CustomerEmail     *string      `json:"customer_email,omitempty" gorm:"type:varchar(320)"`
	CustomerPhone     *string      `json:"customer_phone,omitempty" gorm:"type:varchar(64)"`
	GatewaySessionID  *string      `json:"gateway_session_id,omitempty" gorm:"type:varchar(255);index"`
	RefundAmountCents *int64       `json:"refund_amount_cents,omitempty"`
	RefundedAt        *time.Time   `json:"refunded_at,omitempty"`
	CancelledAt       *time.Time   `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null;index"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is a line snapshot. Name and unit price are copied from the
// catalog when the order is created and never re-read.
type OrderItem struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID        snowflake.ID `json:"order_id" gorm:"not null;index"`
	Position       int          `json:"position" gorm:"not null"`
	ProductID      snowflake.ID `json:"product_id" gorm:"not null;index"`
	ProductName    string       `json:"product_name" gorm:"type:varchar(255);not null"`
	Quantity       int64        `json:"quantity" gorm:"not null"`
	UnitPriceCents int64        `json:"unit_price_cents" gorm:"not null"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i OrderItem) LineTotal() int64 {
	return i.UnitPriceCents * i.Quantity
}

// Subtotal sums the line snapshots.
func Subtotal(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += item.LineTotal()
	}
	return total
}
