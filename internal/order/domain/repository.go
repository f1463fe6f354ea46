package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// StatusUpdate carries the fields an admin transition may set alongside the
// new status. Nil fields are left untouched.
type StatusUpdate struct {
	Status            OrderStatus
	RefundAmountCents *int64
	RefundedAt        *time.Time
	CancelledAt       *time.Time
	UpdatedAt         time.Time
}

type ListFilter struct {
	Status *OrderStatus
	Offset int
	Limit  int
}

// Repository exposes only compare-and-swap status primitives: every status
// write is conditional on the status the caller observed, and reports
// whether the row actually changed. Any substituted backend must keep that
// property, since webhook delivery and pull reconciliation write
// concurrently without application locks.
type Repository interface {
	CreatePending(ctx context.Context, db *gorm.DB, order *Order, items []OrderItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByOrderNumber(ctx context.Context, db *gorm.DB, orderNumber string) (*Order, error)
	ListItemsByOrderIDs(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) ([]OrderItem, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Order, int64, error)
	ListPendingCreatedBefore(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]Order, error)

	// AttachSession records the gateway session on a PENDING order that has none.
	AttachSession(ctx context.Context, db *gorm.DB, id snowflake.ID, sessionID string, now time.Time) (bool, error)
	// MarkPaid moves PENDING to PAID and stores the session id.
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, sessionID string, now time.Time) (bool, error)
	// MarkFailed moves PENDING to FAILED.
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	// ExpirePendingIfOlderThan moves PENDING to FAILED when created strictly
	// before cutoff.
	ExpirePendingIfOlderThan(ctx context.Context, db *gorm.DB, orderNumber string, cutoff time.Time, now time.Time) (bool, error)
	// UpdateStatus applies update only while the order is still in expected.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, expected OrderStatus, update StatusUpdate) (bool, error)
}
