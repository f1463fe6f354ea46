package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert writes a SUCCEEDED or FAILED record. A duplicate delivery for
	// the same (provider, external id) updates the existing row in place.
	Upsert(ctx context.Context, db *gorm.DB, payment *Payment) error
	// CreateRefunded appends a REFUNDED record and reports false when the
	// refund id was already recorded.
	CreateRefunded(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, provider string, externalID string) (*Payment, error)
	FindSucceededByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Payment, error)
	ListByOrderIDs(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) ([]Payment, error)
	CountByOrderIDAndStatus(ctx context.Context, db *gorm.DB, orderID snowflake.ID, status PaymentStatus) (int64, error)
}
