package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/smallbiznis/storefront/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, tx *gorm.DB, payment *domain.Payment) error {
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"order_id", "status", "amount_cents", "updated_at",
		}),
	}).Create(payment).Error
}

func (r *repo) CreateRefunded(ctx context.Context, tx *gorm.DB, payment *domain.Payment) (bool, error) {
	payment.Status = domain.PaymentStatusRefunded
	err := tx.WithContext(ctx).Create(payment).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repo) FindByExternalID(ctx context.Context, tx *gorm.DB, provider string, externalID string) (*domain.Payment, error) {
	var item domain.Payment
	err := tx.WithContext(ctx).Raw(
		`SELECT id, order_id, provider, external_id, status, amount_cents, created_at, updated_at
		 FROM payments
		 WHERE provider = ? AND external_id = ?
		 LIMIT 1`,
		provider,
		externalID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindSucceededByOrderID(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*domain.Payment, error) {
	var item domain.Payment
	err := tx.WithContext(ctx).Raw(
		`SELECT id, order_id, provider, external_id, status, amount_cents, created_at, updated_at
		 FROM payments
		 WHERE order_id = ? AND status = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		orderID,
		domain.PaymentStatusSucceeded,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByOrderIDs(ctx context.Context, tx *gorm.DB, orderIDs []snowflake.ID) ([]domain.Payment, error) {
	if len(orderIDs) == 0 {
		return []domain.Payment{}, nil
	}
	var items []domain.Payment
	err := tx.WithContext(ctx).Raw(
		`SELECT id, order_id, provider, external_id, status, amount_cents, created_at, updated_at
		 FROM payments
		 WHERE order_id IN ?
		 ORDER BY order_id, created_at ASC`,
		orderIDs,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountByOrderIDAndStatus(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, status domain.PaymentStatus) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("order_id = ? AND status = ?", orderID, status).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
