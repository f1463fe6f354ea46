package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const orderColumns = `id, order_number, status, subtotal_cents, currency, customer_email, customer_phone,
	gateway_session_id, refund_amount_cents, refunded_at, cancelled_at, created_at, updated_at`

func (r *repo) CreatePending(ctx context.Context, db *gorm.DB, order *domain.Order, items []domain.OrderItem) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`INSERT INTO orders (
				id, order_number, status, subtotal_cents, currency, customer_email, customer_phone,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.ID,
			order.OrderNumber,
			order.Status,
			order.SubtotalCents,
			order.Currency,
			order.CustomerEmail,
			order.CustomerPhone,
			order.CreatedAt,
			order.UpdatedAt,
		).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByOrderNumber(ctx context.Context, db *gorm.DB, orderNumber string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE order_number = ?
		 LIMIT 1`,
		orderNumber,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListItemsByOrderIDs(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) ([]domain.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []domain.OrderItem{}, nil
	}
	var items []domain.OrderItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, position, product_id, product_name, quantity, unit_price_cents, created_at
		 FROM order_items
		 WHERE order_id IN ?
		 ORDER BY order_id, position ASC`,
		orderIDs,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Order, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Order{})
	if filter.Status != nil {
		stmt = stmt.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Order
	err := stmt.
		Order("created_at DESC").
		Order("id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) ListPendingCreatedBefore(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE status = ? AND created_at < ?
		 ORDER BY created_at ASC
		 LIMIT ?`,
		domain.OrderStatusPending,
		before,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) AttachSession(ctx context.Context, db *gorm.DB, id snowflake.ID, sessionID string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET gateway_session_id = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND gateway_session_id IS NULL`,
		sessionID,
		now,
		id,
		domain.OrderStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, sessionID string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, gateway_session_id = COALESCE(?, gateway_session_id), updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.OrderStatusPaid,
		nullableString(sessionID),
		now,
		id,
		domain.OrderStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.OrderStatusFailed,
		now,
		id,
		domain.OrderStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ExpirePendingIfOlderThan(ctx context.Context, db *gorm.DB, orderNumber string, cutoff time.Time, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, updated_at = ?
		 WHERE order_number = ? AND status = ? AND created_at < ?`,
		domain.OrderStatusFailed,
		now,
		orderNumber,
		domain.OrderStatusPending,
		cutoff,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, expected domain.OrderStatus, update domain.StatusUpdate) (bool, error) {
	values := map[string]any{
		"status":     update.Status,
		"updated_at": update.UpdatedAt,
	}
	if update.RefundAmountCents != nil {
		values["refund_amount_cents"] = *update.RefundAmountCents
	}
	if update.RefundedAt != nil {
		values["refunded_at"] = *update.RefundedAt
	}
	if update.CancelledAt != nil {
		values["cancelled_at"] = *update.CancelledAt
	}

	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
