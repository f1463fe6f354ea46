package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/product/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindAvailableByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, name, description, price_cents, category, image_url, is_available, created_at, updated_at
		 FROM products
		 WHERE id IN ? AND is_available = ?`,
		ids,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Product, error) {
	var item domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, name, description, price_cents, category, image_url, is_available, created_at, updated_at
		 FROM products
		 WHERE slug = ?
		 LIMIT 1`,
		slug,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListAvailable(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Product, int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("is_available = ?", true)

	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		like := "%" + q + "%"
		stmt = stmt.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Product
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

func (r *repo) InsertIfMissing(ctx context.Context, db *gorm.DB, product *domain.Product) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).
		Create(product)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
