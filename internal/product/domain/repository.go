package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Category string
	Query    string
	Offset   int
	Limit    int
}

// Repository is read-only apart from seeding; catalog management lives
// outside this service.
type Repository interface {
	// FindAvailableByIDs returns only currently available products. Missing
	// or unavailable ids are simply absent from the result.
	FindAvailableByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Product, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Product, error)
	ListAvailable(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Product, int64, error)
	InsertIfMissing(ctx context.Context, db *gorm.DB, product *Product) (bool, error)
}
