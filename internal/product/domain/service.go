package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

type Service interface {
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	GetBySlug(ctx context.Context, slug string) (*Response, error)
	FindAvailable(ctx context.Context, ids []snowflake.ID) ([]Product, error)
}

type ListRequest struct {
	pagination.Pagination
	Category string `form:"category"`
	Query    string `form:"q"`
}

type ListResponse struct {
	Items []Response `json:"items"`
	pagination.PageInfo
}

type Response struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"priceCents"`
	Category    string    `json:"category"`
	ImageURL    *string   `json:"imageUrl"`
	IsAvailable bool      `json:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt"`
}

var (
	ErrNotFound    = errors.New("product_not_found")
	ErrInvalidSlug = errors.New("invalid_slug")
)
