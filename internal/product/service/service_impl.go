package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/storefront/internal/cache"
	"github.com/smallbiznis/storefront/internal/product/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const listCacheTTL = 30 * time.Second

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	listCache cache.Cache[string, *domain.ListResponse]
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("product.service"),
		repo:      p.Repo,
		listCache: cache.NewTTLCache[string, *domain.ListResponse](),
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	page := req.Pagination.Normalize()
	category := strings.ToLower(strings.TrimSpace(req.Category))
	query := strings.TrimSpace(req.Query)

	key := fmt.Sprintf("%d:%d:%s:%s", page.Page, page.PageSize, category, strings.ToLower(query))
	if cached, ok := s.listCache.Get(key); ok {
		return cached, nil
	}

	items, total, err := s.repo.ListAvailable(ctx, s.db, domain.ListFilter{
		Category: category,
		Query:    query,
		Offset:   page.Offset(),
		Limit:    page.PageSize,
	})
	if err != nil {
		return nil, err
	}

	resp := &domain.ListResponse{
		Items:    make([]domain.Response, 0, len(items)),
		PageInfo: pagination.BuildPageInfo(page, total),
	}
	for i := range items {
		resp.Items = append(resp.Items, toResponse(&items[i]))
	}
	s.listCache.Set(key, resp, listCacheTTL)
	return resp, nil
}

// GetBySlug hides unavailable products behind the same not-found error as
// missing ones.
func (s *Service) GetBySlug(ctx context.Context, raw string) (*domain.Response, error) {
	normalized := slug.Make(raw)
	if normalized == "" {
		return nil, domain.ErrInvalidSlug
	}

	item, err := s.repo.FindBySlug(ctx, s.db, normalized)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.IsAvailable {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) FindAvailable(ctx context.Context, ids []snowflake.ID) ([]domain.Product, error) {
	return s.repo.FindAvailableByIDs(ctx, s.db, ids)
}

func toResponse(p *domain.Product) domain.Response {
	return domain.Response{
		ID:          p.ID.String(),
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		IsAvailable: p.IsAvailable,
		CreatedAt:   p.CreatedAt,
	}
}
