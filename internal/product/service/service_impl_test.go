package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/product/domain"
	"github.com/smallbiznis/storefront/internal/product/repository"
	"github.com/smallbiznis/storefront/internal/product/service"
	"github.com/smallbiznis/storefront/internal/seed"
	"github.com/smallbiznis/storefront/internal/testutil"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (domain.Service, []domain.Product) {
	t.Helper()
	db := testutil.OpenDB(t)
	repo := repository.Provide()

	catalog := seed.Catalog(testutil.Node(t), time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	catalog[3].IsAvailable = false
	for i := range catalog {
		_, err := repo.InsertIfMissing(context.Background(), db, &catalog[i])
		require.NoError(t, err)
	}

	return service.New(service.Params{DB: db, Log: zap.NewNop(), Repo: repo}), catalog
}

func TestListHidesUnavailable(t *testing.T) {
	svc, _ := newService(t)

	resp, err := svc.List(context.Background(), domain.ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 1, resp.TotalPages)
	for _, item := range resp.Items {
		assert.NotEqual(t, "red-velvet-cupcake", item.Slug)
		assert.True(t, item.IsAvailable)
	}
}

func TestListFilters(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	resp, err := svc.List(ctx, domain.ListRequest{Category: "Brownies"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "fudgy-brownie-squares", resp.Items[0].Slug)

	resp, err = svc.List(ctx, domain.ListRequest{Query: "cinnamon"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(550), resp.Items[0].PriceCents)

	resp, err = svc.List(ctx, domain.ListRequest{Pagination: pagination.Pagination{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, 2, resp.TotalPages)
}

func TestGetBySlug(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	got, err := svc.GetBySlug(ctx, "Chocolate Chip Cookies")
	require.NoError(t, err)
	assert.Equal(t, "chocolate-chip-cookies", got.Slug)
	assert.Equal(t, int64(450), got.PriceCents)

	_, err = svc.GetBySlug(ctx, "red-velvet-cupcake")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetBySlug(ctx, "no-such-thing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetBySlug(ctx, "!!!")
	assert.ErrorIs(t, err, domain.ErrInvalidSlug)
}

func TestFindAvailableSkipsUnavailable(t *testing.T) {
	svc, catalog := newService(t)

	found, err := svc.FindAvailable(context.Background(), []snowflake.ID{catalog[0].ID, catalog[3].ID})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, catalog[0].ID, found[0].ID)
}
