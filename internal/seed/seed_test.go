package seed_test

import (
	"context"
	"testing"
	"time"

	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	productrepo "github.com/smallbiznis/storefront/internal/product/repository"
	"github.com/smallbiznis/storefront/internal/seed"
	"github.com/smallbiznis/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCatalogSlugsAndPrices(t *testing.T) {
	products := seed.Catalog(testutil.Node(t), time.Now())

	prices := map[string]int64{}
	for _, p := range products {
		prices[p.Slug] = p.PriceCents
		assert.True(t, p.IsAvailable)
	}
	assert.Equal(t, map[string]int64{
		"chocolate-chip-cookies": 450,
		"fudgy-brownie-squares":  500,
		"classic-cinnamon-roll":  550,
		"red-velvet-cupcake":     425,
	}, prices)
}

func TestEnsureCatalogIsIdempotent(t *testing.T) {
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	repo := productrepo.Provide()
	ctx := context.Background()

	require.NoError(t, seed.EnsureCatalog(ctx, db, repo, node, zap.NewNop()))
	require.NoError(t, seed.EnsureCatalog(ctx, db, repo, node, zap.NewNop()))

	var count int64
	require.NoError(t, db.Model(&productdomain.Product{}).Count(&count).Error)
	assert.Equal(t, int64(4), count)
}
