package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type catalogEntry struct {
	Name        string
	Description string
	PriceCents  int64
	Category    string
	ImageURL    string
}

var bakeryCatalog = []catalogEntry{
	{
		Name:        "Chocolate Chip Cookies",
		Description: "Soft-centered cookies with dark and milk chocolate chips.",
		PriceCents:  450,
		Category:    "cookies",
		ImageURL:    "https://images.unsplash.com/photo-1499636136210-6f4ee915583e?w=1200&h=800&fit=crop&q=80",
	},
	{
		Name:        "Fudgy Brownie Squares",
		Description: "Dense cocoa brownies with a crackly top.",
		PriceCents:  500,
		Category:    "brownies",
		ImageURL:    "https://images.unsplash.com/photo-1643769377897-33ba0d88b240?w=1200&h=800&fit=crop&q=80",
	},
	{
		Name:        "Classic Cinnamon Roll",
		Description: "Fluffy roll with brown sugar swirl and vanilla glaze.",
		PriceCents:  550,
		Category:    "pastries",
		ImageURL:    "https://plus.unsplash.com/premium_photo-1663928246542-ab54a1283646?w=1200&h=800&fit=crop&q=80",
	},
	{
		Name:        "Red Velvet Cupcake",
		Description: "Buttermilk red velvet cupcake with cream cheese frosting.",
		PriceCents:  425,
		Category:    "cupcakes",
		ImageURL:    "https://images.unsplash.com/photo-1759524322472-3f146a43cf9a?w=1200&h=800&fit=crop&q=80",
	},
}

// Catalog returns the starter products with fresh ids. Slugs derive from
// the product names.
func Catalog(node *snowflake.Node, now time.Time) []productdomain.Product {
	products := make([]productdomain.Product, 0, len(bakeryCatalog))
	for _, entry := range bakeryCatalog {
		imageURL := entry.ImageURL
		products = append(products, productdomain.Product{
			ID:          node.Generate(),
			Slug:        slug.Make(entry.Name),
			Name:        entry.Name,
			Description: entry.Description,
			PriceCents:  entry.PriceCents,
			Category:    entry.Category,
			ImageURL:    &imageURL,
			IsAvailable: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return products
}

// EnsureCatalog inserts any starter product whose slug is missing. Existing
// rows are left as they are so catalog edits survive restarts.
func EnsureCatalog(ctx context.Context, db *gorm.DB, repo productdomain.Repository, node *snowflake.Node, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	inserted := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, product := range Catalog(node, time.Now().UTC()) {
			product := product
			ok, err := repo.InsertIfMissing(ctx, tx, &product)
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if log != nil && inserted > 0 {
		log.Info("catalog seeded", zap.Int("inserted", inserted))
	}
	return nil
}
