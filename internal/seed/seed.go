// Package seed loads the embedded demo catalog into the datastore.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/pkg/logger"
)

//go:embed catalog.yaml
var catalogYAML []byte

type shopDoc struct {
	ID                string         `yaml:"id"`
	Name              string         `yaml:"name"`
	Description       string         `yaml:"description"`
	Address           string         `yaml:"address"`
	City              string         `yaml:"city"`
	Latitude          float64        `yaml:"latitude"`
	Longitude         float64        `yaml:"longitude"`
	Rating            float64        `yaml:"rating"`
	RatingCount       int            `yaml:"rating_count"`
	LoyaltyMultiplier float64        `yaml:"loyalty_multiplier"`
	Hours             database.Hours `yaml:"hours"`
}

type itemDoc struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Category    string              `yaml:"category"`
	BasePrice   string              `yaml:"base_price"`
	Featured    bool                `yaml:"featured"`
	SortOrder   int                 `yaml:"sort_order"`
	Options     map[string][]string `yaml:"options"`
}

type catalogDoc struct {
	Shops []shopDoc `yaml:"shops"`
	Menu  []itemDoc `yaml:"menu"`
}

// Catalog is the expanded demo data: every menu template applied to every shop.
type Catalog struct {
	Shops     []database.Shop
	MenuItems []database.MenuItem
}

// Load parses the embedded catalog, stamping rows with createdAt.
func Load(createdAt time.Time) (*Catalog, error) {
	return parse(catalogYAML, createdAt)
}

func parse(data []byte, createdAt time.Time) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	cat := &Catalog{}
	for _, s := range doc.Shops {
		cat.Shops = append(cat.Shops, database.Shop{
			ID:                s.ID,
			Name:              s.Name,
			Description:       optional(s.Description),
			Address:           s.Address,
			City:              s.City,
			Latitude:          s.Latitude,
			Longitude:         s.Longitude,
			Hours:             s.Hours,
			IsActive:          true,
			Rating:            s.Rating,
			RatingCount:       s.RatingCount,
			LoyaltyMultiplier: s.LoyaltyMultiplier,
			CreatedAt:         createdAt,
		})
	}

	for _, shop := range cat.Shops {
		for _, it := range doc.Menu {
			price, err := decimal.NewFromString(it.BasePrice)
			if err != nil {
				return nil, fmt.Errorf("parse catalog: %s base_price: %w", it.Name, err)
			}
			cat.MenuItems = append(cat.MenuItems, database.MenuItem{
				ID:                   fmt.Sprintf("menu-%s-%d", shop.ID, it.SortOrder),
				ShopID:               shop.ID,
				Name:                 it.Name,
				Description:          optional(it.Description),
				Category:             it.Category,
				BasePrice:            price,
				CustomizationOptions: database.CustomizationOptions(it.Options),
				IsAvailable:          true,
				IsFeatured:           it.Featured,
				SortOrder:            it.SortOrder,
				CreatedAt:            createdAt,
			})
		}
	}
	return cat, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Result is the seed summary returned to callers.
type Result struct {
	Message          string `json:"message"`
	ShopsCreated     int    `json:"shops_created"`
	MenuItemsCreated int    `json:"menu_items_created"`
}

type Seeder struct {
	repo database.CatalogRepository
	log  *logger.Logger
	now  func() time.Time
}

func NewSeeder(repo database.CatalogRepository, log *logger.Logger) *Seeder {
	return &Seeder{repo: repo, log: log, now: time.Now}
}

// Run replaces the catalog with the demo data. Menu items go first so the
// shop delete does not trip the foreign key.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	cat, err := Load(s.now().UTC())
	if err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"delete menu items", s.repo.DeleteAllMenuItems},
		{"delete shops", s.repo.DeleteAllShops},
		{"insert shops", func(ctx context.Context) error { return s.repo.CreateShops(ctx, cat.Shops) }},
		{"insert menu items", func(ctx context.Context) error { return s.repo.CreateMenuItems(ctx, cat.MenuItems) }},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("step", step.name).Error("seeding failed")
			return nil, svcerrors.Internal(err.Error(), err)
		}
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"shops":      len(cat.Shops),
		"menu_items": len(cat.MenuItems),
	}).Info("database seeded")

	return &Result{
		Message:          "Database seeded successfully",
		ShopsCreated:     len(cat.Shops),
		MenuItemsCreated: len(cat.MenuItems),
	}, nil
}
