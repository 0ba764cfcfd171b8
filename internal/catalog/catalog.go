// Package catalog serves shops and their menus.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/pkg/logger"
)

// Shop defaults
const (
	DefaultCity              = "Toronto"
	DefaultLatitude          = 43.6510
	DefaultLongitude         = -79.3835
	DefaultLoyaltyMultiplier = 1.0
)

// CreateShopRequest creates a shop. Nil fields take their defaults.
type CreateShopRequest struct {
	Name              string         `json:"name"`
	Description       *string        `json:"description"`
	Address           string         `json:"address"`
	City              *string        `json:"city"`
	Latitude          *float64       `json:"latitude"`
	Longitude         *float64       `json:"longitude"`
	Phone             *string        `json:"phone"`
	Email             *string        `json:"email"`
	Hours             database.Hours `json:"hours"`
	Rating            float64        `json:"rating"`
	RatingCount       int            `json:"rating_count"`
	IsActive          *bool          `json:"is_active"`
	LoyaltyMultiplier *float64       `json:"loyalty_multiplier"`
}

type CreateMenuItemRequest struct {
	ShopID               string                        `json:"shop_id"`
	Name                 string                        `json:"name"`
	Description          *string                       `json:"description"`
	Category             string                        `json:"category"`
	BasePrice            decimal.Decimal               `json:"base_price"`
	ImageURL             *string                       `json:"image_url"`
	CustomizationOptions database.CustomizationOptions `json:"customization_options"`
	IsAvailable          *bool                         `json:"is_available"`
	IsFeatured           bool                          `json:"is_featured"`
	SortOrder            int                           `json:"sort_order"`
}

type Service struct {
	repo database.CatalogRepository
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo database.CatalogRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// =============================================================================
// Shops
// =============================================================================

// ListShops lists shops, filtered by city when given and by activity.
func (s *Service) ListShops(ctx context.Context, city *string, isActive bool) ([]database.Shop, error) {
	shops, err := s.repo.ListShops(ctx, database.ShopFilter{City: city, IsActive: &isActive})
	if err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return shops, nil
}

func (s *Service) GetShop(ctx context.Context, id string) (*database.Shop, error) {
	shop, err := s.repo.GetShop(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, svcerrors.NotFound("Shop not found")
		}
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return shop, nil
}

func (s *Service) CreateShop(ctx context.Context, req CreateShopRequest) (*database.Shop, error) {
	if req.Name == "" || req.Address == "" {
		return nil, svcerrors.Validation("name and address are required")
	}

	shop := database.Shop{
		ID:                uuid.New().String(),
		Name:              req.Name,
		Description:       req.Description,
		Address:           req.Address,
		City:              valueOr(req.City, DefaultCity),
		Latitude:          valueOr(req.Latitude, DefaultLatitude),
		Longitude:         valueOr(req.Longitude, DefaultLongitude),
		Phone:             req.Phone,
		Email:             req.Email,
		Hours:             req.Hours,
		IsActive:          valueOr(req.IsActive, true),
		Rating:            req.Rating,
		RatingCount:       req.RatingCount,
		LoyaltyMultiplier: valueOr(req.LoyaltyMultiplier, DefaultLoyaltyMultiplier),
		CreatedAt:         s.now().UTC(),
	}
	if err := s.repo.CreateShops(ctx, []database.Shop{shop}); err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return &shop, nil
}

// =============================================================================
// Menu
// =============================================================================

// ShopMenu returns a shop's available items ordered by sort_order.
func (s *Service) ShopMenu(ctx context.Context, shopID string, category *string) ([]database.MenuItem, error) {
	items, err := s.repo.ListMenuItems(ctx, database.MenuFilter{ShopID: &shopID, Category: category, AvailableOnly: true})
	if err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return items, nil
}

func (s *Service) GetMenuItem(ctx context.Context, id string) (*database.MenuItem, error) {
	item, err := s.repo.GetMenuItem(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, svcerrors.NotFound("Menu item not found")
		}
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return item, nil
}

func (s *Service) CreateMenuItem(ctx context.Context, req CreateMenuItemRequest) (*database.MenuItem, error) {
	if req.ShopID == "" || req.Name == "" || req.Category == "" {
		return nil, svcerrors.Validation("shop_id, name and category are required")
	}

	item := database.MenuItem{
		ID:                   uuid.New().String(),
		ShopID:               req.ShopID,
		Name:                 req.Name,
		Description:          req.Description,
		Category:             req.Category,
		BasePrice:            req.BasePrice,
		ImageURL:             req.ImageURL,
		CustomizationOptions: req.CustomizationOptions,
		IsAvailable:          valueOr(req.IsAvailable, true),
		IsFeatured:           req.IsFeatured,
		SortOrder:            req.SortOrder,
		CreatedAt:            s.now().UTC(),
	}
	if err := s.repo.CreateMenuItems(ctx, []database.MenuItem{item}); err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return &item, nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
