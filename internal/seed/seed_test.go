package seed

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/pkg/logger"
)

func TestLoad(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cat, err := Load(at)
	require.NoError(t, err)

	require.Len(t, cat.Shops, 3)
	assert.Equal(t, "Moonbean Coffee", cat.Shops[0].Name)
	assert.Equal(t, "Opal Coffee", cat.Shops[2].Name)
	assert.Equal(t, 2.0, cat.Shops[2].LoyaltyMultiplier)
	assert.Equal(t, database.DayHours{Open: "08:00", Close: "21:00"}, cat.Shops[1].Hours["friday"])
	assert.True(t, cat.Shops[0].IsActive)

	require.Len(t, cat.MenuItems, 30)
	latte := cat.MenuItems[0]
	assert.Equal(t, "menu-shop-1-1", latte.ID)
	assert.Equal(t, "shop-1", latte.ShopID)
	assert.True(t, latte.BasePrice.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, latte.IsFeatured)
	assert.Len(t, latte.CustomizationOptions["milk"], 4)
	assert.Equal(t, at, latte.CreatedAt)

	muffin := cat.MenuItems[29]
	assert.Equal(t, "menu-shop-3-10", muffin.ID)
	assert.Empty(t, muffin.CustomizationOptions)
}

func TestParse_BadPrice(t *testing.T) {
	_, err := parse([]byte("shops: [{id: s}]\nmenu: [{name: x, base_price: abc}]\n"), time.Now())
	assert.Error(t, err)
}

func TestSeeder_Run(t *testing.T) {
	repo := database.NewMockRepository()
	ctx := context.Background()
	require.NoError(t, repo.CreateShops(ctx, []database.Shop{{ID: "stale", Name: "Gone", IsActive: true}}))

	s := NewSeeder(repo, logger.NewDiscard())
	res, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Result{Message: "Database seeded successfully", ShopsCreated: 3, MenuItemsCreated: 30}, res)

	shops, err := repo.ListShops(ctx, database.ShopFilter{})
	require.NoError(t, err)
	assert.Len(t, shops, 3)

	// reseeding replaces rather than conflicting
	_, err = s.Run(ctx)
	require.NoError(t, err)
	items, err := repo.ListMenuItems(ctx, database.MenuFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 30)
}

func TestSeeder_RunError(t *testing.T) {
	repo := database.NewMockRepository()
	repo.FailNext(errors.New("permission denied for table menu_items"))

	_, err := NewSeeder(repo, logger.NewDiscard()).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, svcerrors.HTTPStatus(err))
	assert.Contains(t, err.Error(), "permission denied")
}
