package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/pkg/logger"
)

func newTestService() (*Service, *database.MockRepository) {
	repo := database.NewMockRepository()
	return NewService(repo, logger.NewDiscard()), repo
}

func TestCreateShop_Defaults(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	shop, err := svc.CreateShop(ctx, CreateShopRequest{Name: "Opal", Address: "1 King St"})
	require.NoError(t, err)
	assert.NotEmpty(t, shop.ID)
	assert.Equal(t, DefaultCity, shop.City)
	assert.Equal(t, DefaultLatitude, shop.Latitude)
	assert.Equal(t, DefaultLongitude, shop.Longitude)
	assert.True(t, shop.IsActive)
	assert.Equal(t, 1.0, shop.LoyaltyMultiplier)

	got, err := svc.GetShop(ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, "Opal", got.Name)

	_, err = svc.CreateShop(ctx, CreateShopRequest{Name: "No address"})
	assert.Equal(t, http.StatusBadRequest, svcerrors.HTTPStatus(err))
}

func TestListShops(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	require.NoError(t, repo.CreateShops(ctx, []database.Shop{
		{ID: "s1", Name: "A", City: "Toronto", IsActive: true},
		{ID: "s2", Name: "B", City: "Ottawa", IsActive: true},
		{ID: "s3", Name: "C", City: "Toronto", IsActive: false},
	}))

	shops, err := svc.ListShops(ctx, nil, true)
	require.NoError(t, err)
	assert.Len(t, shops, 2)

	city := "Toronto"
	shops, err = svc.ListShops(ctx, &city, true)
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, "s1", shops[0].ID)

	shops, err = svc.ListShops(ctx, nil, false)
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, "s3", shops[0].ID)
}

func TestGetShop_NotFound(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.GetShop(context.Background(), "missing")
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, http.StatusNotFound, se.HTTPStatus)
	assert.Equal(t, "Shop not found", se.Message)

	repo.FailNext(errors.New("boom"))
	_, err = svc.GetShop(context.Background(), "s1")
	assert.Equal(t, http.StatusInternalServerError, svcerrors.HTTPStatus(err))
}

func TestShopMenu(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	require.NoError(t, repo.CreateMenuItems(ctx, []database.MenuItem{
		{ID: "m2", ShopID: "s1", Name: "Mocha", Category: "coffee", IsAvailable: true, SortOrder: 2},
		{ID: "m1", ShopID: "s1", Name: "Latte", Category: "coffee", IsAvailable: true, SortOrder: 1},
		{ID: "m3", ShopID: "s1", Name: "Croissant", Category: "pastry", IsAvailable: true, SortOrder: 3},
		{ID: "m4", ShopID: "s1", Name: "Sold out", Category: "coffee", IsAvailable: false, SortOrder: 0},
		{ID: "m5", ShopID: "s2", Name: "Elsewhere", Category: "coffee", IsAvailable: true},
	}))

	items, err := svc.ShopMenu(ctx, "s1", nil)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{items[0].ID, items[1].ID, items[2].ID})

	cat := "pastry"
	items, err = svc.ShopMenu(ctx, "s1", &cat)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "m3", items[0].ID)
}

func TestMenuItems(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	item, err := svc.CreateMenuItem(ctx, CreateMenuItemRequest{
		ShopID: "s1", Name: "Cortado", Category: "coffee", BasePrice: decimal.RequireFromString("4.25"),
		CustomizationOptions: database.CustomizationOptions{"milk": {"whole", "oat"}},
	})
	require.NoError(t, err)
	assert.True(t, item.IsAvailable)

	got, err := svc.GetMenuItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "4.25", got.BasePrice.StringFixed(2))

	_, err = svc.GetMenuItem(ctx, "missing")
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, "Menu item not found", se.Message)
}
