package search

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanhop/backend/internal/database"
	"github.com/beanhop/backend/pkg/logger"
)

func strp(s string) *string { return &s }

func TestShopScore(t *testing.T) {
	shop := database.Shop{
		Name:        "Moonbean Coffee",
		Description: strp("Artisan roasts in Kitsilano"),
		Address:     "123 West 4th Ave",
	}

	tests := []struct {
		query string
		want  int
	}{
		{"moonbean coffee", 100},
		{"moon", 80},
		{"coffee", 60},
		{"bean", 60},
		{"onbe", 40},
		{"artisan", 20},
		{"west 4th", 10},
		{"mooonbeen", 15},
		{"zzz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ShopScore(tt.query, shop))
		})
	}
}

func TestShopScore_Accumulates(t *testing.T) {
	shop := database.Shop{
		Name:        "Latte Lab",
		Description: strp("the latte specialists"),
		Address:     "1 Latte Lane",
	}
	assert.Equal(t, 80+20+10, ShopScore("latte", shop))
}

func TestItemScore(t *testing.T) {
	item := database.MenuItem{
		Name:        "Iced Latte",
		Description: strp("espresso over ice"),
		Category:    "Cold Drinks",
	}

	assert.Equal(t, 100, ItemScore("iced latte", item))
	assert.Equal(t, 80, ItemScore("iced", item))
	assert.Equal(t, 50, ItemScore("latte", item))
	assert.Equal(t, 20, ItemScore("espresso", item))
	assert.Equal(t, 30, ItemScore("drinks", item))
	assert.Equal(t, 0, ItemScore("matcha", item))
}

func TestRankShops_StableAndLimited(t *testing.T) {
	shops := []database.Shop{
		{ID: "a", Name: "Cafe Uno"},
		{ID: "b", Name: "Cafe"},
		{ID: "c", Name: "Other Cafe"},
		{ID: "d", Name: "Cafe Dos"},
	}
	hits := RankShops("cafe", shops, 3)
	require.Len(t, hits, 3)
	assert.Equal(t, "b", hits[0].ID)
	assert.Equal(t, 100, hits[0].Score)
	// equal scores keep input order
	assert.Equal(t, "a", hits[1].ID)
	assert.Equal(t, "d", hits[2].ID)
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, []string{"Latte"}, Suggest("lat"))
	assert.Equal(t, []string{"Latte", "Matcha", "Cappuccino", "Americano", "Mocha"}, Suggest("a"))
	assert.Empty(t, Suggest("xyz"))
}

func TestSearch(t *testing.T) {
	repo := database.NewMockRepository()
	ctx := context.Background()
	require.NoError(t, repo.CreateShops(ctx, []database.Shop{
		{ID: "shop-1", Name: "Moonbean Coffee", IsActive: true},
		{ID: "shop-2", Name: "Closed Latte Bar", IsActive: false},
	}))
	require.NoError(t, repo.CreateMenuItems(ctx, []database.MenuItem{
		{ID: "m1", ShopID: "shop-1", Name: "Latte", Category: "Coffee", BasePrice: decimal.RequireFromString("5.25"), IsAvailable: true},
		{ID: "m2", ShopID: "shop-1", Name: "Vanilla Latte", Category: "Coffee", BasePrice: decimal.RequireFromString("5.75"), IsAvailable: true},
		{ID: "m3", ShopID: "shop-1", Name: "Latte Cake", Category: "Bakery", IsAvailable: false},
	}))

	svc := NewService(repo, logger.NewDiscard())
	res := svc.Search(ctx, "  LATTE ", 0)

	assert.Empty(t, res.Shops)
	require.Len(t, res.MenuItems, 2)
	assert.Equal(t, "m1", res.MenuItems[0].ID)
	assert.Equal(t, 100, res.MenuItems[0].Score)
	assert.True(t, res.MenuItems[0].Price.Equal(decimal.RequireFromString("5.25")))
	require.NotNil(t, res.MenuItems[0].Shops)
	assert.Equal(t, "Moonbean Coffee", res.MenuItems[0].Shops.Name)
	assert.Equal(t, []string{"Latte"}, res.Suggestions)

	res = svc.Search(ctx, "coffee", 0)
	require.Len(t, res.Shops, 1)
	assert.Equal(t, 60, res.Shops[0].Score)
	assert.Len(t, res.MenuItems, 2)
}

func TestSearch_ItemsOfInactiveShopKeepShopName(t *testing.T) {
	repo := database.NewMockRepository()
	ctx := context.Background()
	require.NoError(t, repo.CreateShops(ctx, []database.Shop{
		{ID: "shop-2", Name: "Closed Latte Bar", IsActive: false},
	}))
	require.NoError(t, repo.CreateMenuItems(ctx, []database.MenuItem{
		{ID: "m4", ShopID: "shop-2", Name: "Oat Latte", Category: "Coffee", IsAvailable: true},
	}))

	res := NewService(repo, logger.NewDiscard()).Search(ctx, "latte", 0)

	assert.Empty(t, res.Shops)
	require.Len(t, res.MenuItems, 1)
	require.NotNil(t, res.MenuItems[0].Shops)
	assert.Equal(t, "Closed Latte Bar", res.MenuItems[0].Shops.Name)
}

func TestSearch_EmptyQueryAndErrors(t *testing.T) {
	repo := database.NewMockRepository()
	svc := NewService(repo, logger.NewDiscard())

	res := svc.Search(context.Background(), "   ", 10)
	assert.NotNil(t, res.Shops)
	assert.Empty(t, res.Shops)

	repo.FailNext(errors.New("down"))
	res = svc.Search(context.Background(), "latte", 10)
	assert.Empty(t, res.Shops)
	assert.Empty(t, res.MenuItems)
	assert.Empty(t, res.Suggestions)
}
