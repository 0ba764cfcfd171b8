package orders

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
	"github.com/beanhop/backend/internal/loyalty"
	"github.com/beanhop/backend/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *database.MockRepository) {
	t.Helper()
	repo := database.NewMockRepository()
	log := logger.NewDiscard()
	return NewService(repo, repo, loyalty.NewService(repo, log, nil), log), repo
}

func sampleRequest() CreateRequest {
	return CreateRequest{
		UserID: "user-1",
		ShopID: "shop-1",
		Items: []database.OrderItem{
			{MenuItemID: "menu-shop-1-1", Name: "Latte", Price: decimal.RequireFromString("5.25"), Quantity: 2},
		},
		Subtotal: decimal.RequireFromString("10.50"),
		Tax:      decimal.RequireFromString("1.37"),
		Total:    decimal.RequireFromString("11.87"),
	}
}

func TestCreate(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateShops(ctx, []database.Shop{{ID: "shop-1", Name: "Moonbean Coffee"}}))

	order, err := svc.Create(ctx, sampleRequest())
	require.NoError(t, err)
	assert.Regexp(t, `^ORD-[0-9A-F]{6}$`, order.OrderNumber)
	assert.Equal(t, "Moonbean Coffee", order.ShopName)
	assert.Equal(t, database.OrderStatusPending, order.Status)
	assert.Equal(t, 10, order.PointsEarned)
	assert.True(t, order.Discount.IsZero())
	assert.NotNil(t, order.Items[0].Customizations)

	stored, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, stored.OrderNumber)

	txs, err := repo.ListLoyaltyTransactions(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 10, txs[0].PointsChange)
	assert.Equal(t, "Order #"+order.OrderNumber, txs[0].Description)
	require.NotNil(t, txs[0].OrderID)
	assert.Equal(t, order.ID, *txs[0].OrderID)
}

func TestCreate_SnapshotSurvivesCatalogChanges(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateShops(ctx, []database.Shop{{ID: "shop-1", Name: "Moonbean Coffee"}}))
	require.NoError(t, repo.CreateMenuItems(ctx, []database.MenuItem{
		{ID: "menu-shop-1-1", ShopID: "shop-1", Name: "Latte", BasePrice: decimal.RequireFromString("5.25")},
	}))

	req := sampleRequest()
	req.Items[0].Customizations = map[string]string{"milk": "oat"}
	order, err := svc.Create(ctx, req)
	require.NoError(t, err)

	// caller reuses its buffers
	req.Items[0].Price = decimal.NewFromInt(99)
	req.Items[0].Customizations["milk"] = "whole"
	order.Items[0].Name = "mutated"

	// shop renamed, item repriced
	require.NoError(t, repo.DeleteAllMenuItems(ctx))
	require.NoError(t, repo.DeleteAllShops(ctx))
	require.NoError(t, repo.CreateShops(ctx, []database.Shop{{ID: "shop-1", Name: "Moonbean Roasters"}}))
	require.NoError(t, repo.CreateMenuItems(ctx, []database.MenuItem{
		{ID: "menu-shop-1-1", ShopID: "shop-1", Name: "Latte", BasePrice: decimal.RequireFromString("6.50")},
	}))

	stored, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Moonbean Coffee", stored.ShopName)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Latte", stored.Items[0].Name)
	assert.Equal(t, "5.25", stored.Items[0].Price.String())
	assert.Equal(t, "oat", stored.Items[0].Customizations["milk"])
	assert.Equal(t, "11.87", stored.Total.String())
}

func TestCreate_UnknownShopAndNoPoints(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	req := sampleRequest()
	req.Subtotal = decimal.RequireFromString("0.99")

	order, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, UnknownShop, order.ShopName)
	assert.Equal(t, 0, order.PointsEarned)

	txs, err := repo.ListLoyaltyTransactions(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	req := sampleRequest()
	req.UserID = ""

	_, err := svc.Create(context.Background(), req)
	assert.Equal(t, http.StatusBadRequest, svcerrors.HTTPStatus(err))
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "missing")
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, http.StatusNotFound, se.HTTPStatus)
	assert.Equal(t, "Order not found", se.Message)
}

func TestList_Filters(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, o := range []database.Order{
		{ID: "o1", UserID: "user-1", Status: database.OrderStatusPending},
		{ID: "o2", UserID: "user-1", Status: database.OrderStatusReady},
		{ID: "o3", UserID: "user-2", Status: database.OrderStatusPending},
	} {
		o.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.CreateOrder(ctx, &o))
	}

	user := "user-1"
	got, err := svc.List(ctx, &user, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o2", got[0].ID)

	status := database.OrderStatusPending
	got, err = svc.List(ctx, nil, &status)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.List(ctx, &user, &status)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "o1", got[0].ID)
}

func TestUpdateStatus(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateOrder(ctx, &database.Order{ID: "o1", Status: database.OrderStatusCompleted}))

	// Any valid status is accepted, even backwards.
	res, err := svc.UpdateStatus(ctx, "o1", database.OrderStatusPending)
	require.NoError(t, err)
	assert.Equal(t, &StatusUpdate{Message: "Order status updated", Status: "pending"}, res)

	_, err = svc.UpdateStatus(ctx, "o1", "shipped")
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, "Invalid status. Must be one of: [pending confirmed preparing ready completed cancelled]", se.Message)

	_, err = svc.UpdateStatus(ctx, "missing", database.OrderStatusReady)
	assert.Equal(t, http.StatusNotFound, svcerrors.HTTPStatus(err))

	repo.FailNext(errors.New("db down"))
	_, err = svc.UpdateStatus(ctx, "o1", database.OrderStatusReady)
	assert.Equal(t, http.StatusInternalServerError, svcerrors.HTTPStatus(err))
}
