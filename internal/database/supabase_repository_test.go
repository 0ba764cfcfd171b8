package database

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beanhop/backend/supabase/client"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClientWithHandler(t *testing.T, handler http.Handler) *client.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := client.New(client.Config{URL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestSupabase_GetWallet(t *testing.T) {
	c := newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/v1/wallets", r.URL.Path)
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "application/vnd.pgrst.object+json", r.Header.Get("Accept"))
		writeJSON(w, http.StatusOK, `{"id":"w1","user_id":"user-1","balance":12.5,"created_at":"2025-01-01T00:00:00+00:00","updated_at":"2025-01-01T00:00:00+00:00"}`)
	}))
	repo := NewSupabaseRepository(c)

	wallet, err := repo.GetWallet(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("12.5")))
}

func TestSupabase_GetWallet_NotFound(t *testing.T) {
	c := newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotAcceptable,
			`{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned","details":"The result contains 0 rows"}`)
	}))
	repo := NewSupabaseRepository(c)

	_, err := repo.GetWallet(context.Background(), "nobody")
	assert.True(t, IsNotFound(err))
}

func TestSupabase_UpdateWalletBalance_CompareAndSwap(t *testing.T) {
	var body map[string]any
	c := newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "eq.10", r.URL.Query().Get("balance"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, `[{"id":"w1","user_id":"user-1","balance":15}]`)
	}))
	repo := NewSupabaseRepository(c)

	err := repo.UpdateWalletBalance(context.Background(), "user-1",
		decimal.NewFromInt(10), decimal.NewFromInt(15), time.Now())
	require.NoError(t, err)
	assert.Equal(t, float64(15), body["balance"])
}

func TestSupabase_UpdateWalletBalance_StaleIsConflict(t *testing.T) {
	c := newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	}))
	repo := NewSupabaseRepository(c)

	err := repo.UpdateWalletBalance(context.Background(), "user-1",
		decimal.NewFromInt(10), decimal.NewFromInt(15), time.Now())
	assert.True(t, IsConflict(err))
}

func TestSupabase_CreateWalletTransaction_DuplicateIntent(t *testing.T) {
	c := newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"code":"23505","message":"duplicate key value violates unique constraint \"idx_wallet_tx_payment_intent_id\""}`)
	}))
	repo := NewSupabaseRepository(c)

	pi := "pi_123"
	err := repo.CreateWalletTransaction(context.Background(), &WalletTransaction{ID: "t1", UserID: "u", PaymentIntentID: &pi})
	assert.True(t, IsConflict(err))
}

func TestSupabase_UpdateOrder_Missing(t *testing.T) {
	c := newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.ord-404", r.URL.Query().Get("id"))
		writeJSON(w, http.StatusOK, `[]`)
	}))
	repo := NewSupabaseRepository(c)

	status := OrderStatusConfirmed
	_, err := repo.UpdateOrder(context.Background(), "ord-404", OrderUpdate{Status: &status, UpdatedAt: time.Now()})
	assert.True(t, IsNotFound(err))
}

func TestSupabase_MarkGiftRedeemed_OnlyPending(t *testing.T) {
	c := newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.pending", r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, `[]`)
	}))
	repo := NewSupabaseRepository(c)

	err := repo.MarkGiftRedeemed(context.Background(), "gift-1", "u2", time.Now())
	assert.True(t, IsConflict(err))
}

func TestSupabase_ReleaseGift(t *testing.T) {
	var body map[string]any
	c := newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.redeemed", r.URL.Query().Get("status"))
		assert.Equal(t, "eq.u2", r.URL.Query().Get("redeemed_by"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, `[{"id":"gift-1","status":"pending"}]`)
	}))
	repo := NewSupabaseRepository(c)

	require.NoError(t, repo.ReleaseGift(context.Background(), "gift-1", "u2"))
	assert.Equal(t, GiftPending, body["status"])
	v, ok := body["redeemed_by"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestSupabase_ListMenuItems(t *testing.T) {
	c := newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "eq.shop-1", q.Get("shop_id"))
		assert.Equal(t, "eq.true", q.Get("is_available"))
		assert.Equal(t, "eq.pastry", q.Get("category"))
		assert.Equal(t, "sort_order.asc", q.Get("order"))
		writeJSON(w, http.StatusOK, `[{"id":"menu-shop-1-8","shop_id":"shop-1","name":"Croissant","category":"pastry","base_price":3.5,"customization_options":null,"is_available":true,"sort_order":8}]`)
	}))
	repo := NewSupabaseRepository(c)

	shopID, category := "shop-1", "pastry"
	items, err := repo.ListMenuItems(context.Background(), MenuFilter{ShopID: &shopID, Category: &category, AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "3.5", items[0].BasePrice.String())
}

func TestSupabase_ServerErrorIsWrapped(t *testing.T) {
	c := newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"message":"relation \"promos\" does not exist","code":"42P01"}`)
	}))
	repo := NewSupabaseRepository(c)

	_, err := repo.ListActivePromos(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "42P01")
	assert.False(t, IsNotFound(err))
}
