package database

import (
	"context"
	"fmt"
	"time"

	"github.com/beanhop/backend/supabase/client"
	"github.com/shopspring/decimal"
)

// SupabaseRepository implements RepositoryInterface over PostgREST.
type SupabaseRepository struct {
	client *client.Client
}

// NewSupabaseRepository creates a repository backed by the given client.
func NewSupabaseRepository(c *client.Client) *SupabaseRepository {
	return &SupabaseRepository{client: c}
}

var _ RepositoryInterface = (*SupabaseRepository)(nil)

// Ping issues a one-row read against shops.
func (r *SupabaseRepository) Ping(ctx context.Context) error {
	_, err := GenericList[Shop](ctx, "ping", r.client.From(tableShops).Select("id").Limit(1))
	return err
}

// =============================================================================
// Catalog
// =============================================================================

func (r *SupabaseRepository) ListShops(ctx context.Context, filter ShopFilter) ([]Shop, error) {
	q := r.client.From(tableShops).Select("*")
	if filter.IsActive != nil {
		q.Eq("is_active", *filter.IsActive)
	}
	if filter.City != nil {
		q.Eq("city", *filter.City)
	}
	return GenericList[Shop](ctx, "list shops", q)
}

func (r *SupabaseRepository) GetShop(ctx context.Context, id string) (*Shop, error) {
	return GenericGetOne[Shop](ctx, "get shop", r.client.From(tableShops).Select("*").Eq("id", id))
}

func (r *SupabaseRepository) CreateShops(ctx context.Context, shops []Shop) error {
	if len(shops) == 0 {
		return nil
	}
	return GenericInsert(ctx, "create shops", r.client.From(tableShops), shops, nil)
}

func (r *SupabaseRepository) DeleteAllShops(ctx context.Context) error {
	resp, err := r.client.From(tableShops).Neq("id", "").ExecuteDelete(ctx)
	return checkResponse("delete shops", resp, err)
}

func (r *SupabaseRepository) ListMenuItems(ctx context.Context, filter MenuFilter) ([]MenuItem, error) {
	q := r.client.From(tableMenuItems).Select("*")
	if filter.ShopID != nil {
		q.Eq("shop_id", *filter.ShopID)
	}
	if filter.AvailableOnly {
		q.Eq("is_available", true)
	}
	if filter.Category != nil {
		q.Eq("category", *filter.Category)
	}
	q.Order("sort_order", true)
	return GenericList[MenuItem](ctx, "list menu items", q)
}

func (r *SupabaseRepository) GetMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	return GenericGetOne[MenuItem](ctx, "get menu item", r.client.From(tableMenuItems).Select("*").Eq("id", id))
}

func (r *SupabaseRepository) CreateMenuItems(ctx context.Context, items []MenuItem) error {
	if len(items) == 0 {
		return nil
	}
	return GenericInsert(ctx, "create menu items", r.client.From(tableMenuItems), items, nil)
}

func (r *SupabaseRepository) DeleteAllMenuItems(ctx context.Context) error {
	resp, err := r.client.From(tableMenuItems).Neq("id", "").ExecuteDelete(ctx)
	return checkResponse("delete menu items", resp, err)
}

// =============================================================================
// Orders
// =============================================================================

func (r *SupabaseRepository) CreateOrder(ctx context.Context, order *Order) error {
	if order == nil {
		return fmt.Errorf("order cannot be nil")
	}
	return GenericInsert(ctx, "create order", r.client.From(tableOrders), order, nil)
}

func (r *SupabaseRepository) GetOrder(ctx context.Context, id string) (*Order, error) {
	return GenericGetOne[Order](ctx, "get order", r.client.From(tableOrders).Select("*").Eq("id", id))
}

func (r *SupabaseRepository) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	q := r.client.From(tableOrders).Select("*")
	if filter.UserID != nil {
		q.Eq("user_id", *filter.UserID)
	}
	if filter.Status != nil {
		q.Eq("status", *filter.Status)
	}
	q.Order("created_at", false)
	return GenericList[Order](ctx, "list orders", q)
}

func (r *SupabaseRepository) UpdateOrder(ctx context.Context, id string, update OrderUpdate) (*Order, error) {
	rows, err := GenericUpdate[Order](ctx, "update order", r.client.From(tableOrders).Eq("id", id), update.fields())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update order %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

// =============================================================================
// Loyalty
// =============================================================================

func (r *SupabaseRepository) CreateLoyaltyTransaction(ctx context.Context, tx *LoyaltyTransaction) error {
	return GenericInsert(ctx, "create loyalty transaction", r.client.From(tableLoyaltyTransactions), tx, nil)
}

func (r *SupabaseRepository) ListLoyaltyTransactions(ctx context.Context, userID string, limit int) ([]LoyaltyTransaction, error) {
	q := r.client.From(tableLoyaltyTransactions).Select("*").Eq("user_id", userID).Order("created_at", false)
	if limit > 0 {
		q.Limit(limit)
	}
	return GenericList[LoyaltyTransaction](ctx, "list loyalty transactions", q)
}

func (r *SupabaseRepository) CreateRewardVoucher(ctx context.Context, voucher *RewardVoucher) error {
	return GenericInsert(ctx, "create reward voucher", r.client.From(tableRewardVouchers), voucher, nil)
}

func (r *SupabaseRepository) ListActiveVouchers(ctx context.Context, userID string) ([]RewardVoucher, error) {
	q := r.client.From(tableRewardVouchers).Select("*").Eq("user_id", userID).Eq("status", VoucherActive)
	return GenericList[RewardVoucher](ctx, "list vouchers", q)
}

// =============================================================================
// Wallet
// =============================================================================

func (r *SupabaseRepository) GetWallet(ctx context.Context, userID string) (*Wallet, error) {
	return GenericGetOne[Wallet](ctx, "get wallet", r.client.From(tableWallets).Select("*").Eq("user_id", userID))
}

func (r *SupabaseRepository) CreateWallet(ctx context.Context, wallet *Wallet) error {
	return GenericInsert(ctx, "create wallet", r.client.From(tableWallets), wallet, nil)
}

func (r *SupabaseRepository) UpdateWalletBalance(ctx context.Context, userID string, expected, newBalance decimal.Decimal, at time.Time) error {
	q := r.client.From(tableWallets).Eq("user_id", userID).Eq("balance", expected.String())
	rows, err := GenericUpdate[Wallet](ctx, "update wallet balance", q, map[string]any{
		"balance":    newBalance,
		"updated_at": at,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("update wallet balance for %s: %w", userID, ErrConflict)
	}
	return nil
}

func (r *SupabaseRepository) CreateWalletTransaction(ctx context.Context, tx *WalletTransaction) error {
	return GenericInsert(ctx, "create wallet transaction", r.client.From(tableWalletTransactions), tx, nil)
}

func (r *SupabaseRepository) ListWalletTransactions(ctx context.Context, userID string, limit int) ([]WalletTransaction, error) {
	q := r.client.From(tableWalletTransactions).Select("*").Eq("user_id", userID).Order("created_at", false)
	if limit > 0 {
		q.Limit(limit)
	}
	return GenericList[WalletTransaction](ctx, "list wallet transactions", q)
}

func (r *SupabaseRepository) PaymentIntentApplied(ctx context.Context, paymentIntentID string) (bool, error) {
	q := r.client.From(tableWalletTransactions).Select("id").Eq("payment_intent_id", paymentIntentID).Limit(1)
	rows, err := GenericList[WalletTransaction](ctx, "check payment intent", q)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// =============================================================================
// Gifts
// =============================================================================

func (r *SupabaseRepository) CreateGift(ctx context.Context, gift *Gift) error {
	return GenericInsert(ctx, "create gift", r.client.From(tableGifts), gift, nil)
}

func (r *SupabaseRepository) GetGift(ctx context.Context, id string) (*Gift, error) {
	return GenericGetOne[Gift](ctx, "get gift", r.client.From(tableGifts).Select("*").Eq("id", id))
}

func (r *SupabaseRepository) MarkGiftRedeemed(ctx context.Context, id, redeemedBy string, at time.Time) error {
	q := r.client.From(tableGifts).Eq("id", id).Eq("status", GiftPending)
	rows, err := GenericUpdate[Gift](ctx, "redeem gift", q, map[string]any{
		"status":      GiftRedeemed,
		"redeemed_by": redeemedBy,
		"redeemed_at": at,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("redeem gift %s: %w", id, ErrConflict)
	}
	return nil
}

func (r *SupabaseRepository) ReleaseGift(ctx context.Context, id, redeemedBy string) error {
	q := r.client.From(tableGifts).Eq("id", id).Eq("status", GiftRedeemed).Eq("redeemed_by", redeemedBy)
	rows, err := GenericUpdate[Gift](ctx, "release gift", q, map[string]any{
		"status":      GiftPending,
		"redeemed_by": nil,
		"redeemed_at": nil,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("release gift %s: %w", id, ErrConflict)
	}
	return nil
}

func (r *SupabaseRepository) ListGiftsBySender(ctx context.Context, senderID string) ([]Gift, error) {
	q := r.client.From(tableGifts).Select("*").Eq("sender_id", senderID).Order("created_at", false)
	return GenericList[Gift](ctx, "list sent gifts", q)
}

func (r *SupabaseRepository) ListGiftsByRecipient(ctx context.Context, email string) ([]Gift, error) {
	q := r.client.From(tableGifts).Select("*").Eq("recipient_email", email).Order("created_at", false)
	return GenericList[Gift](ctx, "list received gifts", q)
}

// =============================================================================
// Notifications & Promos
// =============================================================================

func (r *SupabaseRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	q := r.client.From(tableNotifications).Select("*").Eq("user_id", userID).Order("created_at", false)
	if limit > 0 {
		q.Limit(limit)
	}
	return GenericList[Notification](ctx, "list notifications", q)
}

func (r *SupabaseRepository) CreateNotification(ctx context.Context, n *Notification) error {
	return GenericInsert(ctx, "create notification", r.client.From(tableNotifications), n, nil)
}

func (r *SupabaseRepository) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := GenericUpdate[Notification](ctx, "mark notification read",
		r.client.From(tableNotifications).Eq("id", id), map[string]any{"read": true})
	return err
}

func (r *SupabaseRepository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := GenericUpdate[Notification](ctx, "mark notifications read",
		r.client.From(tableNotifications).Eq("user_id", userID), map[string]any{"read": true})
	return err
}

func (r *SupabaseRepository) ListActivePromos(ctx context.Context) ([]Promo, error) {
	q := r.client.From(tablePromos).Select("*").Eq("is_active", true).Order("sort_order", true)
	return GenericList[Promo](ctx, "list promos", q)
}
