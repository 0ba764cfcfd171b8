package database

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned for a unique violation or a stale conditional update.
	ErrConflict = errors.New("record conflict")
)

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is (or wraps) ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// Table names
const (
	tableShops               = "shops"
	tableMenuItems           = "menu_items"
	tableOrders              = "orders"
	tableLoyaltyTransactions = "loyalty_transactions"
	tableRewardVouchers      = "reward_vouchers"
	tableWallets             = "wallets"
	tableWalletTransactions  = "wallet_transactions"
	tableGifts               = "gifts"
	tableNotifications       = "notifications"
	tablePromos              = "promos"
)

// =============================================================================
// Filters
// =============================================================================

type ShopFilter struct {
	City     *string
	IsActive *bool
}

type MenuFilter struct {
	ShopID        *string
	Category      *string
	AvailableOnly bool
}

type OrderFilter struct {
	UserID *string
	Status *string
}

// =============================================================================
// Repository Interfaces
// =============================================================================

type CatalogRepository interface {
	ListShops(ctx context.Context, filter ShopFilter) ([]Shop, error)
	GetShop(ctx context.Context, id string) (*Shop, error)
	CreateShops(ctx context.Context, shops []Shop) error
	DeleteAllShops(ctx context.Context) error

	ListMenuItems(ctx context.Context, filter MenuFilter) ([]MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (*MenuItem, error)
	CreateMenuItems(ctx context.Context, items []MenuItem) error
	DeleteAllMenuItems(ctx context.Context) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	// UpdateOrder applies a partial update and returns the updated row, or ErrNotFound.
	UpdateOrder(ctx context.Context, id string, update OrderUpdate) (*Order, error)
}

type LoyaltyRepository interface {
	CreateLoyaltyTransaction(ctx context.Context, tx *LoyaltyTransaction) error
	// ListLoyaltyTransactions returns rows newest first; limit <= 0 returns all.
	ListLoyaltyTransactions(ctx context.Context, userID string, limit int) ([]LoyaltyTransaction, error)
	CreateRewardVoucher(ctx context.Context, voucher *RewardVoucher) error
	ListActiveVouchers(ctx context.Context, userID string) ([]RewardVoucher, error)
}

type WalletRepository interface {
	GetWallet(ctx context.Context, userID string) (*Wallet, error)
	// CreateWallet fails with ErrConflict when the user already has a wallet.
	CreateWallet(ctx context.Context, wallet *Wallet) error
	// UpdateWalletBalance writes newBalance only while the stored balance still
	// equals expected. A lost race returns ErrConflict.
	UpdateWalletBalance(ctx context.Context, userID string, expected, newBalance decimal.Decimal, at time.Time) error
	// CreateWalletTransaction fails with ErrConflict for a reused payment intent id.
	CreateWalletTransaction(ctx context.Context, tx *WalletTransaction) error
	ListWalletTransactions(ctx context.Context, userID string, limit int) ([]WalletTransaction, error)
	PaymentIntentApplied(ctx context.Context, paymentIntentID string) (bool, error)
}

type GiftRepository interface {
	CreateGift(ctx context.Context, gift *Gift) error
	GetGift(ctx context.Context, id string) (*Gift, error)
	// MarkGiftRedeemed flips a pending gift to redeemed; ErrConflict if it is no longer pending.
	MarkGiftRedeemed(ctx context.Context, id, redeemedBy string, at time.Time) error
	// ReleaseGift returns a gift claimed by redeemedBy to pending; ErrConflict if that claim is gone.
	ReleaseGift(ctx context.Context, id, redeemedBy string) error
	ListGiftsBySender(ctx context.Context, senderID string) ([]Gift, error)
	ListGiftsByRecipient(ctx context.Context, email string) ([]Gift, error)
}

type NotificationRepository interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	CreateNotification(ctx context.Context, n *Notification) error
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

type PromoRepository interface {
	ListActivePromos(ctx context.Context) ([]Promo, error)
}

// RepositoryInterface is the full data access surface used by the API.
type RepositoryInterface interface {
	CatalogRepository
	OrderRepository
	LoyaltyRepository
	WalletRepository
	GiftRepository
	NotificationRepository
	PromoRepository

	Ping(ctx context.Context) error
}
