package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresRepository implements RepositoryInterface directly against Postgres.
// It is selected when DATABASE_URL is configured.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps an open sqlx handle.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres opens a lib/pq connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

var _ RepositoryInterface = (*PostgresRepository)(nil)

// Column lists coalesce nullable text so rows scan into plain strings.
const (
	shopColumns = `id, name, description, logo_url, banner_url, address, COALESCE(city, '') AS city,
		COALESCE(latitude, 0) AS latitude, COALESCE(longitude, 0) AS longitude, phone, email, hours,
		COALESCE(is_active, true) AS is_active, COALESCE(rating, 0) AS rating,
		COALESCE(rating_count, 0) AS rating_count, COALESCE(loyalty_multiplier, 1) AS loyalty_multiplier, created_at`

	menuItemColumns = `id, shop_id, name, description, category, base_price, image_url, customization_options,
		COALESCE(is_available, true) AS is_available, COALESCE(is_featured, false) AS is_featured,
		COALESCE(sort_order, 0) AS sort_order, created_at`

	orderColumns = `id, order_number, user_id, shop_id, COALESCE(shop_name, '') AS shop_name, items, status,
		subtotal, COALESCE(tax, 0) AS tax, COALESCE(discount, 0) AS discount, total, pickup_time,
		special_instructions, stripe_payment_id, COALESCE(points_earned, 0) AS points_earned, created_at, updated_at`

	loyaltyColumns = `id, user_id, shop_id, order_id, points_change, transaction_type,
		COALESCE(description, '') AS description, created_at`

	voucherColumns = `id, user_id, reward_type, code, status, expires_at, created_at`

	walletColumns = `id, user_id, COALESCE(balance, 0) AS balance, created_at, updated_at`

	walletTxColumns = `id, user_id, amount, type, COALESCE(description, '') AS description, payment_intent_id, order_id, created_at`

	giftColumns = `id, sender_id, recipient_email, amount, message, code, status, redeemed_by, redeemed_at, created_at`

	notificationColumns = `id, user_id, title, message, type, data, COALESCE(read, false) AS read, created_at`

	promoColumns = `id, title, COALESCE(subtitle, '') AS subtitle, COALESCE(discount_text, '') AS discount_text,
		COALESCE(bg_color, '') AS bg_color, COALESCE(accent_color, '') AS accent_color, COALESCE(type, '') AS type,
		is_active, COALESCE(sort_order, 0) AS sort_order`
)

// mapPQError converts driver errors into the repository sentinels.
func mapPQError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w: %s", op, ErrConflict, pqErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// where accumulates positional filters.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// =============================================================================
// Catalog
// =============================================================================

func (r *PostgresRepository) ListShops(ctx context.Context, filter ShopFilter) ([]Shop, error) {
	var w where
	if filter.IsActive != nil {
		w.add("is_active = $%d", *filter.IsActive)
	}
	if filter.City != nil {
		w.add("city = $%d", *filter.City)
	}
	shops := []Shop{}
	err := r.db.SelectContext(ctx, &shops, "SELECT "+shopColumns+" FROM shops"+w.String(), w.args...)
	return shops, mapPQError("list shops", err)
}

func (r *PostgresRepository) GetShop(ctx context.Context, id string) (*Shop, error) {
	var shop Shop
	err := r.db.GetContext(ctx, &shop, "SELECT "+shopColumns+" FROM shops WHERE id = $1", id)
	if err != nil {
		return nil, mapPQError("get shop", err)
	}
	return &shop, nil
}

const insertShop = `INSERT INTO shops (id, name, description, logo_url, banner_url, address, city, latitude,
	longitude, phone, email, hours, is_active, rating, rating_count, loyalty_multiplier, created_at)
	VALUES (:id, :name, :description, :logo_url, :banner_url, :address, :city, :latitude, :longitude,
	:phone, :email, :hours, :is_active, :rating, :rating_count, :loyalty_multiplier, :created_at)`

func (r *PostgresRepository) CreateShops(ctx context.Context, shops []Shop) error {
	return r.inTx(ctx, "create shops", func(tx *sqlx.Tx) error {
		for i := range shops {
			if _, err := tx.NamedExecContext(ctx, insertShop, &shops[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepository) DeleteAllShops(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM shops WHERE id <> ''")
	return mapPQError("delete shops", err)
}

func (r *PostgresRepository) ListMenuItems(ctx context.Context, filter MenuFilter) ([]MenuItem, error) {
	var w where
	if filter.ShopID != nil {
		w.add("shop_id = $%d", *filter.ShopID)
	}
	if filter.AvailableOnly {
		w.add("is_available = $%d", true)
	}
	if filter.Category != nil {
		w.add("category = $%d", *filter.Category)
	}
	items := []MenuItem{}
	query := "SELECT " + menuItemColumns + " FROM menu_items" + w.String() + " ORDER BY sort_order ASC"
	err := r.db.SelectContext(ctx, &items, query, w.args...)
	return items, mapPQError("list menu items", err)
}

func (r *PostgresRepository) GetMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	var item MenuItem
	err := r.db.GetContext(ctx, &item, "SELECT "+menuItemColumns+" FROM menu_items WHERE id = $1", id)
	if err != nil {
		return nil, mapPQError("get menu item", err)
	}
	return &item, nil
}

const insertMenuItem = `INSERT INTO menu_items (id, shop_id, name, description, category, base_price, image_url,
	customization_options, is_available, is_featured, sort_order, created_at)
	VALUES (:id, :shop_id, :name, :description, :category, :base_price, :image_url,
	:customization_options, :is_available, :is_featured, :sort_order, :created_at)`

func (r *PostgresRepository) CreateMenuItems(ctx context.Context, items []MenuItem) error {
	return r.inTx(ctx, "create menu items", func(tx *sqlx.Tx) error {
		for i := range items {
			if _, err := tx.NamedExecContext(ctx, insertMenuItem, &items[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepository) DeleteAllMenuItems(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM menu_items WHERE id <> ''")
	return mapPQError("delete menu items", err)
}

// =============================================================================
// Orders
// =============================================================================

const insertOrder = `INSERT INTO orders (id, order_number, user_id, shop_id, shop_name, items, status, subtotal,
	tax, discount, total, pickup_time, special_instructions, stripe_payment_id, points_earned, created_at, updated_at)
	VALUES (:id, :order_number, :user_id, :shop_id, :shop_name, :items, :status, :subtotal, :tax, :discount,
	:total, :pickup_time, :special_instructions, :stripe_payment_id, :points_earned, :created_at, :updated_at)`

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *Order) error {
	_, err := r.db.NamedExecContext(ctx, insertOrder, order)
	return mapPQError("create order", err)
}

func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*Order, error) {
	var order Order
	err := r.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, mapPQError("get order", err)
	}
	return &order, nil
}

func (r *PostgresRepository) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	var w where
	if filter.UserID != nil {
		w.add("user_id = $%d", *filter.UserID)
	}
	if filter.Status != nil {
		w.add("status = $%d", *filter.Status)
	}
	orders := []Order{}
	query := "SELECT " + orderColumns + " FROM orders" + w.String() + " ORDER BY created_at DESC"
	err := r.db.SelectContext(ctx, &orders, query, w.args...)
	return orders, mapPQError("list orders", err)
}

func (r *PostgresRepository) UpdateOrder(ctx context.Context, id string, update OrderUpdate) (*Order, error) {
	sets := []string{"updated_at = $1"}
	args := []any{update.UpdatedAt}
	if update.Status != nil {
		args = append(args, *update.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if update.StripePaymentID != nil {
		args = append(args, *update.StripePaymentID)
		sets = append(sets, fmt.Sprintf("stripe_payment_id = $%d", len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE orders SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), orderColumns)

	var order Order
	if err := r.db.GetContext(ctx, &order, query, args...); err != nil {
		return nil, mapPQError("update order", err)
	}
	return &order, nil
}

// =============================================================================
// Loyalty
// =============================================================================

func (r *PostgresRepository) CreateLoyaltyTransaction(ctx context.Context, tx *LoyaltyTransaction) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO loyalty_transactions
		(id, user_id, shop_id, order_id, points_change, transaction_type, description, created_at)
		VALUES (:id, :user_id, :shop_id, :order_id, :points_change, :transaction_type, :description, :created_at)`, tx)
	return mapPQError("create loyalty transaction", err)
}

func (r *PostgresRepository) ListLoyaltyTransactions(ctx context.Context, userID string, limit int) ([]LoyaltyTransaction, error) {
	query := "SELECT " + loyaltyColumns + " FROM loyalty_transactions WHERE user_id = $1 ORDER BY created_at DESC"
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	txs := []LoyaltyTransaction{}
	err := r.db.SelectContext(ctx, &txs, query, args...)
	return txs, mapPQError("list loyalty transactions", err)
}

func (r *PostgresRepository) CreateRewardVoucher(ctx context.Context, voucher *RewardVoucher) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO reward_vouchers
		(id, user_id, reward_type, code, status, expires_at, created_at)
		VALUES (:id, :user_id, :reward_type, :code, :status, :expires_at, :created_at)`, voucher)
	return mapPQError("create reward voucher", err)
}

func (r *PostgresRepository) ListActiveVouchers(ctx context.Context, userID string) ([]RewardVoucher, error) {
	vouchers := []RewardVoucher{}
	err := r.db.SelectContext(ctx, &vouchers,
		"SELECT "+voucherColumns+" FROM reward_vouchers WHERE user_id = $1 AND status = $2", userID, VoucherActive)
	return vouchers, mapPQError("list vouchers", err)
}

// =============================================================================
// Wallet
// =============================================================================

func (r *PostgresRepository) GetWallet(ctx context.Context, userID string) (*Wallet, error) {
	var wallet Wallet
	err := r.db.GetContext(ctx, &wallet, "SELECT "+walletColumns+" FROM wallets WHERE user_id = $1", userID)
	if err != nil {
		return nil, mapPQError("get wallet", err)
	}
	return &wallet, nil
}

func (r *PostgresRepository) CreateWallet(ctx context.Context, wallet *Wallet) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
		VALUES (:id, :user_id, :balance, :created_at, :updated_at)`, wallet)
	return mapPQError("create wallet", err)
}

func (r *PostgresRepository) UpdateWalletBalance(ctx context.Context, userID string, expected, newBalance decimal.Decimal, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE wallets SET balance = $1, updated_at = $2 WHERE user_id = $3 AND balance = $4",
		newBalance, at, userID, expected)
	if err != nil {
		return mapPQError("update wallet balance", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapPQError("update wallet balance", err)
	}
	if n == 0 {
		return fmt.Errorf("update wallet balance for %s: %w", userID, ErrConflict)
	}
	return nil
}

func (r *PostgresRepository) CreateWalletTransaction(ctx context.Context, tx *WalletTransaction) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO wallet_transactions
		(id, user_id, amount, type, description, payment_intent_id, order_id, created_at)
		VALUES (:id, :user_id, :amount, :type, :description, :payment_intent_id, :order_id, :created_at)`, tx)
	return mapPQError("create wallet transaction", err)
}

func (r *PostgresRepository) ListWalletTransactions(ctx context.Context, userID string, limit int) ([]WalletTransaction, error) {
	query := "SELECT " + walletTxColumns + " FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC"
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	txs := []WalletTransaction{}
	err := r.db.SelectContext(ctx, &txs, query, args...)
	return txs, mapPQError("list wallet transactions", err)
}

func (r *PostgresRepository) PaymentIntentApplied(ctx context.Context, paymentIntentID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE payment_intent_id = $1)", paymentIntentID)
	return exists, mapPQError("check payment intent", err)
}

// =============================================================================
// Gifts
// =============================================================================

func (r *PostgresRepository) CreateGift(ctx context.Context, gift *Gift) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO gifts
		(id, sender_id, recipient_email, amount, message, code, status, redeemed_by, redeemed_at, created_at)
		VALUES (:id, :sender_id, :recipient_email, :amount, :message, :code, :status, :redeemed_by, :redeemed_at, :created_at)`, gift)
	return mapPQError("create gift", err)
}

func (r *PostgresRepository) GetGift(ctx context.Context, id string) (*Gift, error) {
	var gift Gift
	if err := r.db.GetContext(ctx, &gift, "SELECT "+giftColumns+" FROM gifts WHERE id = $1", id); err != nil {
		return nil, mapPQError("get gift", err)
	}
	return &gift, nil
}

func (r *PostgresRepository) MarkGiftRedeemed(ctx context.Context, id, redeemedBy string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE gifts SET status = $1, redeemed_by = $2, redeemed_at = $3 WHERE id = $4 AND status = $5",
		GiftRedeemed, redeemedBy, at, id, GiftPending)
	if err != nil {
		return mapPQError("redeem gift", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapPQError("redeem gift", err)
	}
	if n == 0 {
		return fmt.Errorf("redeem gift %s: %w", id, ErrConflict)
	}
	return nil
}

func (r *PostgresRepository) ReleaseGift(ctx context.Context, id, redeemedBy string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE gifts SET status = $1, redeemed_by = NULL, redeemed_at = NULL WHERE id = $2 AND status = $3 AND redeemed_by = $4",
		GiftPending, id, GiftRedeemed, redeemedBy)
	if err != nil {
		return mapPQError("release gift", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapPQError("release gift", err)
	}
	if n == 0 {
		return fmt.Errorf("release gift %s: %w", id, ErrConflict)
	}
	return nil
}

func (r *PostgresRepository) ListGiftsBySender(ctx context.Context, senderID string) ([]Gift, error) {
	gifts := []Gift{}
	err := r.db.SelectContext(ctx, &gifts,
		"SELECT "+giftColumns+" FROM gifts WHERE sender_id = $1 ORDER BY created_at DESC", senderID)
	return gifts, mapPQError("list sent gifts", err)
}

func (r *PostgresRepository) ListGiftsByRecipient(ctx context.Context, email string) ([]Gift, error) {
	gifts := []Gift{}
	err := r.db.SelectContext(ctx, &gifts,
		"SELECT "+giftColumns+" FROM gifts WHERE recipient_email = $1 ORDER BY created_at DESC", email)
	return gifts, mapPQError("list received gifts", err)
}

// =============================================================================
// Notifications & Promos
// =============================================================================

func (r *PostgresRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	query := "SELECT " + notificationColumns + " FROM notifications WHERE user_id = $1 ORDER BY created_at DESC"
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	out := []Notification{}
	err := r.db.SelectContext(ctx, &out, query, args...)
	return out, mapPQError("list notifications", err)
}

func (r *PostgresRepository) CreateNotification(ctx context.Context, n *Notification) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO notifications
		(id, user_id, title, message, type, data, read, created_at)
		VALUES (:id, :user_id, :title, :message, :type, :data, :read, :created_at)`, n)
	return mapPQError("create notification", err)
}

func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE notifications SET read = true WHERE id = $1", id)
	return mapPQError("mark notification read", err)
}

func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE notifications SET read = true WHERE user_id = $1", userID)
	return mapPQError("mark notifications read", err)
}

func (r *PostgresRepository) ListActivePromos(ctx context.Context) ([]Promo, error) {
	promos := []Promo{}
	err := r.db.SelectContext(ctx, &promos,
		"SELECT "+promoColumns+" FROM promos WHERE is_active = true ORDER BY sort_order ASC")
	return promos, mapPQError("list promos", err)
}

func (r *PostgresRepository) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapPQError(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return mapPQError(op, err)
	}
	return mapPQError(op, tx.Commit())
}
