// Package database holds the BeanHop data model and the repositories that
// persist it in Supabase (PostgREST) or directly in Postgres.
package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Money goes over the wire as JSON numbers, matching the mobile client.
	decimal.MarshalJSONWithoutQuotes = true
}

// Order statuses.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// OrderStatuses lists every valid order status in lifecycle order.
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Loyalty transaction types.
const (
	LoyaltyEarn   = "earn"
	LoyaltyRedeem = "redeem"
)

// Wallet transaction types.
const (
	WalletTxTopUp        = "topup"
	WalletTxPayment      = "payment"
	WalletTxGiftSent     = "gift_sent"
	WalletTxGiftReceived = "gift_received"
	WalletTxRefund       = "refund"
)

// Voucher and gift statuses.
const (
	VoucherActive   = "active"
	VoucherRedeemed = "redeemed"
	VoucherExpired  = "expired"

	GiftPending  = "pending"
	GiftRedeemed = "redeemed"
)

// =============================================================================
// Catalog
// =============================================================================

// DayHours is one day's opening window, e.g. {"open":"07:00","close":"18:00"}.
type DayHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Hours maps a lowercase weekday to its opening window.
type Hours map[string]DayHours

func (h Hours) Value() (driver.Value, error) { return jsonValue(h) }
func (h *Hours) Scan(src any) error          { return jsonScan(src, h) }

// CustomizationOptions maps an option name to its choices.
type CustomizationOptions map[string][]string

func (c CustomizationOptions) Value() (driver.Value, error) { return jsonValue(c) }
func (c *CustomizationOptions) Scan(src any) error          { return jsonScan(src, c) }

type Shop struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Description       *string   `json:"description" db:"description"`
	LogoURL           *string   `json:"logo_url" db:"logo_url"`
	BannerURL         *string   `json:"banner_url" db:"banner_url"`
	Address           string    `json:"address" db:"address"`
	City              string    `json:"city" db:"city"`
	Latitude          float64   `json:"latitude" db:"latitude"`
	Longitude         float64   `json:"longitude" db:"longitude"`
	Phone             *string   `json:"phone" db:"phone"`
	Email             *string   `json:"email" db:"email"`
	Hours             Hours     `json:"hours" db:"hours"`
	IsActive          bool      `json:"is_active" db:"is_active"`
	Rating            float64   `json:"rating" db:"rating"`
	RatingCount       int       `json:"rating_count" db:"rating_count"`
	LoyaltyMultiplier float64   `json:"loyalty_multiplier" db:"loyalty_multiplier"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

type MenuItem struct {
	ID                   string               `json:"id" db:"id"`
	ShopID               string               `json:"shop_id" db:"shop_id"`
	Name                 string               `json:"name" db:"name"`
	Description          *string              `json:"description" db:"description"`
	Category             string               `json:"category" db:"category"`
	BasePrice            decimal.Decimal      `json:"base_price" db:"base_price"`
	ImageURL             *string              `json:"image_url" db:"image_url"`
	CustomizationOptions CustomizationOptions `json:"customization_options" db:"customization_options"`
	IsAvailable          bool                 `json:"is_available" db:"is_available"`
	IsFeatured           bool                 `json:"is_featured" db:"is_featured"`
	SortOrder            int                  `json:"sort_order" db:"sort_order"`
	CreatedAt            time.Time            `json:"created_at" db:"created_at"`
}

// =============================================================================
// Orders & Loyalty
// =============================================================================

// OrderItem is a snapshot of a menu item at order time.
type OrderItem struct {
	MenuItemID     string            `json:"menu_item_id"`
	Name           string            `json:"name"`
	Price          decimal.Decimal   `json:"price"`
	Quantity       int               `json:"quantity"`
	Customizations map[string]string `json:"customizations"`
}

// OrderItems is stored as a JSONB array.
type OrderItems []OrderItem

func (o OrderItems) Value() (driver.Value, error) { return jsonValue(o) }
func (o *OrderItems) Scan(src any) error          { return jsonScan(src, o) }

// Clone deep-copies the items, customizations included.
func (o OrderItems) Clone() OrderItems {
	if o == nil {
		return nil
	}
	out := make(OrderItems, len(o))
	for i, it := range o {
		out[i] = it
		out[i].Customizations = maps.Clone(it.Customizations)
	}
	return out
}

type Order struct {
	ID                  string          `json:"id" db:"id"`
	OrderNumber         string          `json:"order_number" db:"order_number"`
	UserID              string          `json:"user_id" db:"user_id"`
	ShopID              string          `json:"shop_id" db:"shop_id"`
	ShopName            string          `json:"shop_name" db:"shop_name"`
	Items               OrderItems      `json:"items" db:"items"`
	Status              string          `json:"status" db:"status"`
	Subtotal            decimal.Decimal `json:"subtotal" db:"subtotal"`
	Tax                 decimal.Decimal `json:"tax" db:"tax"`
	Discount            decimal.Decimal `json:"discount" db:"discount"`
	Total               decimal.Decimal `json:"total" db:"total"`
	PickupTime          *string         `json:"pickup_time" db:"pickup_time"`
	SpecialInstructions *string         `json:"special_instructions" db:"special_instructions"`
	StripePaymentID     *string         `json:"stripe_payment_id" db:"stripe_payment_id"`
	PointsEarned        int             `json:"points_earned" db:"points_earned"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderUpdate is a partial order update. Nil fields are left untouched.
type OrderUpdate struct {
	Status          *string
	StripePaymentID *string
	UpdatedAt       time.Time
}

func (u OrderUpdate) fields() map[string]any {
	fields := map[string]any{"updated_at": u.UpdatedAt}
	if u.Status != nil {
		fields["status"] = *u.Status
	}
	if u.StripePaymentID != nil {
		fields["stripe_payment_id"] = *u.StripePaymentID
	}
	return fields
}

// LoyaltyTransaction is an append-only points ledger row.
type LoyaltyTransaction struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	ShopID          *string   `json:"shop_id" db:"shop_id"`
	OrderID         *string   `json:"order_id" db:"order_id"`
	PointsChange    int       `json:"points_change" db:"points_change"`
	TransactionType string    `json:"transaction_type" db:"transaction_type"`
	Description     string    `json:"description" db:"description"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type RewardVoucher struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	RewardType string    `json:"reward_type" db:"reward_type"`
	Code       string    `json:"code" db:"code"`
	Status     string    `json:"status" db:"status"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// =============================================================================
// Wallet & Gifts
// =============================================================================

type Wallet struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// WalletTransaction is an append-only wallet ledger row. Amount is signed.
type WalletTransaction struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Type            string          `json:"type" db:"type"`
	Description     string          `json:"description" db:"description"`
	PaymentIntentID *string         `json:"payment_intent_id" db:"payment_intent_id"`
	OrderID         *string         `json:"order_id" db:"order_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

type Gift struct {
	ID             string          `json:"id" db:"id"`
	SenderID       string          `json:"sender_id" db:"sender_id"`
	RecipientEmail string          `json:"recipient_email" db:"recipient_email"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Message        *string         `json:"message" db:"message"`
	Code           string          `json:"code" db:"code"`
	Status         string          `json:"status" db:"status"`
	RedeemedBy     *string         `json:"redeemed_by" db:"redeemed_by"`
	RedeemedAt     *time.Time      `json:"redeemed_at" db:"redeemed_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// =============================================================================
// Notifications & Promos
// =============================================================================

// JSONObject is a free-form JSONB object.
type JSONObject map[string]any

func (j JSONObject) Value() (driver.Value, error) { return jsonValue(j) }
func (j *JSONObject) Scan(src any) error          { return jsonScan(src, j) }

type Notification struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Title     string     `json:"title" db:"title"`
	Message   string     `json:"message" db:"message"`
	Type      string     `json:"type" db:"type"`
	Data      JSONObject `json:"data" db:"data"`
	Read      bool       `json:"read" db:"read"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

type Promo struct {
	ID           string `json:"id" db:"id"`
	Title        string `json:"title" db:"title"`
	Subtitle     string `json:"subtitle" db:"subtitle"`
	DiscountText string `json:"discount_text" db:"discount_text"`
	BgColor      string `json:"bg_color" db:"bg_color"`
	AccentColor  string `json:"accent_color" db:"accent_color"`
	Type         string `json:"type" db:"type"`
	IsActive     bool   `json:"is_active" db:"is_active"`
	SortOrder    int    `json:"sort_order" db:"sort_order"`
}

// =============================================================================
// JSONB helpers
// =============================================================================

func jsonValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

func jsonScan(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
}

// NewCode returns prefix followed by n uppercase hex characters of a fresh
// UUID, e.g. NewCode("ORD-", 6) = "ORD-3F9A1C".
func NewCode(prefix string, n int) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + strings.ToUpper(hex[:n])
}
