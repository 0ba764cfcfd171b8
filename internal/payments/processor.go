// Package payments orchestrates card payments through an external processor.
//
// The Processor interface is the seam between the API and Stripe: the
// production adapter wraps stripe-go, tests use FakeProcessor.
package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Currency is the only currency the shop charges in.
const Currency = "cad"

// Intent statuses and purposes used in metadata.
const (
	StatusSucceeded = "succeeded"

	PurposeOrder             = "order"
	PurposeWalletTopUp       = "wallet_topup"
	PurposeSavePaymentMethod = "save_payment_method"

	usageOffSession = "off_session"
)

// ErrNotConfigured is returned when no processor key is set.
var ErrNotConfigured = errors.New("payment processor is not configured")

// CardError is a card-level decline. Message is safe to show to the user.
type CardError struct {
	Code    string
	Message string
	Err     error
}

func (e *CardError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

func (e *CardError) Unwrap() error { return e.Err }

// =============================================================================
// Processor types
// =============================================================================

type Customer struct {
	ID                     string
	Email                  string
	Metadata               map[string]string
	DefaultPaymentMethodID string
}

type PaymentMethod struct {
	ID         string
	CustomerID string
	Brand      string
	Last4      string
	ExpMonth   int64
	ExpYear    int64
}

// Intent is a processor payment intent. Amounts are minor units.
type Intent struct {
	ID              string
	ClientSecret    string
	Status          string
	Currency        string
	Amount          int64
	AmountReceived  int64
	CustomerID      string
	PaymentMethodID string
	Metadata        map[string]string
}

// ReceivedCents returns amount_received, falling back to amount.
func (i *Intent) ReceivedCents() int64 {
	if i.AmountReceived != 0 {
		return i.AmountReceived
	}
	return i.Amount
}

type IntentParams struct {
	Amount                  int64
	Currency                string
	CustomerID              string
	PaymentMethodID         string
	Metadata                map[string]string
	SetupFutureUsage        string
	AutomaticPaymentMethods bool
	Confirm                 bool
	OffSession              bool
}

type SetupIntentParams struct {
	CustomerID string
	Usage      string
	Metadata   map[string]string
}

type SetupIntent struct {
	ID           string
	ClientSecret string
}

// Processor is the subset of the payment processor API the service uses.
type Processor interface {
	SearchCustomers(ctx context.Context, query string, limit int64) ([]Customer, error)
	// ListCustomers lists customers, filtered by email when email is not empty.
	ListCustomers(ctx context.Context, email string, limit int64) ([]Customer, error)
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error)
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	GetPaymentMethod(ctx context.Context, id string) (*PaymentMethod, error)
	ListCardPaymentMethods(ctx context.Context, customerID string, limit int64) ([]PaymentMethod, error)

	CreatePaymentIntent(ctx context.Context, params IntentParams) (*Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (*Intent, error)
	CreateSetupIntent(ctx context.Context, params SetupIntentParams) (*SetupIntent, error)
}

// ToCents converts a major-unit amount to minor units, rounding half away from zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromCents converts minor units to a major-unit amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
