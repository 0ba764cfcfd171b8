package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/internal/metrics"
	"github.com/beanhop/backend/pkg/logger"
)

const (
	savedMethodsLimit = 20

	msgNotConfigured   = "Stripe is not configured on the server"
	msgAmountPositive  = "Amount must be greater than 0"
	msgNotCompleted    = "Payment is not completed"
	msgMethodNotOwned  = "Selected payment method does not belong to user"
	msgOrderMismatch   = "Payment intent does not match order"
	msgOrderNotFound   = "Order not found"
	msgInvalidAmount   = "Invalid amount"
	msgInvalidTopUpAmt = "Invalid top-up amount"
)

// Service implements the payment endpoints. A nil processor means payments are
// not configured; operations that need the processor then fail with 503.
type Service struct {
	processor      Processor
	customers      *CustomerResolver
	orders         database.OrderRepository
	publishableKey string
	log            *logger.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

// NewService creates the payment service.
func NewService(processor Processor, orders database.OrderRepository, publishableKey string, log *logger.Logger, m *metrics.Metrics) *Service {
	s := &Service{
		processor:      processor,
		orders:         orders,
		publishableKey: publishableKey,
		log:            log,
		metrics:        m,
		now:            time.Now,
	}
	if processor != nil {
		s.customers = NewCustomerResolver(processor, log)
	}
	return s
}

// Configured reports whether a processor is available.
func (s *Service) Configured() bool {
	return s.processor != nil
}

// =============================================================================
// Requests & responses
// =============================================================================

type ConfigResponse struct {
	PublishableKey string `json:"publishableKey"`
}

type CreateIntentRequest struct {
	Amount                   decimal.Decimal `json:"amount"`
	OrderID                  *string         `json:"order_id"`
	UserID                   *string         `json:"user_id"`
	Email                    *string         `json:"email"`
	Purpose                  string          `json:"purpose"`
	SavePaymentMethod        *bool           `json:"save_payment_method"`
	PreferredPaymentMethodID *string         `json:"preferred_payment_method_id"`
}

type IntentResponse struct {
	ClientSecret    string  `json:"clientSecret"`
	PaymentIntentID string  `json:"paymentIntentId"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	CustomerID      *string `json:"customerId"`
}

type SavedMethod struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int64  `json:"exp_month"`
	ExpYear   int64  `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
}

type SavedMethods struct {
	CustomerID     *string       `json:"customer_id"`
	PaymentMethods []SavedMethod `json:"payment_methods"`
}

type SetupIntentResponse struct {
	ClientSecret  string `json:"clientSecret"`
	SetupIntentID string `json:"setupIntentId"`
	CustomerID    string `json:"customerId"`
}

type SavedMethodChargeRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	UserID          string          `json:"user_id"`
	PaymentMethodID string          `json:"payment_method_id"`
	OrderID         *string         `json:"order_id"`
	Email           *string         `json:"email"`
	Purpose         string          `json:"purpose"`
}

type ChargeResponse struct {
	Success         bool   `json:"success"`
	PaymentIntentID string `json:"paymentIntentId"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// =============================================================================
// Operations
// =============================================================================

// Config returns the key the mobile client initializes the payment sheet with.
func (s *Service) Config() ConfigResponse {
	return ConfigResponse{PublishableKey: s.publishableKey}
}

// CreatePaymentIntent creates an intent for a card-sheet payment.
func (s *Service) CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*IntentResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, svcerrors.Validation(msgAmountPositive)
	}
	cents := ToCents(req.Amount)
	if !s.Configured() {
		return nil, notConfigured()
	}

	purpose := req.Purpose
	if purpose == "" {
		purpose = PurposeOrder
	}
	metadata := map[string]string{"purpose": purpose}
	if v := deref(req.OrderID); v != "" {
		metadata["order_id"] = v
	}
	userID := deref(req.UserID)
	if userID != "" {
		metadata["user_id"] = userID
	}

	params := IntentParams{
		Amount:                  cents,
		Currency:                Currency,
		Metadata:                metadata,
		AutomaticPaymentMethods: true,
	}

	var customerID *string
	if userID != "" {
		customer, err := s.customers.GetOrCreate(ctx, userID, deref(req.Email))
		if err != nil {
			return nil, processorError(err)
		}
		customerID = &customer.ID
		params.CustomerID = customer.ID

		if preferred := deref(req.PreferredPaymentMethodID); preferred != "" {
			if err := s.pinOwnedMethod(ctx, customer.ID, preferred); err != nil {
				return nil, err
			}
			metadata["preferred_payment_method_id"] = preferred
		}
		if req.SavePaymentMethod == nil || *req.SavePaymentMethod {
			params.SetupFutureUsage = usageOffSession
		}
	}

	intent, err := s.processor.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, processorError(err)
	}
	s.metrics.RecordPaymentIntent(purpose)

	return &IntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          cents,
		Currency:        Currency,
		CustomerID:      customerID,
	}, nil
}

// ConfirmPayment verifies a succeeded intent and marks the order confirmed.
// Without a processor the order is confirmed unverified.
func (s *Service) ConfirmPayment(ctx context.Context, paymentIntentID, orderID string) (*database.Order, error) {
	if s.Configured() {
		intent, err := s.processor.GetPaymentIntent(ctx, paymentIntentID)
		if err != nil {
			return nil, processorError(err)
		}
		if intent.Status != StatusSucceeded {
			return nil, svcerrors.Validation(msgNotCompleted)
		}
		if metaOrder := intent.Metadata["order_id"]; metaOrder != "" && metaOrder != orderID {
			return nil, svcerrors.Validation(msgOrderMismatch)
		}
		if err := s.PinDefaultPaymentMethod(ctx, intent.CustomerID, intent.PaymentMethodID); err != nil {
			return nil, err
		}
	}

	status := database.OrderStatusConfirmed
	order, err := s.orders.UpdateOrder(ctx, orderID, database.OrderUpdate{
		Status:          &status,
		StripePaymentID: &paymentIntentID,
		UpdatedAt:       s.now().UTC(),
	})
	if err != nil {
		if database.IsNotFound(err) {
			return nil, svcerrors.NotFound(msgOrderNotFound)
		}
		return nil, svcerrors.Internal(err.Error(), err)
	}

	s.log.WithContext(ctx).WithField("order_id", orderID).Info("order payment confirmed")
	return order, nil
}

// ListPaymentMethods returns the user's saved cards.
func (s *Service) ListPaymentMethods(ctx context.Context, userID, email string) (*SavedMethods, error) {
	empty := &SavedMethods{PaymentMethods: []SavedMethod{}}
	if !s.Configured() {
		return empty, nil
	}
	customer := s.customers.Find(ctx, userID, email)
	if customer == nil {
		return empty, nil
	}

	methods, err := s.processor.ListCardPaymentMethods(ctx, customer.ID, savedMethodsLimit)
	if err != nil {
		return nil, processorError(err)
	}

	out := &SavedMethods{CustomerID: &customer.ID, PaymentMethods: make([]SavedMethod, 0, len(methods))}
	for _, pm := range methods {
		out.PaymentMethods = append(out.PaymentMethods, SavedMethod{
			ID:        pm.ID,
			Brand:     pm.Brand,
			Last4:     pm.Last4,
			ExpMonth:  pm.ExpMonth,
			ExpYear:   pm.ExpYear,
			IsDefault: pm.ID == customer.DefaultPaymentMethodID,
		})
	}
	return out, nil
}

// CreateSetupIntent starts saving a card for later off-session use.
func (s *Service) CreateSetupIntent(ctx context.Context, userID, email string) (*SetupIntentResponse, error) {
	if !s.Configured() {
		return nil, notConfigured()
	}
	customer, err := s.customers.GetOrCreate(ctx, userID, email)
	if err != nil {
		return nil, processorError(err)
	}

	si, err := s.processor.CreateSetupIntent(ctx, SetupIntentParams{
		CustomerID: customer.ID,
		Usage:      usageOffSession,
		Metadata:   map[string]string{"user_id": userID, "purpose": PurposeSavePaymentMethod},
	})
	if err != nil {
		return nil, processorError(err)
	}
	return &SetupIntentResponse{ClientSecret: si.ClientSecret, SetupIntentID: si.ID, CustomerID: customer.ID}, nil
}

// PayWithSavedMethod charges a saved card off-session.
func (s *Service) PayWithSavedMethod(ctx context.Context, req SavedMethodChargeRequest) (*ChargeResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, svcerrors.Validation(msgAmountPositive)
	}
	if !s.Configured() {
		return nil, notConfigured()
	}
	cents := ToCents(req.Amount)
	if cents <= 0 {
		return nil, svcerrors.Validation(msgInvalidAmount)
	}

	customer, err := s.customers.GetOrCreate(ctx, req.UserID, deref(req.Email))
	if err != nil {
		return nil, chargeError(err)
	}
	if err := s.pinOwnedMethod(ctx, customer.ID, req.PaymentMethodID); err != nil {
		return nil, err
	}

	purpose := req.Purpose
	if purpose == "" {
		purpose = PurposeOrder
	}
	metadata := map[string]string{
		"purpose":           purpose,
		"user_id":           req.UserID,
		"payment_method_id": req.PaymentMethodID,
	}
	if v := deref(req.OrderID); v != "" {
		metadata["order_id"] = v
	}

	intent, err := s.processor.CreatePaymentIntent(ctx, IntentParams{
		Amount:          cents,
		Currency:        Currency,
		CustomerID:      customer.ID,
		PaymentMethodID: req.PaymentMethodID,
		Metadata:        metadata,
		Confirm:         true,
		OffSession:      true,
	})
	if err != nil {
		return nil, chargeError(err)
	}
	s.metrics.RecordPaymentIntent(purpose)

	if intent.Status != StatusSucceeded {
		return nil, svcerrors.Validation("Payment not completed: " + intent.Status)
	}
	return &ChargeResponse{
		Success:         true,
		PaymentIntentID: intent.ID,
		Status:          intent.Status,
		Amount:          cents,
		Currency:        intent.Currency,
	}, nil
}

// CreateTopUpIntent creates an intent that a later wallet top-up will verify.
func (s *Service) CreateTopUpIntent(ctx context.Context, userID string, amount decimal.Decimal, email string) (*IntentResponse, error) {
	if !amount.IsPositive() {
		return nil, svcerrors.Validation(msgAmountPositive)
	}
	if !s.Configured() {
		return nil, notConfigured()
	}
	cents := ToCents(amount)
	if cents <= 0 {
		return nil, svcerrors.Validation(msgInvalidTopUpAmt)
	}

	customer, err := s.customers.GetOrCreate(ctx, userID, email)
	if err != nil {
		return nil, processorError(err)
	}

	intent, err := s.processor.CreatePaymentIntent(ctx, IntentParams{
		Amount:                  cents,
		Currency:                Currency,
		CustomerID:              customer.ID,
		AutomaticPaymentMethods: true,
		SetupFutureUsage:        usageOffSession,
		Metadata: map[string]string{
			"purpose":      PurposeWalletTopUp,
			"user_id":      userID,
			"amount_cents": fmt.Sprintf("%d", cents),
		},
	})
	if err != nil {
		return nil, processorError(err)
	}
	s.metrics.RecordPaymentIntent(PurposeWalletTopUp)

	return &IntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          cents,
		Currency:        Currency,
		CustomerID:      &customer.ID,
	}, nil
}

// GetPaymentIntent fetches an intent, mapping processor failures to 400.
func (s *Service) GetPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	if !s.Configured() {
		return nil, notConfigured()
	}
	intent, err := s.processor.GetPaymentIntent(ctx, id)
	if err != nil {
		return nil, processorError(err)
	}
	return intent, nil
}

// PinDefaultPaymentMethod makes paymentMethodID the customer's default.
// It is a no-op unless both ids are set.
func (s *Service) PinDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	if customerID == "" || paymentMethodID == "" || !s.Configured() {
		return nil
	}
	if err := s.processor.SetDefaultPaymentMethod(ctx, customerID, paymentMethodID); err != nil {
		return processorError(err)
	}
	return nil
}

func (s *Service) pinOwnedMethod(ctx context.Context, customerID, paymentMethodID string) error {
	pm, err := s.processor.GetPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return processorError(err)
	}
	if pm.CustomerID != customerID {
		return svcerrors.Validation(msgMethodNotOwned)
	}
	return s.PinDefaultPaymentMethod(ctx, customerID, paymentMethodID)
}

// =============================================================================
// Error mapping
// =============================================================================

func notConfigured() error {
	return svcerrors.Wrap(ErrNotConfigured, svcerrors.CodeServiceUnavailable, msgNotConfigured, http.StatusServiceUnavailable)
}

// processorError maps any processor failure to 400 with the processor's message.
func processorError(err error) error {
	if se := svcerrors.GetServiceError(err); se != nil {
		return se
	}
	return svcerrors.Wrap(err, svcerrors.CodeValidation, err.Error(), http.StatusBadRequest)
}

// chargeError is processorError with card declines surfaced as 402.
func chargeError(err error) error {
	var card *CardError
	if errors.As(err, &card) {
		return svcerrors.PaymentDeclined(card.Message, err)
	}
	return processorError(err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
